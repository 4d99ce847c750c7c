package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/preprocess"
)

func TestScore(t *testing.T) {
	assert.InDelta(t, 1*(0.3+0), Score("", 0, 0.3), 1e-9)
	assert.InDelta(t, 6*(0.3+0.5), Score("hello", 0.5, 0.3), 1e-9)
	// Characters, not bytes.
	assert.InDelta(t, 3*(0.3+1), Score("éé", 1, 0.3), 1e-9)

	long := Score("a much longer but shaky line", 0.4, 0.3)
	short := Score("ok", 0.99, 0.3)
	assert.Greater(t, long, short)
}

func TestOCRService_ProcessPage(t *testing.T) {
	engine := &mockEngine{name: "tesseract", byWidth: map[int]*domain.Extraction{
		60: {Text: "Invoice Total $450.00", WordBoxes: words("Invoice Total $450.00", 0.8), Confidence: 0.8},
	}}
	env := newTestEnv(t, engine)
	ctx := context.Background()
	id := env.storeDocWithPages(t, "https://example.org/report.pdf", 60)

	result, err := env.ocr.ProcessPage(ctx, domain.PageID(id, 1))

	require.NoError(t, err)
	assert.Equal(t, "Invoice Total $450.00", result.RawText)
	assert.Equal(t, "Invoice Total $450.00", result.NormalizedText)
	assert.Equal(t, id, result.DocumentID)
	assert.Equal(t, 1, result.PageNumber)
	assert.Equal(t, "tesseract", result.Engine)
	assert.InDelta(t, 0.8, result.Confidence, 1e-9)
	assert.Len(t, result.WordBoxes, 3)
	assert.Equal(t, domain.BoundingBox{X: 0, Y: 4, Width: 34, Height: 8}, result.BBox)
	assert.Equal(t, preprocess.VariantOriginal, result.Metadata[domain.MetaVariant])
	assert.Equal(t, 1.0, result.Metadata[domain.MetaScale])
	assert.NotContains(t, result.Metadata, domain.MetaSelectedEngine)

	page, err := env.store.GetPage(ctx, domain.PageID(id, 1))
	require.NoError(t, err)
	assert.True(t, page.OCRProcessed)
	assert.False(t, page.OCRProcessedAt.IsZero())
}

func TestOCRService_ProcessPage_MapsScaledBoxes(t *testing.T) {
	// Only the x2 rendition of a 60px page is readable.
	engine := &mockEngine{name: "tesseract", byWidth: map[int]*domain.Extraction{
		120: {
			Text:       "tiny",
			WordBoxes:  []domain.WordBox{{Text: "tiny", X: 100, Y: 50, Width: 20, Height: 10, Confidence: 0.7}},
			Confidence: 0.7,
		},
	}}
	env := newTestEnv(t, engine)
	id := env.storeDocWithPages(t, "https://example.org/small.pdf", 60)

	result, err := env.ocr.ProcessPage(context.Background(), domain.PageID(id, 1))

	require.NoError(t, err)
	require.Len(t, result.WordBoxes, 1)
	w := result.WordBoxes[0]
	assert.Equal(t, domain.BoundingBox{X: 50, Y: 25, Width: 10, Height: 5}, w.Box())
	assert.Equal(t, "original_x2", result.Metadata[domain.MetaVariant])
	assert.Equal(t, 2.0, result.Metadata[domain.MetaScale])
}

func TestOCRService_ProcessPage_EnsemblePicksHighestScore(t *testing.T) {
	confident := &mockEngine{name: "tesseract", byWidth: map[int]*domain.Extraction{
		60: {Text: "Total", WordBoxes: words("Total", 0.95), Confidence: 0.95},
	}}
	verbose := &mockEngine{name: "vision", byWidth: map[int]*domain.Extraction{
		60: {Text: "Invoice Total $450.00 due", WordBoxes: words("Invoice Total $450.00 due", 0.6), Confidence: 0.6},
	}}
	env := newTestEnv(t, confident, verbose)
	id := env.storeDocWithPages(t, "https://example.org/report.pdf", 60)

	result, err := env.ocr.ProcessPage(context.Background(), domain.PageID(id, 1))

	require.NoError(t, err)
	assert.Equal(t, "vision", result.Engine)
	assert.Equal(t, "vision", result.Metadata[domain.MetaSelectedEngine])
	assert.Contains(t, result.RawText, "450.00")
}

func TestOCRService_ProcessPage_NoTextStillProcessed(t *testing.T) {
	engine := &mockEngine{name: "tesseract"}
	env := newTestEnv(t, engine)
	ctx := context.Background()
	id := env.storeDocWithPages(t, "https://example.org/blank.pdf", 60)

	result, err := env.ocr.ProcessPage(ctx, domain.PageID(id, 1))

	require.NoError(t, err)
	assert.Empty(t, result.RawText)
	assert.Empty(t, result.WordBoxes)
	assert.True(t, result.BBox.IsZero())

	page, err := env.store.GetPage(ctx, domain.PageID(id, 1))
	require.NoError(t, err)
	assert.True(t, page.OCRProcessed)
}

func TestOCRService_ProcessPage_EngineFailuresStoreEmptyResult(t *testing.T) {
	engine := &mockEngine{name: "tesseract", err: errors.New("boom")}
	env := newTestEnv(t, engine)
	ctx := context.Background()
	id := env.storeDocWithPages(t, "https://example.org/report.pdf", 60)

	result, err := env.ocr.ProcessPage(ctx, domain.PageID(id, 1))

	require.NoError(t, err)
	assert.Empty(t, result.RawText)
	assert.Empty(t, result.WordBoxes)
	assert.Equal(t, "boom", result.Metadata[domain.MetaError])

	page, err := env.store.GetPage(ctx, domain.PageID(id, 1))
	require.NoError(t, err)
	assert.True(t, page.OCRProcessed)

	stored, err := env.store.GetResultByPage(ctx, domain.PageID(id, 1))
	require.NoError(t, err)
	assert.Equal(t, result.ID, stored.ID)
}

func TestOCRService_ProcessDocument_EngineFailuresCountAsEmpty(t *testing.T) {
	engine := &mockEngine{name: "tesseract", err: errors.New("boom")}
	env := newTestEnv(t, engine)
	ctx := context.Background()
	id := env.storeDocWithPages(t, "https://example.org/report.pdf", 60, 60, 60)

	res, err := env.ocr.ProcessDocument(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, 3, res.Empty)
	assert.Zero(t, res.Failed)
	pending, err := env.store.ListPendingPages(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestOCRService_ProcessPage_OneEngineFailingIsSkipped(t *testing.T) {
	broken := &mockEngine{name: "vision", err: errors.New("quota exceeded")}
	working := &mockEngine{name: "tesseract", byWidth: map[int]*domain.Extraction{
		60: {Text: "hello world", WordBoxes: words("hello world", 0.9), Confidence: 0.9},
	}}
	env := newTestEnv(t, broken, working)
	id := env.storeDocWithPages(t, "https://example.org/report.pdf", 60)

	result, err := env.ocr.ProcessPage(context.Background(), domain.PageID(id, 1))

	require.NoError(t, err)
	assert.Equal(t, "tesseract", result.Engine)
}

func TestOCRService_ProcessPage_AlreadyProcessed(t *testing.T) {
	engine := &mockEngine{name: "tesseract", byWidth: map[int]*domain.Extraction{
		60: {Text: "once", WordBoxes: words("once", 0.9), Confidence: 0.9},
	}}
	env := newTestEnv(t, engine)
	ctx := context.Background()
	id := env.storeDocWithPages(t, "https://example.org/report.pdf", 60)

	first, err := env.ocr.ProcessPage(ctx, domain.PageID(id, 1))
	require.NoError(t, err)
	calls := engine.calls.Load()

	second, err := env.ocr.ProcessPage(ctx, domain.PageID(id, 1))

	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, calls, engine.calls.Load())
}

func TestOCRService_ProcessPage_Errors(t *testing.T) {
	t.Run("no engines", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.ocr.ProcessPage(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrEngineUnavailable)
	})

	t.Run("unknown page", func(t *testing.T) {
		env := newTestEnv(t, &mockEngine{name: "tesseract"})
		_, err := env.ocr.ProcessPage(context.Background(), "missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestOCRService_ProcessDocument(t *testing.T) {
	engine := &mockEngine{name: "tesseract", byWidth: map[int]*domain.Extraction{
		60: {Text: "first page", WordBoxes: words("first page", 0.9), Confidence: 0.9},
		64: {Text: "third page", WordBoxes: words("third page", 0.9), Confidence: 0.9},
	}}
	env := newTestEnv(t, engine)
	ctx := context.Background()
	id := env.storeDocWithPages(t, "https://example.org/report.pdf", 60, 62, 64)

	res, err := env.ocr.ProcessDocument(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)
	assert.Equal(t, 1, res.Empty)
	assert.Equal(t, 0, res.Failed)
	assert.Len(t, res.ResultIDs, 3)

	pending, err := env.store.ListPendingPages(ctx, id, 0)
	require.NoError(t, err)
	assert.Empty(t, pending)

	again, err := env.ocr.ProcessDocument(ctx, id)
	require.NoError(t, err)
	assert.Zero(t, again.Processed+again.Empty+again.Failed)
}

func TestOCRService_ProcessPending(t *testing.T) {
	engine := &mockEngine{name: "tesseract", byWidth: map[int]*domain.Extraction{
		60: {Text: "text", WordBoxes: words("text", 0.9), Confidence: 0.9},
	}}
	env := newTestEnv(t, engine)
	ctx := context.Background()
	env.storeDocWithPages(t, "https://example.org/a.pdf", 60, 60)
	env.storeDocWithPages(t, "https://example.org/b.pdf", 60)

	res, err := env.ocr.ProcessPending(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Processed)

	res, err = env.ocr.ProcessPending(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Processed)
}

func TestOCRService_ProcessDocument_Cancelled(t *testing.T) {
	env := newTestEnv(t, &mockEngine{name: "tesseract"})
	id := env.storeDocWithPages(t, "https://example.org/report.pdf", 60, 60)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := env.ocr.ProcessDocument(ctx, id)

	assert.ErrorIs(t, err, context.Canceled)
}

// Ensure the mock satisfies the port.
var _ driven.OCREngine = (*mockEngine)(nil)
