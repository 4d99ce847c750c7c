package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/adapters/driven/blob/local"
	"github.com/custodia-labs/pagesift/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/preprocess"
)

// --- Mock implementations ---

// mockEngine implements driven.OCREngine. Replies are keyed by the width
// of the image it receives so tests can target a page or a scale.
type mockEngine struct {
	name    string
	byWidth map[int]*domain.Extraction
	err     error
	calls   atomic.Int32
}

func (m *mockEngine) Name() string { return m.name }

func (m *mockEngine) ExtractText(_ context.Context, data []byte) (*domain.Extraction, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if ext, ok := m.byWidth[cfg.Width]; ok {
		cp := *ext
		cp.WordBoxes = append([]domain.WordBox(nil), ext.WordBoxes...)
		return &cp, nil
	}
	return &domain.Extraction{Engine: m.name}, nil
}

func (m *mockEngine) Close() error { return nil }

// words lays text out as a row of 10px-wide boxes, one per word.
func words(text string, conf float64) []domain.WordBox {
	var out []domain.WordBox
	for i, w := range strings.Fields(text) {
		out = append(out, domain.WordBox{
			Text: w, X: float64(i * 12), Y: 4, Width: 10, Height: 8, Confidence: conf,
		})
	}
	return out
}

// mockConverter implements driven.Converter by writing one blank PNG per
// configured width.
type mockConverter struct {
	widths []int
	err    error
}

func (m *mockConverter) IsMultiPage(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".pdf")
}

func (m *mockConverter) ToPageImages(_ context.Context, _, outDir string) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	paths := make([]string, 0, len(m.widths))
	for i, w := range m.widths {
		p := filepath.Join(outDir, fmt.Sprintf("page-%d.png", i+1))
		writePNG(nil, p, w, 40)
		paths = append(paths, p)
	}
	return paths, nil
}

// mockCrawler implements driven.Crawler over a fixed candidate list.
type mockCrawler struct {
	files   []domain.FileCandidate
	missing map[string]bool
	onFetch func(url string)

	mu      sync.Mutex
	fetched []string
}

func (m *mockCrawler) Name() string { return "mock" }

func (m *mockCrawler) DiscoverFiles(ctx context.Context) ([]domain.FileCandidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.files, nil
}

func (m *mockCrawler) FetchFile(_ context.Context, url, destPath string) (bool, error) {
	m.mu.Lock()
	m.fetched = append(m.fetched, url)
	m.mu.Unlock()
	if m.onFetch != nil {
		m.onFetch(url)
	}
	if m.missing[url] {
		return false, nil
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return false, err
	}
	return true, os.WriteFile(destPath, []byte("%PDF-1.4 "+url), 0o644)
}

func (m *mockCrawler) Close() error { return nil }

func (m *mockCrawler) fetchCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.fetched)
}

// failingBlobStore implements driven.BlobStore and rejects every write.
type failingBlobStore struct{}

func (failingBlobStore) Put(context.Context, string, io.Reader) error {
	return errors.New("bucket unavailable")
}

func (failingBlobStore) Open(context.Context, string) (io.ReadCloser, error) {
	return nil, domain.ErrNotFound
}

func (failingBlobStore) Exists(context.Context, string) (bool, error) { return false, nil }

func (failingBlobStore) Locate(key string) string { return "gs://down/" + key }

// recordingHook implements driven.DocumentHook.
type recordingHook struct {
	mu   sync.Mutex
	docs []string
	err  error
}

func (h *recordingHook) Name() string { return "recording" }

func (h *recordingHook) DocumentIndexed(_ context.Context, id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.docs = append(h.docs, id)
	return h.err
}

// --- Helpers ---

// writePNG writes a white w x h PNG with a dark bar so preprocessing has
// something to work with. t may be nil inside mocks.
func writePNG(t *testing.T, path string, w, h int) {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for x := w / 4; x < w*3/4; x++ {
		img.SetGray(x, h/2, color.Gray{Y: 0})
	}
	var buf bytes.Buffer
	err := png.Encode(&buf, img)
	if err == nil {
		err = os.MkdirAll(filepath.Dir(path), 0o755)
	}
	if err == nil {
		err = os.WriteFile(path, buf.Bytes(), 0o644)
	}
	if t != nil {
		require.NoError(t, err)
	} else if err != nil {
		panic(err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// fastPreprocess skips deskew and keeps the six base variants plus one x2
// copy of the original, which is generated last.
func fastPreprocess() *preprocess.Engine {
	return preprocess.New(preprocess.Options{
		Deskew:        false,
		Scales:        []float64{1, 2},
		MaxVariants:   7,
		TopForScaling: 1,
	})
}

// testEnv wires the services over the in-memory store and local blobs.
type testEnv struct {
	store     *memory.Store
	docBlobs  *local.Store
	pageBlobs *local.Store
	content   *ContentStore
	ocr       *OCRService
	text      *TextService
	indexer   *Indexer
	search    *SearchService
	workDir   string
}

func newTestEnv(t *testing.T, engines ...driven.OCREngine) *testEnv {
	t.Helper()
	root := t.TempDir()
	docBlobs, err := local.New(filepath.Join(root, "storage"))
	require.NoError(t, err)
	pageBlobs, err := local.New(filepath.Join(root, "images"))
	require.NoError(t, err)

	store := memory.NewStore()
	env := &testEnv{
		store:     store,
		docBlobs:  docBlobs,
		pageBlobs: pageBlobs,
		content:   NewContentStore(store, store, docBlobs, pageBlobs),
		ocr:       NewOCRService(store, store, pageBlobs, engines, fastPreprocess(), OCROptions{Workers: 2}),
		text:      NewTextService(store, store),
		indexer:   NewIndexer(store, store, nil, nil),
		search:    NewSearchService(store, store, store, store, nil, nil, SearchSettings{}),
		workDir:   filepath.Join(root, "work"),
	}
	return env
}

// storeDocWithPages stores a document from url and one page per width.
func (e *testEnv) storeDocWithPages(t *testing.T, url string, widths ...int) string {
	t.Helper()
	ctx := context.Background()
	name := filepath.Base(url)
	src := filepath.Join(e.workDir, name)
	writeFile(t, src, "%PDF-1.4")

	id, _, err := e.content.StoreDocument(ctx, domain.FetchedFile{
		Candidate: domain.FileCandidate{URL: url, FileName: name, FileType: domain.FileTypeOf(name)},
		LocalPath: src,
	})
	require.NoError(t, err)

	for i, w := range widths {
		img := filepath.Join(e.workDir, fmt.Sprintf("%s-%d.png", id, i+1))
		writePNG(t, img, w, 40)
		_, err := e.content.StorePage(ctx, id, i+1, img, 0, 0)
		require.NoError(t, err)
	}
	require.NoError(t, e.content.SetPageCount(ctx, id, len(widths)))
	return id
}

// indexText stores a one-page document whose OCR result carries text,
// bypassing the engines.
func (e *testEnv) indexText(t *testing.T, url, text string) string {
	t.Helper()
	ctx := context.Background()
	id := e.storeDocWithPages(t, url, 60)
	result := &domain.OCRResult{
		ID:             "r-" + id,
		PageID:         domain.PageID(id, 1),
		DocumentID:     id,
		PageNumber:     1,
		RawText:        text,
		NormalizedText: text,
		WordBoxes:      words(text, 0.9),
		Confidence:     0.9,
		Engine:         "mock",
	}
	result.BBox = domain.UnionBoxes(result.WordBoxes)
	require.NoError(t, e.store.SaveResult(ctx, result))
	_, err := e.indexer.IndexResult(ctx, result.ID)
	require.NoError(t, err)
	return result.ID
}
