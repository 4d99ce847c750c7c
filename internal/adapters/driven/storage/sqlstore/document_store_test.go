package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// ==================== DocumentStore Tests ====================

func TestDocumentStore_InsertAndGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	doc := createTestDocument(t, store, "abc123")

	got, err := store.DocumentStore().GetDocument(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, doc.SourceURL, got.SourceURL)
	assert.Equal(t, doc.FileType, got.FileType)
	assert.Equal(t, doc.ByteSize, got.ByteSize)
	assert.Equal(t, "DataSet 1", got.Collection)
	assert.Equal(t, "DataSet 1", got.Metadata["section"])
	assert.True(t, doc.IngestedAt.Equal(got.IngestedAt))
}

func TestDocumentStore_InsertIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestDocument(t, store, "abc123")

	dup := &domain.Document{ID: "abc123", SourceURL: "https://other", FileName: "other.pdf"}
	inserted, err := store.DocumentStore().InsertDocument(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)

	got, err := store.DocumentStore().GetDocument(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123.pdf", got.FileName, "existing row must not be overwritten")
}

func TestDocumentStore_GetNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.DocumentStore().GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_InsertInvalid(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.DocumentStore().InsertDocument(context.Background(), &domain.Document{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_SetPageCountAndMirror(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()

	createTestDocument(t, store, "abc123")

	require.NoError(t, docs.SetPageCount(ctx, "abc123", 12))
	require.NoError(t, docs.SetDocumentMirrorKey(ctx, "abc123", "files/abc123.pdf"))

	got, err := docs.GetDocument(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, 12, got.PageCount)
	assert.Equal(t, "files/abc123.pdf", got.MirrorKey)

	assert.ErrorIs(t, docs.SetPageCount(ctx, "missing", 1), domain.ErrNotFound)
}

func TestDocumentStore_ListDocuments(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	docs := store.DocumentStore()

	base := time.Now().UTC()
	for i, id := range []string{"a", "b", "c"} {
		_, err := docs.InsertDocument(ctx, &domain.Document{
			ID: id, SourceURL: "u" + id, FileName: id + ".pdf",
			IngestedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	list, err := docs.ListDocuments(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

// ==================== PageStore Tests ====================

func TestPageStore_InsertAndList(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	pages := store.PageStore()

	createTestDocument(t, store, "doc1")
	createTestPage(t, store, "doc1", 2)
	createTestPage(t, store, "doc1", 1)

	list, err := pages.ListPages(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, 1, list[0].PageNumber)
	assert.Equal(t, 2, list[1].PageNumber)
	assert.Equal(t, "doc1_page_0001", list[0].ID)
	assert.False(t, list[0].OCRProcessed)
	assert.True(t, list[0].OCRProcessedAt.IsZero())
}

func TestPageStore_InsertIsIdempotent(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestDocument(t, store, "doc1")
	page := createTestPage(t, store, "doc1", 1)

	inserted, err := store.PageStore().InsertPage(ctx, page)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestPageStore_RequiresDocument(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.PageStore().InsertPage(context.Background(), &domain.Page{
		ID: "orphan_page_0001", DocumentID: "orphan", PageNumber: 1, ImagePath: "/x.png",
	})
	assert.Error(t, err)
}

func TestPageStore_ListPendingPages(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	pages := store.PageStore()

	createTestDocument(t, store, "doc1")
	createTestDocument(t, store, "doc2")
	p1 := createTestPage(t, store, "doc1", 1)
	createTestPage(t, store, "doc1", 2)
	createTestPage(t, store, "doc2", 1)

	require.NoError(t, store.OCRResultStore().SaveResult(ctx, &domain.OCRResult{
		ID: "r1", PageID: p1.ID, DocumentID: "doc1", PageNumber: 1,
	}))

	all, err := pages.ListPendingPages(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := pages.ListPendingPages(ctx, "doc1", 10)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, 2, one[0].PageNumber)

	limited, err := pages.ListPendingPages(ctx, "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestPageStore_SetPageMirrorKey(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	createTestDocument(t, store, "doc1")
	page := createTestPage(t, store, "doc1", 1)

	require.NoError(t, store.PageStore().SetPageMirrorKey(ctx, page.ID, "images/doc1_page_0001.png"))
	got, err := store.PageStore().GetPage(ctx, page.ID)
	require.NoError(t, err)
	assert.Equal(t, "images/doc1_page_0001.png", got.MirrorKey)

	assert.ErrorIs(t, store.PageStore().SetPageMirrorKey(ctx, "nope", "k"), domain.ErrNotFound)
}
