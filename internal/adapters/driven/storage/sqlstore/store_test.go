package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

// createTestDocument inserts a document to satisfy foreign key constraints.
func createTestDocument(t *testing.T, store *Store, docID string) *domain.Document {
	t.Helper()
	doc := &domain.Document{
		ID:         docID,
		SourceURL:  "https://example.org/" + docID + ".pdf",
		FileName:   docID + ".pdf",
		FileType:   "pdf",
		ByteSize:   1024,
		BlobKey:    docID + ".pdf",
		Collection: "DataSet 1",
		Metadata:   map[string]any{"section": "DataSet 1"},
		IngestedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	inserted, err := store.DocumentStore().InsertDocument(context.Background(), doc)
	require.NoError(t, err)
	require.True(t, inserted)
	return doc
}

// createTestPage inserts a page of docID.
func createTestPage(t *testing.T, store *Store, docID string, n int) *domain.Page {
	t.Helper()
	page := &domain.Page{
		ID:         domain.PageID(docID, n),
		DocumentID: docID,
		PageNumber: n,
		ImagePath:  filepath.Join("/images", domain.PageID(docID, n)+".png"),
		BlobKey:    domain.PageID(docID, n) + ".png",
		Width:      2550,
		Height:     3300,
	}
	inserted, err := store.PageStore().InsertPage(context.Background(), page)
	require.NoError(t, err)
	require.True(t, inserted)
	return page
}

// ==================== Store Creation Tests ====================

func TestNewSQLiteStore_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()

	store, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, filepath.Join(dir, "metadata.db"), store.Path())
	assert.Equal(t, DialectSQLite, store.Dialect())
	assert.FileExists(t, store.Path())
}

func TestNewSQLiteStore_ReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewSQLiteStore(dir)
	require.NoError(t, err)
	createTestDocument(t, store, "doc1")
	require.NoError(t, store.Close())

	// Reopening must not re-run the initial migration destructively.
	store, err = NewSQLiteStore(dir)
	require.NoError(t, err)
	defer store.Close()

	doc, err := store.DocumentStore().GetDocument(ctx, "doc1")
	require.NoError(t, err)
	assert.Equal(t, "doc1.pdf", doc.FileName)

	var versions int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&versions))
	assert.Equal(t, 1, versions)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "mysql", "", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown storage driver")
}

func TestRebind(t *testing.T) {
	sqlite := &Store{dialect: DialectSQLite}
	pg := &Store{dialect: DialectPostgres}

	q := "SELECT * FROM t WHERE a = ? AND b = ? LIMIT ?"
	assert.Equal(t, q, sqlite.rebind(q))
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2 LIMIT $3", pg.rebind(q))
}

func TestContains(t *testing.T) {
	sqlite := &Store{dialect: DialectSQLite}
	pg := &Store{dialect: DialectPostgres}

	assert.Equal(t, "instr(searchable_text, ?) > 0", sqlite.contains("searchable_text"))
	assert.Equal(t, "strpos(searchable_text, ?) > 0", pg.contains("searchable_text"))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "", placeholders(0))
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?, ?, ?", placeholders(3))
}
