package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

const documentColumns = `id, source_url, file_name, file_type, byte_size, page_count,
	blob_key, mirror_key, collection, metadata, ingested_at`

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.queryRow(ctx, "SELECT "+documentColumns+" FROM documents WHERE id = ?", id)
	return scanDocument(row)
}

// InsertDocument creates the row unless the ID already exists.
func (s *documentStore) InsertDocument(ctx context.Context, doc *domain.Document) (bool, error) {
	if doc == nil || doc.ID == "" {
		return false, domain.ErrInvalidInput
	}

	metadata, err := marshalJSON(doc.Metadata)
	if err != nil {
		return false, fmt.Errorf("marshalling metadata: %w", err)
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}

	res, err := s.store.exec(ctx, `
		INSERT INTO documents (`+documentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, doc.ID, doc.SourceURL, doc.FileName, doc.FileType, doc.ByteSize, doc.PageCount,
		doc.BlobKey, nullString(doc.MirrorKey), nullString(doc.Collection), metadata,
		doc.IngestedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("inserting document: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking document insert: %w", err)
	}
	return n == 1, nil
}

// SetPageCount records how many pages were rendered.
func (s *documentStore) SetPageCount(ctx context.Context, id string, pageCount int) error {
	return s.update(ctx, "UPDATE documents SET page_count = ? WHERE id = ?", pageCount, id)
}

// SetDocumentMirrorKey records the remote key of the original.
func (s *documentStore) SetDocumentMirrorKey(ctx context.Context, id, key string) error {
	return s.update(ctx, "UPDATE documents SET mirror_key = ? WHERE id = ?", nullString(key), id)
}

func (s *documentStore) update(ctx context.Context, query string, args ...any) error {
	res, err := s.store.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListDocuments returns the most recently ingested documents.
func (s *documentStore) ListDocuments(ctx context.Context, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.store.query(ctx,
		"SELECT "+documentColumns+" FROM documents ORDER BY ingested_at DESC, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var mirrorKey, collection, metadata sql.NullString
	var ingestedAt sql.NullInt64

	err := row.Scan(&doc.ID, &doc.SourceURL, &doc.FileName, &doc.FileType, &doc.ByteSize,
		&doc.PageCount, &doc.BlobKey, &mirrorKey, &collection, &metadata, &ingestedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	doc.MirrorKey = mirrorKey.String
	doc.Collection = collection.String
	doc.IngestedAt = fromMillis(ingestedAt)
	if err := unmarshalJSON(metadata, &doc.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	return &doc, nil
}

// ==================== Page Store ====================

// pageStore implements driven.PageStore.
type pageStore struct {
	store *Store
}

var _ driven.PageStore = (*pageStore)(nil)

const pageColumns = `id, document_id, page_number, image_path, blob_key, mirror_key,
	width, height, ocr_processed, ocr_processed_at`

// GetPage retrieves a page by ID.
func (s *pageStore) GetPage(ctx context.Context, id string) (*domain.Page, error) {
	row := s.store.queryRow(ctx, "SELECT "+pageColumns+" FROM pages WHERE id = ?", id)
	return scanPage(row)
}

// InsertPage creates the row unless the ID already exists.
func (s *pageStore) InsertPage(ctx context.Context, page *domain.Page) (bool, error) {
	if page == nil || page.ID == "" || page.DocumentID == "" {
		return false, domain.ErrInvalidInput
	}

	res, err := s.store.exec(ctx, `
		INSERT INTO pages (`+pageColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`, page.ID, page.DocumentID, page.PageNumber, page.ImagePath, page.BlobKey,
		nullString(page.MirrorKey), page.Width, page.Height,
		boolToInt(page.OCRProcessed), toMillis(page.OCRProcessedAt))
	if err != nil {
		return false, fmt.Errorf("inserting page: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking page insert: %w", err)
	}
	return n == 1, nil
}

// ListPages returns all pages of a document ordered by page number.
func (s *pageStore) ListPages(ctx context.Context, documentID string) ([]domain.Page, error) {
	rows, err := s.store.query(ctx,
		"SELECT "+pageColumns+" FROM pages WHERE document_id = ? ORDER BY page_number", documentID)
	if err != nil {
		return nil, fmt.Errorf("querying pages: %w", err)
	}
	return collectPages(rows)
}

// ListPendingPages returns unprocessed pages.
func (s *pageStore) ListPendingPages(ctx context.Context, documentID string, limit int) ([]domain.Page, error) {
	if limit <= 0 {
		limit = 1000
	}

	var rows *sql.Rows
	var err error
	if documentID == "" {
		rows, err = s.store.query(ctx, "SELECT "+pageColumns+` FROM pages
			WHERE ocr_processed = 0 ORDER BY document_id, page_number LIMIT ?`, limit)
	} else {
		rows, err = s.store.query(ctx, "SELECT "+pageColumns+` FROM pages
			WHERE ocr_processed = 0 AND document_id = ? ORDER BY page_number LIMIT ?`, documentID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("querying pending pages: %w", err)
	}
	return collectPages(rows)
}

// SetPageMirrorKey records the remote key of the page image.
func (s *pageStore) SetPageMirrorKey(ctx context.Context, id, key string) error {
	res, err := s.store.exec(ctx, "UPDATE pages SET mirror_key = ? WHERE id = ?", nullString(key), id)
	if err != nil {
		return fmt.Errorf("updating page: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func collectPages(rows *sql.Rows) ([]domain.Page, error) {
	defer rows.Close()

	var pages []domain.Page //nolint:prealloc // size unknown from query
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pages: %w", err)
	}
	return pages, nil
}

func scanPage(row rowScanner) (*domain.Page, error) {
	var page domain.Page
	var mirrorKey sql.NullString
	var processed int
	var processedAt sql.NullInt64

	err := row.Scan(&page.ID, &page.DocumentID, &page.PageNumber, &page.ImagePath, &page.BlobKey,
		&mirrorKey, &page.Width, &page.Height, &processed, &processedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning page: %w", err)
	}

	page.MirrorKey = mirrorKey.String
	page.OCRProcessed = processed == 1
	page.OCRProcessedAt = fromMillis(processedAt)
	return &page, nil
}
