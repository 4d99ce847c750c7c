package driven

import (
	"context"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// DocumentStore persists Document rows.
type DocumentStore interface {
	// GetDocument retrieves a document by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// InsertDocument creates the row if the ID is unused.
	// Returns false without error when a row with the same ID already exists.
	InsertDocument(ctx context.Context, doc *domain.Document) (bool, error)

	// SetPageCount records how many pages were rendered.
	SetPageCount(ctx context.Context, id string, pageCount int) error

	// SetDocumentMirrorKey records the remote object key of the original.
	SetDocumentMirrorKey(ctx context.Context, id, key string) error

	// ListDocuments returns the most recently ingested documents.
	ListDocuments(ctx context.Context, limit int) ([]domain.Document, error)
}

// PageStore persists Page rows.
type PageStore interface {
	// GetPage retrieves a page by ID.
	// Returns domain.ErrNotFound if it does not exist.
	GetPage(ctx context.Context, id string) (*domain.Page, error)

	// InsertPage creates the row if the ID is unused.
	// Returns false without error when the page already exists.
	InsertPage(ctx context.Context, page *domain.Page) (bool, error)

	// ListPages returns all pages of a document ordered by page number.
	ListPages(ctx context.Context, documentID string) ([]domain.Page, error)

	// ListPendingPages returns pages not yet OCR processed, ordered by
	// document and page number. An empty documentID lists across documents.
	ListPendingPages(ctx context.Context, documentID string, limit int) ([]domain.Page, error)

	// SetPageMirrorKey records the remote object key of the page image.
	SetPageMirrorKey(ctx context.Context, id, key string) error
}
