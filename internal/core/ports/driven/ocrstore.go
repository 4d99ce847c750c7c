package driven

import (
	"context"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// OCRResultStore persists OCR results. Saving a result also flips the
// page's ocr_processed flag in the same transaction.
type OCRResultStore interface {
	// SaveResult stores the result and marks its page processed.
	// Returns domain.ErrAlreadyExists if the page already has a result.
	SaveResult(ctx context.Context, result *domain.OCRResult) error

	// GetResult retrieves a result by ID.
	GetResult(ctx context.Context, id string) (*domain.OCRResult, error)

	// GetResultByPage retrieves the result of a page.
	// Returns domain.ErrNotFound if the page has none.
	GetResultByPage(ctx context.Context, pageID string) (*domain.OCRResult, error)

	// GetResults retrieves several results. Missing IDs are skipped.
	GetResults(ctx context.Context, ids []string) ([]domain.OCRResult, error)

	// ListUnindexed returns results that have no search index entry yet.
	ListUnindexed(ctx context.Context, limit int) ([]domain.OCRResult, error)
}

// EntityStore persists detected entities.
type EntityStore interface {
	// SaveEntities stores all entities of one OCR result.
	SaveEntities(ctx context.Context, entities []domain.Entity) error

	// ListEntities returns entities of one OCR result in offset order.
	ListEntities(ctx context.Context, ocrResultID string) ([]domain.Entity, error)

	// FindEntities matches entities of a type whose value or normalised
	// value contains the given text, case-insensitively.
	FindEntities(ctx context.Context, entityType domain.EntityType, value string, limit int) ([]domain.Entity, error)
}

// IndexStore persists search index entries and answers lexical predicates.
type IndexStore interface {
	// SaveEntry stores an entry unless one exists for the same OCR result.
	// Returns false without error when it already existed.
	SaveEntry(ctx context.Context, entry *domain.SearchIndexEntry) (bool, error)

	// GetEntryByResult retrieves the entry of an OCR result.
	GetEntryByResult(ctx context.Context, ocrResultID string) (*domain.SearchIndexEntry, error)

	// MatchAny returns entries whose searchable text contains any of the
	// given lower-case substrings.
	MatchAny(ctx context.Context, substrings []string, limit int) ([]domain.SearchIndexEntry, error)

	// Scan returns up to limit entries in creation order.
	Scan(ctx context.Context, limit int) ([]domain.SearchIndexEntry, error)
}
