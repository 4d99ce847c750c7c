package driving

import (
	"context"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search answers a query in the mode given by opts.
	Search(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// SearchEntities finds OCR results holding an entity of the given type
	// whose value contains the given text.
	SearchEntities(ctx context.Context, entityType domain.EntityType, value string, limit int) ([]domain.SearchResult, error)
}
