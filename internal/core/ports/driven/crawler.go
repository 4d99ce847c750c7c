package driven

import (
	"context"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// Crawler discovers candidate files from a source and fetches their bytes.
// Each source kind (listing site, challenge-protected site, upload folder)
// implements this interface.
type Crawler interface {
	// Name returns the crawler identifier recorded on documents.
	Name() string

	// DiscoverFiles lists candidate files. Discovery failures degrade to an
	// empty list; an error is returned only when ctx is done.
	DiscoverFiles(ctx context.Context) ([]domain.FileCandidate, error)

	// FetchFile streams the file at url to destPath.
	// Returns false without error on a non-2xx response so callers can
	// record a per-file failure and continue.
	FetchFile(ctx context.Context, url, destPath string) (bool, error)

	// Close releases resources.
	Close() error
}

// Watcher is implemented by crawlers that can signal new files early,
// letting the orchestrator wake before its next poll tick.
type Watcher interface {
	// Watch emits a value whenever new files may be available.
	// The channel is closed when ctx is done.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
