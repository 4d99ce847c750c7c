package driving

import (
	"context"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// IngestionControl is the operator control surface of a named pipeline.
// Every call writes to the persistent state so it reaches whichever
// replica currently holds the lease.
type IngestionControl interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error

	// Cancel aborts the in-flight run at its next file boundary.
	Cancel(ctx context.Context) error

	// Status reports running and paused flags plus the last run summary.
	Status(ctx context.Context) (*domain.IngestionStatus, error)

	// History returns up to limit recent runs, most recent first.
	History(ctx context.Context, limit int) ([]domain.IngestionRun, error)
}

// IngestionRunner drives the discover-to-index pipeline.
type IngestionRunner interface {
	// Start launches the poll loop in the background.
	Start(ctx context.Context) error

	// Stop halts the poll loop and releases the lease.
	Stop() error

	// RunOnce acquires the lease and performs a single run immediately.
	RunOnce(ctx context.Context) (*domain.RunSummary, error)
}

// OCRService runs OCR over stored pages.
type OCRService interface {
	// ProcessPage OCRs one page. Already processed pages return their existing result.
	ProcessPage(ctx context.Context, pageID string) (*domain.OCRResult, error)

	// ProcessPending OCRs up to limit unprocessed pages across documents.
	ProcessPending(ctx context.Context, limit int) (*domain.PageBatchResult, error)
}

// MaintenanceService repairs derived data outside of a run.
type MaintenanceService interface {
	// Backfill OCRs up to limit pending pages, then extracts entities from
	// and indexes the results it produced.
	Backfill(ctx context.Context, limit int) (*domain.PageBatchResult, error)

	// Reindex creates index entries for OCR results that lack one and
	// returns how many were created.
	Reindex(ctx context.Context) (int, error)
}
