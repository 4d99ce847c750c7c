package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// IngestionStateStore persists the leased state of named pipelines and
// their run history. Lease operations must be single conditional updates
// so that concurrent replicas never both believe they hold the lease.
type IngestionStateStore interface {
	// EnsureState returns the state row, creating an enabled, unpaused one if missing.
	EnsureState(ctx context.Context, name string) (*domain.IngestionState, error)

	// AcquireLease takes or renews the lease when it is unheld, expired,
	// or already owned by owner. Returns whether owner now holds it.
	AcquireLease(ctx context.Context, name, owner string, now time.Time, ttl time.Duration) (bool, error)

	// ReleaseLease clears the lease if owner holds it.
	ReleaseLease(ctx context.Context, name, owner string) error

	// Heartbeat stamps last_heartbeat_at if owner holds the lease.
	Heartbeat(ctx context.Context, name, owner string, now time.Time) error

	// MarkRunStarted stamps last_run_started_at and clears last_error.
	MarkRunStarted(ctx context.Context, name string, now time.Time) error

	// MarkRunFinished stores the summary and error. When completed is true
	// last_run_completed_at is stamped.
	MarkRunFinished(ctx context.Context, name string, now time.Time, completed bool,
		summary domain.RunSummary, lastError string) error

	// SetEnabled enables or disables the pipeline.
	SetEnabled(ctx context.Context, name string, enabled bool) error

	// SetPaused pauses or resumes the pipeline.
	SetPaused(ctx context.Context, name string, paused bool) error

	// SetCancelRequested raises or clears the cancel flag.
	SetCancelRequested(ctx context.Context, name string, requested bool) error

	// RecordRun appends a run to the history.
	RecordRun(ctx context.Context, run *domain.IngestionRun) error

	// ListRuns returns recent runs, most recent first.
	ListRuns(ctx context.Context, name string, limit int) ([]domain.IngestionRun, error)

	// PruneRuns keeps the most recent 'keep' runs per pipeline.
	PruneRuns(ctx context.Context, keep int) error
}
