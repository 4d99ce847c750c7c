package domain

import "time"

// MaxLastErrorLength bounds IngestionState.LastError.
const MaxLastErrorLength = 2000

// IngestionState is the persistent, leased state of one named pipeline.
// It survives process restarts and is the only coordination point between replicas.
type IngestionState struct {
	// Name identifies the pipeline (e.g. "doj").
	Name string

	// Enabled gates whether runs start at all.
	Enabled bool

	// Paused stops new files from being started; checked between files.
	Paused bool

	// CancelRequested aborts the current run at the next file boundary.
	CancelRequested bool

	// LeaseOwner is the replica holding the lease, empty when unheld.
	LeaseOwner string

	// LeaseExpiresAt is when the lease lapses unless renewed.
	LeaseExpiresAt time.Time

	LastHeartbeatAt    time.Time
	LastRunStartedAt   time.Time
	LastRunCompletedAt time.Time
	LastError          string
	LastSummary        *RunSummary
}

// LeaseActive reports whether the lease is held and unexpired at now.
func (s *IngestionState) LeaseActive(now time.Time) bool {
	return s.LeaseOwner != "" && s.LeaseExpiresAt.After(now)
}

// Running reports whether a run is in flight: started after the last
// completion while the lease is still active.
func (s *IngestionState) Running(now time.Time) bool {
	if s.LastRunStartedAt.IsZero() || !s.LeaseActive(now) {
		return false
	}
	return s.LastRunCompletedAt.Before(s.LastRunStartedAt)
}

// RunOutcome is how a run ended.
type RunOutcome string

// Run outcomes.
const (
	RunCompleted RunOutcome = "completed"
	RunCancelled RunOutcome = "cancelled"
	RunPaused    RunOutcome = "paused"
	RunLeaseLost RunOutcome = "lease_lost"
	RunFailed    RunOutcome = "failed"
)

// RunSummary is the operator-visible result of one run.
type RunSummary struct {
	FilesDiscovered int        `json:"filesDiscovered"`
	FilesDownloaded int        `json:"filesDownloaded"`
	FilesProcessed  int        `json:"filesProcessed"`
	FilesSkipped    int        `json:"filesSkipped"`
	PagesProcessed  int        `json:"pagesProcessed"`
	Errors          []string   `json:"errors"`
	Outcome         RunOutcome `json:"outcome"`
}

// AddError appends a per-file error message.
func (s *RunSummary) AddError(msg string) {
	s.Errors = append(s.Errors, msg)
}

// IngestionRun is one entry in a pipeline's run history.
type IngestionRun struct {
	ID          string
	Pipeline    string
	Owner       string
	StartedAt   time.Time
	CompletedAt time.Time
	Summary     RunSummary
}

// IngestionStatus is the read side of the control surface.
type IngestionStatus struct {
	Name               string
	Enabled            bool
	Running            bool
	Paused             bool
	Cancelling         bool
	LeaseOwner         string
	LastHeartbeatAt    time.Time
	LastRunStartedAt   time.Time
	LastRunCompletedAt time.Time
	LastError          string
	LastSummary        *RunSummary
}

// Truncate shortens s to at most n bytes.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
