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

// ingestionStateStore implements driven.IngestionStateStore.
type ingestionStateStore struct {
	store *Store
}

var _ driven.IngestionStateStore = (*ingestionStateStore)(nil)

const stateColumns = `name, enabled, paused, cancel_requested, lease_owner, lease_expires_at,
	last_heartbeat_at, last_run_started_at, last_run_completed_at, last_error, last_summary`

// EnsureState returns the state row, creating a default one if missing.
func (s *ingestionStateStore) EnsureState(ctx context.Context, name string) (*domain.IngestionState, error) {
	if name == "" {
		return nil, domain.ErrInvalidInput
	}
	if err := s.ensure(ctx, name); err != nil {
		return nil, err
	}

	row := s.store.queryRow(ctx, "SELECT "+stateColumns+" FROM ingestion_state WHERE name = ?", name)
	return scanIngestionState(row)
}

func (s *ingestionStateStore) ensure(ctx context.Context, name string) error {
	_, err := s.store.exec(ctx, `
		INSERT INTO ingestion_state (name, enabled, paused, cancel_requested)
		VALUES (?, 1, 0, 0)
		ON CONFLICT (name) DO NOTHING
	`, name)
	if err != nil {
		return fmt.Errorf("ensuring ingestion state: %w", err)
	}
	return nil
}

// AcquireLease is a single conditional update. Exactly one contender
// sees a row affected when the lease is free or expired.
func (s *ingestionStateStore) AcquireLease(
	ctx context.Context, name, owner string, now time.Time, ttl time.Duration,
) (bool, error) {
	if owner == "" {
		return false, domain.ErrInvalidInput
	}
	if err := s.ensure(ctx, name); err != nil {
		return false, err
	}

	nowMs := now.UnixMilli()
	res, err := s.store.exec(ctx, `
		UPDATE ingestion_state
		SET lease_owner = ?, lease_expires_at = ?, last_heartbeat_at = ?
		WHERE name = ?
		  AND (lease_owner IS NULL OR lease_expires_at IS NULL
		       OR lease_expires_at < ? OR lease_owner = ?)
	`, owner, now.Add(ttl).UnixMilli(), nowMs, name, nowMs, owner)
	if err != nil {
		return false, fmt.Errorf("acquiring lease: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking lease update: %w", err)
	}
	return n == 1, nil
}

// ReleaseLease clears the lease if owner holds it.
func (s *ingestionStateStore) ReleaseLease(ctx context.Context, name, owner string) error {
	_, err := s.store.exec(ctx, `
		UPDATE ingestion_state SET lease_owner = NULL, lease_expires_at = NULL
		WHERE name = ? AND lease_owner = ?
	`, name, owner)
	if err != nil {
		return fmt.Errorf("releasing lease: %w", err)
	}
	return nil
}

// Heartbeat stamps last_heartbeat_at. Returns domain.ErrLeaseLost when
// owner no longer holds the lease.
func (s *ingestionStateStore) Heartbeat(ctx context.Context, name, owner string, now time.Time) error {
	res, err := s.store.exec(ctx, `
		UPDATE ingestion_state SET last_heartbeat_at = ?
		WHERE name = ? AND lease_owner = ?
	`, now.UnixMilli(), name, owner)
	if err != nil {
		return fmt.Errorf("recording heartbeat: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrLeaseLost
	}
	return nil
}

// MarkRunStarted stamps the start time and clears the previous error.
func (s *ingestionStateStore) MarkRunStarted(ctx context.Context, name string, now time.Time) error {
	return s.update(ctx, `
		UPDATE ingestion_state SET last_run_started_at = ?, last_error = NULL
		WHERE name = ?
	`, now.UnixMilli(), name)
}

// MarkRunFinished stores the summary and error of a run.
func (s *ingestionStateStore) MarkRunFinished(
	ctx context.Context, name string, now time.Time, completed bool,
	summary domain.RunSummary, lastError string,
) error {
	summaryJSON, err := marshalJSON(summary)
	if err != nil {
		return fmt.Errorf("marshalling summary: %w", err)
	}
	lastError = domain.Truncate(lastError, domain.MaxLastErrorLength)

	if completed {
		return s.update(ctx, `
			UPDATE ingestion_state
			SET last_run_completed_at = ?, last_summary = ?, last_error = ?
			WHERE name = ?
		`, now.UnixMilli(), summaryJSON, nullString(lastError), name)
	}
	return s.update(ctx, `
		UPDATE ingestion_state SET last_summary = ?, last_error = ?
		WHERE name = ?
	`, summaryJSON, nullString(lastError), name)
}

// SetEnabled enables or disables the pipeline.
func (s *ingestionStateStore) SetEnabled(ctx context.Context, name string, enabled bool) error {
	return s.setFlag(ctx, "enabled", name, enabled)
}

// SetPaused pauses or resumes the pipeline.
func (s *ingestionStateStore) SetPaused(ctx context.Context, name string, paused bool) error {
	return s.setFlag(ctx, "paused", name, paused)
}

// SetCancelRequested raises or clears the cancel flag.
func (s *ingestionStateStore) SetCancelRequested(ctx context.Context, name string, requested bool) error {
	return s.setFlag(ctx, "cancel_requested", name, requested)
}

// setFlag writes one of the fixed boolean columns. column is never user input.
func (s *ingestionStateStore) setFlag(ctx context.Context, column, name string, value bool) error {
	if err := s.ensure(ctx, name); err != nil {
		return err
	}
	return s.update(ctx, "UPDATE ingestion_state SET "+column+" = ? WHERE name = ?", boolToInt(value), name)
}

func (s *ingestionStateStore) update(ctx context.Context, query string, args ...any) error {
	res, err := s.store.exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating ingestion state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// RecordRun appends a run to the history.
func (s *ingestionStateStore) RecordRun(ctx context.Context, run *domain.IngestionRun) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidInput
	}

	summaryJSON, err := marshalJSON(run.Summary)
	if err != nil {
		return fmt.Errorf("marshalling summary: %w", err)
	}

	_, err = s.store.exec(ctx, `
		INSERT INTO ingestion_runs (id, pipeline, owner, started_at, completed_at, outcome, summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Pipeline, run.Owner, run.StartedAt.UnixMilli(), run.CompletedAt.UnixMilli(),
		string(run.Summary.Outcome), summaryJSON)
	if err != nil {
		return fmt.Errorf("recording ingestion run: %w", err)
	}
	return nil
}

// ListRuns returns recent runs, most recent first.
func (s *ingestionStateStore) ListRuns(ctx context.Context, name string, limit int) ([]domain.IngestionRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.store.query(ctx, `
		SELECT id, pipeline, owner, started_at, completed_at, summary
		FROM ingestion_runs
		WHERE pipeline = ?
		ORDER BY started_at DESC, id
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("querying ingestion runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.IngestionRun //nolint:prealloc // size unknown from query
	for rows.Next() {
		var run domain.IngestionRun
		var startedAt, completedAt sql.NullInt64
		var summary sql.NullString
		if err := rows.Scan(&run.ID, &run.Pipeline, &run.Owner, &startedAt, &completedAt, &summary); err != nil {
			return nil, fmt.Errorf("scanning ingestion run: %w", err)
		}
		run.StartedAt = fromMillis(startedAt)
		run.CompletedAt = fromMillis(completedAt)
		if err := unmarshalJSON(summary, &run.Summary); err != nil {
			return nil, fmt.Errorf("unmarshalling summary: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ingestion runs: %w", err)
	}
	return runs, nil
}

// PruneRuns keeps the most recent 'keep' runs per pipeline.
func (s *ingestionStateStore) PruneRuns(ctx context.Context, keep int) error {
	_, err := s.store.exec(ctx, `
		DELETE FROM ingestion_runs
		WHERE id NOT IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (PARTITION BY pipeline ORDER BY started_at DESC) AS rn
				FROM ingestion_runs
			) ranked WHERE rn <= ?
		)
	`, keep)
	if err != nil {
		return fmt.Errorf("pruning ingestion runs: %w", err)
	}
	return nil
}

func scanIngestionState(row rowScanner) (*domain.IngestionState, error) {
	var st domain.IngestionState
	var enabled, paused, cancel int
	var owner, lastError, summary sql.NullString
	var expires, heartbeat, started, completed sql.NullInt64

	err := row.Scan(&st.Name, &enabled, &paused, &cancel, &owner, &expires,
		&heartbeat, &started, &completed, &lastError, &summary)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ingestion state: %w", err)
	}

	st.Enabled = enabled == 1
	st.Paused = paused == 1
	st.CancelRequested = cancel == 1
	st.LeaseOwner = owner.String
	st.LeaseExpiresAt = fromMillis(expires)
	st.LastHeartbeatAt = fromMillis(heartbeat)
	st.LastRunStartedAt = fromMillis(started)
	st.LastRunCompletedAt = fromMillis(completed)
	st.LastError = lastError.String
	if summary.Valid && summary.String != "" {
		var sum domain.RunSummary
		if err := unmarshalJSON(summary, &sum); err != nil {
			return nil, fmt.Errorf("unmarshalling summary: %w", err)
		}
		st.LastSummary = &sum
	}
	return &st, nil
}
