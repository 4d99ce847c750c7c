package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/core/ports/driving"
	"github.com/custodia-labs/pagesift/internal/logger"
)

// Ensure Orchestrator implements the interfaces.
var (
	_ driving.IngestionControl = (*Orchestrator)(nil)
	_ driving.IngestionRunner  = (*Orchestrator)(nil)
)

// OrchestratorConfig controls the poll loop and per-run behaviour.
type OrchestratorConfig struct {
	// Name is the pipeline whose state row is leased.
	Name string
	// Owner identifies this replica in the lease.
	Owner string

	Poll        time.Duration
	RunInterval time.Duration
	// LeaseTTL must exceed Poll; it is raised to three polls otherwise.
	LeaseTTL time.Duration

	// SkipExisting stops at the content store for documents seen before.
	SkipExisting bool
	// Limit caps files per run; zero means unlimited.
	Limit int
	// StorageOnly lists collections that are stored but never OCR'd.
	StorageOnly []string
	// HistoryKeep bounds the run history per pipeline.
	HistoryKeep int

	// WorkDir holds downloads and page renders.
	WorkDir string
}

// Pipeline groups the collaborators of one run.
type Pipeline struct {
	Crawler   driven.Crawler
	Content   *ContentStore
	Converter driven.Converter
	OCR       *OCRService
	Text      *TextService
	Indexer   *Indexer

	Documents driven.DocumentStore
	Pages     driven.PageStore
	Results   driven.OCRResultStore

	// Hooks run after a document is indexed. Their failures are logged only.
	Hooks []driven.DocumentHook
}

// Orchestrator drives discover, fetch, store, convert, OCR, extract and
// index under a lease, so that at most one replica runs at a time.
type Orchestrator struct {
	cfg   OrchestratorConfig
	state driven.IngestionStateStore
	p     Pipeline

	storageOnly map[string]bool
	now         func() time.Time

	mu      sync.Mutex
	stop    context.CancelFunc
	done    chan struct{}
	running bool
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(cfg OrchestratorConfig, state driven.IngestionStateStore, p Pipeline) *Orchestrator {
	if cfg.Poll <= 0 {
		cfg.Poll = time.Minute
	}
	if cfg.LeaseTTL <= cfg.Poll {
		logger.Warn("Lease TTL %s does not exceed poll interval %s; using %s", cfg.LeaseTTL, cfg.Poll, 3*cfg.Poll)
		cfg.LeaseTTL = 3 * cfg.Poll
	}
	if cfg.Owner == "" {
		cfg.Owner = uuid.NewString()
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}
	only := make(map[string]bool, len(cfg.StorageOnly))
	for _, c := range cfg.StorageOnly {
		only[c] = true
	}
	return &Orchestrator{
		cfg:         cfg,
		state:       state,
		p:           p,
		storageOnly: only,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ==================== Control ====================

// Enable allows runs to start.
func (o *Orchestrator) Enable(ctx context.Context) error {
	return o.set(ctx, func() error { return o.state.SetEnabled(ctx, o.cfg.Name, true) })
}

// Disable stops new runs from starting. An in-flight run finishes.
func (o *Orchestrator) Disable(ctx context.Context) error {
	return o.set(ctx, func() error { return o.state.SetEnabled(ctx, o.cfg.Name, false) })
}

// Pause stops the current run at its next file boundary and blocks new runs.
func (o *Orchestrator) Pause(ctx context.Context) error {
	return o.set(ctx, func() error { return o.state.SetPaused(ctx, o.cfg.Name, true) })
}

// Resume clears the pause flag.
func (o *Orchestrator) Resume(ctx context.Context) error {
	return o.set(ctx, func() error { return o.state.SetPaused(ctx, o.cfg.Name, false) })
}

// Cancel aborts the in-flight run at its next file boundary.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	return o.set(ctx, func() error { return o.state.SetCancelRequested(ctx, o.cfg.Name, true) })
}

func (o *Orchestrator) set(ctx context.Context, fn func() error) error {
	if _, err := o.state.EnsureState(ctx, o.cfg.Name); err != nil {
		return fmt.Errorf("ensure state: %w", err)
	}
	return fn()
}

// Status reports the pipeline flags and last run.
func (o *Orchestrator) Status(ctx context.Context) (*domain.IngestionStatus, error) {
	st, err := o.state.EnsureState(ctx, o.cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("ensure state: %w", err)
	}
	now := o.now()
	status := &domain.IngestionStatus{
		Name:               st.Name,
		Enabled:            st.Enabled,
		Running:            st.Running(now),
		Paused:             st.Paused,
		Cancelling:         st.CancelRequested,
		LastHeartbeatAt:    st.LastHeartbeatAt,
		LastRunStartedAt:   st.LastRunStartedAt,
		LastRunCompletedAt: st.LastRunCompletedAt,
		LastError:          st.LastError,
		LastSummary:        st.LastSummary,
	}
	if st.LeaseActive(now) {
		status.LeaseOwner = st.LeaseOwner
	}
	return status, nil
}

// History returns recent runs, most recent first.
func (o *Orchestrator) History(ctx context.Context, limit int) ([]domain.IngestionRun, error) {
	return o.state.ListRuns(ctx, o.cfg.Name, limit)
}

// ==================== Runner ====================

// Start launches the poll loop. If the crawler can watch its source, new
// files wake the loop before the next tick.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return nil // Already running
	}
	if _, err := o.state.EnsureState(ctx, o.cfg.Name); err != nil {
		return fmt.Errorf("ensure state: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	var wake <-chan struct{}
	if w, ok := o.p.Crawler.(driven.Watcher); ok {
		ch, err := w.Watch(loopCtx)
		if err != nil {
			logger.Warn("Watch unavailable, relying on polling: %v", err)
		} else {
			wake = ch
		}
	}

	o.stop = cancel
	o.done = make(chan struct{})
	o.running = true
	go o.loop(loopCtx, wake, o.done)

	logger.Info("Ingestion %q started (owner %s, poll %s, lease %s)",
		o.cfg.Name, o.cfg.Owner, o.cfg.Poll, o.cfg.LeaseTTL)
	return nil
}

// Stop halts the poll loop, waits for an in-flight run to return and
// releases the lease.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	if !o.running {
		o.mu.Unlock()
		return nil
	}
	o.running = false
	stop, done := o.stop, o.done
	o.mu.Unlock()

	stop()
	<-done

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.state.ReleaseLease(ctx, o.cfg.Name, o.cfg.Owner); err != nil {
		return fmt.Errorf("release lease: %w", err)
	}
	logger.Info("Ingestion %q stopped", o.cfg.Name)
	return nil
}

// RunOnce performs one run immediately, ignoring the enabled flag and the
// run interval. The lease is still required and is released afterwards.
func (o *Orchestrator) RunOnce(ctx context.Context) (*domain.RunSummary, error) {
	ok, err := o.state.AcquireLease(ctx, o.cfg.Name, o.cfg.Owner, o.now(), o.cfg.LeaseTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	if !ok {
		return nil, domain.ErrLeaseHeld
	}
	defer func() {
		if err := o.state.ReleaseLease(context.WithoutCancel(ctx), o.cfg.Name, o.cfg.Owner); err != nil {
			logger.Warn("Release lease failed: %v", err)
		}
	}()
	return o.run(ctx)
}

func (o *Orchestrator) loop(ctx context.Context, wake <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(o.cfg.Poll)
	defer ticker.Stop()

	o.tick(ctx, false)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.tick(ctx, false)
		case _, ok := <-wake:
			if !ok {
				wake = nil
				continue
			}
			logger.Debug("Woken by new files")
			o.tick(ctx, true)
		}
	}
}

// tick renews the lease and starts a run when the pipeline is enabled,
// not paused and the run interval has elapsed. A wake skips the interval.
func (o *Orchestrator) tick(ctx context.Context, woken bool) {
	now := o.now()
	ok, err := o.state.AcquireLease(ctx, o.cfg.Name, o.cfg.Owner, now, o.cfg.LeaseTTL)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("Lease acquire failed: %v", err)
		}
		return
	}
	if !ok {
		logger.Debug("Lease for %q held elsewhere", o.cfg.Name)
		return
	}
	if err := o.state.Heartbeat(ctx, o.cfg.Name, o.cfg.Owner, now); err != nil {
		logger.Warn("Heartbeat failed: %v", err)
	}

	st, err := o.state.EnsureState(ctx, o.cfg.Name)
	if err != nil {
		logger.Warn("Read state failed: %v", err)
		return
	}
	if !st.Enabled || st.Paused {
		return
	}
	if !woken && !st.LastRunCompletedAt.IsZero() && now.Sub(st.LastRunCompletedAt) < o.cfg.RunInterval {
		return
	}

	summary, err := o.run(ctx)
	if err != nil {
		logger.Error("Ingestion run failed: %v", err)
		return
	}
	logger.Info("Run %s: discovered=%d downloaded=%d processed=%d skipped=%d errors=%d",
		summary.Outcome, summary.FilesDiscovered, summary.FilesDownloaded,
		summary.FilesProcessed, summary.FilesSkipped, len(summary.Errors))
}

// keepLease renews the lease every TTL/3 until stop is closed. Losing it
// cancels the run with ErrLeaseLost.
func (o *Orchestrator) keepLease(ctx context.Context, cancel context.CancelCauseFunc, stop <-chan struct{}) {
	ticker := time.NewTicker(o.cfg.LeaseTTL / 3)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := o.now()
			ok, err := o.state.AcquireLease(ctx, o.cfg.Name, o.cfg.Owner, now, o.cfg.LeaseTTL)
			if err != nil || !ok {
				logger.Error("Lease renewal failed (held=%v): %v", ok, err)
				cancel(domain.ErrLeaseLost)
				return
			}
			_ = o.state.Heartbeat(ctx, o.cfg.Name, o.cfg.Owner, now)
		}
	}
}

// run executes one run while this replica holds the lease.
func (o *Orchestrator) run(ctx context.Context) (*domain.RunSummary, error) {
	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	stopKeeper := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		o.keepLease(runCtx, cancel, stopKeeper)
	}()
	defer func() {
		close(stopKeeper)
		wg.Wait()
	}()

	started := o.now()
	if err := o.state.MarkRunStarted(ctx, o.cfg.Name, started); err != nil {
		return nil, fmt.Errorf("mark run started: %w", err)
	}
	logger.Section("Ingestion Run")

	summary := &domain.RunSummary{Errors: []string{}, Outcome: domain.RunCompleted}
	runErr := o.process(runCtx, summary)

	if cause := context.Cause(runCtx); errors.Is(cause, domain.ErrLeaseLost) {
		summary.Outcome = domain.RunLeaseLost
		runErr = nil
	} else if runErr != nil && ctx.Err() != nil {
		// Shutdown mid-run behaves like a cancel without clearing the flag.
		summary.Outcome = domain.RunCancelled
		runErr = nil
	} else if runErr != nil {
		summary.Outcome = domain.RunFailed
	}

	lastError := ""
	if runErr != nil {
		lastError = domain.Truncate(runErr.Error(), domain.MaxLastErrorLength)
	}
	o.finish(context.WithoutCancel(ctx), started, summary, lastError)

	if summary.Outcome == domain.RunLeaseLost {
		return summary, domain.ErrLeaseLost
	}
	return summary, runErr
}

// process discovers candidates and handles them one file at a time.
// Pause and cancel are read between files.
func (o *Orchestrator) process(ctx context.Context, summary *domain.RunSummary) error {
	candidates, err := o.p.Crawler.DiscoverFiles(ctx)
	if err != nil {
		return fmt.Errorf("discover: %w", err)
	}
	if o.cfg.Limit > 0 && len(candidates) > o.cfg.Limit {
		candidates = candidates[:o.cfg.Limit]
	}
	summary.FilesDiscovered = len(candidates)
	logger.Info("Discovered %d files", len(candidates))

	for i, cand := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := o.state.EnsureState(ctx, o.cfg.Name)
		if err != nil {
			return fmt.Errorf("read state: %w", err)
		}
		if st.CancelRequested {
			logger.Info("Run cancelled after %d of %d files", i, len(candidates))
			summary.Outcome = domain.RunCancelled
			if err := o.state.SetCancelRequested(ctx, o.cfg.Name, false); err != nil {
				logger.Warn("Clear cancel flag failed: %v", err)
			}
			return nil
		}
		if st.Paused {
			logger.Info("Run paused after %d of %d files", i, len(candidates))
			summary.Outcome = domain.RunPaused
			return nil
		}

		if err := o.processFile(ctx, cand, summary); err != nil {
			if errors.Is(err, domain.ErrDedupCollision) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			msg := fmt.Sprintf("%s: %v", cand.URL, err)
			summary.AddError(msg)
			logger.Warn("File failed: %s", msg)
		}
		if err := o.state.Heartbeat(ctx, o.cfg.Name, o.cfg.Owner, o.now()); err != nil {
			logger.Debug("Heartbeat failed: %v", err)
		}
	}
	return nil
}

// processFile takes one candidate from download through indexing.
func (o *Orchestrator) processFile(ctx context.Context, cand domain.FileCandidate, summary *domain.RunSummary) error {
	dest := filepath.Join(o.cfg.WorkDir, "downloads", domain.FetchName(cand.URL, cand.FileName))

	size, err := fileSize(dest)
	if err != nil || size == 0 {
		ok, err := o.p.Crawler.FetchFile(ctx, cand.URL, dest)
		if err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
		if !ok {
			return errors.New("fetch failed")
		}
		summary.FilesDownloaded++
		if size, err = fileSize(dest); err != nil {
			return fmt.Errorf("fetch: %w", err)
		}
	} else {
		logger.Debug("Already downloaded: %s", dest)
	}

	id, isNew, err := o.p.Content.StoreDocument(ctx, domain.FetchedFile{Candidate: cand, LocalPath: dest, Size: size})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if !isNew && o.cfg.SkipExisting {
		summary.FilesSkipped++
		return nil
	}
	if cand.Collection != "" && o.storageOnly[cand.Collection] {
		summary.FilesProcessed++
		return nil
	}

	doc, err := o.p.Documents.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("get document: %w", err)
	}
	if doc.PageCount == 0 {
		if err := o.convert(ctx, doc, dest); err != nil {
			return err
		}
	}

	batch, err := o.p.OCR.ProcessDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	summary.PagesProcessed += batch.Processed + batch.Empty
	for _, e := range batch.Errors {
		summary.AddError(fmt.Sprintf("%s: %s", cand.URL, e))
	}

	o.indexDocument(ctx, id, summary)

	for _, h := range o.p.Hooks {
		if err := h.DocumentIndexed(ctx, id); err != nil {
			logger.Warn("Hook %s failed for %s: %v", h.Name(), id, err)
		}
	}

	summary.FilesProcessed++
	return nil
}

// convert renders a document to page images and stores each page.
// A conversion failure leaves the document with zero pages.
func (o *Orchestrator) convert(ctx context.Context, doc *domain.Document, path string) error {
	outDir := filepath.Join(o.cfg.WorkDir, "pages", doc.ID)
	defer os.RemoveAll(outDir)

	images, err := o.p.Converter.ToPageImages(ctx, path, outDir)
	if err != nil {
		return fmt.Errorf("convert: %w", err)
	}
	for i, img := range images {
		if _, err := o.p.Content.StorePage(ctx, doc.ID, i+1, img, 0, 0); err != nil {
			return fmt.Errorf("store page %d: %w", i+1, err)
		}
	}
	if err := o.p.Content.SetPageCount(ctx, doc.ID, len(images)); err != nil {
		return fmt.Errorf("set page count: %w", err)
	}
	logger.Debug("Converted %s into %d pages", doc.FileName, len(images))
	return nil
}

// indexDocument extracts entities and indexes every processed page of a
// document. Failures are isolated per result.
func (o *Orchestrator) indexDocument(ctx context.Context, documentID string, summary *domain.RunSummary) {
	pages, err := o.p.Pages.ListPages(ctx, documentID)
	if err != nil {
		summary.AddError(fmt.Sprintf("%s: list pages: %v", documentID, err))
		return
	}
	for _, page := range pages {
		if !page.OCRProcessed {
			continue
		}
		result, err := o.p.Results.GetResultByPage(ctx, page.ID)
		if err != nil {
			summary.AddError(fmt.Sprintf("%s: load result: %v", page.ID, err))
			continue
		}
		if err := postProcess(ctx, o.p.Text, o.p.Indexer, result.ID); err != nil {
			summary.AddError(fmt.Sprintf("%s: %v", page.ID, err))
		}
	}
}

// finish stores the summary, appends the run to history and prunes it.
// A paused or lease-lost run does not stamp completion.
func (o *Orchestrator) finish(ctx context.Context, started time.Time, summary *domain.RunSummary, lastError string) {
	now := o.now()
	completed := summary.Outcome != domain.RunPaused && summary.Outcome != domain.RunLeaseLost
	if err := o.state.MarkRunFinished(ctx, o.cfg.Name, now, completed, *summary, lastError); err != nil {
		logger.Error("Record run result failed: %v", err)
	}

	run := &domain.IngestionRun{
		ID:        uuid.NewString(),
		Pipeline:  o.cfg.Name,
		Owner:     o.cfg.Owner,
		StartedAt: started,
		Summary:   *summary,
	}
	if completed {
		run.CompletedAt = now
	}
	if err := o.state.RecordRun(ctx, run); err != nil {
		logger.Warn("Record run history failed: %v", err)
	}
	if o.cfg.HistoryKeep > 0 {
		if err := o.state.PruneRuns(ctx, o.cfg.HistoryKeep); err != nil {
			logger.Warn("Prune run history failed: %v", err)
		}
	}
}

func fileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
