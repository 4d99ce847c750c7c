package cli

import (
	"bytes"
	"context"
	"sync"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// mockSearchService implements driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error

	gotQuery string
	gotOpts  domain.SearchOptions
	gotType  domain.EntityType
	gotValue string
}

func (m *mockSearchService) Search(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.gotQuery = query
	m.gotOpts = opts
	return m.results, m.err
}

func (m *mockSearchService) SearchEntities(
	_ context.Context, entityType domain.EntityType, value string, _ int,
) ([]domain.SearchResult, error) {
	m.gotType = entityType
	m.gotValue = value
	return m.results, m.err
}

// mockIngestion implements driving.IngestionControl and driving.IngestionRunner.
type mockIngestion struct {
	mu      sync.Mutex
	calls   []string
	status  *domain.IngestionStatus
	runs    []domain.IngestionRun
	summary *domain.RunSummary
	err     error
}

func (m *mockIngestion) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, name)
	return m.err
}

func (m *mockIngestion) Enable(context.Context) error  { return m.record("enable") }
func (m *mockIngestion) Disable(context.Context) error { return m.record("disable") }
func (m *mockIngestion) Pause(context.Context) error   { return m.record("pause") }
func (m *mockIngestion) Resume(context.Context) error  { return m.record("resume") }
func (m *mockIngestion) Cancel(context.Context) error  { return m.record("cancel") }

func (m *mockIngestion) Status(context.Context) (*domain.IngestionStatus, error) {
	return m.status, m.record("status")
}

func (m *mockIngestion) History(context.Context, int) ([]domain.IngestionRun, error) {
	return m.runs, m.record("history")
}

func (m *mockIngestion) Start(context.Context) error { return m.record("start") }
func (m *mockIngestion) Stop() error                 { return m.record("stop") }

func (m *mockIngestion) RunOnce(context.Context) (*domain.RunSummary, error) {
	return m.summary, m.record("run")
}

// mockMaintenance implements driving.MaintenanceService.
type mockMaintenance struct {
	batch    *domain.PageBatchResult
	indexed  int
	err      error
	gotLimit int
}

func (m *mockMaintenance) Backfill(_ context.Context, limit int) (*domain.PageBatchResult, error) {
	m.gotLimit = limit
	return m.batch, m.err
}

func (m *mockMaintenance) Reindex(context.Context) (int, error) {
	return m.indexed, m.err
}

// testServices swaps in mocks and returns a restore function.
type testServices struct {
	search      *mockSearchService
	ingestion   *mockIngestion
	maintenance *mockMaintenance
}

func setupTestServices() (*testServices, func()) {
	oldSearch, oldControl, oldRunner, oldMaint := searchService, ingestionControl, ingestionRunner, maintenanceService
	oldBootstrap := bootstrap

	ts := &testServices{
		search: &mockSearchService{results: []domain.SearchResult{{
			OCRResultID: "r-1",
			DocumentID:  "3f2a9c0d1e4b5a67",
			PageNumber:  2,
			Snippet:     "Invoice Total $450.00",
			Confidence:  0.85,
			ImagePath:   "/data/images/3f2a9c0d1e4b5a67_page_0002.png",
		}}},
		ingestion: &mockIngestion{
			status:  &domain.IngestionStatus{Name: "doj", Enabled: true},
			summary: &domain.RunSummary{FilesDiscovered: 2, FilesProcessed: 2, Outcome: domain.RunCompleted},
		},
		maintenance: &mockMaintenance{batch: &domain.PageBatchResult{Processed: 3, Empty: 1}},
	}
	SetServices(&Services{
		Search:      ts.search,
		Control:     ts.ingestion,
		Runner:      ts.ingestion,
		Maintenance: ts.maintenance,
	})
	bootstrap = nil

	return ts, func() {
		searchService, ingestionControl, ingestionRunner, maintenanceService = oldSearch, oldControl, oldRunner, oldMaint
		bootstrap = oldBootstrap
	}
}

// execute runs the root command with args and returns its output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
