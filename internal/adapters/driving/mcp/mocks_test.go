package mcp

import (
	"context"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results []domain.SearchResult
	err     error

	gotQuery string
	gotOpts  domain.SearchOptions
	gotType  domain.EntityType
	gotValue string
	gotLimit int
}

func (m *mockSearchService) Search(
	_ context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.gotQuery = query
	m.gotOpts = opts
	return m.results, m.err
}

func (m *mockSearchService) SearchEntities(
	_ context.Context,
	entityType domain.EntityType,
	value string,
	limit int,
) ([]domain.SearchResult, error) {
	m.gotType = entityType
	m.gotValue = value
	m.gotLimit = limit
	return m.results, m.err
}

// mockControl is a mock implementation of driving.IngestionControl.
type mockControl struct {
	status *domain.IngestionStatus
	runs   []domain.IngestionRun
	err    error
}

func (m *mockControl) Enable(context.Context) error  { return m.err }
func (m *mockControl) Disable(context.Context) error { return m.err }
func (m *mockControl) Pause(context.Context) error   { return m.err }
func (m *mockControl) Resume(context.Context) error  { return m.err }
func (m *mockControl) Cancel(context.Context) error  { return m.err }

func (m *mockControl) Status(context.Context) (*domain.IngestionStatus, error) {
	return m.status, m.err
}

func (m *mockControl) History(context.Context, int) ([]domain.IngestionRun, error) {
	return m.runs, m.err
}
