package search

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// MockSearchService implements driving.SearchService for testing.
type MockSearchService struct {
	SearchFunc func(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)
}

func (m *MockSearchService) Search(
	ctx context.Context,
	query string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, opts)
	}
	return []domain.SearchResult{}, nil
}

func (m *MockSearchService) SearchEntities(
	context.Context, domain.EntityType, string, int,
) ([]domain.SearchResult, error) {
	return nil, nil
}

func testSearchResults() []domain.SearchResult {
	return []domain.SearchResult{
		{OCRResultID: "r-1", DocumentID: "3f2a9c0d1e4b5a67", PageNumber: 1, Snippet: "Invoice Total $450.00"},
		{OCRResultID: "r-2", DocumentID: "3f2a9c0d1e4b5a67", PageNumber: 2, Snippet: "Remit to jane@example.com"},
	}
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestView(svc *MockSearchService) *View {
	v := NewView(nil, nil, svc)
	v.SetDimensions(100, 40)
	return v
}

func TestNewView_Defaults(t *testing.T) {
	v := NewView(nil, nil, nil)

	assert.True(t, v.InputFocused())
	assert.Equal(t, domain.SearchModeKeyword, v.Mode())
	assert.Equal(t, "Initialising...", v.View())
}

func TestView_EnterRunsSearchWithMode(t *testing.T) {
	var gotQuery string
	var gotOpts domain.SearchOptions
	svc := &MockSearchService{SearchFunc: func(_ context.Context, q string, o domain.SearchOptions) ([]domain.SearchResult, error) {
		gotQuery, gotOpts = q, o
		return testSearchResults(), nil
	}}
	v := newTestView(svc)
	v.SetQuery("  invoice ")

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, domain.SearchModePhrase, v.Mode())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()

	done, ok := msg.(messages.SearchCompleted)
	require.True(t, ok)
	assert.Equal(t, "invoice", gotQuery)
	assert.Equal(t, domain.SearchModePhrase, gotOpts.Mode)
	assert.Equal(t, domain.SearchModePhrase, done.Mode)
	assert.Len(t, done.Results, 2)
}

func TestView_EnterWithEmptyQuery(t *testing.T) {
	v := newTestView(&MockSearchService{})

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, cmd)
}

func TestView_NoSearchService(t *testing.T) {
	v := newTestView(nil)
	v.searchService = nil
	v.SetQuery("x")

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	msg, ok := cmd().(messages.ErrorOccurred)
	require.True(t, ok)
	assert.ErrorIs(t, msg.Err, ErrNoSearchService)
}

func TestView_SearchCompletedFocusesResults(t *testing.T) {
	v := newTestView(&MockSearchService{})

	v, _ = v.Update(messages.SearchCompleted{Query: "invoice", Results: testSearchResults()})

	assert.False(t, v.InputFocused())
	assert.Len(t, v.Results(), 2)
	assert.Contains(t, v.View(), "Invoice Total")
}

func TestView_SearchCompletedEmptyKeepsInput(t *testing.T) {
	v := newTestView(&MockSearchService{})

	v, _ = v.Update(messages.SearchCompleted{Query: "nothing"})

	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Results())
}

func TestView_SearchError(t *testing.T) {
	v := newTestView(&MockSearchService{})

	v, _ = v.Update(messages.SearchCompleted{Query: "x", Err: errors.New("index offline")})

	require.Error(t, v.Err())
	assert.Contains(t, v.View(), "index offline")
}

func TestView_OpenSelectedResult(t *testing.T) {
	v := newTestView(&MockSearchService{})
	v, _ = v.Update(messages.SearchCompleted{Query: "invoice", Results: testSearchResults()})

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyDown})
	assert.Equal(t, 1, v.SelectedIndex())

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)

	opened, ok := cmd().(messages.PageOpened)
	require.True(t, ok)
	assert.Equal(t, "r-2", opened.Result.OCRResultID)
}

func TestView_NewSearchRefocusesInput(t *testing.T) {
	v := newTestView(&MockSearchService{})
	v, _ = v.Update(messages.SearchCompleted{Query: "invoice", Results: testSearchResults()})
	require.False(t, v.InputFocused())

	v, _ = v.Update(keyMsg("/"))

	assert.True(t, v.InputFocused())
	assert.Empty(t, v.Query())
}

func TestView_EscReturnsToResults(t *testing.T) {
	v := newTestView(&MockSearchService{})
	v, _ = v.Update(messages.SearchCompleted{Query: "invoice", Results: testSearchResults()})
	v, _ = v.Update(keyMsg("n"))
	require.True(t, v.InputFocused())

	v, _ = v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.False(t, v.InputFocused())
}

func TestView_QuitFromResults(t *testing.T) {
	v := newTestView(&MockSearchService{})
	v, _ = v.Update(messages.SearchCompleted{Query: "invoice", Results: testSearchResults()})

	_, cmd := v.Update(keyMsg("q"))
	require.NotNil(t, cmd)

	_, ok := cmd().(tea.QuitMsg)
	assert.True(t, ok)
}
