package list

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

func sampleResults() []domain.SearchResult {
	return []domain.SearchResult{
		{DocumentID: "doc-a", PageNumber: 1, Snippet: "Invoice\nTotal   $450.00", Confidence: 0.91},
		{DocumentID: "doc-b", PageNumber: 2, Snippet: "flight log", Confidence: 0.6, Similarity: 0.83},
		{DocumentID: "doc-c", PageNumber: 7, Snippet: "memo", Confidence: 0.2},
	}
}

func TestResultList_Empty(t *testing.T) {
	l := NewResultList(nil)

	assert.Equal(t, 0, l.Count())
	assert.Nil(t, l.SelectedResult())
	assert.Contains(t, l.View(), "No results")
}

func TestResultList_Navigation(t *testing.T) {
	l := NewResultList(nil)
	l.SetResults(sampleResults())

	l.MoveUp()
	assert.Equal(t, 0, l.Selected())

	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'j'}})
	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyDown})
	l.MoveDown()
	assert.Equal(t, 2, l.Selected())

	l, _ = l.Update(tea.KeyMsg{Type: tea.KeyUp})
	require.NotNil(t, l.SelectedResult())
	assert.Equal(t, "doc-b", l.SelectedResult().DocumentID)

	l.SetResults(sampleResults()[:1])
	assert.Equal(t, 0, l.Selected())
}

func TestResultList_View(t *testing.T) {
	l := NewResultList(nil)
	l.SetDimensions(80, 20)
	l.SetResults(sampleResults())

	view := l.View()

	assert.Contains(t, view, "Results (3)")
	assert.Contains(t, view, "> doc-a  page 1")
	assert.Contains(t, view, " 91%")
	assert.Contains(t, view, "Invoice Total $450.00")
	assert.Contains(t, view, "sim 0.83")
}

func TestResultList_ScrollsToSelection(t *testing.T) {
	l := NewResultList(nil)
	l.SetDimensions(80, 4) // room for one result
	l.SetResults(sampleResults())
	l.MoveDown()
	l.MoveDown()

	view := l.View()

	assert.Contains(t, view, "doc-c")
	assert.NotContains(t, view, "doc-a")
}

func TestTruncate(t *testing.T) {
	long := strings.Repeat("é", 50)

	got := truncate(long, 30)

	assert.Equal(t, 30, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Equal(t, "short", truncate("short", 30))
}
