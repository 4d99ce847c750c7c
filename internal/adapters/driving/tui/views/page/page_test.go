package page

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/pagesift/internal/core/domain"
)

func TestView_Empty(t *testing.T) {
	v := NewView(nil, nil)

	assert.Contains(t, v.View(), "No page selected")
	assert.Nil(t, v.Result())
}

func TestView_RendersResult(t *testing.T) {
	v := NewView(nil, nil)
	v.SetDimensions(100, 30)
	v.SetResult(domain.SearchResult{
		DocumentID: "doc-a",
		PageNumber: 4,
		FullText:   "Call Jane at 555-123-4567",
		Confidence: 0.77,
		ImagePath:  "/data/images/doc-a_page_0004.png",
		BBox:       domain.BoundingBox{X: 10, Y: 20, Width: 300, Height: 40},
	})

	view := v.View()

	assert.Contains(t, view, "doc-a  page 4")
	assert.Contains(t, view, "confidence 0.77")
	assert.Contains(t, view, "image /data/images/doc-a_page_0004.png")
	assert.Contains(t, view, "match at (10, 20) 300x40")
	assert.Contains(t, view, "Call Jane at 555-123-4567")
}

func TestView_FallsBackToSnippet(t *testing.T) {
	v := NewView(nil, nil)
	v.SetResult(domain.SearchResult{DocumentID: "doc-b", Snippet: "...only a snippet..."})

	assert.Contains(t, v.View(), "only a snippet")
	assert.NotContains(t, v.View(), "match at")
}

func TestView_EscGoesBack(t *testing.T) {
	v := NewView(nil, nil)

	_, cmd := v.Update(tea.KeyMsg{Type: tea.KeyEsc})

	require.NotNil(t, cmd)
	assert.Equal(t, messages.ViewChanged{View: messages.ViewSearch}, cmd())
}

func TestView_StatusLoaded(t *testing.T) {
	v := NewView(nil, nil)
	v.SetDimensions(120, 30)
	v.SetResult(domain.SearchResult{DocumentID: "doc-a", FullText: "x"})

	v.Update(messages.StatusLoaded{Status: &domain.IngestionStatus{Name: "doj", Enabled: true}})

	assert.Contains(t, v.View(), "[doj: idle]")
}
