// Package page provides the full-text view of one OCR'd page.
package page

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/components/status"
	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/keymap"
	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/messages"
	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// headerLines is the height of the title and metadata block.
const headerLines = 5

// View shows one result's text in a scrollable viewport.
type View struct {
	styles    *styles.Styles
	keymap    *keymap.KeyMap
	viewport  viewport.Model
	statusbar *status.Bar

	result *domain.SearchResult
	width  int
	height int
}

// NewView creates an empty page view.
func NewView(s *styles.Styles, km *keymap.KeyMap) *View {
	if s == nil {
		s = styles.DefaultStyles()
	}
	if km == nil {
		km = keymap.DefaultKeyMap()
	}
	bar := status.NewBar(s)
	bar.SetHints(km.PageHelp())
	return &View{
		styles:    s,
		keymap:    km,
		viewport:  viewport.New(80, 24-headerLines-2),
		statusbar: bar,
		width:     80,
		height:    24,
	}
}

// SetResult loads a result into the viewport.
func (v *View) SetResult(r domain.SearchResult) {
	v.result = &r
	v.viewport.SetContent(v.body())
	v.viewport.GotoTop()
}

// Result returns the displayed result, or nil.
func (v *View) Result() *domain.SearchResult {
	return v.result
}

// Update scrolls the viewport. Esc returns to the search view.
func (v *View) Update(msg tea.Msg) (*View, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && keymap.Matches(k.String(), v.keymap.Back) {
		return v, func() tea.Msg { return messages.ViewChanged{View: messages.ViewSearch} }
	}
	if st, ok := msg.(messages.StatusLoaded); ok && st.Err == nil {
		v.statusbar.SetPipeline(st.Status)
		return v, nil
	}

	var cmd tea.Cmd
	v.viewport, cmd = v.viewport.Update(msg)
	return v, cmd
}

// View renders the header, the text and the status bar.
func (v *View) View() string {
	if v.result == nil {
		return v.styles.Muted.Render("No page selected")
	}
	r := v.result

	header := []string{
		v.styles.Title.Render(fmt.Sprintf("%s  page %d", r.DocumentID, r.PageNumber)),
		v.styles.Confidence(r.Confidence).Render(fmt.Sprintf("confidence %.2f", r.Confidence)),
	}
	if r.ImagePath != "" {
		header = append(header, v.styles.Muted.Render("image "+r.ImagePath))
	}
	if !r.BBox.IsZero() {
		header = append(header, v.styles.Muted.Render(fmt.Sprintf("match at (%.0f, %.0f) %.0fx%.0f",
			r.BBox.X, r.BBox.Y, r.BBox.Width, r.BBox.Height)))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(header, "\n"),
		v.styles.Page.Render(v.viewport.View()),
		v.statusbar.View(),
	)
}

// body wraps the page text to the viewport width.
func (v *View) body() string {
	text := v.result.FullText
	if text == "" {
		text = v.result.Snippet
	}
	return lipgloss.NewStyle().Width(v.viewport.Width).Render(text)
}

// SetDimensions resizes the viewport.
func (v *View) SetDimensions(width, height int) {
	v.width = width
	v.height = height
	v.viewport.Width = max(width-4, 20)
	v.viewport.Height = max(height-headerLines-4, 3)
	v.statusbar.SetWidth(width)
	if v.result != nil {
		v.viewport.SetContent(v.body())
	}
}
