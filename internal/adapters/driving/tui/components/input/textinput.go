// Package input provides the query input for the TUI.
package input

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// modes is the cycle order for the mode key.
var modes = []domain.SearchMode{
	domain.SearchModeKeyword,
	domain.SearchModePhrase,
	domain.SearchModeFuzzy,
	domain.SearchModeSemantic,
}

// SearchInput wraps a bubbles textinput and tracks the search mode.
type SearchInput struct {
	textinput textinput.Model
	styles    *styles.Styles
	mode      int
	width     int
}

// NewSearchInput creates a focused input in keyword mode.
func NewSearchInput(s *styles.Styles) *SearchInput {
	if s == nil {
		s = styles.DefaultStyles()
	}

	ti := textinput.New()
	ti.Placeholder = "invoice total, jane@example.com, \"flight log\"..."
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50

	return &SearchInput{
		textinput: ti,
		styles:    s,
		width:     50,
	}
}

// Init starts the cursor blink.
func (s *SearchInput) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input messages.
func (s *SearchInput) Update(msg tea.Msg) (*SearchInput, tea.Cmd) {
	var cmd tea.Cmd
	s.textinput, cmd = s.textinput.Update(msg)
	return s, cmd
}

// View renders the mode tag and the input.
func (s *SearchInput) View() string {
	tag := s.styles.ModeTag.Render(string(s.Mode()))
	input := s.styles.InputField.Render(s.textinput.View())
	//nolint:misspell // lipgloss.Center is the library constant
	return lipgloss.JoinHorizontal(lipgloss.Center, tag, " ", input)
}

// Mode returns the selected search mode.
func (s *SearchInput) Mode() domain.SearchMode {
	return modes[s.mode]
}

// NextMode advances to the next search mode and returns it.
func (s *SearchInput) NextMode() domain.SearchMode {
	s.mode = (s.mode + 1) % len(modes)
	return s.Mode()
}

// Value returns the current input value.
func (s *SearchInput) Value() string {
	return s.textinput.Value()
}

// SetValue sets the input value.
func (s *SearchInput) SetValue(value string) {
	s.textinput.SetValue(value)
}

// Focus sets focus on the input.
func (s *SearchInput) Focus() tea.Cmd {
	return s.textinput.Focus()
}

// Blur removes focus from the input.
func (s *SearchInput) Blur() {
	s.textinput.Blur()
}

// Focused returns whether the input is focused.
func (s *SearchInput) Focused() bool {
	return s.textinput.Focused()
}

// SetWidth sets the width of the input.
func (s *SearchInput) SetWidth(width int) {
	s.width = width
	// mode tag and border
	inputWidth := width - 20
	if inputWidth < 20 {
		inputWidth = 20
	}
	s.textinput.Width = inputWidth
}
