// Package status provides the status bar for the TUI.
package status

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/pagesift/internal/adapters/driving/tui/styles"
	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// State is what the left side of the bar reports.
type State string

// Bar states.
const (
	StateReady     State = "ready"
	StateSearching State = "searching"
	StateResults   State = "results"
	StateError     State = "error"
)

// Bar displays search state, pipeline state and key hints.
type Bar struct {
	styles      *styles.Styles
	state       State
	message     string
	resultCount int
	pipeline    *domain.IngestionStatus
	hints       []key.Binding
	width       int
}

// NewBar creates a status bar.
func NewBar(s *styles.Styles) *Bar {
	if s == nil {
		s = styles.DefaultStyles()
	}
	return &Bar{styles: s, state: StateReady, width: 80}
}

// View renders the bar at its full width.
func (s *Bar) View() string {
	left := s.renderLeft()
	if p := s.renderPipeline(); p != "" {
		left += "  " + p
	}
	right := s.renderHints()

	// two cells of horizontal padding
	padding := s.width - 2 - lipgloss.Width(left) - lipgloss.Width(right)
	if padding < 1 {
		padding = 1
	}
	return s.styles.StatusBar.Width(s.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (s *Bar) renderLeft() string {
	switch s.state {
	case StateSearching:
		return s.styles.Muted.Render("Searching...")
	case StateError:
		if s.message != "" {
			return s.styles.Error.Render("Error: " + s.message)
		}
		return s.styles.Error.Render("Error")
	case StateResults:
		return s.styles.Normal.Render(fmt.Sprintf("%d results", s.resultCount))
	}
	if s.message != "" {
		return s.styles.Normal.Render(s.message)
	}
	return s.styles.Muted.Render("Ready")
}

// renderPipeline summarises the ingestion status.
func (s *Bar) renderPipeline() string {
	p := s.pipeline
	if p == nil {
		return ""
	}
	var state string
	switch {
	case !p.Enabled:
		state = "disabled"
	case p.Paused:
		state = "paused"
	case p.Running:
		state = "running"
	default:
		state = "idle"
	}
	return s.styles.Muted.Render(fmt.Sprintf("[%s: %s]", p.Name, state))
}

func (s *Bar) renderHints() string {
	hints := make([]string, 0, len(s.hints))
	for _, b := range s.hints {
		h := b.Help()
		hints = append(hints, h.Key+": "+h.Desc)
	}
	return s.styles.Muted.Render(strings.Join(hints, " | "))
}

// SetState sets the current state.
func (s *Bar) SetState(state State) {
	s.state = state
}

// State returns the current state.
func (s *Bar) State() State {
	return s.state
}

// SetMessage sets a custom message.
func (s *Bar) SetMessage(message string) {
	s.message = message
}

// Message returns the current message.
func (s *Bar) Message() string {
	return s.message
}

// SetResultCount sets the result count.
func (s *Bar) SetResultCount(count int) {
	s.resultCount = count
}

// SetPipeline sets the ingestion status shown on the bar. nil hides it.
func (s *Bar) SetPipeline(st *domain.IngestionStatus) {
	s.pipeline = st
}

// SetHints sets the key hints shown on the right.
func (s *Bar) SetHints(hints []key.Binding) {
	s.hints = hints
}

// SetWidth sets the status bar width.
func (s *Bar) SetWidth(width int) {
	s.width = width
}
