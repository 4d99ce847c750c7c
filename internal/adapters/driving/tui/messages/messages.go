// Package messages defines Bubbletea message types for the TUI.
package messages

import (
	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// SearchCompleted carries search results back to the model.
type SearchCompleted struct {
	Query   string
	Mode    domain.SearchMode
	Results []domain.SearchResult
	Err     error
}

// StatusLoaded carries the ingestion status for the status bar.
type StatusLoaded struct {
	Status *domain.IngestionStatus
	Err    error
}

// StatusTick asks the app to refresh the ingestion status.
type StatusTick struct{}

// PageOpened asks the app to show the full text of a result.
type PageOpened struct {
	Result domain.SearchResult
}

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewSearch is the input and results view.
	ViewSearch ViewType = iota
	// ViewPage shows one page's text.
	ViewPage
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewSearch:
		return "search"
	case ViewPage:
		return "page"
	default:
		return "unknown"
	}
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}
