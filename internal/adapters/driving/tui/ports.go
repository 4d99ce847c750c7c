// Package tui provides an interactive terminal browser for OCR'd pages.
// It implements a driving adapter over the search and ingestion ports.
package tui

import (
	"errors"

	"github.com/custodia-labs/pagesift/internal/core/ports/driving"
)

// ErrMissingSearchService is returned by NewApp without a search port.
var ErrMissingSearchService = errors.New("tui: search service is required")

// Ports aggregates the driving ports the TUI uses.
type Ports struct {
	// Search is required.
	Search driving.SearchService

	// Control feeds the pipeline state on the status bar. Optional.
	Control driving.IngestionControl
}

// Validate ensures required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
