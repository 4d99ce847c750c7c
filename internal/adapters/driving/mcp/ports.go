package mcp

import (
	"github.com/custodia-labs/pagesift/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server uses.
type Ports struct {
	// Search answers queries and entity lookups.
	Search driving.SearchService

	// Control reports ingestion status. Optional.
	Control driving.IngestionControl
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}
