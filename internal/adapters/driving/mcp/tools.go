package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

const defaultToolLimit = 10

// errNoControl is returned by ingestion_status when no control port is wired.
var errNoControl = errors.New("ingestion control is not configured")

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query     string  `json:"query" jsonschema:"the text to search for in OCR'd pages"`
	Mode      string  `json:"mode,omitempty" jsonschema:"keyword, phrase, fuzzy or semantic (default keyword)"`
	Limit     int     `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"minimum fuzzy score between 0 and 1 (default 0.6)"`
}

// EntitySearchInput is the input schema for the search_entities tool.
type EntitySearchInput struct {
	Type  string `json:"type" jsonschema:"entity type: name, email, phone, date or keyword"`
	Value string `json:"value,omitempty" jsonschema:"text the entity value must contain"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// SearchOutput is the output schema for the search tools.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single page hit.
type SearchResultOutput struct {
	OCRResultID string             `json:"ocr_result_id"`
	DocumentID  string             `json:"document_id"`
	PageNumber  int                `json:"page_number"`
	Snippet     string             `json:"snippet"`
	Confidence  float64            `json:"confidence"`
	Similarity  float64            `json:"similarity,omitempty"`
	ImagePath   string             `json:"image_path,omitempty"`
	BBox        domain.BoundingBox `json:"bbox"`
}

// StatusInput is the empty input of ingestion_status.
type StatusInput struct{}

// StatusOutput mirrors domain.IngestionStatus.
type StatusOutput struct {
	Name               string             `json:"name"`
	Enabled            bool               `json:"enabled"`
	Running            bool               `json:"running"`
	Paused             bool               `json:"paused"`
	Cancelling         bool               `json:"cancelling"`
	LeaseOwner         string             `json:"lease_owner,omitempty"`
	LastHeartbeatAt    *time.Time         `json:"last_heartbeat_at,omitempty"`
	LastRunStartedAt   *time.Time         `json:"last_run_started_at,omitempty"`
	LastRunCompletedAt *time.Time         `json:"last_run_completed_at,omitempty"`
	LastError          string             `json:"last_error,omitempty"`
	LastSummary        *domain.RunSummary `json:"last_summary,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search the text of OCR'd document pages",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search_entities",
		Description: "Find pages mentioning a name, email, phone number, date or keyword",
	}, s.handleSearchEntities)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ingestion_status",
		Description: "Report whether ingestion is enabled, running or paused, and the last run summary",
	}, s.handleStatus)
}

func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	mode, err := domain.ParseSearchMode(input.Mode)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultToolLimit
	}

	results, err := s.ports.Search.Search(ctx, input.Query, domain.SearchOptions{
		Mode:      mode,
		Limit:     limit,
		Threshold: input.Threshold,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toOutput(results), nil
}

func (s *Server) handleSearchEntities(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EntitySearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultToolLimit
	}
	results, err := s.ports.Search.SearchEntities(ctx, domain.EntityType(input.Type), input.Value, limit)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toOutput(results), nil
}

func (s *Server) handleStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ StatusInput,
) (*mcp.CallToolResult, StatusOutput, error) {
	if s.ports.Control == nil {
		return nil, StatusOutput{}, errNoControl
	}
	st, err := s.ports.Control.Status(ctx)
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{
		Name:               st.Name,
		Enabled:            st.Enabled,
		Running:            st.Running,
		Paused:             st.Paused,
		Cancelling:         st.Cancelling,
		LeaseOwner:         st.LeaseOwner,
		LastHeartbeatAt:    timePtr(st.LastHeartbeatAt),
		LastRunStartedAt:   timePtr(st.LastRunStartedAt),
		LastRunCompletedAt: timePtr(st.LastRunCompletedAt),
		LastError:          st.LastError,
		LastSummary:        st.LastSummary,
	}, nil
}

func toOutput(results []domain.SearchResult) SearchOutput {
	out := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		r := &results[i]
		out.Results[i] = SearchResultOutput{
			OCRResultID: r.OCRResultID,
			DocumentID:  r.DocumentID,
			PageNumber:  r.PageNumber,
			Snippet:     r.Snippet,
			Confidence:  r.Confidence,
			Similarity:  r.Similarity,
			ImagePath:   r.ImagePath,
			BBox:        r.BBox,
		}
	}
	return out
}

// timePtr returns nil for the zero time so it is omitted from JSON.
func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
