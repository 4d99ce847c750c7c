package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

const (
	uriScheme = "pagesift://"

	historyLimit = 20
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "ingestion/runs",
		Name:        "ingestion-runs",
		Description: "Recent ingestion runs with their summaries",
		MIMEType:    "application/json",
	}, s.handleRunsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "entities/{type}/{value}",
		Name:        "entity-pages",
		Description: "Pages holding an entity of the given type whose value contains the given text",
		MIMEType:    "application/json",
	}, s.handleEntityResource)
}

// handleRunsResource lists recent runs. Without a control port it is empty.
func (s *Server) handleRunsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Control == nil {
		return jsonResult(req.Params.URI, []struct{}{})
	}

	runs, err := s.ports.Control.History(ctx, historyLimit)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	type runInfo struct {
		ID          string            `json:"id"`
		Owner       string            `json:"owner"`
		StartedAt   string            `json:"started_at"`
		CompletedAt string            `json:"completed_at,omitempty"`
		Summary     domain.RunSummary `json:"summary"`
	}

	infos := make([]runInfo, len(runs))
	for i := range runs {
		r := &runs[i]
		infos[i] = runInfo{
			ID:        r.ID,
			Owner:     r.Owner,
			StartedAt: r.StartedAt.Format(time.RFC3339),
			Summary:   r.Summary,
		}
		if !r.CompletedAt.IsZero() {
			infos[i].CompletedAt = r.CompletedAt.Format(time.RFC3339)
		}
	}
	return jsonResult(req.Params.URI, infos)
}

// handleEntityResource answers pagesift://entities/{type}/{value}.
func (s *Server) handleEntityResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	entityType, value := extractEntity(req.Params.URI)
	if entityType == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	results, err := s.ports.Search.SearchEntities(ctx, domain.EntityType(entityType), value, defaultToolLimit)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	return jsonResult(req.Params.URI, toOutput(results))
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractEntity splits pagesift://entities/{type}/{value}. The value is
// path-unescaped and may be empty.
func extractEntity(uri string) (entityType, value string) {
	const prefix = uriScheme + "entities/"

	if !strings.HasPrefix(uri, prefix) {
		return "", ""
	}
	rest := strings.TrimPrefix(uri, prefix)
	entityType, value, _ = strings.Cut(rest, "/")
	if unescaped, err := url.PathUnescape(value); err == nil {
		value = unescaped
	}
	return entityType, value
}
