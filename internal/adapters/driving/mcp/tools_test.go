package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("returns search results", func(t *testing.T) {
		mockSearch := &mockSearchService{
			results: []domain.SearchResult{{
				OCRResultID: "r-1",
				DocumentID:  "3f2a9c0d1e4b5a67",
				PageNumber:  2,
				Snippet:     "Invoice Total $450.00",
				Confidence:  0.85,
				Similarity:  0.92,
				ImagePath:   "/data/images/3f2a9c0d1e4b5a67_page_0002.png",
				BBox:        domain.BoundingBox{X: 1, Y: 2, Width: 30, Height: 8},
			}},
		}
		server := newTestServer(t, &Ports{Search: mockSearch})

		input := SearchInput{Query: "invoice total", Mode: "fuzzy", Limit: 5, Threshold: 0.7}
		_, output, err := server.handleSearch(ctx, nil, input)

		require.NoError(t, err)
		assert.Equal(t, 1, output.Count)
		require.Len(t, output.Results, 1)
		r := output.Results[0]
		assert.Equal(t, "r-1", r.OCRResultID)
		assert.Equal(t, 2, r.PageNumber)
		assert.Equal(t, 0.92, r.Similarity)
		assert.Equal(t, 30.0, r.BBox.Width)

		assert.Equal(t, "invoice total", mockSearch.gotQuery)
		assert.Equal(t, domain.SearchModeFuzzy, mockSearch.gotOpts.Mode)
		assert.Equal(t, 5, mockSearch.gotOpts.Limit)
		assert.Equal(t, 0.7, mockSearch.gotOpts.Threshold)
	})

	t.Run("defaults to keyword mode and limit 10", func(t *testing.T) {
		mockSearch := &mockSearchService{}
		server := newTestServer(t, &Ports{Search: mockSearch})

		_, output, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.NoError(t, err)
		assert.Equal(t, 0, output.Count)
		assert.Equal(t, domain.SearchModeKeyword, mockSearch.gotOpts.Mode)
		assert.Equal(t, 10, mockSearch.gotOpts.Limit)
	})

	t.Run("rejects unknown mode", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "test", Mode: "regex"})

		assert.ErrorIs(t, err, domain.ErrUnsupportedType)
	})

	t.Run("returns error on search failure", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{err: errors.New("search failed")}})

		_, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "test"})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "search failed")
	})
}

func TestServer_handleSearchEntities(t *testing.T) {
	mockSearch := &mockSearchService{results: []domain.SearchResult{{OCRResultID: "r-9"}}}
	server := newTestServer(t, &Ports{Search: mockSearch})

	_, output, err := server.handleSearchEntities(context.Background(), nil,
		EntitySearchInput{Type: "email", Value: "jane"})

	require.NoError(t, err)
	assert.Equal(t, 1, output.Count)
	assert.Equal(t, domain.EntityEmail, mockSearch.gotType)
	assert.Equal(t, "jane", mockSearch.gotValue)
	assert.Equal(t, 10, mockSearch.gotLimit)
}

func TestServer_handleStatus(t *testing.T) {
	ctx := context.Background()

	t.Run("reports status", func(t *testing.T) {
		started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
		control := &mockControl{status: &domain.IngestionStatus{
			Name:             "doj",
			Enabled:          true,
			Running:          true,
			LeaseOwner:       "host-a:42",
			LastRunStartedAt: started,
			LastSummary:      &domain.RunSummary{FilesDiscovered: 4, Outcome: domain.RunCompleted},
		}}
		server := newTestServer(t, &Ports{Search: &mockSearchService{}, Control: control})

		_, out, err := server.handleStatus(ctx, nil, StatusInput{})

		require.NoError(t, err)
		assert.Equal(t, "doj", out.Name)
		assert.True(t, out.Running)
		assert.Equal(t, "host-a:42", out.LeaseOwner)
		require.NotNil(t, out.LastRunStartedAt)
		assert.Equal(t, started, *out.LastRunStartedAt)
		assert.Nil(t, out.LastRunCompletedAt)
		assert.Equal(t, 4, out.LastSummary.FilesDiscovered)
	})

	t.Run("unavailable without control port", func(t *testing.T) {
		server := newTestServer(t, &Ports{Search: &mockSearchService{}})

		_, _, err := server.handleStatus(ctx, nil, StatusInput{})

		assert.ErrorIs(t, err, errNoControl)
	})
}
