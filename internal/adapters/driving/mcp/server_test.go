package mcp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_RequiresSearch(t *testing.T) {
	server, err := NewServer(&Ports{Control: &mockControl{}})

	require.Error(t, err)
	assert.Nil(t, server)
	assert.ErrorIs(t, err, ErrMissingSearchService)
}

func TestNewServer_SearchOnly(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{}})

	require.NoError(t, err)
	require.NotNil(t, server)
	assert.NotNil(t, server.Handler())
}

func TestPorts_Validate(t *testing.T) {
	assert.ErrorIs(t, (&Ports{}).Validate(), ErrMissingSearchService)
	assert.NoError(t, (&Ports{Search: &mockSearchService{}}).Validate())
	assert.NoError(t, (&Ports{Search: &mockSearchService{}, Control: &mockControl{}}).Validate())
}

func TestRunHTTP_StopsOnCancel(t *testing.T) {
	server, err := NewServer(&Ports{Search: &mockSearchService{}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, server.RunHTTP(ctx, "127.0.0.1:0"))
}
