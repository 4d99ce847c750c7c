package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput points the root command at a fresh buffer.
func captureOutput() *bytes.Buffer {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	return buf
}

func TestVersionCmd(t *testing.T) {
	old := version
	defer func() { version = old }()
	SetVersion("test-version")

	out, err := execute("version")

	require.NoError(t, err)
	assert.Contains(t, out, "pagesift version test-version")
}

func TestVersionCmd_SkipsBootstrap(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	searchService = nil
	called := false
	bootstrap = func(context.Context, string) (*Services, func(), error) {
		called = true
		return nil, nil, errors.New("unexpected")
	}

	_, err := execute("version")

	require.NoError(t, err)
	assert.False(t, called)
}

func TestRootCmd_PersistentFlags(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, flag)
	assert.Equal(t, "v", flag.Shorthand)

	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}

func TestRootCmd_BootstrapsOnFirstCommand(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer func() { configHome = "" }()
	searchService = nil

	var gotHome string
	released := false
	bootstrap = func(_ context.Context, home string) (*Services, func(), error) {
		gotHome = home
		return &Services{
			Search:      ts.search,
			Control:     ts.ingestion,
			Runner:      ts.ingestion,
			Maintenance: ts.maintenance,
		}, func() { released = true }, nil
	}

	out, err := execute("--config", "/tmp/pagesift-test", "search", "invoice")

	require.NoError(t, err)
	assert.Equal(t, "/tmp/pagesift-test", gotHome)
	assert.Contains(t, out, "Results:")
	assert.True(t, released)
}

func TestRootCmd_BootstrapError(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	searchService = nil
	bootstrap = func(context.Context, string) (*Services, func(), error) {
		return nil, nil, errors.New("config.toml: bad syntax")
	}

	_, err := execute("reindex")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "initialising")
}

func TestRootCmd_HasCommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"search", "entities", "browse", "daemon", "ingest", "ocr", "reindex", "control", "mcp", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestBrowseCmd_ServiceNotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	searchService = nil

	_, err := execute("browse")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestMCPServeCmd_ServiceNotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	searchService = nil

	_, err := execute("mcp", "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestMCPServeCmd_PortFlag(t *testing.T) {
	flag := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, flag)
	assert.Equal(t, "p", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)
}
