package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

func TestIngestCmd_PrintsSummary(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.summary.Errors = []string{"b.pdf: fetch failed"}

	out, err := execute("ingest")

	require.NoError(t, err)
	assert.Contains(t, out, "Outcome: completed")
	assert.Contains(t, out, "Discovered: 2")
	assert.Contains(t, out, "Errors (1):")
	assert.Contains(t, out, "b.pdf: fetch failed")
	assert.Equal(t, []string{"run"}, ts.ingestion.calls)
}

func TestIngestCmd_JSON(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	defer func() { ingestJSON = false }()

	out, err := execute("ingest", "--json")

	require.NoError(t, err)
	assert.Contains(t, out, `"filesProcessed": 2`)
	assert.Contains(t, out, `"outcome": "completed"`)
}

func TestIngestCmd_LeaseHeld(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.summary = nil
	ts.ingestion.err = domain.ErrLeaseHeld

	_, err := execute("ingest")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "another replica is running ingestion")
}

func TestIngestCmd_FailureStillPrintsSummary(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.summary.Outcome = domain.RunFailed
	ts.ingestion.err = errors.New("listing unreachable")

	out, err := execute("ingest")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestion failed")
	assert.Contains(t, out, "Outcome: failed")
}

func TestIngestCmd_NotConfigured(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	ingestionRunner = nil

	_, err := execute("ingest")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingestion not configured")
}

func TestDaemonCmd_StartsAndStops(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rootCmd.SetArgs([]string{"daemon"})
	defer rootCmd.SetArgs(nil)
	out := captureOutput()
	err := rootCmd.ExecuteContext(ctx)

	require.NoError(t, err)
	assert.Contains(t, out.String(), "Ingestion daemon running")
	assert.Contains(t, out.String(), "Stopping...")
	assert.Equal(t, []string{"start", "stop"}, ts.ingestion.calls)
}

func TestDaemonCmd_StartError(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.ingestion.err = errors.New("store closed")

	_, err := execute("daemon")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting ingestion")
}

func TestOCRPendingCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	defer func() { backfillLimit = 100 }()
	ts.maintenance.batch.Failed = 2
	ts.maintenance.batch.Errors = []string{"page p-9: engine timeout"}

	out, err := execute("ocr", "pending", "-n", "25")

	require.NoError(t, err)
	assert.Equal(t, 25, ts.maintenance.gotLimit)
	assert.Contains(t, out, "Pages with text: 3")
	assert.Contains(t, out, "Pages without text: 1")
	assert.Contains(t, out, "Pages still pending: 2")
	assert.Contains(t, out, "page p-9: engine timeout")
}

func TestOCRPendingCmd_DefaultLimit(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()

	_, err := execute("ocr", "pending")

	require.NoError(t, err)
	assert.Equal(t, 100, ts.maintenance.gotLimit)
}

func TestReindexCmd(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.maintenance.indexed = 7

	out, err := execute("reindex")

	require.NoError(t, err)
	assert.Contains(t, out, "Indexed 7 results.")
}

func TestReindexCmd_Error(t *testing.T) {
	ts, cleanup := setupTestServices()
	defer cleanup()
	ts.maintenance.err = errors.New("db locked")

	_, err := execute("reindex")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "reindex failed")
}
