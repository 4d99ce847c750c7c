package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/pagesift/internal/adapters/driven/config/file"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults("/tmp/ps")

	assert.Equal(t, "doj", cfg.Ingestion.Name)
	assert.Equal(t, 60*time.Second, cfg.Ingestion.Poll)
	assert.Equal(t, 600*time.Second, cfg.Ingestion.RunInterval)
	assert.Equal(t, 120*time.Second, cfg.Ingestion.LeaseTTL)
	assert.True(t, cfg.Ingestion.SkipExisting)
	assert.Contains(t, cfg.Ingestion.Owner, ":")
	assert.Equal(t, filepath.Join("/tmp/ps", "storage"), cfg.Blobs.DocumentsDir)
	assert.Equal(t, []float64{1, 2}, cfg.OCR.Scales)
	assert.InDelta(t, 0.6, cfg.Search.FuzzyThreshold, 1e-9)
	assert.NoError(t, cfg.Validate())
	assert.False(t, cfg.Ensemble())
}

func TestLoad_StoreOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[ingestion]
name = "uploads"
poll_seconds = 10
lease_seconds = 45
workers = 4

[ocr]
engines = ["tesseract", "vision"]
scales = [1, 3]
`), 0600))
	store, err := file.NewConfigStore(dir)
	require.NoError(t, err)

	cfg, err := Load(dir, store)

	require.NoError(t, err)
	assert.Equal(t, "uploads", cfg.Ingestion.Name)
	assert.Equal(t, 10*time.Second, cfg.Ingestion.Poll)
	assert.Equal(t, 45*time.Second, cfg.Ingestion.LeaseTTL)
	assert.Equal(t, 4, cfg.Ingestion.Workers)
	assert.Equal(t, []float64{1, 3}, cfg.OCR.Scales)
	assert.True(t, cfg.Ensemble())
}

func TestLoad_EnvOverridesStore(t *testing.T) {
	t.Setenv("INGESTION_NAME", "doj-east")
	t.Setenv("POLL_SECONDS", "15")
	t.Setenv("SKIP_EXISTING", "false")
	t.Setenv("PAGESIFT_OCR_ENGINES", "vision, tesseract")

	cfg, err := Load(t.TempDir(), nil)

	require.NoError(t, err)
	assert.Equal(t, "doj-east", cfg.Ingestion.Name)
	assert.Equal(t, 15*time.Second, cfg.Ingestion.Poll)
	assert.False(t, cfg.Ingestion.SkipExisting)
	assert.Equal(t, []string{"vision", "tesseract"}, cfg.OCR.Engines)
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("POLL_SECONDS", "soon")

	cfg, err := Load(t.TempDir(), nil)

	require.NoError(t, err)
	assert.Equal(t, 60*time.Second, cfg.Ingestion.Poll)
}

func TestValidate_LeaseMustOutliveTick(t *testing.T) {
	cfg := Defaults(t.TempDir())
	cfg.Ingestion.LeaseTTL = cfg.Ingestion.Poll

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "must exceed poll interval")
}

func TestValidate_Postgres(t *testing.T) {
	cfg := Defaults(t.TempDir())
	cfg.Storage.Driver = "postgres"
	assert.Error(t, cfg.Validate())

	cfg.Storage.DSN = "postgres://localhost/pagesift"
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "mysql"
	assert.Error(t, cfg.Validate())
}

func TestValidate_Threshold(t *testing.T) {
	cfg := Defaults(t.TempDir())
	cfg.Search.FuzzyThreshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("PAGESIFT_TEST_DOTENV=from-file\n"), 0600))
	t.Cleanup(func() { os.Unsetenv("PAGESIFT_TEST_DOTENV") })

	LoadDotEnv(path)

	assert.Equal(t, "from-file", os.Getenv("PAGESIFT_TEST_DOTENV"))
}

func TestLoad_CrawlerExclusions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[crawler]
kind = "interstitial"
root_label = "Epstein Library"

[[crawler.exclusions]]
section_any = ["sealed"]
href_any = ["/restricted/"]
`), 0600))
	store, err := file.NewConfigStore(dir)
	require.NoError(t, err)

	cfg, err := Load(dir, store)

	require.NoError(t, err)
	assert.Equal(t, "interstitial", cfg.Crawler.Kind)
	assert.Equal(t, "Epstein Library", cfg.Crawler.RootLabel)
	require.Len(t, cfg.Crawler.Exclusions, 1)
	assert.Equal(t, []string{"sealed"}, cfg.Crawler.Exclusions[0].SectionAny)
	assert.Equal(t, []string{"/restricted/"}, cfg.Crawler.Exclusions[0].HrefAny)
	assert.Empty(t, cfg.Crawler.Exclusions[0].LinkAny)
}

func TestLoad_Hooks(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.toml"), []byte(`
[hooks]
enabled = ["log", "manifest"]
manifest_path = "/var/lib/pagesift/indexed.jsonl"
`), 0600))
	store, err := file.NewConfigStore(dir)
	require.NoError(t, err)

	cfg, err := Load(dir, store)

	require.NoError(t, err)
	assert.Equal(t, []string{"log", "manifest"}, cfg.Hooks.Enabled)
	assert.Equal(t, "/var/lib/pagesift/indexed.jsonl", cfg.Hooks.ManifestPath)
	assert.Equal(t, []string{"log"}, Defaults(dir).Hooks.Enabled)
}
