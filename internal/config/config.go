// Package config assembles the typed runtime configuration from defaults,
// the TOML config store, an optional .env file and the process environment,
// in that order of precedence (later wins).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// StorageConfig selects the relational store.
type StorageConfig struct {
	// Driver is "sqlite" (single host) or "postgres" (shared by replicas).
	Driver string
	// DSN is the postgres connection string; unused for sqlite.
	DSN string
	// DataDir holds the sqlite database.
	DataDir string
}

// BlobConfig locates stored originals and page images.
type BlobConfig struct {
	DocumentsDir string
	ImagesDir    string
	WorkDir      string

	// MirrorBucket enables the GCS mirror when set.
	MirrorBucket          string
	MirrorDocumentsPrefix string
	MirrorImagesPrefix    string
}

// IngestionConfig drives the orchestrator.
type IngestionConfig struct {
	Name         string
	Owner        string
	Poll         time.Duration
	RunInterval  time.Duration
	LeaseTTL     time.Duration
	SkipExisting bool
	Workers      int
	// Limit caps files per run; zero means unlimited.
	Limit int
	// StorageOnlyCollections are stored but never converted or OCR'd.
	StorageOnlyCollections []string
	HistoryKeep            int
}

// CrawlerConfig selects and configures the crawler.
type CrawlerConfig struct {
	// Kind is "listing", "interstitial" or "dropdir".
	Kind              string
	BaseURL           string
	PathPrefix        string
	Source            string
	UserAgent         string
	RequestsPerSecond float64
	DropDir           string
	ProbeLimit        int
	// RootLabel names the landing page in interstitial section labels.
	RootLabel string
	// Exclusions replace the interstitial default rules when non-nil.
	Exclusions []ExclusionConfig
}

// ExclusionConfig is one [[crawler.exclusions]] table. A candidate is
// dropped when its section names one of SectionAny and one of the other
// lists also matches.
type ExclusionConfig struct {
	SectionAny  []string
	SectionAlso []string
	LinkAny     []string
	HrefAny     []string
}

// OCRConfig configures preprocessing and engine dispatch.
type OCRConfig struct {
	// Engines lists engines to run; more than one implies ensemble mode.
	Engines     []string
	BaseWeight  float64
	Languages   []string
	MaxVariants int
	Scales      []float64
	Deskew      bool
	DPI         int
	// VisionCredentials is a path or inline JSON; empty uses ambient credentials.
	VisionCredentials string
}

// SearchConfig holds search defaults.
type SearchConfig struct {
	DefaultLimit    int
	FuzzyThreshold  float64
	FuzzyCandidates int
}

// EmbeddingConfig enables semantic indexing when Provider is set.
type EmbeddingConfig struct {
	// Provider is "", "ollama" or "openai".
	Provider string
	BaseURL  string
	Model    string
	APIKey   string
}

// VectorConfig selects the vector index.
type VectorConfig struct {
	// Provider is "memory" or "qdrant".
	Provider   string
	URL        string
	APIKey     string
	Collection string
}

// HooksConfig lists the document hooks run after indexing.
type HooksConfig struct {
	// Enabled names hooks in run order ("log", "manifest").
	Enabled []string
	// ManifestPath is the JSON-lines file the manifest hook appends to.
	ManifestPath string
}

// Config is the complete runtime configuration.
type Config struct {
	Home      string
	LogFormat string
	Storage   StorageConfig
	Blobs     BlobConfig
	Ingestion IngestionConfig
	Crawler   CrawlerConfig
	OCR       OCRConfig
	Search    SearchConfig
	Embedding EmbeddingConfig
	Vector    VectorConfig
	Hooks     HooksConfig
}

// DefaultHome returns $PAGESIFT_HOME or ~/.pagesift.
func DefaultHome() string {
	if h := os.Getenv("PAGESIFT_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".pagesift"
	}
	return filepath.Join(home, ".pagesift")
}

// Defaults returns the built-in configuration rooted at home.
func Defaults(home string) *Config {
	host, _ := os.Hostname()
	return &Config{
		Home:      home,
		LogFormat: "console",
		Storage: StorageConfig{
			Driver:  "sqlite",
			DataDir: filepath.Join(home, "data"),
		},
		Blobs: BlobConfig{
			DocumentsDir:          filepath.Join(home, "storage"),
			ImagesDir:             filepath.Join(home, "images"),
			WorkDir:               filepath.Join(home, "work"),
			MirrorDocumentsPrefix: "files/",
			MirrorImagesPrefix:    "images/",
		},
		Ingestion: IngestionConfig{
			Name:         "doj",
			Owner:        fmt.Sprintf("%s:%d", host, os.Getpid()),
			Poll:         60 * time.Second,
			RunInterval:  600 * time.Second,
			LeaseTTL:     120 * time.Second,
			SkipExisting: true,
			Workers:      2,
			HistoryKeep:  50,
		},
		Crawler: CrawlerConfig{
			Kind:              "listing",
			PathPrefix:        "/epstein/",
			Source:            "web",
			UserAgent:         "pagesift-ocr-ingestor/1.0",
			RequestsPerSecond: 2,
			ProbeLimit:        99,
		},
		OCR: OCRConfig{
			Engines:     []string{"tesseract"},
			BaseWeight:  0.3,
			Languages:   []string{"eng"},
			MaxVariants: 8,
			Scales:      []float64{1, 2},
			Deskew:      true,
			DPI:         300,
		},
		Search: SearchConfig{
			DefaultLimit:    20,
			FuzzyThreshold:  0.6,
			FuzzyCandidates: 5000,
		},
		Vector: VectorConfig{
			Provider:   "memory",
			Collection: "pagesift",
		},
		Hooks: HooksConfig{
			Enabled:      []string{"log"},
			ManifestPath: filepath.Join(home, "indexed.jsonl"),
		},
	}
}

// LoadDotEnv loads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(paths ...string) {
	if len(paths) == 0 {
		_ = godotenv.Load()
		return
	}
	for _, p := range paths {
		_ = godotenv.Load(p)
	}
}

// Load builds the configuration from defaults, the store and the environment.
// store may be nil.
func Load(home string, store driven.ConfigStore) (*Config, error) {
	cfg := Defaults(home)
	if store != nil {
		applyStore(cfg, store)
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Ingestion.Name == "" {
		errs = append(errs, errors.New("ingestion.name must not be empty"))
	}
	if c.Ingestion.Poll <= 0 {
		errs = append(errs, errors.New("ingestion.poll_seconds must be positive"))
	}
	// The lease is renewed once per poll tick, so it must outlive a tick.
	if c.Ingestion.LeaseTTL <= c.Ingestion.Poll {
		errs = append(errs, fmt.Errorf("ingestion.lease_seconds (%s) must exceed poll interval (%s)",
			c.Ingestion.LeaseTTL, c.Ingestion.Poll))
	}
	if c.Ingestion.Workers < 1 {
		errs = append(errs, errors.New("ingestion.workers must be at least 1"))
	}
	switch c.Storage.Driver {
	case "sqlite":
	case "postgres":
		if c.Storage.DSN == "" {
			errs = append(errs, errors.New("storage.dsn is required for postgres"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage.driver %q", c.Storage.Driver))
	}
	if len(c.OCR.Engines) == 0 {
		errs = append(errs, errors.New("ocr.engines must list at least one engine"))
	}
	if c.OCR.MaxVariants < 1 {
		errs = append(errs, errors.New("ocr.max_variants must be at least 1"))
	}
	if c.Search.FuzzyThreshold < 0 || c.Search.FuzzyThreshold > 1 {
		errs = append(errs, errors.New("search.fuzzy_threshold must be within [0, 1]"))
	}
	return errors.Join(errs...)
}

// Ensemble reports whether more than one OCR engine is configured.
func (c *Config) Ensemble() bool {
	return len(c.OCR.Engines) > 1
}

func applyStore(cfg *Config, s driven.ConfigStore) {
	setString(&cfg.LogFormat, s, "log.format")

	setString(&cfg.Storage.Driver, s, "storage.driver")
	setString(&cfg.Storage.DSN, s, "storage.dsn")
	setString(&cfg.Storage.DataDir, s, "storage.data_dir")

	setString(&cfg.Blobs.DocumentsDir, s, "blobs.documents_dir")
	setString(&cfg.Blobs.ImagesDir, s, "blobs.images_dir")
	setString(&cfg.Blobs.WorkDir, s, "blobs.work_dir")
	setString(&cfg.Blobs.MirrorBucket, s, "blobs.mirror_bucket")
	setString(&cfg.Blobs.MirrorDocumentsPrefix, s, "blobs.mirror_documents_prefix")
	setString(&cfg.Blobs.MirrorImagesPrefix, s, "blobs.mirror_images_prefix")

	setString(&cfg.Ingestion.Name, s, "ingestion.name")
	setString(&cfg.Ingestion.Owner, s, "ingestion.owner")
	setDuration(&cfg.Ingestion.Poll, s, "ingestion.poll_seconds")
	setDuration(&cfg.Ingestion.RunInterval, s, "ingestion.run_interval_seconds")
	setDuration(&cfg.Ingestion.LeaseTTL, s, "ingestion.lease_seconds")
	setBool(&cfg.Ingestion.SkipExisting, s, "ingestion.skip_existing")
	setInt(&cfg.Ingestion.Workers, s, "ingestion.workers")
	setInt(&cfg.Ingestion.Limit, s, "ingestion.limit")
	setInt(&cfg.Ingestion.HistoryKeep, s, "ingestion.history_keep")
	setStrings(&cfg.Ingestion.StorageOnlyCollections, s, "ingestion.storage_only_collections")

	setString(&cfg.Crawler.Kind, s, "crawler.kind")
	setString(&cfg.Crawler.BaseURL, s, "crawler.base_url")
	setString(&cfg.Crawler.PathPrefix, s, "crawler.path_prefix")
	setString(&cfg.Crawler.Source, s, "crawler.source")
	setString(&cfg.Crawler.UserAgent, s, "crawler.user_agent")
	setFloat(&cfg.Crawler.RequestsPerSecond, s, "crawler.requests_per_second")
	setString(&cfg.Crawler.DropDir, s, "crawler.drop_dir")
	setInt(&cfg.Crawler.ProbeLimit, s, "crawler.probe_limit")
	setString(&cfg.Crawler.RootLabel, s, "crawler.root_label")
	if v, ok := s.Get("crawler.exclusions"); ok {
		cfg.Crawler.Exclusions = parseExclusions(v)
	}

	setStrings(&cfg.OCR.Engines, s, "ocr.engines")
	setFloat(&cfg.OCR.BaseWeight, s, "ocr.base_weight")
	setStrings(&cfg.OCR.Languages, s, "ocr.languages")
	setInt(&cfg.OCR.MaxVariants, s, "ocr.max_variants")
	if v := s.GetFloatSlice("ocr.scales"); len(v) > 0 {
		cfg.OCR.Scales = v
	}
	setBool(&cfg.OCR.Deskew, s, "ocr.deskew")
	setInt(&cfg.OCR.DPI, s, "ocr.dpi")
	setString(&cfg.OCR.VisionCredentials, s, "ocr.vision_credentials")

	setInt(&cfg.Search.DefaultLimit, s, "search.default_limit")
	setFloat(&cfg.Search.FuzzyThreshold, s, "search.fuzzy_threshold")
	setInt(&cfg.Search.FuzzyCandidates, s, "search.fuzzy_candidates")

	setString(&cfg.Embedding.Provider, s, "embedding.provider")
	setString(&cfg.Embedding.BaseURL, s, "embedding.base_url")
	setString(&cfg.Embedding.Model, s, "embedding.model")
	setString(&cfg.Embedding.APIKey, s, "embedding.api_key")

	setString(&cfg.Vector.Provider, s, "vector.provider")
	setString(&cfg.Vector.URL, s, "vector.url")
	setString(&cfg.Vector.APIKey, s, "vector.api_key")
	setString(&cfg.Vector.Collection, s, "vector.collection")

	if _, ok := s.Get("hooks.enabled"); ok {
		cfg.Hooks.Enabled = s.GetStringSlice("hooks.enabled")
	}
	setString(&cfg.Hooks.ManifestPath, s, "hooks.manifest_path")
}

func applyEnv(cfg *Config) {
	cfg.Ingestion.Name = envString("INGESTION_NAME", cfg.Ingestion.Name)
	cfg.Ingestion.Owner = envString("INGESTION_OWNER", cfg.Ingestion.Owner)
	cfg.Ingestion.Poll = envSeconds("POLL_SECONDS", cfg.Ingestion.Poll)
	cfg.Ingestion.RunInterval = envSeconds("RUN_INTERVAL_SECONDS", cfg.Ingestion.RunInterval)
	cfg.Ingestion.LeaseTTL = envSeconds("LEASE_SECONDS", cfg.Ingestion.LeaseTTL)
	cfg.Ingestion.SkipExisting = envBool("SKIP_EXISTING", cfg.Ingestion.SkipExisting)
	cfg.Ingestion.Workers = envInt("PAGESIFT_WORKERS", cfg.Ingestion.Workers)

	cfg.LogFormat = envString("PAGESIFT_LOG_FORMAT", cfg.LogFormat)
	cfg.Storage.Driver = envString("PAGESIFT_DB_DRIVER", cfg.Storage.Driver)
	cfg.Storage.DSN = envString("PAGESIFT_DB_DSN", cfg.Storage.DSN)
	cfg.Blobs.MirrorBucket = envString("PAGESIFT_MIRROR_BUCKET", cfg.Blobs.MirrorBucket)
	cfg.Crawler.Kind = envString("PAGESIFT_CRAWLER", cfg.Crawler.Kind)
	cfg.Crawler.BaseURL = envString("PAGESIFT_BASE_URL", cfg.Crawler.BaseURL)
	if v := os.Getenv("PAGESIFT_OCR_ENGINES"); v != "" {
		cfg.OCR.Engines = splitList(v)
	}
	cfg.OCR.VisionCredentials = envString("GOOGLE_APPLICATION_CREDENTIALS", cfg.OCR.VisionCredentials)
	cfg.Embedding.Provider = envString("PAGESIFT_EMBEDDING_PROVIDER", cfg.Embedding.Provider)
	cfg.Embedding.APIKey = envString("OPENAI_API_KEY", cfg.Embedding.APIKey)
	cfg.Vector.Provider = envString("PAGESIFT_VECTOR_PROVIDER", cfg.Vector.Provider)
	cfg.Vector.URL = envString("QDRANT_URL", cfg.Vector.URL)
	cfg.Vector.APIKey = envString("QDRANT_API_KEY", cfg.Vector.APIKey)
}

// parseExclusions reads an array of tables. Malformed entries are skipped.
func parseExclusions(v any) []ExclusionConfig {
	tables, ok := v.([]any)
	if !ok {
		return nil
	}
	rules := make([]ExclusionConfig, 0, len(tables))
	for _, t := range tables {
		m, ok := t.(map[string]any)
		if !ok {
			continue
		}
		rules = append(rules, ExclusionConfig{
			SectionAny:  stringList(m["section_any"]),
			SectionAlso: stringList(m["section_also"]),
			LinkAny:     stringList(m["link_any"]),
			HrefAny:     stringList(m["href_any"]),
		})
	}
	return rules
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func setString(dst *string, s driven.ConfigStore, key string) {
	if v := s.GetString(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, s driven.ConfigStore, key string) {
	if _, ok := s.Get(key); ok {
		*dst = s.GetInt(key)
	}
}

func setFloat(dst *float64, s driven.ConfigStore, key string) {
	if _, ok := s.Get(key); ok {
		*dst = s.GetFloat(key)
	}
}

func setBool(dst *bool, s driven.ConfigStore, key string) {
	if _, ok := s.Get(key); ok {
		*dst = s.GetBool(key)
	}
}

func setDuration(dst *time.Duration, s driven.ConfigStore, key string) {
	if d := s.GetDuration(key); d > 0 {
		*dst = d
	}
}

func setStrings(dst *[]string, s driven.ConfigStore, key string) {
	if v := s.GetStringSlice(key); len(v) > 0 {
		*dst = v
	}
}

func envString(name, def string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	return def
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envSeconds(name string, def time.Duration) time.Duration {
	n := envInt(name, -1)
	if n <= 0 {
		return def
	}
	return time.Duration(n) * time.Second
}

func envBool(name string, def bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	switch v {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	}
	return def
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
