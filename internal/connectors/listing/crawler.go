// Package listing crawls generic file hosts that expose a JSON manifest or
// an HTML index of downloadable files. When no listing endpoint answers,
// it probes common file naming patterns.
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/pagesift/internal/connectors/web"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/logger"
)

// Ensure Crawler implements the interface.
var _ driven.Crawler = (*Crawler)(nil)

// Name is the crawler identifier.
const Name = "listing"

// DefaultProbeLimit is the highest index tried per probe pattern.
const DefaultProbeLimit = 99

// probeMissRun stops a probe series after this many consecutive misses.
const probeMissRun = 5

// Extensions lists the file types the crawler collects.
var Extensions = web.NewExtSet(".pdf", ".jpg", ".jpeg", ".png", ".tiff", ".tif", ".bmp")

var (
	listingPaths = []string{
		"/api/all-files", "/all", "/all.json",
		"", "/", "/index", "/index.html", "/index.json",
		"/manifest.json", "/files.json", "/list.json",
		"/api", "/api/list", "/api/files",
		"/files", "/list",
	}
	listKeys  = []string{"files", "items", "data", "results"}
	hrefKeys  = []string{"key", "url", "href", "path"}
	nameKeys  = []string{"filename", "name"}
	probeStem = []string{"index", "file", "document", "page"}
	probeExts = []string{"pdf", "jpg", "jpeg", "png"}
)

// Config configures a listing crawler.
type Config struct {
	BaseURL           string
	Source            string
	UserAgent         string
	RequestsPerSecond float64
	ProbeLimit        int
	HTTPClient        *http.Client
}

// Crawler discovers files from a listing endpoint.
type Crawler struct {
	root       string
	source     string
	probeLimit int
	client     *web.Client
}

// New creates a listing crawler rooted at cfg.BaseURL.
func New(cfg Config) (*Crawler, error) {
	root := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if root == "" {
		return nil, fmt.Errorf("listing crawler: base url required: %w", domain.ErrInvalidInput)
	}
	limit := cfg.ProbeLimit
	if limit <= 0 {
		limit = DefaultProbeLimit
	}
	return &Crawler{
		root:       root,
		source:     cfg.Source,
		probeLimit: limit,
		client: web.NewClient(web.Options{
			UserAgent:         cfg.UserAgent,
			Accept:            "application/json,text/html;q=0.9,*/*;q=0.8",
			RequestsPerSecond: cfg.RequestsPerSecond,
			HTTPClient:        cfg.HTTPClient,
		}),
	}, nil
}

// Name returns the crawler identifier.
func (c *Crawler) Name() string {
	return Name
}

// DiscoverFiles tries each listing endpoint in order and returns the files
// of the first one that yields any. If none does, common file names are
// probed. Network failures degrade to an empty list.
func (c *Crawler) DiscoverFiles(ctx context.Context) ([]domain.FileCandidate, error) {
	for _, p := range listingPaths {
		page, err := c.client.GetPage(ctx, c.root+p)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Debug("Listing candidate %s failed: %v", c.root+p, err)
			continue
		}
		if page.Status != http.StatusOK {
			continue
		}
		if files := c.parseListing(page); len(files) > 0 {
			logger.Info("Discovered %d files from %s", len(files), c.root+p)
			return dedupe(files), nil
		}
	}

	files, err := c.probe(ctx)
	if err != nil {
		return nil, err
	}
	logger.Info("Discovered %d files by probing %s", len(files), c.root)
	return files, nil
}

// FetchFile downloads url to destPath.
func (c *Crawler) FetchFile(ctx context.Context, url, destPath string) (bool, error) {
	return c.client.Download(ctx, url, destPath)
}

// Close releases resources.
func (c *Crawler) Close() error {
	return nil
}

func (c *Crawler) parseListing(page *web.Page) []domain.FileCandidate {
	body := strings.TrimSpace(page.Body)
	looksJSON := strings.HasPrefix(body, "{") || strings.HasPrefix(body, "[")
	if strings.Contains(strings.ToLower(page.ContentType), "application/json") || looksJSON {
		var data any
		if err := json.Unmarshal([]byte(body), &data); err == nil {
			if files := c.fromJSON(data); len(files) > 0 {
				return files
			}
		}
	}
	return c.fromHTML(body)
}

// fromJSON accepts a list of strings or objects, an object wrapping such a
// list, or a name to URL map.
func (c *Crawler) fromJSON(data any) []domain.FileCandidate {
	var out []domain.FileCandidate
	switch v := data.(type) {
	case []any:
		for _, item := range v {
			out = c.appendItem(out, item)
		}
	case map[string]any:
		for _, k := range listKeys {
			if items, ok := v[k].([]any); ok {
				for _, item := range items {
					out = c.appendItem(out, item)
				}
			}
		}
		if len(out) == 0 {
			keys := make([]string, 0, len(v))
			for k := range v {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				if s, ok := v[k].(string); ok {
					out = c.appendItem(out, s)
				}
			}
		}
	}
	return out
}

func (c *Crawler) appendItem(out []domain.FileCandidate, item any) []domain.FileCandidate {
	switch v := item.(type) {
	case string:
		if !Extensions.Allows(v) {
			return out
		}
		return append(out, c.candidate(web.Resolve(c.root+"/", v), web.BaseName(v)))
	case map[string]any:
		href := firstString(v, hrefKeys)
		name := firstString(v, nameKeys)
		if name == "" {
			name = web.BaseName(href)
		}
		if href == "" || name == "" || !Extensions.Allows(name) {
			return out
		}
		return append(out, c.candidate(web.Resolve(c.root+"/", strings.TrimLeft(href, "/")), name))
	}
	return out
}

func (c *Crawler) fromHTML(body string) []domain.FileCandidate {
	doc, err := web.ParseHTML(body)
	if err != nil {
		return nil
	}
	var out []domain.FileCandidate
	for _, a := range web.Anchors(doc) {
		if !Extensions.Allows(a.Href) {
			continue
		}
		cand := c.candidate(web.Resolve(c.root+"/", a.Href), web.BaseName(a.Href))
		cand.LinkText = a.Text
		out = append(out, cand)
	}
	return out
}

// probe HEADs {stem}{n}.{ext} for each stem and extension.
func (c *Crawler) probe(ctx context.Context) ([]domain.FileCandidate, error) {
	var out []domain.FileCandidate
	for _, stem := range probeStem {
		for _, ext := range probeExts {
			misses := 0
			for i := 1; i <= c.probeLimit && misses < probeMissRun; i++ {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
				name := stem + strconv.Itoa(i) + "." + ext
				url := c.root + "/" + name
				if !c.client.Exists(ctx, url) {
					misses++
					continue
				}
				misses = 0
				out = append(out, c.candidate(url, name))
			}
		}
	}
	return out, nil
}

func (c *Crawler) candidate(url, name string) domain.FileCandidate {
	return domain.FileCandidate{
		URL:      url,
		FileName: name,
		FileType: domain.FileTypeOf(name),
		Source:   c.source,
	}
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func dedupe(in []domain.FileCandidate) []domain.FileCandidate {
	seen := make(map[string]bool, len(in))
	out := in[:0]
	for _, f := range in {
		if seen[f.URL] {
			continue
		}
		seen[f.URL] = true
		out = append(out, f)
	}
	return out
}
