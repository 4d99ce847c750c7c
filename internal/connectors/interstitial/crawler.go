// Package interstitial crawls a document library served behind a
// proof-of-work interstitial. It solves the challenge once per session,
// keeps the verification cookies, and walks the library's landing page
// and sub-pages capturing the section each link sits in.
package interstitial

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/net/html"
	"golang.org/x/net/publicsuffix"

	"github.com/custodia-labs/pagesift/internal/connectors/web"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/logger"
	"github.com/custodia-labs/pagesift/internal/textproc"
)

// Ensure Crawler implements the interface.
var _ driven.Crawler = (*Crawler)(nil)

// Name is the crawler identifier.
const Name = "interstitial"

const (
	defaultUserAgent   = "curl/8.5.0"
	defaultRootLabel   = "Library"
	defaultSection     = "General"
	maxDescriptionRune = 200
)

// Extensions lists the file types the crawler collects.
var Extensions = web.NewExtSet(".pdf", ".jpg", ".jpeg", ".png", ".tiff", ".tif", ".doc", ".docx")

var sectionClass = regexp.MustCompile(`(?i)(content|document|file|download|view|field|block)`)

// Config configures an interstitial crawler.
type Config struct {
	// BaseURL is the library landing page.
	BaseURL string

	// PathPrefix selects sub-pages linked from the landing page.
	PathPrefix string

	// RootLabel names the landing page in section labels.
	RootLabel string

	Source            string
	UserAgent         string
	RequestsPerSecond float64
	Rules             []ExclusionRule

	// HTTPClient overrides the default cookie-jar client.
	HTTPClient *http.Client
}

// Crawler discovers files from a challenge-protected library.
type Crawler struct {
	base      string
	prefix    string
	rootLabel string
	source    string
	rules     []ExclusionRule
	client    *web.Client
}

// New creates an interstitial crawler. Nil Rules use DefaultExclusionRules.
func New(cfg Config) (*Crawler, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, fmt.Errorf("interstitial crawler: base url required: %w", domain.ErrInvalidInput)
	}

	hc := cfg.HTTPClient
	if hc == nil {
		jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
		if err != nil {
			return nil, fmt.Errorf("cookie jar: %w", err)
		}
		hc = &http.Client{Timeout: web.DefaultTimeout, Jar: jar}
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultExclusionRules()
	}
	label := cfg.RootLabel
	if label == "" {
		label = defaultRootLabel
	}

	return &Crawler{
		base:      base,
		prefix:    cfg.PathPrefix,
		rootLabel: label,
		source:    cfg.Source,
		rules:     rules,
		client: web.NewClient(web.Options{
			UserAgent:         ua,
			Accept:            "*/*",
			RequestsPerSecond: cfg.RequestsPerSecond,
			HTTPClient:        hc,
		}),
	}, nil
}

// Name returns the crawler identifier.
func (c *Crawler) Name() string {
	return Name
}

// FetchHTML returns the body of url. If the response is an interstitial
// challenge it is solved, the verification redirect followed, and the
// request retried once. An unsolvable challenge returns its own body.
func (c *Crawler) FetchHTML(ctx context.Context, url string) (string, error) {
	page, err := c.client.GetPage(ctx, url)
	if err != nil {
		return "", err
	}
	if !IsChallenge(page.Status, page.Body) {
		return page.Body, nil
	}

	ch, ok := ParseChallenge(page.Body)
	if !ok {
		logger.Warn("Interstitial detected at %s but token or proof could not be parsed", url)
		return page.Body, nil
	}

	logger.Info("Interstitial detected; performing verification handshake")
	var verify struct {
		Location string `json:"location"`
	}
	if _, err := c.client.PostJSON(ctx, web.Resolve(url, VerifyPath), ch.Payload(), &verify); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logger.Warn("Interstitial verification failed: %v", err)
	}
	if verify.Location != "" {
		if _, err := c.client.GetPage(ctx, web.Resolve(url, verify.Location)); err != nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
	}

	page, err = c.client.GetPage(ctx, url)
	if err != nil {
		return "", err
	}
	return page.Body, nil
}

type libraryPage struct {
	url   string
	label string
}

// DiscoverFiles walks the landing page and every sub-page under the path
// prefix. Failures on individual pages are logged and skipped.
func (c *Crawler) DiscoverFiles(ctx context.Context) ([]domain.FileCandidate, error) {
	logger.Info("Crawling %s", c.base)

	root, err := c.FetchHTML(ctx, c.base)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error("Error fetching %s: %v", c.base, err)
		return []domain.FileCandidate{}, nil
	}
	rootDoc, err := web.ParseHTML(root)
	if err != nil {
		logger.Error("Error parsing %s: %v", c.base, err)
		return []domain.FileCandidate{}, nil
	}

	d := &discovery{crawler: c, seen: map[string]bool{}}
	for _, p := range c.libraryPages(rootDoc) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		logger.Debug("Scanning library page: %s", p.url)

		doc := rootDoc
		if p.url != c.base {
			body, err := c.FetchHTML(ctx, p.url)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				logger.Warn("Skipping %s: %v", p.url, err)
				continue
			}
			if doc, err = web.ParseHTML(body); err != nil {
				logger.Warn("Skipping %s: %v", p.url, err)
				continue
			}
		}
		d.scan(doc, p)
	}

	logger.Info("Discovered %d files (%d excluded)", len(d.files), d.excluded)
	return d.files, nil
}

// libraryPages lists the landing page followed by sub-pages whose href
// starts with the path prefix, de-duplicated in order.
func (c *Crawler) libraryPages(root *html.Node) []libraryPage {
	pages := []libraryPage{{url: c.base, label: c.rootLabel}}
	if c.prefix == "" {
		return pages
	}
	seen := map[string]bool{c.base: true}
	for _, a := range web.Anchors(root) {
		if !strings.HasPrefix(a.Href, c.prefix) {
			continue
		}
		full := web.Resolve(c.base, a.Href)
		if full == "" || seen[full] {
			continue
		}
		seen[full] = true
		pages = append(pages, libraryPage{url: full, label: c.labelFor(a.Href)})
	}
	return pages
}

// labelFor turns "/prefix/court-records" into "Court Records".
func (c *Crawler) labelFor(href string) string {
	rest := strings.TrimPrefix(href, c.prefix)
	words := strings.Fields(strings.ReplaceAll(strings.Trim(rest, "/"), "-", " "))
	if len(words) == 0 {
		words = strings.Fields(strings.ReplaceAll(strings.Trim(c.prefix, "/"), "-", " "))
	}
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

// FetchFile downloads url to destPath.
func (c *Crawler) FetchFile(ctx context.Context, url, destPath string) (bool, error) {
	return c.client.Download(ctx, url, destPath)
}

// Close releases resources.
func (c *Crawler) Close() error {
	return nil
}

// discovery accumulates candidates across pages.
type discovery struct {
	crawler  *Crawler
	seen     map[string]bool
	files    []domain.FileCandidate
	excluded int
}

// scan collects links inside section containers first, so they carry the
// section heading, then sweeps the whole page for the rest.
func (d *discovery) scan(doc *html.Node, p libraryPage) {
	sections := web.FindAll(doc, func(n *html.Node) bool {
		return web.IsElement(n, "div", "section", "article") && sectionClass.MatchString(web.Attr(n, "class"))
	})
	for _, sec := range sections {
		name := p.label
		if h := web.FindFirst(sec, func(n *html.Node) bool {
			return web.IsElement(n, "h1", "h2", "h3", "h4", "h5")
		}); h != nil {
			if heading := web.Text(h); heading != "" {
				name = p.label + " - " + heading
			}
		}
		for _, a := range web.Anchors(sec) {
			desc := a.Text
			if web.IsElement(a.Node.Parent, "li", "p", "div") {
				desc = web.Text(a.Node.Parent)
			}
			d.add(p.url, a, name, desc)
		}
	}
	for _, a := range web.Anchors(doc) {
		d.add(p.url, a, p.label, a.Text)
	}
}

func (d *discovery) add(pageURL string, a web.Anchor, section, description string) {
	full := web.Resolve(pageURL, a.Href)
	if full == "" || d.seen[full] || !Extensions.Allows(full) {
		return
	}
	if excluded(d.crawler.rules, section, a.Text, a.Href) {
		d.seen[full] = true
		d.excluded++
		logger.Debug("Excluded %s (section %q)", full, section)
		return
	}
	d.seen[full] = true

	if section == "" {
		section = defaultSection
	}
	if description == "" {
		description = a.Text
	}
	name := web.BaseName(full)
	d.files = append(d.files, domain.FileCandidate{
		URL:         full,
		FileName:    name,
		FileType:    domain.FileTypeOf(name),
		Section:     section,
		LinkText:    a.Text,
		Description: textproc.TruncateRunes(description, maxDescriptionRune),
		Source:      d.crawler.source,
	})
}

func capitalize(w string) string {
	rs := []rune(strings.ToLower(w))
	if len(rs) > 0 {
		rs[0] = unicode.ToUpper(rs[0])
	}
	return string(rs)
}
