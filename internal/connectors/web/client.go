// Package web holds the HTTP plumbing shared by the site crawlers:
// a rate-limited client with default headers and a download helper that
// never leaves a partial file under its final name.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/pagesift/internal/logger"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 60 * time.Second

	// DefaultRate spaces requests to two per second.
	DefaultRate = 2.0

	// ProbeTimeout bounds HEAD existence checks.
	ProbeTimeout = 5 * time.Second

	// maxPageBytes caps listing and HTML bodies read into memory.
	maxPageBytes = 32 << 20

	partSuffix = ".part"
)

// Options configures a Client.
type Options struct {
	UserAgent         string
	Accept            string
	RequestsPerSecond float64
	Timeout           time.Duration

	// Jar persists cookies between requests when set.
	Jar http.CookieJar

	// HTTPClient overrides the underlying client. Timeout and Jar are
	// ignored when it is set.
	HTTPClient *http.Client
}

// Client is a polite HTTP client: every request waits on a shared token
// bucket and carries the configured headers.
type Client struct {
	http    *http.Client
	limiter *rate.Limiter
	headers http.Header
}

// NewClient creates a client from opts.
func NewClient(opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout, Jar: opts.Jar}
	}
	rps := opts.RequestsPerSecond
	if rps <= 0 {
		rps = DefaultRate
	}
	headers := http.Header{}
	if opts.UserAgent != "" {
		headers.Set("User-Agent", opts.UserAgent)
	}
	if opts.Accept != "" {
		headers.Set("Accept", opts.Accept)
	}
	return &Client{
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		headers: headers,
	}
}

// Do waits for the rate limiter, applies default headers and sends req.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	for k, vs := range c.headers {
		if req.Header.Get(k) == "" {
			for _, v := range vs {
				req.Header.Add(k, v)
			}
		}
	}
	return c.http.Do(req)
}

// Page is a fetched text response.
type Page struct {
	Status      int
	ContentType string
	Body        string
}

// GetPage fetches url and reads its body as text.
func (c *Client) GetPage(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}
	return &Page{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(body),
	}, nil
}

// PostJSON sends v as a JSON body and decodes a JSON object response into
// out when out is non-nil. Undecodable responses are not an error.
func (c *Client) PostJSON(ctx context.Context, url string, v, out any) (int, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxPageBytes)).Decode(out)
	}
	return resp.StatusCode, nil
}

// Exists reports whether a HEAD request for url returns 200.
// Any failure counts as absent.
func (c *Client) Exists(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return false
	}
	resp, err := c.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Download streams url to destPath via a temporary .part file.
// A non-2xx status returns false with a nil error.
func (c *Client) Download(ctx context.Context, url, destPath string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, fmt.Errorf("build request: %w", err)
	}
	resp, err := c.Do(req)
	if err != nil {
		return false, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		logger.Warn("Failed to fetch %s: status %d", url, resp.StatusCode)
		return false, nil
	}

	n, err := WriteAtomic(destPath, resp.Body)
	if err != nil {
		return false, fmt.Errorf("fetch %s: %w", url, err)
	}
	logger.Debug("Fetched %s (%.1f KB)", filepath.Base(destPath), float64(n)/1024)
	return true, nil
}

// WriteAtomic copies r into destPath, writing destPath.part first and
// renaming it into place once complete.
func WriteAtomic(destPath string, r io.Reader) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return 0, fmt.Errorf("create dir: %w", err)
	}
	part := destPath + partSuffix
	f, err := os.Create(part)
	if err != nil {
		return 0, fmt.Errorf("create %s: %w", part, err)
	}

	n, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("write %s: %w", part, err)
	}
	if err := os.Rename(part, destPath); err != nil {
		_ = os.Remove(part)
		return 0, fmt.Errorf("rename %s: %w", part, err)
	}
	return n, nil
}

// IsCanceled reports whether err came from a finished context.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
