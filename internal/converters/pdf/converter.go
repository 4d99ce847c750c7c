// Package pdf renders PDF documents into one PNG per page using the
// poppler command line tools. Raster inputs pass through untouched.
package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Ensure Converter implements the interface.
var _ driven.Converter = (*Converter)(nil)

// DefaultDPI is the render resolution for PDF pages.
const DefaultDPI = 300

const pagePrefix = "page"

// ErrPDFToolNotFound is returned when pdftoppm is not installed.
var ErrPDFToolNotFound = errors.New("pdftoppm not found in PATH")

var (
	pagesLine = regexp.MustCompile(`(?m)^Pages:\s+(\d+)`)
	pageFile  = regexp.MustCompile(`^` + pagePrefix + `-(\d+)\.png$`)
)

// CommandRunner runs an external command and returns its combined output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Converter renders documents with pdftoppm.
type Converter struct {
	runner   CommandRunner
	lookPath func(string) (string, error)
	dpi      int
}

// New creates a converter backed by the installed poppler tools.
func New() *Converter {
	return &Converter{runner: execRunner{}, lookPath: exec.LookPath, dpi: DefaultDPI}
}

// NewWithRunner creates a converter with a custom command runner.
// The tool lookup is skipped.
func NewWithRunner(runner CommandRunner) *Converter {
	return &Converter{
		runner:   runner,
		lookPath: func(name string) (string, error) { return name, nil },
		dpi:      DefaultDPI,
	}
}

// WithDPI overrides the render resolution.
func (c *Converter) WithDPI(dpi int) *Converter {
	if dpi > 0 {
		c.dpi = dpi
	}
	return c
}

// IsMultiPage reports whether path is a PDF. Multi-frame TIFFs are
// treated as single images.
func (c *Converter) IsMultiPage(path string) bool {
	return domain.IsPDF(domain.FileTypeOf(path))
}

// ToPageImages renders every page of a PDF into outDir as page-N.png and
// returns the paths ordered 1..N. Images are returned as-is.
func (c *Converter) ToPageImages(ctx context.Context, path, outDir string) ([]string, error) {
	switch ft := domain.FileTypeOf(path); {
	case domain.IsImage(ft):
		return []string{path}, nil
	case !domain.IsPDF(ft):
		return nil, fmt.Errorf("convert %s: %w", filepath.Base(path), domain.ErrUnsupportedFormat)
	}

	if _, err := c.lookPath("pdftoppm"); err != nil {
		return nil, ErrPDFToolNotFound
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create page dir: %w", err)
	}

	prefix := filepath.Join(outDir, pagePrefix)
	out, err := c.runner.Run(ctx, "pdftoppm", "-r", strconv.Itoa(c.dpi), "-png", path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w: %s", err, strings.TrimSpace(string(out)))
	}

	pages, err := collectPages(outDir)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, fmt.Errorf("pdftoppm rendered no pages for %s", filepath.Base(path))
	}
	return pages, nil
}

// PageCount reads the page count reported by pdfinfo.
func (c *Converter) PageCount(ctx context.Context, path string) (int, error) {
	out, err := c.runner.Run(ctx, "pdfinfo", path)
	if err != nil {
		return 0, fmt.Errorf("pdfinfo failed: %w", err)
	}
	m := pagesLine.FindSubmatch(out)
	if m == nil {
		return 0, fmt.Errorf("pdfinfo: no page count for %s", filepath.Base(path))
	}
	return strconv.Atoi(string(m[1]))
}

// InstallInstructions describes how to install the required tools.
func InstallInstructions() string {
	return `PDF conversion requires pdftoppm and pdfinfo (poppler-utils).
  macOS:  brew install poppler
  Debian: apt-get install poppler-utils
  Fedora: dnf install poppler-utils`
}

// collectPages lists page-N.png files in dir sorted by N. pdftoppm pads
// N according to the page count, so the order is numeric, not lexical.
func collectPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read page dir: %w", err)
	}
	type page struct {
		n    int
		path string
	}
	var pages []page
	for _, e := range entries {
		m := pageFile.FindStringSubmatch(e.Name())
		if e.IsDir() || m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		pages = append(pages, page{n: n, path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })

	out := make([]string, len(pages))
	for i, p := range pages {
		out[i] = p.path
	}
	return out, nil
}
