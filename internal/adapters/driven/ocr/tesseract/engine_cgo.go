//go:build cgo

package tesseract

import (
	"context"
	"fmt"
	"strconv"

	"github.com/otiai10/gosseract/v2"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/logger"
)

// Ensure Engine implements the interface.
var _ driven.OCREngine = (*Engine)(nil)

// Engine runs libtesseract once per configured page segmentation mode.
type Engine struct {
	opts          Options
	clientFactory func() *gosseract.Client
}

// New creates a tesseract engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults(), clientFactory: gosseract.NewClient}
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return Name
}

// ExtractText recognises png with each PSM and returns the best pass.
// A pass that fails is logged and skipped; if every pass fails the last
// error is returned.
func (e *Engine) ExtractText(ctx context.Context, png []byte) (*domain.Extraction, error) {
	var best *domain.Extraction
	var lastErr error
	for _, psm := range e.opts.PSMModes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ext, err := e.recognize(png, psm)
		if err != nil {
			logger.Debug("tesseract psm %d failed: %v", psm, err)
			lastErr = err
			continue
		}
		if better(ext, best) || best == nil {
			best = ext
		}
	}
	if best == nil {
		return nil, lastErr
	}
	return best, nil
}

func (e *Engine) recognize(png []byte, psm int) (*domain.Extraction, error) {
	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.opts.Languages...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if err := c.SetPageSegMode(gosseract.PageSegMode(psm)); err != nil {
		return nil, fmt.Errorf("set psm: %w", err)
	}
	if e.opts.DPI > 0 {
		if err := c.SetVariable("user_defined_dpi", strconv.Itoa(e.opts.DPI)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(png); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("recognize: %w", err)
	}
	words := make([]word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, word{Text: b.Word, Box: b.Box, Confidence: b.Confidence})
	}
	return buildExtraction(words, psm), nil
}

// Close releases resources. Clients are created per call.
func (e *Engine) Close() error {
	return nil
}
