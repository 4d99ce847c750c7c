//go:build !cgo

package tesseract

import (
	"context"
	"fmt"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.OCREngine = (*Engine)(nil)

// Engine is unavailable without cgo.
type Engine struct {
	opts Options
}

// New creates a stub engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts.withDefaults()}
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return Name
}

// ExtractText always fails: libtesseract needs a cgo build.
func (e *Engine) ExtractText(context.Context, []byte) (*domain.Extraction, error) {
	return nil, fmt.Errorf("tesseract requires a cgo build: %w", domain.ErrEngineUnavailable)
}

// Close releases resources.
func (e *Engine) Close() error {
	return nil
}
