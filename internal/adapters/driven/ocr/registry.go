package ocr

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/pagesift/internal/adapters/driven/ocr/tesseract"
	"github.com/custodia-labs/pagesift/internal/adapters/driven/ocr/vision"
	"github.com/custodia-labs/pagesift/internal/config"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Ensemble expands to every built-in engine.
const Ensemble = "ensemble"

// Builder creates an engine from configuration.
type Builder func(ctx context.Context, cfg config.OCRConfig) (driven.OCREngine, error)

// Registry maps engine names to builders.
type Registry struct {
	builders map[string]Builder
	order    []string
}

// NewRegistry returns a registry with tesseract and vision registered.
func NewRegistry() *Registry {
	r := &Registry{builders: make(map[string]Builder)}
	r.Register(tesseract.Name, func(_ context.Context, cfg config.OCRConfig) (driven.OCREngine, error) {
		return tesseract.New(tesseract.Options{Languages: cfg.Languages, DPI: cfg.DPI}), nil
	})
	r.Register(vision.Name, func(ctx context.Context, cfg config.OCRConfig) (driven.OCREngine, error) {
		e, err := vision.New(ctx, cfg.VisionCredentials, visionHints(cfg.Languages))
		if err != nil {
			return nil, err
		}
		return e, nil
	})
	return r
}

// Register adds or replaces a builder.
func (r *Registry) Register(name string, b Builder) {
	if _, ok := r.builders[name]; !ok {
		r.order = append(r.order, name)
	}
	r.builders[name] = b
}

// Build creates the engines named in cfg.Engines, in order. "ensemble"
// expands to all registered engines. On error, engines already built are
// closed.
func (r *Registry) Build(ctx context.Context, cfg config.OCRConfig) ([]driven.OCREngine, error) {
	names := r.expand(cfg.Engines)
	engines := make([]driven.OCREngine, 0, len(names))
	for _, name := range names {
		b, ok := r.builders[name]
		if !ok {
			closeAll(engines)
			return nil, fmt.Errorf("ocr engine %q: %w", name, domain.ErrUnsupportedType)
		}
		e, err := b(ctx, cfg)
		if err != nil {
			closeAll(engines)
			return nil, fmt.Errorf("ocr engine %q: %w", name, err)
		}
		engines = append(engines, e)
	}
	return engines, nil
}

func (r *Registry) expand(names []string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == Ensemble {
			for _, o := range r.order {
				add(o)
			}
			continue
		}
		if n != "" {
			add(n)
		}
	}
	return out
}

func closeAll(engines []driven.OCREngine) {
	for _, e := range engines {
		_ = e.Close()
	}
}

// visionHints maps tesseract language codes to the BCP-47 hints Vision
// expects. Unknown codes are dropped.
func visionHints(langs []string) []string {
	codes := map[string]string{"eng": "en", "deu": "de", "fra": "fr", "spa": "es", "ita": "it", "por": "pt"}
	var out []string
	for _, l := range langs {
		if c, ok := codes[l]; ok {
			out = append(out, c)
		} else if len(l) == 2 {
			out = append(out, l)
		}
	}
	return out
}
