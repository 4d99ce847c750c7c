// Package vector provides the nearest-neighbour indexes used by semantic
// search: an in-process cosine index and a Qdrant REST client.
package vector

import (
	"fmt"
	"math"
	"strings"

	"github.com/custodia-labs/pagesift/internal/config"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Providers.
const (
	ProviderMemory = "memory"
	ProviderQdrant = "qdrant"
)

// New builds the configured index.
func New(cfg config.VectorConfig) (driven.VectorIndex, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", ProviderMemory:
		return NewMemory(), nil
	case ProviderQdrant:
		q, err := NewQdrant(QdrantConfig{URL: cfg.URL, APIKey: cfg.APIKey, Collection: cfg.Collection})
		if err != nil {
			return nil, err
		}
		return q, nil
	}
	return nil, fmt.Errorf("vector provider %q: %w", cfg.Provider, domain.ErrUnsupportedType)
}

// cosine returns the cosine similarity of a and b, 0 when either is zero
// or the lengths differ.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
