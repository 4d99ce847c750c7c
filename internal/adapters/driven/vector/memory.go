package vector

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Ensure Memory implements the interface.
var _ driven.VectorIndex = (*Memory)(nil)

// Memory is a brute-force cosine index held in process memory.
// Vectors are lost on restart; Reindex rebuilds them.
type Memory struct {
	mu      sync.RWMutex
	vectors map[string][]float32
}

// NewMemory creates an empty index.
func NewMemory() *Memory {
	return &Memory{vectors: make(map[string][]float32)}
}

// Add inserts or replaces the vector for id.
func (m *Memory) Add(_ context.Context, id string, embedding []float32) error {
	v := make([]float32, len(embedding))
	copy(v, embedding)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[id] = v
	return nil
}

// Delete removes id. Missing ids are ignored.
func (m *Memory) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, id)
	return nil
}

// Search returns the k most similar vectors, ties broken by id.
func (m *Memory) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	m.mu.RLock()
	hits := make([]driven.VectorHit, 0, len(m.vectors))
	for id, v := range m.vectors {
		hits = append(hits, driven.VectorHit{ID: id, Similarity: cosine(query, v)})
	}
	m.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].ID < hits[j].ID
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Len returns the number of stored vectors.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// Close releases resources.
func (m *Memory) Close() error {
	return nil
}
