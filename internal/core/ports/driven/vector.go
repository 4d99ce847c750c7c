package driven

import "context"

// VectorIndex stores page embeddings keyed by OCR result ID and answers
// nearest-neighbour queries over them.
type VectorIndex interface {
	// Add upserts the vector for id.
	Add(ctx context.Context, id string, embedding []float32) error

	Delete(ctx context.Context, id string) error

	// Search returns up to k hits ordered by descending similarity.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	Close() error
}

// VectorHit is one nearest-neighbour match.
type VectorHit struct {
	ID         string  // OCR result ID
	Similarity float64 // cosine, higher is closer
}
