package driven

import "context"

// EmbeddingService turns page text into vectors for semantic search.
// It is optional: without one the indexer writes lexical entries only and
// semantic queries fail with domain.ErrEmbeddingUnavailable.
type EmbeddingService interface {
	// Embed returns the vector for one text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the vector length produced by the model.
	Dimensions() int

	// ModelName identifies the model, for logs.
	ModelName() string

	// Ping checks the provider is reachable.
	Ping(ctx context.Context) error

	Close() error
}
