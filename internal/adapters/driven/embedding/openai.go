package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Ensure OpenAI implements the interface.
var _ driven.EmbeddingService = (*OpenAI)(nil)

// OpenAI defaults.
const (
	OpenAIBaseURL = "https://api.openai.com/v1"
	OpenAIModel   = "text-embedding-3-small"
	OpenAITimeout = 60 * time.Second
)

var openAIDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// OpenAIConfig configures an OpenAI-compatible service.
type OpenAIConfig struct {
	// APIKey is required.
	APIKey string

	// BaseURL may point at any OpenAI-compatible server.
	BaseURL string

	Model   string
	Timeout time.Duration

	// Dimensions shortens text-embedding-3 vectors when set.
	Dimensions int
}

// OpenAI generates embeddings through the /embeddings endpoint.
type OpenAI struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	shortened  bool
}

type openAIRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type openAIResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// NewOpenAI creates an OpenAI embedding service.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: api key required: %w", domain.ErrInvalidInput)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = OpenAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = OpenAIModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = OpenAITimeout
	}

	dims, shortened := cfg.Dimensions, cfg.Dimensions > 0 && strings.HasPrefix(cfg.Model, "text-embedding-3")
	if dims == 0 {
		var ok bool
		if dims, ok = openAIDimensions[cfg.Model]; !ok {
			dims = 1536
		}
	}
	return &OpenAI{
		client:     httpClient(cfg.Timeout),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		dimensions: dims,
		shortened:  shortened,
	}, nil
}

// Embed generates a vector for text.
func (s *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one request, ordering results by index.
func (s *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := openAIRequest{Model: s.model, Input: clip(texts)}
	if s.shortened {
		req.Dimensions = s.dimensions
	}
	var resp openAIResponse
	if err := doJSON(ctx, s.client, ProviderOpenAI, http.MethodPost, s.baseURL+"/embeddings", s.auth(), req, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai: embedding index %d out of range", d.Index)
		}
		out[d.Index] = toFloat32(d.Embedding)
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("openai: missing embedding for input %d", i)
		}
	}
	return out, nil
}

func (s *OpenAI) auth() map[string]string {
	return map[string]string{"Authorization": "Bearer " + s.apiKey}
}

// Dimensions returns the embedding vector size.
func (s *OpenAI) Dimensions() int {
	return s.dimensions
}

// ModelName returns the model in use.
func (s *OpenAI) ModelName() string {
	return s.model
}

// Ping checks /models, validating the key without running inference.
func (s *OpenAI) Ping(ctx context.Context) error {
	return doJSON(ctx, s.client, ProviderOpenAI, http.MethodGet, s.baseURL+"/models", s.auth(), nil, nil)
}

// Close releases resources.
func (s *OpenAI) Close() error {
	return nil
}
