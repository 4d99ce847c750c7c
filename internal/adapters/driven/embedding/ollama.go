package embedding

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Ensure Ollama implements the interface.
var _ driven.EmbeddingService = (*Ollama)(nil)

// Ollama defaults.
const (
	OllamaBaseURL    = "http://localhost:11434"
	OllamaModel      = "nomic-embed-text"
	OllamaTimeout    = 30 * time.Second
	OllamaDimensions = 768
)

// OllamaConfig configures the Ollama service. Zero fields use defaults.
type OllamaConfig struct {
	BaseURL    string
	Model      string
	Timeout    time.Duration
	Dimensions int
}

// Ollama generates embeddings with a local Ollama server.
type Ollama struct {
	client     *http.Client
	baseURL    string
	model      string
	dimensions int
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float64 `json:"embeddings"`
}

// NewOllama creates an Ollama embedding service.
func NewOllama(cfg OllamaConfig) *Ollama {
	if cfg.BaseURL == "" {
		cfg.BaseURL = OllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = OllamaModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = OllamaTimeout
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = OllamaDimensions
	}
	return &Ollama{
		client:     httpClient(cfg.Timeout),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// Embed generates a vector for text.
func (s *Ollama) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in one /api/embed call.
func (s *Ollama) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	var resp ollamaEmbedResponse
	if err := doJSON(ctx, s.client, ProviderOllama, http.MethodPost, s.baseURL+"/api/embed", nil,
		ollamaEmbedRequest{Model: s.model, Input: clip(texts)}, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama: got %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, len(texts))
	for i, e := range resp.Embeddings {
		out[i] = toFloat32(e)
	}
	return out, nil
}

// Dimensions returns the embedding vector size.
func (s *Ollama) Dimensions() int {
	return s.dimensions
}

// ModelName returns the model in use.
func (s *Ollama) ModelName() string {
	return s.model
}

// Ping checks /api/tags without running inference.
func (s *Ollama) Ping(ctx context.Context) error {
	return doJSON(ctx, s.client, ProviderOllama, http.MethodGet, s.baseURL+"/api/tags", nil, nil, nil)
}

// Close releases resources.
func (s *Ollama) Close() error {
	return nil
}
