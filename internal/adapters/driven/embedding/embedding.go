// Package embedding turns page text into vectors through an HTTP embedding
// API. Two wire formats are supported: Ollama's /api/embed and the
// OpenAI-compatible /embeddings endpoint.
package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/pagesift/internal/config"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/textproc"
)

// Providers.
const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// MaxInputRunes caps the text sent per page. OCR output of dense pages can
// exceed model context windows.
const MaxInputRunes = 8000

// New builds the configured embedding service. An empty provider returns
// nil without error: semantic search is simply disabled.
func New(cfg config.EmbeddingConfig) (driven.EmbeddingService, error) {
	switch strings.ToLower(cfg.Provider) {
	case "":
		return nil, nil
	case ProviderOllama:
		return NewOllama(OllamaConfig{BaseURL: cfg.BaseURL, Model: cfg.Model}), nil
	case ProviderOpenAI:
		s, err := NewOpenAI(OpenAIConfig{APIKey: cfg.APIKey, BaseURL: cfg.BaseURL, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("embedding provider %q: %w", cfg.Provider, domain.ErrUnsupportedType)
}

// apiError is returned for non-2xx responses.
type apiError struct {
	provider string
	status   int
	body     string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("%s error (status %d): %s", e.provider, e.status, e.body)
}

// Unwrap maps throttling to domain.ErrRateLimited.
func (e *apiError) Unwrap() error {
	if e.status == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	return nil
}

// doJSON sends in as JSON (GET when in is nil) and decodes a 2xx body into out.
func doJSON(ctx context.Context, client *http.Client, provider, method, url string,
	headers map[string]string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", provider, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", provider, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{provider: provider, status: resp.StatusCode, body: textproc.TruncateRunes(string(raw), 500)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", provider, err)
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(f)
	}
	return out
}

func clip(texts []string) []string {
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = textproc.TruncateRunes(t, MaxInputRunes)
	}
	return out
}

func httpClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
