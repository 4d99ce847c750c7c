package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/logger"
)

// Ensure Qdrant implements the interface.
var _ driven.VectorIndex = (*Qdrant)(nil)

// Qdrant defaults.
const (
	QdrantURL        = "http://localhost:6333"
	QdrantCollection = "pagesift"
	QdrantTimeout    = 30 * time.Second
)

// payloadKey stores the original result id; point ids must be UUIDs.
const payloadKey = "ocr_result_id"

// idNamespace derives stable point ids from non-UUID result ids.
var idNamespace = uuid.MustParse("6f1f4c0e-6d1b-4a39-9a55-7c0f2b1d9e21")

// QdrantConfig configures the client.
type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Qdrant stores vectors in a Qdrant collection over its REST API. The
// collection is created on first Add with the vector size of that call.
type Qdrant struct {
	client     *http.Client
	base       string
	apiKey     string
	collection string

	mu      sync.Mutex
	ensured bool
}

// NewQdrant creates a client. No request is made until first use.
func NewQdrant(cfg QdrantConfig) (*Qdrant, error) {
	if cfg.URL == "" {
		cfg.URL = QdrantURL
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("qdrant url: %w", domain.ErrInvalidInput)
	}
	if cfg.Collection == "" {
		cfg.Collection = QdrantCollection
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = QdrantTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	return &Qdrant{
		client:     hc,
		base:       strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
	}, nil
}

// PointID maps a result id to the UUID point id used in the collection.
func PointID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return uuid.NewSHA1(idNamespace, []byte(id)).String()
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

type qdrantSearchResponse struct {
	Result []struct {
		ID      any            `json:"id"`
		Score   float64        `json:"score"`
		Payload map[string]any `json:"payload"`
	} `json:"result"`
}

// Add upserts the vector for id.
func (q *Qdrant) Add(ctx context.Context, id string, embedding []float32) error {
	if err := q.ensureCollection(ctx, len(embedding)); err != nil {
		return err
	}
	body := map[string]any{"points": []qdrantPoint{{
		ID:      PointID(id),
		Vector:  embedding,
		Payload: map[string]any{payloadKey: id},
	}}}
	return q.do(ctx, http.MethodPut, q.collectionPath("/points?wait=true"), body, nil)
}

// Delete removes the point for id.
func (q *Qdrant) Delete(ctx context.Context, id string) error {
	body := map[string]any{"points": []string{PointID(id)}}
	return q.do(ctx, http.MethodPost, q.collectionPath("/points/delete?wait=true"), body, nil)
}

// Search returns the k nearest points by cosine score.
func (q *Qdrant) Search(ctx context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if k <= 0 {
		return nil, nil
	}
	body := map[string]any{"vector": query, "limit": k, "with_payload": true}
	var resp qdrantSearchResponse
	if err := q.do(ctx, http.MethodPost, q.collectionPath("/points/search"), body, &resp); err != nil {
		return nil, err
	}
	hits := make([]driven.VectorHit, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, _ := r.Payload[payloadKey].(string)
		if id == "" {
			id = fmt.Sprint(r.ID)
		}
		hits = append(hits, driven.VectorHit{ID: id, Similarity: r.Score})
	}
	return hits, nil
}

// ensureCollection creates the collection once. An existing collection
// (409) is accepted.
func (q *Qdrant) ensureCollection(ctx context.Context, size int) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ensured {
		return nil
	}
	body := map[string]any{"vectors": map[string]any{"size": size, "distance": "Cosine"}}
	err := q.do(ctx, http.MethodPut, q.collectionPath(""), body, nil)
	var se *statusError
	if err != nil && !(errors.As(err, &se) && se.status == http.StatusConflict) {
		return err
	}
	logger.Debug("Qdrant collection %s ready (dim %d)", q.collection, size)
	q.ensured = true
	return nil
}

func (q *Qdrant) collectionPath(suffix string) string {
	return q.base + "/collections/" + url.PathEscape(q.collection) + suffix
}

type statusError struct {
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("qdrant error (status %d): %s", e.status, e.body)
}

func (q *Qdrant) do(ctx context.Context, method, u string, in, out any) error {
	buf, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("qdrant: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &statusError{status: resp.StatusCode, body: string(raw)}
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("qdrant: decode response: %w", err)
		}
	}
	return nil
}

// Close releases resources.
func (q *Qdrant) Close() error {
	return nil
}
