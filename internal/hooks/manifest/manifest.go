// Package manifest provides a hook that appends indexed documents to a
// JSON-lines file, for downstream jobs that tail new documents.
package manifest

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Name is the hook name.
const Name = "manifest"

// Ensure Hook implements the interface.
var _ driven.DocumentHook = (*Hook)(nil)

// Entry is one line of the manifest.
type Entry struct {
	DocumentID string    `json:"document_id"`
	IndexedAt  time.Time `json:"indexed_at"`
}

// Hook appends one Entry per indexed document.
type Hook struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// New creates a manifest hook writing to path.
func New(path string) *Hook {
	return &Hook{
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Name returns the hook name.
func (h *Hook) Name() string { return Name }

// Path returns the manifest file path.
func (h *Hook) Path() string { return h.path }

// DocumentIndexed appends an entry for documentID.
func (h *Hook) DocumentIndexed(_ context.Context, documentID string) error {
	line, err := json.Marshal(Entry{DocumentID: documentID, IndexedAt: h.now()})
	if err != nil {
		return fmt.Errorf("encoding manifest entry: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(h.path), 0o755); err != nil {
		return fmt.Errorf("creating manifest dir: %w", err)
	}
	f, err := os.OpenFile(h.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening manifest: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("writing manifest: %w", err)
	}
	return f.Close()
}
