package driven

import (
	"context"
	"io"
)

// BlobStore stores opaque bytes under flat keys.
// The local implementation is authoritative; remote ones act as mirrors.
type BlobStore interface {
	// Put writes r under key, replacing any existing object.
	Put(ctx context.Context, key string, r io.Reader) error

	// Open returns a reader for key. Returns domain.ErrNotFound if missing.
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Locate returns where key lives: a filesystem path for local stores,
	// an object URI for remote ones.
	Locate(key string) string
}
