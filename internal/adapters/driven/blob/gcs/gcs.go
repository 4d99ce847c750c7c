// Package gcs implements driven.BlobStore on Google Cloud Storage.
// It serves as the remote mirror of the local blob store.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/custodia-labs/pagesift/internal/adapters/driven/gcp"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.BlobStore = (*Store)(nil)

const uploadTimeout = 2 * time.Minute

// Store writes objects to one bucket under a key prefix.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New connects to GCS. credentials may be a key file path, inline JSON,
// or empty for application default credentials.
func New(ctx context.Context, bucket, credentials string) (*Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("gcs bucket: %w", domain.ErrInvalidInput)
	}
	opts := gcp.ClientOptions(credentials)
	opts = append(opts, option.WithScopes(storage.ScopeReadWrite))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating storage client: %w", err)
	}
	return &Store{client: client, bucket: bucket}, nil
}

// WithPrefix returns a view of the same bucket whose keys are prefixed.
// The view shares the client; only the original should be closed.
func (s *Store) WithPrefix(prefix string) *Store {
	return &Store{client: s.client, bucket: s.bucket, prefix: prefix}
}

// Put uploads r under key.
func (s *Store) Put(ctx context.Context, key string, r io.Reader) error {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	w := s.object(key).NewWriter(ctx)
	if ct := contentTypeForKey(key); ct != "" {
		w.ContentType = ct
	}
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing gs://%s/%s: %w", s.bucket, s.objectName(key), err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("closing gs://%s/%s: %w", s.bucket, s.objectName(key), err)
	}
	return nil
}

// Open returns a reader for key.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading gs://%s/%s: %w", s.bucket, s.objectName(key), err)
	}
	return rc, nil
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat gs://%s/%s: %w", s.bucket, s.objectName(key), err)
	}
	return true, nil
}

// Locate returns the gs:// URI of key.
func (s *Store) Locate(key string) string {
	return "gs://" + s.bucket + "/" + s.objectName(key)
}

// Close releases the client.
func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) object(key string) *storage.ObjectHandle {
	return s.client.Bucket(s.bucket).Object(s.objectName(key))
}

func (s *Store) objectName(key string) string {
	return path.Join(s.prefix, strings.TrimPrefix(key, "/"))
}

func contentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	case ".bmp":
		return "image/bmp"
	case ".pdf":
		return "application/pdf"
	case ".doc":
		return "application/msword"
	case ".docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return ""
	}
}
