package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // register decoder
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/logger"
)

// ContentStore persists originals and page renders with content-addressed
// identity. The primary blob stores are authoritative; mirrors are copies
// whose failures are logged and never returned.
type ContentStore struct {
	docs  driven.DocumentStore
	pages driven.PageStore

	docBlobs  driven.BlobStore
	pageBlobs driven.BlobStore

	docMirror  driven.BlobStore
	pageMirror driven.BlobStore

	now func() time.Time
}

// NewContentStore creates a content store. Pass nil mirrors to disable
// mirroring.
func NewContentStore(
	docs driven.DocumentStore,
	pages driven.PageStore,
	docBlobs, pageBlobs driven.BlobStore,
) *ContentStore {
	return &ContentStore{
		docs:      docs,
		pages:     pages,
		docBlobs:  docBlobs,
		pageBlobs: pageBlobs,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithMirrors sets the remote copies for originals and page images.
func (c *ContentStore) WithMirrors(docMirror, pageMirror driven.BlobStore) *ContentStore {
	c.docMirror = docMirror
	c.pageMirror = pageMirror
	return c
}

// DocumentKey is the blob key of a document's original bytes.
func DocumentKey(documentID, fileType string) string {
	if fileType == "" {
		return documentID
	}
	return documentID + "." + fileType
}

// PageKey is the blob key of a page render.
func PageKey(pageID string) string {
	return pageID + ".png"
}

// StoreDocument stores a fetched file. If a document with the same
// identity exists it returns (id, false) without touching blobs.
func (c *ContentStore) StoreDocument(ctx context.Context, file domain.FetchedFile) (string, bool, error) {
	cand := file.Candidate
	if cand.URL == "" || cand.FileName == "" {
		return "", false, fmt.Errorf("store document: url and file name required: %w", domain.ErrInvalidInput)
	}
	id := domain.DocumentID(cand.URL, cand.FileName)

	existing, err := c.docs.GetDocument(ctx, id)
	switch {
	case err == nil:
		if existing.SourceURL != cand.URL || existing.FileName != cand.FileName {
			return "", false, fmt.Errorf("document %s stored for %s/%s: %w",
				id, existing.SourceURL, existing.FileName, domain.ErrDedupCollision)
		}
		return id, false, nil
	case !errors.Is(err, domain.ErrNotFound):
		return "", false, fmt.Errorf("get document: %w", err)
	}

	fileType := cand.FileType
	if fileType == "" {
		fileType = domain.FileTypeOf(cand.FileName)
	}
	key := DocumentKey(id, fileType)

	size, err := c.putFile(ctx, c.docBlobs, key, file.LocalPath)
	if err != nil {
		return "", false, fmt.Errorf("store original: %w", err)
	}

	doc := &domain.Document{
		ID:         id,
		SourceURL:  cand.URL,
		FileName:   cand.FileName,
		FileType:   fileType,
		ByteSize:   size,
		BlobKey:    key,
		Collection: cand.Collection,
		Metadata:   candidateMetadata(cand),
		IngestedAt: c.now(),
	}
	inserted, err := c.docs.InsertDocument(ctx, doc)
	if err != nil {
		return "", false, fmt.Errorf("insert document: %w", err)
	}
	if !inserted {
		// Another writer stored it first.
		return id, false, nil
	}

	if remote := c.mirror(ctx, c.docMirror, key, file.LocalPath); remote != "" {
		if err := c.docs.SetDocumentMirrorKey(ctx, id, remote); err != nil {
			logger.Warn("Failed to record mirror key for %s: %v", id, err)
		}
	}

	logger.Debug("Stored document %s (%s, %d bytes)", id, cand.FileName, size)
	return id, true, nil
}

// StorePage stores one page render. An existing page returns its ID
// without re-copying the image. Non-PNG inputs are re-encoded as PNG.
func (c *ContentStore) StorePage(
	ctx context.Context, documentID string, pageNumber int, imagePath string, width, height int,
) (string, error) {
	if documentID == "" || pageNumber < 1 {
		return "", fmt.Errorf("store page: %w", domain.ErrInvalidInput)
	}
	pageID := domain.PageID(documentID, pageNumber)

	if _, err := c.pages.GetPage(ctx, pageID); err == nil {
		return pageID, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return "", fmt.Errorf("get page: %w", err)
	}

	data, err := pngBytes(imagePath)
	if err != nil {
		return "", err
	}
	if width <= 0 || height <= 0 {
		if cfg, err := png.DecodeConfig(bytes.NewReader(data)); err == nil {
			width, height = cfg.Width, cfg.Height
		}
	}

	key := PageKey(pageID)
	if err := c.pageBlobs.Put(ctx, key, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("store page image: %w", err)
	}

	page := &domain.Page{
		ID:         pageID,
		DocumentID: documentID,
		PageNumber: pageNumber,
		ImagePath:  c.pageBlobs.Locate(key),
		BlobKey:    key,
		Width:      width,
		Height:     height,
	}
	inserted, err := c.pages.InsertPage(ctx, page)
	if err != nil {
		return "", fmt.Errorf("insert page: %w", err)
	}
	if !inserted {
		return pageID, nil
	}

	if c.pageMirror != nil {
		if err := c.pageMirror.Put(ctx, key, bytes.NewReader(data)); err != nil {
			logger.Warn("Mirror of %s failed: %v", key, err)
		} else if err := c.pages.SetPageMirrorKey(ctx, pageID, c.pageMirror.Locate(key)); err != nil {
			logger.Warn("Failed to record mirror key for %s: %v", pageID, err)
		}
	}
	return pageID, nil
}

// SetPageCount records how many pages a document rendered to.
func (c *ContentStore) SetPageCount(ctx context.Context, documentID string, n int) error {
	return c.docs.SetPageCount(ctx, documentID, n)
}

// LocateDocument returns where the original of a document is stored.
func (c *ContentStore) LocateDocument(doc *domain.Document) string {
	return c.docBlobs.Locate(doc.BlobKey)
}

func (c *ContentStore) putFile(ctx context.Context, store driven.BlobStore, key, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if err := store.Put(ctx, key, f); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// mirror copies a local file to the remote store and returns the remote
// location, or "" when mirroring is off or failed.
func (c *ContentStore) mirror(ctx context.Context, store driven.BlobStore, key, path string) string {
	if store == nil {
		return ""
	}
	f, err := os.Open(path)
	if err != nil {
		logger.Warn("Mirror of %s failed: %v", key, err)
		return ""
	}
	defer f.Close()
	if err := store.Put(ctx, key, f); err != nil {
		logger.Warn("Mirror of %s failed: %v", key, err)
		return ""
	}
	return store.Locate(key)
}

func candidateMetadata(cand domain.FileCandidate) map[string]any {
	meta := map[string]any{}
	if cand.Description != "" {
		meta["description"] = cand.Description
	}
	if cand.Section != "" {
		meta["section"] = cand.Section
	}
	if cand.Source != "" {
		meta["source"] = cand.Source
	}
	if cand.LinkText != "" {
		meta["link_text"] = cand.LinkText
	}
	return meta
}

// pngBytes reads an image file, re-encoding it as PNG when needed.
func pngBytes(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page image: %w", err)
	}
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode page image %s: %w", filepath.Base(path), err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page image: %w", err)
	}
	return buf.Bytes(), nil
}

// readImage decodes a stored page image.
func readImage(ctx context.Context, store driven.BlobStore, key string) (image.Image, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	return img, nil
}
