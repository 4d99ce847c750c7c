package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// Document represents one source file fetched from a crawler.
// Its ID is content-addressed so re-ingesting a source never duplicates it.
type Document struct {
	// ID is the deterministic identifier derived from SourceURL and FileName.
	ID string

	// SourceURL is where the file was fetched from.
	SourceURL string

	// FileName is the file name used at fetch time.
	FileName string

	// FileType is the lower-case extension without the dot (pdf, png, ...).
	FileType string

	// ByteSize is the size of the original bytes.
	ByteSize int64

	// PageCount is the number of pages rendered, zero until conversion succeeds.
	PageCount int

	// BlobKey is the canonical key of the original bytes in the primary blob store.
	BlobKey string

	// MirrorKey is the remote object key when the original has been mirrored.
	MirrorKey string

	// Collection tags storage-only groups that skip OCR.
	Collection string

	// Metadata contains free-form attributes captured during discovery.
	Metadata map[string]any

	// IngestedAt is when the document row was created.
	IngestedAt time.Time
}

// Page represents one raster page of a Document.
type Page struct {
	// ID is "{document_id}_page_{page_number:04d}".
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// PageNumber is 1-based.
	PageNumber int

	// ImagePath is the local path of the stored PNG.
	ImagePath string

	// BlobKey is the canonical key of the PNG in the page blob store.
	BlobKey string

	// MirrorKey is the remote object key when the image has been mirrored.
	MirrorKey string

	Width  int
	Height int

	// OCRProcessed is monotonic: once true it never reverts.
	OCRProcessed bool

	// OCRProcessedAt is set when OCRProcessed flips to true.
	OCRProcessedAt time.Time
}

// FileCandidate is a file discovered by a crawler but not yet fetched.
type FileCandidate struct {
	// URL is the absolute location of the file.
	URL string

	// FileName is the basename used to derive the document ID.
	FileName string

	// FileType is the lower-case extension without the dot.
	FileType string

	// Section is the page section the link was found in, if any.
	Section string

	// LinkText is the anchor text of the link, if any.
	LinkText string

	// Description is surrounding text captured during traversal.
	Description string

	// Source tags the crawler that produced the candidate.
	Source string

	// Collection is an optional storage grouping.
	Collection string
}

// FetchedFile is a candidate whose bytes are on local disk.
type FetchedFile struct {
	Candidate FileCandidate
	LocalPath string
	Size      int64
}

// DocumentID returns the content-addressed ID for a source URL and file name:
// the first 16 hex characters of sha256("{sourceURL}:{fileName}").
func DocumentID(sourceURL, fileName string) string {
	sum := sha256.Sum256([]byte(sourceURL + ":" + fileName))
	return hex.EncodeToString(sum[:])[:16]
}

// PageID returns the identifier of page n of a document.
func PageID(documentID string, pageNumber int) string {
	return fmt.Sprintf("%s_page_%04d", documentID, pageNumber)
}

// FileTypeOf returns the lower-case extension of name without the dot.
func FileTypeOf(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

var unsafeNameChars = regexp.MustCompile(`[^\w\-.]`)

// FetchName returns the local file name for a download: the first 16 hex
// characters of sha256(url), an underscore, and the sanitised base name.
// Sources that reuse base names across folders still get distinct files.
func FetchName(url, fileName string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:16] + "_" + unsafeNameChars.ReplaceAllString(fileName, "_")
}

// IsPDF reports whether fileType names a PDF.
func IsPDF(fileType string) bool {
	return fileType == "pdf"
}

// IsImage reports whether fileType names a raster image format OCR can read.
func IsImage(fileType string) bool {
	switch fileType {
	case "png", "jpg", "jpeg", "tif", "tiff", "bmp":
		return true
	}
	return false
}
