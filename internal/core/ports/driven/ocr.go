package driven

import (
	"context"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// OCREngine extracts text from one encoded image.
// Engines must tolerate being called once per preprocessing variant and
// must not keep state between calls.
//
// Implementations include:
//   - tesseract (local, via gosseract)
//   - vision (Google Cloud Vision document text detection)
type OCREngine interface {
	// Name returns the engine identifier recorded on results.
	Name() string

	// ExtractText runs recognition on PNG bytes. Word boxes are in the
	// pixel space of the given image; confidence is in [0, 1].
	ExtractText(ctx context.Context, png []byte) (*domain.Extraction, error)

	// Close releases resources.
	Close() error
}
