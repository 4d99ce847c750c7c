// Package tesseract runs local OCR through libtesseract (gosseract).
// Builds without cgo get a stub whose ExtractText returns
// domain.ErrEngineUnavailable.
package tesseract

import (
	"image"
	"strings"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

// Name is the engine identifier.
const Name = "tesseract"

// Page segmentation modes tried in order.
const (
	PSMSingleBlock = 6
	PSMSparseText  = 11
)

// scoreWeight is added to confidence when comparing PSM passes.
const scoreWeight = 0.25

// Options configures the engine.
type Options struct {
	// Languages are tesseract language codes, default ["eng"].
	Languages []string

	// PSMModes are tried in order; the best-scoring pass wins.
	PSMModes []int

	// DPI is passed as user_defined_dpi when positive.
	DPI int
}

func (o Options) withDefaults() Options {
	if len(o.Languages) == 0 {
		o.Languages = []string{"eng"}
	}
	if len(o.PSMModes) == 0 {
		o.PSMModes = []int{PSMSingleBlock, PSMSparseText}
	}
	return o
}

// word is one recognised word as reported by libtesseract.
// Confidence is on tesseract's 0..100 scale, negative when unknown.
type word struct {
	Text       string
	Box        image.Rectangle
	Confidence float64
}

// buildExtraction turns one pass into an extraction. Blank words are
// dropped and confidence is the mean of the known word confidences.
func buildExtraction(words []word, psm int) *domain.Extraction {
	ext := &domain.Extraction{
		Engine:   Name,
		Metadata: map[string]any{domain.MetaPSM: psm},
	}
	texts := make([]string, 0, len(words))
	var sum float64
	var known int
	for _, w := range words {
		text := strings.TrimSpace(w.Text)
		if text == "" {
			continue
		}
		conf := 0.0
		if w.Confidence > 0 {
			conf = w.Confidence / 100
			sum += conf
			known++
		}
		ext.WordBoxes = append(ext.WordBoxes, domain.WordBox{
			Text:       text,
			X:          float64(w.Box.Min.X),
			Y:          float64(w.Box.Min.Y),
			Width:      float64(w.Box.Dx()),
			Height:     float64(w.Box.Dy()),
			Confidence: conf,
		})
		texts = append(texts, text)
	}
	ext.Text = strings.Join(texts, " ")
	if known > 0 {
		ext.Confidence = sum / float64(known)
	}
	return ext
}

func score(e *domain.Extraction) float64 {
	return float64(len(e.Text)+1) * (scoreWeight + e.Confidence)
}

// better reports whether candidate should replace best. Empty text never wins.
func better(candidate, best *domain.Extraction) bool {
	if candidate == nil || candidate.Text == "" {
		return false
	}
	return best == nil || best.Text == "" || score(candidate) > score(best)
}
