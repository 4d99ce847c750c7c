package domain

import (
	"math"
	"time"
)

// BoundingBox is an axis-aligned rectangle in source-image pixel space.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// IsZero reports whether the box has no area and no origin.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

// Union returns the smallest box containing both b and o.
// A zero box is treated as empty.
func (b BoundingBox) Union(o BoundingBox) BoundingBox {
	if b.IsZero() {
		return o
	}
	if o.IsZero() {
		return b
	}
	minX := math.Min(b.X, o.X)
	minY := math.Min(b.Y, o.Y)
	maxX := math.Max(b.X+b.Width, o.X+o.Width)
	maxY := math.Max(b.Y+b.Height, o.Y+o.Height)
	return BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// WordBox is one recognised word with its location and confidence.
type WordBox struct {
	Text       string  `json:"text"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
}

// Box returns the rectangle of the word.
func (w WordBox) Box() BoundingBox {
	return BoundingBox{X: w.X, Y: w.Y, Width: w.Width, Height: w.Height}
}

// UnionBoxes returns the bounding rectangle of all word boxes.
func UnionBoxes(words []WordBox) BoundingBox {
	var out BoundingBox
	for _, w := range words {
		out = out.Union(w.Box())
	}
	return out
}

// Metadata keys recorded on an OCRResult describing how it was selected.
const (
	MetaVariant        = "variant"
	MetaScale          = "scale"
	MetaDeskewAngle    = "deskew_angle"
	MetaSelectedEngine = "selected_engine"
	MetaPSM            = "psm"
	MetaError          = "error"
)

// Extraction is what an OCR engine returns for a single image.
// Confidence is normalised to [0, 1].
type Extraction struct {
	Text       string
	WordBoxes  []WordBox
	Confidence float64
	Engine     string
	Metadata   map[string]any
}

// OCRResult is the selected extraction for one Page.
// At most one exists per Page.
type OCRResult struct {
	// ID is a random UUID.
	ID string

	// PageID links to the Page the text was extracted from.
	PageID string

	// DocumentID links to the Page's Document.
	DocumentID string

	// PageNumber is copied from the Page for result hydration.
	PageNumber int

	// RawText is the engine output as returned.
	RawText string

	// NormalizedText is RawText after whitespace and control-character cleanup.
	NormalizedText string

	// WordBoxes are in original-image pixel space.
	WordBoxes []WordBox

	// BBox is the union of all word boxes.
	BBox BoundingBox

	// Confidence is the mean word confidence.
	Confidence float64

	// Engine names the engine that produced the winning extraction.
	Engine string

	// Metadata records the winning variant, scale, rotation and engine.
	Metadata map[string]any

	CreatedAt time.Time
}

// PageBatchResult counts the outcome of OCR over a set of pages.
type PageBatchResult struct {
	// Processed is the number of pages that got a result with text.
	Processed int

	// Empty is the number of pages marked processed with no text.
	Empty int

	// Failed is the number of pages that errored and stay pending.
	Failed int

	// ResultIDs lists the OCR results created, in completion order.
	ResultIDs []string

	Errors []string
}
