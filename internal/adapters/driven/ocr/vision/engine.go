// Package vision runs OCR through Google Cloud Vision document text
// detection.
package vision

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	visionpb "cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/custodia-labs/pagesift/internal/adapters/driven/gcp"
	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.OCREngine = (*Engine)(nil)

// Name is the engine identifier.
const Name = "vision"

// DefaultTimeout bounds one annotate call.
const DefaultTimeout = 60 * time.Second

type annotateFunc func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)

// Engine calls the Vision API once per image.
type Engine struct {
	client    *vision.ImageAnnotatorClient
	annotate  annotateFunc
	languages []string
	timeout   time.Duration
}

// New dials the Vision API. credentials is a key file path or inline JSON;
// empty uses application default credentials.
func New(ctx context.Context, credentials string, languages []string) (*Engine, error) {
	client, err := vision.NewImageAnnotatorClient(ctx, gcp.ClientOptions(credentials)...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	e := newWithAnnotator(func(ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return client.BatchAnnotateImages(ctx, req)
	}, languages)
	e.client = client
	return e, nil
}

func newWithAnnotator(fn annotateFunc, languages []string) *Engine {
	return &Engine{annotate: fn, languages: languages, timeout: DefaultTimeout}
}

// Name returns the engine identifier.
func (e *Engine) Name() string {
	return Name
}

// ExtractText runs DOCUMENT_TEXT_DETECTION on png. An image with no text
// yields an empty extraction rather than an error.
func (e *Engine) ExtractText(ctx context.Context, png []byte) (*domain.Extraction, error) {
	empty := &domain.Extraction{Engine: Name, Metadata: map[string]any{}}
	if len(png) == 0 {
		return empty, nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: png},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
	}
	if len(e.languages) > 0 {
		req.ImageContext = &visionpb.ImageContext{LanguageHints: e.languages}
	}
	resp, err := e.annotate(ctx, &visionpb.BatchAnnotateImagesRequest{Requests: []*visionpb.AnnotateImageRequest{req}})
	if err != nil {
		return nil, fmt.Errorf("vision annotate: %w", err)
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return empty, nil
	}
	r0 := resp.Responses[0]
	if r0.Error != nil && r0.Error.Message != "" {
		return nil, fmt.Errorf("vision annotate: %s", r0.Error.Message)
	}
	fta := r0.FullTextAnnotation
	if fta == nil || strings.TrimSpace(fta.Text) == "" {
		return empty, nil
	}
	return fromAnnotation(fta), nil
}

// fromAnnotation flattens pages into word boxes. Confidence is the mean
// word confidence, falling back to the mean page confidence.
func fromAnnotation(fta *visionpb.TextAnnotation) *domain.Extraction {
	ext := &domain.Extraction{
		Text:     strings.TrimSpace(fta.Text),
		Engine:   Name,
		Metadata: map[string]any{},
	}
	var wordSum, pageSum float64
	var pages int
	for _, pg := range fta.Pages {
		if pg == nil {
			continue
		}
		pageSum += float64(pg.Confidence)
		pages++
		for _, b := range pg.Blocks {
			if b == nil {
				continue
			}
			for _, p := range b.Paragraphs {
				if p == nil {
					continue
				}
				for _, w := range p.Words {
					if wb, ok := wordBox(w); ok {
						ext.WordBoxes = append(ext.WordBoxes, wb)
						wordSum += wb.Confidence
					}
				}
			}
		}
	}
	switch {
	case len(ext.WordBoxes) > 0:
		ext.Confidence = wordSum / float64(len(ext.WordBoxes))
	case pages > 0:
		ext.Confidence = pageSum / float64(pages)
	}
	return ext
}

func wordBox(w *visionpb.Word) (domain.WordBox, bool) {
	if w == nil {
		return domain.WordBox{}, false
	}
	var sb strings.Builder
	for _, s := range w.Symbols {
		if s != nil {
			sb.WriteString(s.Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return domain.WordBox{}, false
	}
	box := polyBox(w.BoundingBox)
	return domain.WordBox{
		Text:       text,
		X:          box.X,
		Y:          box.Y,
		Width:      box.Width,
		Height:     box.Height,
		Confidence: float64(w.Confidence),
	}, true
}

func polyBox(bp *visionpb.BoundingPoly) domain.BoundingBox {
	if bp == nil || len(bp.Vertices) == 0 {
		return domain.BoundingBox{}
	}
	minX, minY := math.MaxFloat64, math.MaxFloat64
	maxX, maxY := -math.MaxFloat64, -math.MaxFloat64
	for _, v := range bp.Vertices {
		if v == nil {
			continue
		}
		x, y := float64(v.X), float64(v.Y)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	if minX > maxX {
		return domain.BoundingBox{}
	}
	return domain.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// Close releases the API client.
func (e *Engine) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}
