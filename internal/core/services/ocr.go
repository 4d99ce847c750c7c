package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/core/ports/driving"
	"github.com/custodia-labs/pagesift/internal/logger"
	"github.com/custodia-labs/pagesift/internal/preprocess"
	"github.com/custodia-labs/pagesift/internal/textproc"
)

// Ensure OCRService implements the interface.
var _ driving.OCRService = (*OCRService)(nil)

// DefaultBaseWeight keeps long low-confidence text competitive with short
// confident text in the selection score.
const DefaultBaseWeight = 0.3

// DefaultOCRWorkers bounds concurrent pages within one document.
const DefaultOCRWorkers = 2

// OCRService runs every preprocessing variant of a page through every
// configured engine and keeps the best-scoring extraction.
type OCRService struct {
	pages     driven.PageStore
	results   driven.OCRResultStore
	pageBlobs driven.BlobStore
	engines   []driven.OCREngine
	prep      *preprocess.Engine

	baseWeight float64
	workers    int
	now        func() time.Time
}

// OCROptions tunes selection and concurrency.
type OCROptions struct {
	BaseWeight float64
	Workers    int
}

// NewOCRService creates an OCR service. At least one engine is required.
func NewOCRService(
	pages driven.PageStore,
	results driven.OCRResultStore,
	pageBlobs driven.BlobStore,
	engines []driven.OCREngine,
	prep *preprocess.Engine,
	opts OCROptions,
) *OCRService {
	if prep == nil {
		prep = preprocess.New(preprocess.DefaultOptions())
	}
	if opts.BaseWeight <= 0 {
		opts.BaseWeight = DefaultBaseWeight
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultOCRWorkers
	}
	return &OCRService{
		pages:      pages,
		results:    results,
		pageBlobs:  pageBlobs,
		engines:    engines,
		prep:       prep,
		baseWeight: opts.BaseWeight,
		workers:    opts.Workers,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Score is the selection score of an extraction.
func Score(text string, confidence, baseWeight float64) float64 {
	return float64(utf8.RuneCountInString(text)+1) * (baseWeight + confidence)
}

// candidate is one engine's extraction on one variant.
type candidate struct {
	variant    preprocess.Variant
	extraction *domain.Extraction
	score      float64
}

// ProcessPage OCRs one page. A page that already has a result returns it.
// A page no engine found text on, including one where every engine call
// failed, is still marked processed with an empty result. The last engine
// error is kept under MetaError.
func (s *OCRService) ProcessPage(ctx context.Context, pageID string) (*domain.OCRResult, error) {
	if len(s.engines) == 0 {
		return nil, fmt.Errorf("ocr: no engines configured: %w", domain.ErrEngineUnavailable)
	}
	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		return nil, fmt.Errorf("get page %s: %w", pageID, err)
	}
	if page.OCRProcessed {
		return s.results.GetResultByPage(ctx, pageID)
	}

	img, err := readImage(ctx, s.pageBlobs, page.BlobKey)
	if err != nil {
		return nil, fmt.Errorf("load page %s: %w", pageID, err)
	}
	variants, err := s.prep.Variants(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("preprocess page %s: %w", pageID, err)
	}

	best, engineErr, err := s.selectBest(ctx, pageID, variants)
	if err != nil {
		return nil, err
	}

	result := &domain.OCRResult{
		ID:         uuid.NewString(),
		PageID:     page.ID,
		DocumentID: page.DocumentID,
		PageNumber: page.PageNumber,
		WordBoxes:  []domain.WordBox{},
		Metadata:   map[string]any{},
		CreatedAt:  s.now(),
	}
	if best != nil {
		s.fill(result, best)
	} else if engineErr != nil {
		result.Metadata[domain.MetaError] = engineErr.Error()
		logger.Warn("OCR %s: no engine call succeeded, storing empty result: %v", pageID, engineErr)
	}

	if err := s.results.SaveResult(ctx, result); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return s.results.GetResultByPage(ctx, pageID)
		}
		return nil, fmt.Errorf("save result for %s: %w", pageID, err)
	}
	logger.Debug("OCR %s: %d chars via %s", pageID, len(result.RawText), result.Engine)
	return result, nil
}

// selectBest runs the variant x engine product and returns the highest
// scoring non-empty extraction, or nil. engineErr is the last engine error
// when no call succeeded; err is only set on cancellation.
func (s *OCRService) selectBest(
	ctx context.Context, pageID string, variants []preprocess.Variant,
) (best *candidate, engineErr error, err error) {
	var (
		succeeded int
		lastErr   error
	)
	for _, v := range variants {
		data, err := v.PNG()
		if err != nil {
			lastErr = err
			continue
		}
		for _, eng := range s.engines {
			if cerr := ctx.Err(); cerr != nil {
				return nil, nil, cerr
			}
			ext, err := eng.ExtractText(ctx, data)
			if err != nil {
				if ctx.Err() != nil {
					return nil, nil, ctx.Err()
				}
				logger.Debug("OCR %s: %s on %s failed: %v", pageID, eng.Name(), v.Name, err)
				lastErr = err
				continue
			}
			succeeded++
			if ext == nil || strings.TrimSpace(ext.Text) == "" {
				continue
			}
			if ext.Engine == "" {
				ext.Engine = eng.Name()
			}
			sc := Score(ext.Text, ext.Confidence, s.baseWeight)
			if best == nil || sc > best.score {
				best = &candidate{variant: v, extraction: ext, score: sc}
			}
		}
	}
	if succeeded == 0 && lastErr != nil {
		return nil, lastErr, nil
	}
	return best, nil, nil
}

// fill copies the winning extraction into result, mapping word boxes back
// to the source page.
func (s *OCRService) fill(result *domain.OCRResult, best *candidate) {
	ext := best.extraction
	v := best.variant

	boxes := make([]domain.WordBox, 0, len(ext.WordBoxes))
	var confSum float64
	for _, w := range ext.WordBoxes {
		mapped := v.ToOriginal(w)
		boxes = append(boxes, mapped)
		confSum += mapped.Confidence
	}

	result.RawText = ext.Text
	result.NormalizedText = textproc.Normalize(ext.Text)
	result.WordBoxes = boxes
	result.BBox = domain.UnionBoxes(boxes)
	result.Engine = ext.Engine
	result.Confidence = ext.Confidence
	if len(boxes) > 0 {
		result.Confidence = confSum / float64(len(boxes))
	}

	for k, val := range ext.Metadata {
		result.Metadata[k] = val
	}
	result.Metadata[domain.MetaVariant] = v.Name
	result.Metadata[domain.MetaScale] = v.ScaleFactor
	result.Metadata[domain.MetaDeskewAngle] = v.RotationDegrees
	if len(s.engines) > 1 {
		result.Metadata[domain.MetaSelectedEngine] = ext.Engine
	}
}

// ProcessDocument OCRs every pending page of a document.
func (s *OCRService) ProcessDocument(ctx context.Context, documentID string) (*domain.PageBatchResult, error) {
	pages, err := s.pages.ListPendingPages(ctx, documentID, 0)
	if err != nil {
		return nil, fmt.Errorf("list pending pages: %w", err)
	}
	return s.processPages(ctx, pages)
}

// ProcessPending OCRs up to limit unprocessed pages across documents.
func (s *OCRService) ProcessPending(ctx context.Context, limit int) (*domain.PageBatchResult, error) {
	pages, err := s.pages.ListPendingPages(ctx, "", limit)
	if err != nil {
		return nil, fmt.Errorf("list pending pages: %w", err)
	}
	logger.Info("OCR backfill: %d pending pages", len(pages))
	return s.processPages(ctx, pages)
}

func (s *OCRService) processPages(ctx context.Context, pages []domain.Page) (*domain.PageBatchResult, error) {
	res := &domain.PageBatchResult{ResultIDs: []string{}, Errors: []string{}}
	if len(pages) == 0 {
		return res, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for _, p := range pages {
		pageID := p.ID
		g.Go(func() error {
			r, err := s.ProcessPage(gctx, pageID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				if gctx.Err() != nil {
					return gctx.Err()
				}
				res.Failed++
				res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", pageID, err))
				logger.Warn("OCR failed for %s: %v", pageID, err)
			case strings.TrimSpace(r.RawText) == "":
				res.Empty++
				res.ResultIDs = append(res.ResultIDs, r.ID)
			default:
				res.Processed++
				res.ResultIDs = append(res.ResultIDs, r.ID)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return res, err
	}
	return res, nil
}
