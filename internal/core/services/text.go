package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/logger"
	"github.com/custodia-labs/pagesift/internal/textproc"
)

// TextService extracts entities from OCR results.
type TextService struct {
	results  driven.OCRResultStore
	entities driven.EntityStore
	detector *textproc.Detector
}

// NewTextService creates a text service with every detector enabled.
func NewTextService(results driven.OCRResultStore, entities driven.EntityStore) *TextService {
	return &TextService{
		results:  results,
		entities: entities,
		detector: textproc.NewDetector(),
	}
}

// ProcessResult detects entities in one OCR result, locates them on the
// page and stores those that map to at least one word box. A result that
// already has entities is left alone. Returns the number stored.
func (s *TextService) ProcessResult(ctx context.Context, ocrResultID string) (int, error) {
	existing, err := s.entities.ListEntities(ctx, ocrResultID)
	if err != nil {
		return 0, fmt.Errorf("list entities: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	result, err := s.results.GetResult(ctx, ocrResultID)
	if err != nil {
		return 0, fmt.Errorf("get result %s: %w", ocrResultID, err)
	}
	if result.NormalizedText == "" {
		return 0, nil
	}

	found := s.detector.DetectEntities(result.NormalizedText)
	mapped := textproc.MapToBoundingBoxes(found, result.WordBoxes)
	if len(mapped) == 0 {
		return 0, nil
	}
	for i := range mapped {
		mapped[i].ID = uuid.NewString()
		mapped[i].OCRResultID = ocrResultID
	}
	if err := s.entities.SaveEntities(ctx, mapped); err != nil {
		return 0, fmt.Errorf("save entities: %w", err)
	}
	logger.Debug("Stored %d of %d entities for %s", len(mapped), len(found), ocrResultID)
	return len(mapped), nil
}
