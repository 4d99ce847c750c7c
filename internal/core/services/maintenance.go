package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driving"
	"github.com/custodia-labs/pagesift/internal/logger"
)

// Ensure Maintenance implements the interface.
var _ driving.MaintenanceService = (*Maintenance)(nil)

// Maintenance runs OCR and indexing outside of an ingestion run, for pages
// left pending by an interrupted run and for results that were never indexed.
type Maintenance struct {
	ocr     *OCRService
	text    *TextService
	indexer *Indexer
}

// NewMaintenance creates a maintenance service.
func NewMaintenance(ocr *OCRService, text *TextService, indexer *Indexer) *Maintenance {
	return &Maintenance{ocr: ocr, text: text, indexer: indexer}
}

// Backfill OCRs pending pages and post-processes each new result.
// Post-processing failures are appended to the batch errors.
func (m *Maintenance) Backfill(ctx context.Context, limit int) (*domain.PageBatchResult, error) {
	batch, err := m.ocr.ProcessPending(ctx, limit)
	if err != nil {
		return batch, err
	}
	for _, id := range batch.ResultIDs {
		if err := postProcess(ctx, m.text, m.indexer, id); err != nil {
			batch.Errors = append(batch.Errors, err.Error())
		}
	}
	logger.Info("Backfill: processed=%d empty=%d failed=%d", batch.Processed, batch.Empty, batch.Failed)
	return batch, nil
}

// Reindex delegates to the indexer.
func (m *Maintenance) Reindex(ctx context.Context) (int, error) {
	return m.indexer.Reindex(ctx)
}

// postProcess extracts entities from and indexes one OCR result. Both steps
// are attempted even if the first fails.
func postProcess(ctx context.Context, text *TextService, indexer *Indexer, resultID string) error {
	var errs []error
	if _, err := text.ProcessResult(ctx, resultID); err != nil {
		errs = append(errs, fmt.Errorf("%s: entities: %w", resultID, err))
	}
	if _, err := indexer.IndexResult(ctx, resultID); err != nil {
		errs = append(errs, fmt.Errorf("%s: index: %w", resultID, err))
	}
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return fmt.Errorf("%w; %w", errs[0], errs[1])
}
