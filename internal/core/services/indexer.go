package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/logger"
	"github.com/custodia-labs/pagesift/internal/textproc"
)

// reindexBatch is how many unindexed results Reindex loads at a time.
const reindexBatch = 200

// Indexer builds the lexical search entry of an OCR result and, when
// semantic search is configured, its embedding.
// The embedding path is best effort and never blocks lexical indexing.
type Indexer struct {
	results driven.OCRResultStore
	index   driven.IndexStore

	embedder driven.EmbeddingService
	vectors  driven.VectorIndex

	now func() time.Time
}

// NewIndexer creates an indexer. embedder and vectors may be nil.
func NewIndexer(
	results driven.OCRResultStore,
	index driven.IndexStore,
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
) *Indexer {
	return &Indexer{
		results:  results,
		index:    index,
		embedder: embedder,
		vectors:  vectors,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Semantic reports whether embeddings are produced.
func (i *Indexer) Semantic() bool {
	return i.embedder != nil && i.vectors != nil
}

// IndexResult indexes one OCR result. It returns false when the result
// was already indexed.
func (i *Indexer) IndexResult(ctx context.Context, ocrResultID string) (bool, error) {
	if _, err := i.index.GetEntryByResult(ctx, ocrResultID); err == nil {
		return false, nil
	} else if !errors.Is(err, domain.ErrNotFound) {
		return false, fmt.Errorf("get index entry: %w", err)
	}

	result, err := i.results.GetResult(ctx, ocrResultID)
	if err != nil {
		return false, fmt.Errorf("get result %s: %w", ocrResultID, err)
	}
	return i.indexResult(ctx, result)
}

func (i *Indexer) indexResult(ctx context.Context, result *domain.OCRResult) (bool, error) {
	text := textproc.SearchText(result.NormalizedText)
	entry := &domain.SearchIndexEntry{
		ID:             uuid.NewString(),
		OCRResultID:    result.ID,
		DocumentID:     result.DocumentID,
		PageID:         result.PageID,
		SearchableText: text,
		Tokens:         textproc.Tokenize(text),
		CreatedAt:      i.now(),
	}
	saved, err := i.index.SaveEntry(ctx, entry)
	if err != nil {
		return false, fmt.Errorf("save index entry: %w", err)
	}
	if !saved {
		return false, nil
	}

	if i.Semantic() && text != "" {
		i.embed(ctx, result.ID, text)
	}
	return true, nil
}

func (i *Indexer) embed(ctx context.Context, id, text string) {
	vec, err := i.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn("Embedding %s failed: %v", id, err)
		return
	}
	if err := i.vectors.Add(ctx, id, vec); err != nil {
		logger.Warn("Vector index add %s failed: %v", id, err)
	}
}

// Reindex backfills entries for results that lack one. Returns how many
// were indexed.
func (i *Indexer) Reindex(ctx context.Context) (int, error) {
	total := 0
	for {
		pending, err := i.results.ListUnindexed(ctx, reindexBatch)
		if err != nil {
			return total, fmt.Errorf("list unindexed: %w", err)
		}
		if len(pending) == 0 {
			break
		}
		progress := 0
		for idx := range pending {
			if err := ctx.Err(); err != nil {
				return total, err
			}
			saved, err := i.indexResult(ctx, &pending[idx])
			if err != nil {
				logger.Warn("Reindex of %s failed: %v", pending[idx].ID, err)
				continue
			}
			if saved {
				total++
				progress++
			}
		}
		if progress == 0 {
			break
		}
	}
	logger.Info("Reindexed %d results", total)
	return total, nil
}
