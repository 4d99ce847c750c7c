package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
	"github.com/custodia-labs/pagesift/internal/core/ports/driving"
	"github.com/custodia-labs/pagesift/internal/logger"
	"github.com/custodia-labs/pagesift/internal/textproc"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// DefaultFuzzyCandidates caps how many index entries a fuzzy query scores.
const DefaultFuzzyCandidates = 5000

const entityFanout = 5

// SearchSettings holds search defaults.
type SearchSettings struct {
	DefaultLimit    int
	FuzzyThreshold  float64
	FuzzyCandidates int
}

// SearchService answers queries over the search index.
type SearchService struct {
	results  driven.OCRResultStore
	pages    driven.PageStore
	index    driven.IndexStore
	entities driven.EntityStore

	embedder driven.EmbeddingService
	vectors  driven.VectorIndex

	settings SearchSettings
}

// NewSearchService creates a search service. embedder and vectors are
// optional; without them semantic queries fail with ErrEmbeddingUnavailable.
func NewSearchService(
	results driven.OCRResultStore,
	pages driven.PageStore,
	index driven.IndexStore,
	entities driven.EntityStore,
	embedder driven.EmbeddingService,
	vectors driven.VectorIndex,
	settings SearchSettings,
) *SearchService {
	if settings.DefaultLimit <= 0 {
		settings.DefaultLimit = domain.DefaultSearchLimit
	}
	if settings.FuzzyThreshold <= 0 {
		settings.FuzzyThreshold = domain.DefaultFuzzyThreshold
	}
	if settings.FuzzyCandidates <= 0 {
		settings.FuzzyCandidates = DefaultFuzzyCandidates
	}
	return &SearchService{
		results:  results,
		pages:    pages,
		index:    index,
		entities: entities,
		embedder: embedder,
		vectors:  vectors,
		settings: settings,
	}
}

// scoredHit is a matched OCR result before hydration.
type scoredHit struct {
	id    string
	score float64
	box   domain.BoundingBox
}

// Search answers query in the mode given by opts. The limit is enforced
// whatever the mode.
func (s *SearchService) Search(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Search Execution")
	logger.Debug("Query: %q mode=%s", query, opts.Mode)

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = s.settings.DefaultLimit
	}
	mode := opts.Mode
	if mode == "" {
		mode = domain.SearchModeKeyword
	}

	var (
		hits []scoredHit
		err  error
	)
	switch mode {
	case domain.SearchModeKeyword:
		hits, err = s.match(ctx, strings.Fields(strings.ToLower(query)), limit)
	case domain.SearchModePhrase:
		hits, err = s.match(ctx, []string{textproc.SearchText(query)}, limit)
	case domain.SearchModeFuzzy:
		threshold := opts.Threshold
		if threshold <= 0 {
			threshold = s.settings.FuzzyThreshold
		}
		hits, err = s.fuzzy(ctx, query, threshold, limit)
	case domain.SearchModeSemantic:
		hits, err = s.semantic(ctx, query, limit)
	default:
		return nil, fmt.Errorf("search mode %q: %w", mode, domain.ErrUnsupportedType)
	}
	if err != nil {
		return nil, err
	}

	results, err := s.hydrate(ctx, hits, query, mode != domain.SearchModeKeyword && mode != domain.SearchModePhrase)
	if err != nil {
		return nil, err
	}
	logger.Debug("Search returned %d results", len(results))
	return results, nil
}

// match returns entries containing any of the substrings, in index order.
func (s *SearchService) match(ctx context.Context, substrings []string, limit int) ([]scoredHit, error) {
	entries, err := s.index.MatchAny(ctx, substrings, limit)
	if err != nil {
		return nil, fmt.Errorf("index match: %w", err)
	}
	hits := make([]scoredHit, 0, len(entries))
	for _, e := range entries {
		hits = append(hits, scoredHit{id: e.OCRResultID})
	}
	return hits, nil
}

// fuzzy scores up to FuzzyCandidates entries by per-term best token ratio.
func (s *SearchService) fuzzy(ctx context.Context, query string, threshold float64, limit int) ([]scoredHit, error) {
	terms := textproc.Tokenize(query)
	if len(terms) == 0 {
		return nil, nil
	}
	entries, err := s.index.Scan(ctx, s.settings.FuzzyCandidates)
	if err != nil {
		return nil, fmt.Errorf("index scan: %w", err)
	}

	var hits []scoredHit
	for _, e := range entries {
		score := textproc.FuzzyScore(terms, e.Tokens)
		if score >= threshold {
			hits = append(hits, scoredHit{id: e.OCRResultID, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (s *SearchService) semantic(ctx context.Context, query string, limit int) ([]scoredHit, error) {
	if s.embedder == nil || s.vectors == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	found, err := s.vectors.Search(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	hits := make([]scoredHit, 0, len(found))
	for _, h := range found {
		hits = append(hits, scoredHit{id: h.ID, score: h.Similarity})
	}
	return hits, nil
}

// SearchEntities returns the OCR results holding an entity of entityType
// whose value contains value. Each result is located at the entity.
func (s *SearchService) SearchEntities(
	ctx context.Context, entityType domain.EntityType, value string, limit int,
) ([]domain.SearchResult, error) {
	if !entityType.Valid() {
		return nil, fmt.Errorf("entity type %q: %w", entityType, domain.ErrUnsupportedType)
	}
	if limit <= 0 {
		limit = s.settings.DefaultLimit
	}

	// Several entities may share a result.
	found, err := s.entities.FindEntities(ctx, entityType, value, limit*entityFanout)
	if err != nil {
		return nil, fmt.Errorf("find entities: %w", err)
	}

	seen := make(map[string]bool)
	var hits []scoredHit
	for _, e := range found {
		if seen[e.OCRResultID] {
			continue
		}
		seen[e.OCRResultID] = true
		hits = append(hits, scoredHit{id: e.OCRResultID, score: e.Confidence, box: e.BBox})
		if len(hits) == limit {
			break
		}
	}

	query := value
	if query == "" && len(found) > 0 {
		query = found[0].Value
	}
	return s.hydrate(ctx, hits, query, false)
}

// hydrate loads the OCR results of hits, preserving hit order. Results
// that vanished are skipped.
func (s *SearchService) hydrate(
	ctx context.Context, hits []scoredHit, query string, withSimilarity bool,
) ([]domain.SearchResult, error) {
	out := make([]domain.SearchResult, 0, len(hits))
	if len(hits) == 0 {
		return out, nil
	}

	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	loaded, err := s.results.GetResults(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load results: %w", err)
	}
	byID := make(map[string]*domain.OCRResult, len(loaded))
	for i := range loaded {
		byID[loaded[i].ID] = &loaded[i]
	}

	images := make(map[string]string)
	for _, h := range hits {
		r, ok := byID[h.id]
		if !ok {
			continue
		}
		text := r.NormalizedText
		res := domain.SearchResult{
			OCRResultID: r.ID,
			DocumentID:  r.DocumentID,
			PageNumber:  r.PageNumber,
			Snippet:     textproc.Snippet(text, query, textproc.SnippetContext),
			FullText:    textproc.TruncateRunes(text, textproc.FullTextLimit),
			Confidence:  r.Confidence,
			ImagePath:   s.imagePath(ctx, r.PageID, images),
			BBox:        r.BBox,
			WordBoxes:   r.WordBoxes,
		}
		if withSimilarity {
			res.Similarity = h.score
		}
		if !h.box.IsZero() {
			res.BBox = h.box
		}
		out = append(out, res)
	}
	return out, nil
}

func (s *SearchService) imagePath(ctx context.Context, pageID string, cache map[string]string) string {
	if p, ok := cache[pageID]; ok {
		return p
	}
	page, err := s.pages.GetPage(ctx, pageID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			logger.Warn("Page lookup %s failed: %v", pageID, err)
		}
		cache[pageID] = ""
		return ""
	}
	cache[pageID] = page.ImagePath
	return page.ImagePath
}
