package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// Ensure Store implements every content and state interface.
var (
	_ driven.DocumentStore       = (*Store)(nil)
	_ driven.PageStore           = (*Store)(nil)
	_ driven.OCRResultStore      = (*Store)(nil)
	_ driven.EntityStore         = (*Store)(nil)
	_ driven.IndexStore          = (*Store)(nil)
	_ driven.IngestionStateStore = (*Store)(nil)
)

// Store is an in-memory implementation of the relational stores.
// One mutex guards everything so cross-table updates stay atomic.
type Store struct {
	mu        sync.RWMutex
	documents map[string]domain.Document
	pages     map[string]domain.Page
	results   map[string]domain.OCRResult
	byPage    map[string]string
	entities  map[string][]domain.Entity
	index     map[string]domain.SearchIndexEntry
	states    map[string]domain.IngestionState
	runs      []domain.IngestionRun
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		documents: make(map[string]domain.Document),
		pages:     make(map[string]domain.Page),
		results:   make(map[string]domain.OCRResult),
		byPage:    make(map[string]string),
		entities:  make(map[string][]domain.Entity),
		index:     make(map[string]domain.SearchIndexEntry),
		states:    make(map[string]domain.IngestionState),
	}
}

// ==================== Documents ====================

// GetDocument retrieves a document by ID.
func (s *Store) GetDocument(_ context.Context, id string) (*domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &doc, nil
}

// InsertDocument stores the document unless its ID exists.
func (s *Store) InsertDocument(_ context.Context, doc *domain.Document) (bool, error) {
	if doc == nil || doc.ID == "" {
		return false, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[doc.ID]; ok {
		return false, nil
	}
	if doc.IngestedAt.IsZero() {
		doc.IngestedAt = time.Now().UTC()
	}
	s.documents[doc.ID] = *doc
	return true, nil
}

// SetPageCount records how many pages were rendered.
func (s *Store) SetPageCount(_ context.Context, id string, pageCount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.PageCount = pageCount
	s.documents[id] = doc
	return nil
}

// SetDocumentMirrorKey records the remote key of the original.
func (s *Store) SetDocumentMirrorKey(_ context.Context, id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.documents[id]
	if !ok {
		return domain.ErrNotFound
	}
	doc.MirrorKey = key
	s.documents[id] = doc
	return nil
}

// ListDocuments returns the most recently ingested documents.
func (s *Store) ListDocuments(_ context.Context, limit int) ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.documents))
	for _, d := range s.documents {
		docs = append(docs, d)
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].IngestedAt.Equal(docs[j].IngestedAt) {
			return docs[i].ID < docs[j].ID
		}
		return docs[i].IngestedAt.After(docs[j].IngestedAt)
	})
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	return docs, nil
}

// ==================== Pages ====================

// GetPage retrieves a page by ID.
func (s *Store) GetPage(_ context.Context, id string) (*domain.Page, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page, ok := s.pages[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &page, nil
}

// InsertPage stores the page unless its ID exists.
func (s *Store) InsertPage(_ context.Context, page *domain.Page) (bool, error) {
	if page == nil || page.ID == "" || page.DocumentID == "" {
		return false, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[page.DocumentID]; !ok {
		return false, domain.ErrNotFound
	}
	if _, ok := s.pages[page.ID]; ok {
		return false, nil
	}
	s.pages[page.ID] = *page
	return true, nil
}

// ListPages returns all pages of a document ordered by page number.
func (s *Store) ListPages(_ context.Context, documentID string) ([]domain.Page, error) {
	return s.filterPages(documentID, false, 0), nil
}

// ListPendingPages returns unprocessed pages.
func (s *Store) ListPendingPages(_ context.Context, documentID string, limit int) ([]domain.Page, error) {
	return s.filterPages(documentID, true, limit), nil
}

func (s *Store) filterPages(documentID string, pendingOnly bool, limit int) []domain.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Page
	for _, p := range s.pages {
		if documentID != "" && p.DocumentID != documentID {
			continue
		}
		if pendingOnly && p.OCRProcessed {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].PageNumber < out[j].PageNumber
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SetPageMirrorKey records the remote key of the page image.
func (s *Store) SetPageMirrorKey(_ context.Context, id, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	page, ok := s.pages[id]
	if !ok {
		return domain.ErrNotFound
	}
	page.MirrorKey = key
	s.pages[id] = page
	return nil
}

// ==================== OCR Results ====================

// SaveResult stores the result and marks its page processed.
func (s *Store) SaveResult(_ context.Context, result *domain.OCRResult) error {
	if result == nil || result.ID == "" || result.PageID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byPage[result.PageID]; ok {
		return domain.ErrAlreadyExists
	}
	if _, ok := s.results[result.ID]; ok {
		return domain.ErrAlreadyExists
	}
	page, ok := s.pages[result.PageID]
	if !ok {
		return domain.ErrNotFound
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}
	page.OCRProcessed = true
	page.OCRProcessedAt = result.CreatedAt
	s.pages[page.ID] = page
	s.results[result.ID] = *result
	s.byPage[result.PageID] = result.ID
	return nil
}

// GetResult retrieves a result by ID.
func (s *Store) GetResult(_ context.Context, id string) (*domain.OCRResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &r, nil
}

// GetResultByPage retrieves the result of a page.
func (s *Store) GetResultByPage(_ context.Context, pageID string) (*domain.OCRResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byPage[pageID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	r := s.results[id]
	return &r, nil
}

// GetResults retrieves several results in the order of ids.
func (s *Store) GetResults(_ context.Context, ids []string) ([]domain.OCRResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.OCRResult, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if r, ok := s.results[id]; ok && !seen[id] {
			out = append(out, r)
			seen[id] = true
		}
	}
	return out, nil
}

// ListUnindexed returns results without a search index entry, oldest first.
func (s *Store) ListUnindexed(_ context.Context, limit int) ([]domain.OCRResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	indexed := make(map[string]bool, len(s.index))
	for _, e := range s.index {
		indexed[e.OCRResultID] = true
	}
	var out []domain.OCRResult
	for _, r := range s.results {
		if !indexed[r.ID] {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ==================== Entities ====================

// SaveEntities stores entities grouped by OCR result.
func (s *Store) SaveEntities(_ context.Context, entities []domain.Entity) error {
	for _, e := range entities {
		if e.ID == "" || e.OCRResultID == "" || !e.Type.Valid() {
			return domain.ErrInvalidInput
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entities {
		s.entities[e.OCRResultID] = append(s.entities[e.OCRResultID], e)
	}
	return nil
}

// ListEntities returns entities of one OCR result in offset order.
func (s *Store) ListEntities(_ context.Context, ocrResultID string) ([]domain.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := append([]domain.Entity(nil), s.entities[ocrResultID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out, nil
}

// FindEntities matches entities by type and case-insensitive substring.
func (s *Store) FindEntities(
	_ context.Context, entityType domain.EntityType, value string, limit int,
) ([]domain.Entity, error) {
	needle := strings.ToLower(strings.TrimSpace(value))
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.entities))
	for id := range s.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []domain.Entity
	for _, id := range ids {
		for _, e := range s.entities[id] {
			if e.Type != entityType {
				continue
			}
			if needle != "" &&
				!strings.Contains(strings.ToLower(e.Value), needle) &&
				!strings.Contains(strings.ToLower(e.NormalizedValue), needle) {
				continue
			}
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// ==================== Search Index ====================

// SaveEntry stores an entry unless one exists for the same OCR result.
func (s *Store) SaveEntry(_ context.Context, entry *domain.SearchIndexEntry) (bool, error) {
	if entry == nil || entry.ID == "" || entry.OCRResultID == "" {
		return false, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.index[entry.OCRResultID]; ok {
		return false, nil
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.index[entry.OCRResultID] = *entry
	return true, nil
}

// GetEntryByResult retrieves the entry of an OCR result.
func (s *Store) GetEntryByResult(_ context.Context, ocrResultID string) (*domain.SearchIndexEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.index[ocrResultID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &e, nil
}

// MatchAny returns entries containing any of the substrings.
func (s *Store) MatchAny(_ context.Context, substrings []string, limit int) ([]domain.SearchIndexEntry, error) {
	if len(substrings) == 0 {
		return nil, nil
	}
	var out []domain.SearchIndexEntry
	for _, e := range s.sortedEntries() {
		for _, sub := range substrings {
			if strings.Contains(e.SearchableText, sub) {
				out = append(out, e)
				break
			}
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Scan returns up to limit entries in creation order.
func (s *Store) Scan(_ context.Context, limit int) ([]domain.SearchIndexEntry, error) {
	out := s.sortedEntries()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) sortedEntries() []domain.SearchIndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SearchIndexEntry, 0, len(s.index))
	for _, e := range s.index {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// ==================== Ingestion State ====================

// EnsureState returns the state, creating an enabled, unpaused one if missing.
func (s *Store) EnsureState(_ context.Context, name string) (*domain.IngestionState, error) {
	if name == "" {
		return nil, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureLocked(name)
	if st.LastSummary != nil {
		sum := *st.LastSummary
		st.LastSummary = &sum
	}
	return &st, nil
}

func (s *Store) ensureLocked(name string) domain.IngestionState {
	st, ok := s.states[name]
	if !ok {
		st = domain.IngestionState{Name: name, Enabled: true}
		s.states[name] = st
	}
	return st
}

// AcquireLease takes or renews the lease.
func (s *Store) AcquireLease(_ context.Context, name, owner string, now time.Time, ttl time.Duration) (bool, error) {
	if owner == "" {
		return false, domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureLocked(name)
	free := st.LeaseOwner == "" || st.LeaseExpiresAt.IsZero() || st.LeaseExpiresAt.Before(now)
	if !free && st.LeaseOwner != owner {
		return false, nil
	}
	st.LeaseOwner = owner
	st.LeaseExpiresAt = now.Add(ttl)
	st.LastHeartbeatAt = now
	s.states[name] = st
	return true, nil
}

// ReleaseLease clears the lease if owner holds it.
func (s *Store) ReleaseLease(_ context.Context, name, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[name]
	if !ok || st.LeaseOwner != owner {
		return nil
	}
	st.LeaseOwner = ""
	st.LeaseExpiresAt = time.Time{}
	s.states[name] = st
	return nil
}

// Heartbeat stamps last_heartbeat_at if owner holds the lease.
func (s *Store) Heartbeat(_ context.Context, name, owner string, now time.Time) error {
	return s.mutate(name, func(st *domain.IngestionState) error {
		if st.LeaseOwner != owner {
			return domain.ErrLeaseLost
		}
		st.LastHeartbeatAt = now
		return nil
	})
}

// MarkRunStarted stamps the start time and clears the previous error.
func (s *Store) MarkRunStarted(_ context.Context, name string, now time.Time) error {
	return s.mutate(name, func(st *domain.IngestionState) error {
		st.LastRunStartedAt = now
		st.LastError = ""
		return nil
	})
}

// MarkRunFinished stores the summary and error of a run.
func (s *Store) MarkRunFinished(
	_ context.Context, name string, now time.Time, completed bool,
	summary domain.RunSummary, lastError string,
) error {
	return s.mutate(name, func(st *domain.IngestionState) error {
		if completed {
			st.LastRunCompletedAt = now
		}
		sum := summary
		sum.Errors = append([]string(nil), summary.Errors...)
		st.LastSummary = &sum
		st.LastError = domain.Truncate(lastError, domain.MaxLastErrorLength)
		return nil
	})
}

// SetEnabled enables or disables the pipeline.
func (s *Store) SetEnabled(_ context.Context, name string, enabled bool) error {
	return s.mutateEnsure(name, func(st *domain.IngestionState) { st.Enabled = enabled })
}

// SetPaused pauses or resumes the pipeline.
func (s *Store) SetPaused(_ context.Context, name string, paused bool) error {
	return s.mutateEnsure(name, func(st *domain.IngestionState) { st.Paused = paused })
}

// SetCancelRequested raises or clears the cancel flag.
func (s *Store) SetCancelRequested(_ context.Context, name string, requested bool) error {
	return s.mutateEnsure(name, func(st *domain.IngestionState) { st.CancelRequested = requested })
}

func (s *Store) mutate(name string, fn func(*domain.IngestionState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[name]
	if !ok {
		return domain.ErrNotFound
	}
	if err := fn(&st); err != nil {
		return err
	}
	s.states[name] = st
	return nil
}

func (s *Store) mutateEnsure(name string, fn func(*domain.IngestionState)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensureLocked(name)
	fn(&st)
	s.states[name] = st
	return nil
}

// RecordRun appends a run to the history.
func (s *Store) RecordRun(_ context.Context, run *domain.IngestionRun) error {
	if run == nil || run.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, *run)
	return nil
}

// ListRuns returns recent runs, most recent first.
func (s *Store) ListRuns(_ context.Context, name string, limit int) ([]domain.IngestionRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.IngestionRun
	for _, r := range s.runs {
		if r.Pipeline == name {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PruneRuns keeps the most recent 'keep' runs per pipeline.
func (s *Store) PruneRuns(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sort.SliceStable(s.runs, func(i, j int) bool { return s.runs[i].StartedAt.After(s.runs[j].StartedAt) })
	counts := make(map[string]int)
	kept := s.runs[:0]
	for _, r := range s.runs {
		if counts[r.Pipeline] < keep {
			kept = append(kept, r)
			counts[r.Pipeline]++
		}
	}
	s.runs = kept
	return nil
}
