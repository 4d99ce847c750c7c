package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/pagesift/internal/core/domain"
	"github.com/custodia-labs/pagesift/internal/core/ports/driven"
)

// ==================== OCR Result Store ====================

// ocrResultStore implements driven.OCRResultStore.
type ocrResultStore struct {
	store *Store
}

var _ driven.OCRResultStore = (*ocrResultStore)(nil)

const ocrResultColumns = `r.id, r.page_id, r.document_id, r.page_number, r.raw_text,
	r.normalized_text, r.word_boxes, r.bbox, r.confidence, r.engine, r.metadata, r.created_at`

// SaveResult inserts the result and flips the page's processed flag
// in one transaction.
func (s *ocrResultStore) SaveResult(ctx context.Context, result *domain.OCRResult) error {
	if result == nil || result.ID == "" || result.PageID == "" {
		return domain.ErrInvalidInput
	}
	if result.CreatedAt.IsZero() {
		result.CreatedAt = time.Now().UTC()
	}

	words := result.WordBoxes
	if words == nil {
		words = []domain.WordBox{}
	}
	wordJSON, err := marshalJSON(words)
	if err != nil {
		return fmt.Errorf("marshalling word boxes: %w", err)
	}
	var bboxJSON any
	if !result.BBox.IsZero() {
		if bboxJSON, err = marshalJSON(result.BBox); err != nil {
			return fmt.Errorf("marshalling bbox: %w", err)
		}
	}
	metaJSON, err := marshalJSON(result.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	res, err := tx.ExecContext(ctx, s.store.rebind(`
		INSERT INTO ocr_results (id, page_id, document_id, page_number, raw_text,
			normalized_text, word_boxes, bbox, confidence, engine, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`), result.ID, result.PageID, result.DocumentID, result.PageNumber, result.RawText,
		result.NormalizedText, wordJSON, bboxJSON, result.Confidence, result.Engine,
		metaJSON, result.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("inserting ocr result: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking ocr result insert: %w", err)
	}
	if n == 0 {
		return domain.ErrAlreadyExists
	}

	res, err = tx.ExecContext(ctx, s.store.rebind(
		"UPDATE pages SET ocr_processed = 1, ocr_processed_at = ? WHERE id = ?"),
		result.CreatedAt.UnixMilli(), result.PageID)
	if err != nil {
		return fmt.Errorf("marking page processed: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing ocr result: %w", err)
	}
	return nil
}

// GetResult retrieves a result by ID.
func (s *ocrResultStore) GetResult(ctx context.Context, id string) (*domain.OCRResult, error) {
	row := s.store.queryRow(ctx, "SELECT "+ocrResultColumns+" FROM ocr_results r WHERE r.id = ?", id)
	return scanOCRResult(row)
}

// GetResultByPage retrieves the result of a page.
func (s *ocrResultStore) GetResultByPage(ctx context.Context, pageID string) (*domain.OCRResult, error) {
	row := s.store.queryRow(ctx, "SELECT "+ocrResultColumns+" FROM ocr_results r WHERE r.page_id = ?", pageID)
	return scanOCRResult(row)
}

// GetResults retrieves several results in the order of ids.
func (s *ocrResultStore) GetResults(ctx context.Context, ids []string) ([]domain.OCRResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.store.query(ctx, "SELECT "+ocrResultColumns+
		" FROM ocr_results r WHERE r.id IN ("+placeholders(len(ids))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("querying ocr results: %w", err)
	}
	found, err := collectOCRResults(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.OCRResult, len(found))
	for _, r := range found {
		byID[r.ID] = r
	}
	results := make([]domain.OCRResult, 0, len(found))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			results = append(results, r)
			delete(byID, id)
		}
	}
	return results, nil
}

// ListUnindexed returns results without a search index entry, oldest first.
func (s *ocrResultStore) ListUnindexed(ctx context.Context, limit int) ([]domain.OCRResult, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.store.query(ctx, "SELECT "+ocrResultColumns+` FROM ocr_results r
		LEFT JOIN search_index si ON si.ocr_result_id = r.id
		WHERE si.id IS NULL
		ORDER BY r.created_at, r.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying unindexed results: %w", err)
	}
	return collectOCRResults(rows)
}

func collectOCRResults(rows *sql.Rows) ([]domain.OCRResult, error) {
	defer rows.Close()

	var results []domain.OCRResult //nolint:prealloc // size unknown from query
	for rows.Next() {
		r, err := scanOCRResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating ocr results: %w", err)
	}
	return results, nil
}

func scanOCRResult(row rowScanner) (*domain.OCRResult, error) {
	var r domain.OCRResult
	var words, bbox, metadata sql.NullString
	var createdAt sql.NullInt64

	err := row.Scan(&r.ID, &r.PageID, &r.DocumentID, &r.PageNumber, &r.RawText,
		&r.NormalizedText, &words, &bbox, &r.Confidence, &r.Engine, &metadata, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning ocr result: %w", err)
	}

	if err := unmarshalJSON(words, &r.WordBoxes); err != nil {
		return nil, fmt.Errorf("unmarshalling word boxes: %w", err)
	}
	if err := unmarshalJSON(bbox, &r.BBox); err != nil {
		return nil, fmt.Errorf("unmarshalling bbox: %w", err)
	}
	if err := unmarshalJSON(metadata, &r.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshalling metadata: %w", err)
	}
	r.CreatedAt = fromMillis(createdAt)
	return &r, nil
}

// ==================== Entity Store ====================

// entityStore implements driven.EntityStore.
type entityStore struct {
	store *Store
}

var _ driven.EntityStore = (*entityStore)(nil)

const entityColumns = `id, ocr_result_id, entity_type, value, normalized_value,
	start_offset, end_offset, bbox, confidence`

// SaveEntities stores all entities in one transaction.
func (s *entityStore) SaveEntities(ctx context.Context, entities []domain.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	stmt, err := tx.PrepareContext(ctx, s.store.rebind(`
		INSERT INTO entities (`+entityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING
	`))
	if err != nil {
		return fmt.Errorf("preparing entity insert: %w", err)
	}
	defer stmt.Close()

	for i := range entities {
		e := &entities[i]
		if e.ID == "" || e.OCRResultID == "" || !e.Type.Valid() {
			return fmt.Errorf("entity %d: %w", i, domain.ErrInvalidInput)
		}
		var bbox any
		if !e.BBox.IsZero() {
			if bbox, err = marshalJSON(e.BBox); err != nil {
				return fmt.Errorf("marshalling bbox: %w", err)
			}
		}
		if _, err := stmt.ExecContext(ctx, e.ID, e.OCRResultID, string(e.Type), e.Value,
			e.NormalizedValue, e.Start, e.End, bbox, e.Confidence); err != nil {
			return fmt.Errorf("inserting entity: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing entities: %w", err)
	}
	return nil
}

// ListEntities returns entities of one OCR result in offset order.
func (s *entityStore) ListEntities(ctx context.Context, ocrResultID string) ([]domain.Entity, error) {
	rows, err := s.store.query(ctx, "SELECT "+entityColumns+
		" FROM entities WHERE ocr_result_id = ? ORDER BY start_offset, id", ocrResultID)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	return collectEntities(rows)
}

// FindEntities matches entities by type and case-insensitive substring.
func (s *entityStore) FindEntities(
	ctx context.Context, entityType domain.EntityType, value string, limit int,
) ([]domain.Entity, error) {
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}
	needle := strings.ToLower(strings.TrimSpace(value))

	query := "SELECT " + entityColumns + " FROM entities WHERE entity_type = ?"
	args := []any{string(entityType)}
	if needle != "" {
		query += " AND (" + s.store.contains("lower(value)") + " OR " +
			s.store.contains("lower(normalized_value)") + ")"
		args = append(args, needle, needle)
	}
	query += " ORDER BY ocr_result_id, start_offset LIMIT ?"
	args = append(args, limit)

	rows, err := s.store.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entities: %w", err)
	}
	return collectEntities(rows)
}

func collectEntities(rows *sql.Rows) ([]domain.Entity, error) {
	defer rows.Close()

	var entities []domain.Entity //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.Entity
		var entityType string
		var bbox sql.NullString
		if err := rows.Scan(&e.ID, &e.OCRResultID, &entityType, &e.Value, &e.NormalizedValue,
			&e.Start, &e.End, &bbox, &e.Confidence); err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		e.Type = domain.EntityType(entityType)
		if err := unmarshalJSON(bbox, &e.BBox); err != nil {
			return nil, fmt.Errorf("unmarshalling bbox: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

// ==================== Index Store ====================

// indexStore implements driven.IndexStore.
type indexStore struct {
	store *Store
}

var _ driven.IndexStore = (*indexStore)(nil)

const indexColumns = `id, ocr_result_id, document_id, page_id, searchable_text, tokens, created_at`

// SaveEntry stores an entry unless one exists for the OCR result.
func (s *indexStore) SaveEntry(ctx context.Context, entry *domain.SearchIndexEntry) (bool, error) {
	if entry == nil || entry.ID == "" || entry.OCRResultID == "" {
		return false, domain.ErrInvalidInput
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	tokens := entry.Tokens
	if tokens == nil {
		tokens = []string{}
	}
	tokensJSON, err := marshalJSON(tokens)
	if err != nil {
		return false, fmt.Errorf("marshalling tokens: %w", err)
	}

	res, err := s.store.exec(ctx, `
		INSERT INTO search_index (`+indexColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, entry.ID, entry.OCRResultID, entry.DocumentID, entry.PageID, entry.SearchableText,
		tokensJSON, entry.CreatedAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("inserting index entry: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking index insert: %w", err)
	}
	return n == 1, nil
}

// GetEntryByResult retrieves the entry of an OCR result.
func (s *indexStore) GetEntryByResult(ctx context.Context, ocrResultID string) (*domain.SearchIndexEntry, error) {
	row := s.store.queryRow(ctx, "SELECT "+indexColumns+" FROM search_index WHERE ocr_result_id = ?", ocrResultID)
	return scanIndexEntry(row)
}

// MatchAny returns entries containing any of the substrings.
func (s *indexStore) MatchAny(ctx context.Context, substrings []string, limit int) ([]domain.SearchIndexEntry, error) {
	if len(substrings) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = domain.DefaultSearchLimit
	}

	clauses := make([]string, 0, len(substrings))
	args := make([]any, 0, len(substrings)+1)
	for _, sub := range substrings {
		clauses = append(clauses, s.store.contains("searchable_text"))
		args = append(args, sub)
	}
	args = append(args, limit)

	rows, err := s.store.query(ctx, "SELECT "+indexColumns+" FROM search_index WHERE "+
		strings.Join(clauses, " OR ")+" ORDER BY created_at, id LIMIT ?", args...)
	if err != nil {
		return nil, fmt.Errorf("querying search index: %w", err)
	}
	return collectIndexEntries(rows)
}

// Scan returns up to limit entries in creation order.
func (s *indexStore) Scan(ctx context.Context, limit int) ([]domain.SearchIndexEntry, error) {
	if limit <= 0 {
		limit = 5000
	}
	rows, err := s.store.query(ctx, "SELECT "+indexColumns+
		" FROM search_index ORDER BY created_at, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("querying search index: %w", err)
	}
	return collectIndexEntries(rows)
}

func collectIndexEntries(rows *sql.Rows) ([]domain.SearchIndexEntry, error) {
	defer rows.Close()

	var entries []domain.SearchIndexEntry //nolint:prealloc // size unknown from query
	for rows.Next() {
		e, err := scanIndexEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating search index: %w", err)
	}
	return entries, nil
}

func scanIndexEntry(row rowScanner) (*domain.SearchIndexEntry, error) {
	var e domain.SearchIndexEntry
	var tokens sql.NullString
	var createdAt sql.NullInt64

	err := row.Scan(&e.ID, &e.OCRResultID, &e.DocumentID, &e.PageID, &e.SearchableText, &tokens, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning index entry: %w", err)
	}
	if err := unmarshalJSON(tokens, &e.Tokens); err != nil {
		return nil, fmt.Errorf("unmarshalling tokens: %w", err)
	}
	e.CreatedAt = fromMillis(createdAt)
	return &e, nil
}
