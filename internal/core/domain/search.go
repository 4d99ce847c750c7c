package domain

import "time"

// SearchMode selects the matching strategy.
type SearchMode string

// Supported search modes.
const (
	// SearchModeKeyword matches any whitespace-split query token as a substring.
	SearchModeKeyword SearchMode = "keyword"

	// SearchModePhrase matches the whole lower-cased query as a substring.
	SearchModePhrase SearchMode = "phrase"

	// SearchModeFuzzy averages per-term best edit-distance ratios over tokens.
	SearchModeFuzzy SearchMode = "fuzzy"

	// SearchModeSemantic runs nearest-neighbour lookup over embeddings.
	SearchModeSemantic SearchMode = "semantic"
)

// ParseSearchMode converts a string to a SearchMode.
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(s) {
	case SearchModeKeyword, SearchModePhrase, SearchModeFuzzy, SearchModeSemantic:
		return SearchMode(s), nil
	case "":
		return SearchModeKeyword, nil
	}
	return "", ErrUnsupportedType
}

// Default search parameters.
const (
	DefaultSearchLimit    = 20
	DefaultFuzzyThreshold = 0.6
)

// SearchOptions configures a search query.
type SearchOptions struct {
	// Mode selects the matching strategy. Defaults to keyword.
	Mode SearchMode

	// Limit is the maximum number of results. Always enforced.
	Limit int

	// Threshold is the minimum fuzzy score (default 0.6).
	Threshold float64
}

// SearchResult is the normalised shape returned by every search mode.
type SearchResult struct {
	OCRResultID string
	DocumentID  string
	PageNumber  int

	// Snippet is a window of text around the first match.
	Snippet string

	// FullText is the normalised text truncated to 500 characters.
	FullText string

	Confidence float64

	// Similarity is set by fuzzy and semantic modes.
	Similarity float64

	ImagePath string
	BBox      BoundingBox
	WordBoxes []WordBox
}

// SearchIndexEntry is the derived lexical form of one OCRResult.
// It is created once and never mutated.
type SearchIndexEntry struct {
	ID          string
	OCRResultID string
	DocumentID  string
	PageID      string

	// SearchableText is lower-cased and whitespace-normalised.
	SearchableText string

	// Tokens keeps every occurrence in order.
	Tokens []string

	CreatedAt time.Time
}
