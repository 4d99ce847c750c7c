package textproc

import (
	"strings"
	"unicode"
)

// Snippet window sizes, in characters.
const (
	SnippetContext  = 100
	SnippetFallback = 200
	FullTextLimit   = 500
)

const ellipsis = "..."

// Snippet returns text around the first case-insensitive occurrence of
// query, or of its first whitespace-separated word found, with context
// characters either side. Ellipses mark truncated ends. When nothing
// matches, the first SnippetFallback characters are returned.
func Snippet(text, query string, context int) string {
	runes := []rune(text)
	lower := lowerRunes(runes)

	// Lowering rune by rune keeps needle and haystack offsets aligned with
	// runes, which strings.ToLower does not guarantee.
	needle := lowerRunes([]rune(query))
	pos := indexRunes(lower, needle)
	if pos < 0 {
		for _, w := range strings.Fields(query) {
			needle = lowerRunes([]rune(w))
			if pos = indexRunes(lower, needle); pos >= 0 {
				break
			}
		}
	}
	if pos < 0 {
		if len(runes) > SnippetFallback {
			return string(runes[:SnippetFallback]) + ellipsis
		}
		return text
	}

	start := pos - context
	if start < 0 {
		start = 0
	}
	end := pos + len(needle) + context
	if end > len(runes) {
		end = len(runes)
	}

	snippet := string(runes[start:end])
	if start > 0 {
		snippet = ellipsis + snippet
	}
	if end < len(runes) {
		snippet += ellipsis
	}
	return snippet
}

func lowerRunes(rs []rune) []rune {
	out := make([]rune, len(rs))
	for i, r := range rs {
		out[i] = unicode.ToLower(r)
	}
	return out
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return -1
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j := range needle {
			if haystack[i+j] != needle[j] {
				continue outer
			}
		}
		return i
	}
	return -1
}
