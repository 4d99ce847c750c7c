// Package textproc holds the pure text functions of the pipeline: OCR
// text normalisation, search tokenisation, entity detection, fuzzy token
// scoring and snippet extraction. Nothing here touches storage.
package textproc

import (
	"strings"
	"unicode"
)

// Normalize collapses whitespace runs to one space, trims the ends and
// strips control characters. It never alters letters, digits or punctuation.
func Normalize(text string) string {
	if text == "" {
		return ""
	}
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsSpace(r):
			return ' '
		case r < 0x20, r >= 0x7f && r <= 0x9f:
			return -1
		}
		return r
	}, text)
	return strings.Join(strings.Fields(cleaned), " ")
}

// SearchText is the lower-cased normalised form stored in the index.
func SearchText(text string) string {
	return strings.ToLower(Normalize(text))
}

// Tokenize splits text into lower-case word tokens. Letters, digits and
// underscores form words; everything else separates them. Duplicates are
// kept in order.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
	if len(fields) == 0 {
		return []string{}
	}
	return fields
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// TruncateRunes shortens s to at most n characters.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
