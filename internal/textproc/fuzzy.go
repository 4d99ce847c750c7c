package textproc

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// nearPerfect stops the per-term scan once a token this close is found.
const nearPerfect = 0.99

// Ratio is the edit-distance similarity of a and b in [0, 1]:
// 1 - distance / max(len(a), len(b)), measured in characters.
func Ratio(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// FuzzyScore averages, over the query terms, each term's best Ratio
// against any candidate token. A garbled word lowers only its own term.
func FuzzyScore(terms, tokens []string) float64 {
	if len(terms) == 0 || len(tokens) == 0 {
		return 0
	}
	var total float64
	for _, term := range terms {
		best := 0.0
		for _, tok := range tokens {
			if r := Ratio(term, tok); r > best {
				best = r
				if best >= nearPerfect {
					break
				}
			}
		}
		total += best
	}
	return total / float64(len(terms))
}
