package textproc

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/custodia-labs/pagesift/internal/core/domain"
)

var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)

	phonePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`), // 123-456-7890
		regexp.MustCompile(`\(\d{3}\)\s?\d{3}[-.]?\d{4}\b`), // (123) 456-7890
		regexp.MustCompile(`\b\d{10}\b`),                    // 1234567890
	}

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`),
		regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{1,2},?\s+\d{4}\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+\d{4}\b`),
	}

	namePattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)+\b`)

	nonDigit = regexp.MustCompile(`\D`)
	wordSpan = regexp.MustCompile(`[A-Z][a-z]+`)
)

// nameStoplist holds capitalised words that begin sentences or headers
// rather than names.
var nameStoplist = map[string]bool{
	"The": true, "This": true, "That": true, "These": true, "Those": true,
	"Page": true, "Date": true, "Time": true, "Subject": true, "From": true, "To": true,
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true,
	"Friday": true, "Saturday": true, "Sunday": true,
	"January": true, "February": true, "March": true, "April": true, "May": true, "June": true,
	"July": true, "August": true, "September": true, "October": true, "November": true, "December": true,
}

// Detector finds entities in normalised text. Each type can be disabled.
type Detector struct {
	Emails bool
	Phones bool
	Dates  bool
	Names  bool
}

// NewDetector returns a detector with every type enabled.
func NewDetector() *Detector {
	return &Detector{Emails: true, Phones: true, Dates: true, Names: true}
}

// DetectEntities runs every enabled detector. Offsets are byte offsets into
// text; results are ordered by start offset then type. Overlapping matches
// of the same type and span are reported once.
func (d *Detector) DetectEntities(text string) []domain.Entity {
	var out []domain.Entity
	if d.Emails {
		for _, loc := range emailPattern.FindAllStringIndex(text, -1) {
			v := text[loc[0]:loc[1]]
			out = append(out, span(domain.EntityEmail, v, strings.ToLower(v), loc))
		}
	}
	if d.Phones {
		for _, p := range phonePatterns {
			for _, loc := range p.FindAllStringIndex(text, -1) {
				v := text[loc[0]:loc[1]]
				out = append(out, span(domain.EntityPhone, v, nonDigit.ReplaceAllString(v, ""), loc))
			}
		}
	}
	if d.Dates {
		for _, p := range datePatterns {
			for _, loc := range p.FindAllStringIndex(text, -1) {
				v := text[loc[0]:loc[1]]
				out = append(out, span(domain.EntityDate, v, NormalizeDate(v), loc))
			}
		}
	}
	if d.Names {
		for _, loc := range namePattern.FindAllStringIndex(text, -1) {
			if e, ok := nameEntity(text, loc); ok {
				out = append(out, e)
			}
		}
	}
	return dedupe(out)
}

func span(t domain.EntityType, value, normalized string, loc []int) domain.Entity {
	return domain.Entity{
		Type:            t,
		Value:           value,
		NormalizedValue: normalized,
		Start:           loc[0],
		End:             loc[1],
		Confidence:      1.0,
	}
}

// nameEntity drops stoplisted leading words ("The", "Subject", month
// names) and keeps the match only if at least two words remain.
func nameEntity(text string, loc []int) (domain.Entity, bool) {
	match := text[loc[0]:loc[1]]
	words := wordSpan.FindAllStringIndex(match, -1)
	first := 0
	for first < len(words) && nameStoplist[match[words[first][0]:words[first][1]]] {
		first++
	}
	if len(words)-first < 2 {
		return domain.Entity{}, false
	}
	start := loc[0] + words[first][0]
	value := text[start:loc[1]]
	return span(domain.EntityName, value, strings.Join(strings.Fields(value), " "), []int{start, loc[1]}), true
}

// NormalizeDate parses a date string to YYYY-MM-DD, returning the input
// unchanged when it cannot be parsed.
func NormalizeDate(s string) string {
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return s
	}
	return t.Format("2006-01-02")
}

func dedupe(in []domain.Entity) []domain.Entity {
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Start != in[j].Start {
			return in[i].Start < in[j].Start
		}
		return in[i].Type < in[j].Type
	})
	type key struct {
		t          domain.EntityType
		start, end int
	}
	seen := make(map[key]bool, len(in))
	out := in[:0]
	for _, e := range in {
		k := key{e.Type, e.Start, e.End}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	return out
}

// MapToBoundingBoxes assigns each entity the union of the word boxes
// overlapping its [Start, End) span. Word positions are reconstructed by
// walking the boxes in order, assuming one separator between words.
// Entities that overlap no box are dropped.
func MapToBoundingBoxes(entities []domain.Entity, boxes []domain.WordBox) []domain.Entity {
	type wordSpanPos struct{ start, end int }
	positions := make([]wordSpanPos, len(boxes))
	cursor := 0
	for i, b := range boxes {
		positions[i] = wordSpanPos{cursor, cursor + len(b.Text)}
		cursor += len(b.Text) + 1
	}

	out := make([]domain.Entity, 0, len(entities))
	for _, e := range entities {
		var box domain.BoundingBox
		matched := false
		for i, p := range positions {
			if p.start < e.End && p.end > e.Start {
				box = box.Union(boxes[i].Box())
				matched = true
			}
		}
		if !matched {
			continue
		}
		e.BBox = box
		out = append(out, e)
	}
	return out
}
