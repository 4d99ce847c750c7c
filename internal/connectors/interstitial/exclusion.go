package interstitial

import "strings"

// ExclusionRule drops candidates belonging to a sub-collection that must
// not be ingested. A rule matches when the section names one of SectionAny
// and at least one of the following holds: the section also names one of
// SectionAlso, the link text names one of LinkAny, or the href contains
// one of HrefAny. All comparisons are case-insensitive substring checks.
type ExclusionRule struct {
	SectionAny  []string `toml:"section_any"`
	SectionAlso []string `toml:"section_also"`
	LinkAny     []string `toml:"link_any"`
	HrefAny     []string `toml:"href_any"`
}

// Excludes reports whether the rule drops a candidate.
func (r ExclusionRule) Excludes(section, linkText, href string) bool {
	section = strings.ToLower(section)
	if !containsAny(section, r.SectionAny) {
		return false
	}
	return containsAny(section, r.SectionAlso) ||
		containsAny(strings.ToLower(linkText), r.LinkAny) ||
		containsAny(strings.ToLower(href), r.HrefAny)
}

// DefaultExclusionRules skips the transparency-act releases listed under
// the disclosures section.
func DefaultExclusionRules() []ExclusionRule {
	return []ExclusionRule{{
		SectionAny: []string{
			"doj disclosures",
			"doj disclosure",
			"department of justice disclosures",
			"department of justice disclosure",
		},
		SectionAlso: []string{"epstein files transparency act"},
		LinkAny:     []string{"epstein files transparency act", "transparency act", "efta"},
		HrefAny:     []string{"transparency-act"},
	}}
}

func excluded(rules []ExclusionRule, section, linkText, href string) bool {
	for _, r := range rules {
		if r.Excludes(section, linkText, href) {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if n != "" && strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}
