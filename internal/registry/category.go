package registry

import (
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/cases"
)

// Category matching is deliberately fuzzy: a professional listing "tiles"
// should match a lead asking for "Tile installation" even though the strings
// differ. The rule is case-folded bidirectional substring containment, on
// the whole strings and on their tokens, preserved from the original
// marketplace behavior. Substring matching can
// overreach ("tile" inside "volatile"), so near-misses and the fuzziness
// itself are logged for data-quality review rather than silently tightened.

var fold = cases.Fold()

func normalizeCategory(s string) string {
	return fold.String(strings.TrimSpace(s))
}

// categoryMatches reports whether one normalized category string matches
// another under the bidirectional substring rule. The check runs whole-string
// first, then token-wise, so "tiles" matches "tile installation" through the
// "tile" token.
func categoryMatches(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return true
	}
	for _, t := range strings.Fields(a) {
		if strings.Contains(b, t) {
			return true
		}
	}
	for _, t := range strings.Fields(b) {
		if strings.Contains(a, t) {
			return true
		}
	}
	return false
}

// MatchesCategory reports whether any of the profile's categories matches
// the lead category. Logs near-misses (shared token prefix without a
// substring hit) at debug.
func MatchesCategory(profileCategories []string, leadCategory string) bool {
	want := normalizeCategory(leadCategory)
	if want == "" {
		return false
	}
	for _, c := range profileCategories {
		if categoryMatches(normalizeCategory(c), want) {
			return true
		}
	}
	for _, c := range profileCategories {
		if nearMiss(normalizeCategory(c), want) {
			zap.L().Debug("registry: category near-miss",
				zap.String("profile_category", c),
				zap.String("lead_category", leadCategory),
			)
		}
	}
	return false
}

// nearMiss reports whether two categories share a token prefix of at least
// four characters without matching. Flags likely naming inconsistencies
// ("tile" vs "tiling") for review.
func nearMiss(a, b string) bool {
	for _, ta := range strings.Fields(a) {
		for _, tb := range strings.Fields(b) {
			n := min(len(ta), len(tb))
			if n >= 4 && ta[:4] == tb[:4] {
				return true
			}
		}
	}
	return false
}
