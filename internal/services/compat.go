// Package services — quantitative compatibility scoring.
//
// This file implements the rule-based half of the compatibility engine: a
// weighted sum over four factors (group size, stated music taste, activity
// description, group emoji). Missing factors are excluded from both the
// numerator and the denominator, so a pair is never penalized for an answer
// neither side could give; when no factor is present at all, the score
// defaults to a neutral 0.5.
//
// All functions here are deterministic and symmetric in their two arguments,
// which keeps the quantitative term a stable anchor against the variance of
// the LLM-backed qualitative term.
package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/a1baseai/mandy-group-matcher/internal/domain"
)

// Factor weights. They total 1.0 over the factors actually present; absent
// factors are renormalized away.
const (
	weightSize     = 0.4
	weightMusic    = 0.25
	weightActivity = 0.25
	weightEmoji    = 0.1
)

// Quantitative computes the rule-based score for two profiles, returning the
// weighted score in [0,1] and the size-similarity factor separately (the
// breakdown reports it even though it is folded into the total).
func Quantitative(a, b *domain.GroupProfile) (score, sizeMatch float64) {
	type factor struct {
		weight float64
		value  float64
	}
	var factors []factor

	sizeMatch = 0.5
	if sa, oka := parseGroupSize(a.GroupSize); oka {
		if sb, okb := parseGroupSize(b.GroupSize); okb {
			sizeMatch = sizeScore(sa, sb)
			factors = append(factors, factor{weightSize, sizeMatch})
		}
	}
	if v, ok := musicScore(a.MusicTaste, b.MusicTaste); ok {
		factors = append(factors, factor{weightMusic, v})
	}
	if v, ok := activityScore(a.IdealActivity, b.IdealActivity); ok {
		factors = append(factors, factor{weightActivity, v})
	}
	if v, ok := emojiScore(a.GroupEmoji, b.GroupEmoji); ok {
		factors = append(factors, factor{weightEmoji, v})
	}

	if len(factors) == 0 {
		return 0.5, sizeMatch
	}

	var num, den float64
	for _, f := range factors {
		num += f.weight * f.value
		den += f.weight
	}
	return num / den, sizeMatch
}

// ---- size ----

var intRE = regexp.MustCompile(`\d+`)

// parseGroupSize extracts the first integer in [1,100] appearing anywhere in
// the answer text. The same rule backs the validator's deterministic accept.
func parseGroupSize(s string) (int, bool) {
	for _, m := range intRE.FindAllString(s, -1) {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if n >= 1 && n <= 100 {
			return n, true
		}
	}
	return 0, false
}

// sizeScore maps the absolute headcount difference onto [0.1, 1.0].
// Symmetric by construction; identical sizes score 1.0.
func sizeScore(a, b int) float64 {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	switch diff {
	case 0:
		return 1.0
	case 1:
		return 0.9
	case 2:
		return 0.7
	case 3:
		return 0.5
	default:
		v := 0.5 - 0.1*float64(diff-3)
		if v < 0.1 {
			return 0.1
		}
		return v
	}
}

// ---- music taste ----

// genreBuckets maps keywords to coarse genre families. Bucket membership is
// substring-based over the normalized answer.
var genreBuckets = map[string][]string{
	"rock":       {"rock", "indie", "metal", "punk", "grunge", "alternative"},
	"pop":        {"pop", "kpop", "k-pop", "top 40", "chart"},
	"hiphop":     {"hip hop", "hip-hop", "hiphop", "rap", "trap", "r&b", "rnb"},
	"electronic": {"edm", "house", "techno", "electronic", "dance", "dnb", "drum and bass"},
	"jazz":       {"jazz", "blues", "soul", "funk"},
	"classical":  {"classical", "orchestra", "symphony", "opera"},
	"folk":       {"country", "folk", "americana", "bluegrass", "acoustic"},
	"latin":      {"latin", "reggaeton", "salsa", "bachata", "cumbia"},
}

// musicScore compares stated music tastes. Exact match 1.0; same genre
// bucket 0.8; both bucketed but differently 0.3; otherwise token-overlap
// fraction capped at 0.5 with a 0.2 floor.
func musicScore(a, b string) (float64, bool) {
	na, nb := normalizeText(a), normalizeText(b)
	if na == "" || nb == "" {
		return 0, false
	}
	if na == nb {
		return 1.0, true
	}

	ba, bb := genreBucket(na), genreBucket(nb)
	if ba != "" && bb != "" {
		if ba == bb {
			return 0.8, true
		}
		return 0.3, true
	}

	frac := tokenOverlapFraction(na, nb)
	if frac > 0.5 {
		frac = 0.5
	}
	if frac < 0.2 {
		frac = 0.2
	}
	return frac, true
}

// genreBucket returns the first bucket whose keyword appears in the text,
// checked in a fixed order so classification is deterministic.
func genreBucket(text string) string {
	// Fixed order; map iteration order is not deterministic.
	for _, bucket := range []string{"rock", "pop", "hiphop", "electronic", "jazz", "classical", "folk", "latin"} {
		for _, kw := range genreBuckets[bucket] {
			if strings.Contains(text, kw) {
				return bucket
			}
		}
	}
	return ""
}

// ---- activity ----

// activityCategories are the fixed keyword buckets for shared-activity
// detection.
var activityCategories = map[string][]string{
	"outdoor":   {"hike", "hiking", "beach", "camp", "park", "outdoor", "climb", "bike", "surf", "trail", "picnic"},
	"food":      {"food", "dinner", "restaurant", "cook", "brunch", "pizza", "taco", "bake", "coffee", "eat"},
	"social":    {"party", "bar", "club", "karaoke", "trivia", "board game", "game night", "hangout", "dancing"},
	"creative":  {"paint", "art", "craft", "pottery", "jam", "music", "photo", "diy", "write"},
	"chill":     {"movie", "chill", "relax", "lounge", "read", "nap", "cozy", "netflix", "spa"},
	"adventure": {"travel", "road trip", "adventure", "explore", "spontaneous", "skydiv", "surprise"},
}

// activityScore compares activity descriptions. Exact match 1.0; shared
// fixed-category keywords 0.7 + 0.1 per shared category (capped at 1.0);
// otherwise 0.2 per shared content word, capped at 0.6.
func activityScore(a, b string) (float64, bool) {
	na, nb := normalizeText(a), normalizeText(b)
	if na == "" || nb == "" {
		return 0, false
	}
	if na == nb {
		return 1.0, true
	}

	shared := 0
	for _, cat := range []string{"outdoor", "food", "social", "creative", "chill", "adventure"} {
		if containsAnyKeyword(na, activityCategories[cat]) && containsAnyKeyword(nb, activityCategories[cat]) {
			shared++
		}
	}
	if shared > 0 {
		v := 0.7 + 0.1*float64(shared)
		if v > 1.0 {
			v = 1.0
		}
		return v, true
	}

	words := sharedWordCount(na, nb)
	v := 0.2 * float64(words)
	if v > 0.6 {
		v = 0.6
	}
	return v, true
}

// ---- emoji ----

// emojiScore compares symbolic answers: exact match scores 0.8, anything
// else 0.3. Even an identical emoji is weak evidence, hence the sub-1 cap.
func emojiScore(a, b string) (float64, bool) {
	na, nb := strings.TrimSpace(a), strings.TrimSpace(b)
	if na == "" || nb == "" {
		return 0, false
	}
	if na == nb {
		return 0.8, true
	}
	return 0.3, true
}

// ---- text helpers ----

var wordRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

// stopWords are dropped before overlap comparisons.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"we": {}, "our": {}, "us": {}, "it": {}, "at": {}, "like": {}, "love": {},
	"really": {}, "some": {}, "lot": {}, "lots": {},
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

func tokenSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range wordRE.FindAllString(s, -1) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

// tokenOverlapFraction returns |A∩B| / |A∪B| over non-stopword tokens.
func tokenOverlapFraction(a, b string) float64 {
	ta, tb := tokenSet(a), tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inter := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			inter++
		}
	}
	union := len(ta) + len(tb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// sharedWordCount counts distinct non-stopword tokens present in both texts.
func sharedWordCount(a, b string) int {
	ta, tb := tokenSet(a), tokenSet(b)
	n := 0
	for w := range ta {
		if _, ok := tb[w]; ok {
			n++
		}
	}
	return n
}

// containsAnyKeyword reports whether any keyword appears as a substring.
func containsAnyKeyword(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
