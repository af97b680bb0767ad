// Package match scores case-name similarity and enforces the case-name
// validity filter that guards every positive verification.
package match

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// Threshold is the minimum similarity for two case names to match
const Threshold = 0.5

// partialMinLen is the minimum word length eligible for substring matching
const partialMinLen = 6

var (
	corporateSuffixes = map[string]bool{
		"llc": true, "inc": true, "corp": true, "corporation": true, "co": true,
		"ltd": true, "lp": true, "llp": true, "pllc": true, "incorporated": true,
		"company": true, "na": true, "pc": true,
	}

	stopWords = map[string]bool{
		"the": true, "and": true, "of": true, "a": true, "an": true, "in": true,
		"re": true, "ex": true, "rel": true, "et": true, "al": true,
	}

	versusRe = regexp.MustCompile(`(?i)\b(?:versus|vs\.?|v\.?)(?:\s|$)`)
)

// NormalizeName lowercases a case name, collapses "v."/"vs."/"versus" to "v",
// and strips punctuation, corporate suffixes and stop words.
func NormalizeName(name string) string {
	return strings.Join(tokens(name, true), " ")
}

// Similarity returns a weighted word-overlap score in [0,1]. Exact word
// matches count double; substring matches between words longer than five
// characters count single. The score is normalized by the smaller name's
// significant-word count. Symmetric and reflexive.
func Similarity(a, b string) float64 {
	wa := significantSet(a)
	wb := significantSet(b)

	if len(wa) == 0 && len(wb) == 0 {
		if NormalizeName(a) == NormalizeName(b) {
			return 1.0
		}
		return 0.0
	}
	if len(wa) == 0 || len(wb) == 0 {
		return 0.0
	}

	exact := 0
	for w := range wa {
		if wb[w] {
			exact++
		}
	}

	// Count partials from both sides and keep the smaller so the score is symmetric
	partial := min(partialMatches(wa, wb), partialMatches(wb, wa))

	smaller := min(len(wa), len(wb))
	score := float64(2*exact+partial) / float64(2*smaller)
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// Matches reports whether two names meet the similarity threshold
func Matches(a, b string) bool {
	return Similarity(a, b) >= Threshold
}

// SignificantWords returns the sorted significant words of a case name
func SignificantWords(name string) []string {
	set := significantSet(name)
	words := make([]string, 0, len(set))
	for w := range set {
		words = append(words, w)
	}
	sort.Strings(words)
	return words
}

// partialMatches counts words in from (not exactly present in to) that share
// a substring relation with some unmatched long word in to
func partialMatches(from, to map[string]bool) int {
	count := 0
	for w := range from {
		if to[w] || len(w) < partialMinLen {
			continue
		}
		for x := range to {
			if from[x] || len(x) < partialMinLen {
				continue
			}
			if strings.Contains(w, x) || strings.Contains(x, w) {
				count++
				break
			}
		}
	}
	return count
}

func significantSet(name string) map[string]bool {
	set := make(map[string]bool)
	for _, t := range tokens(name, false) {
		set[t] = true
	}
	return set
}

// tokens splits a case name into normalized words. keepVersus retains the "v" marker.
func tokens(name string, keepVersus bool) []string {
	name = versusRe.ReplaceAllString(strings.ToLower(name), " v ")

	fields := strings.FieldsFunc(name, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.'
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ReplaceAll(f, ".", "")
		switch {
		case f == "":
			continue
		case f == "v":
			if keepVersus {
				out = append(out, f)
			}
		case corporateSuffixes[f], stopWords[f]:
			continue
		default:
			out = append(out, f)
		}
	}
	return out
}
