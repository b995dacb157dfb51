package token

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// stopwords is the small natural-language list stripped from token
// sets. Identifier fragments such as "get" and "set" are never
// stripped; only function words that carry no matching signal are.
var stopwords = map[string]bool{
	"the": true,
	"a":   true,
	"of":  true,
	"to":  true,
	"for": true,
}

// Tokenize maps any identifier or phrase to its normalized token set,
// returned as a sorted slice for deterministic serialization.
//
// Splitting rules:
//   - non-alphanumeric runes (punctuation, whitespace, _ - .) separate words
//   - camelCase and PascalCase boundaries separate words
//   - acronym runs split before their trailing word: "HTTPServer" → http, server
//   - everything is lowercased and NFC normalized
//   - single-character fragments and stopwords are discarded
func Tokenize(text string) []string {
	set := make(map[string]bool)

	for _, run := range splitRuns(norm.NFC.String(text)) {
		for _, word := range splitCase(run) {
			word = strings.ToLower(word)
			if len([]rune(word)) < 2 {
				continue
			}
			if stopwords[word] {
				continue
			}
			set[word] = true
		}
	}

	tokens := make([]string, 0, len(set))
	for tok := range set {
		tokens = append(tokens, tok)
	}
	sort.Strings(tokens)
	return tokens
}

// splitRuns breaks text into maximal alphanumeric runs.
func splitRuns(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// splitCase breaks one alphanumeric run on case boundaries.
//
// A boundary exists before rune i when:
//   - lower or digit is followed by upper ("getUser" → get|User)
//   - an upper run of three or more is followed by upper+lower
//     ("HTTPServer" → HTTP|Server). Shorter prefixes stay whole, so
//     "SQLite" is one token, not sq|lite.
func splitCase(run string) []string {
	runes := []rune(run)
	if len(runes) == 0 {
		return nil
	}

	var words []string
	start := 0
	upperRun := 0 // consecutive uppercase runes ending at i-1
	for i := 1; i < len(runes); i++ {
		prev, cur := runes[i-1], runes[i]
		if unicode.IsUpper(prev) {
			upperRun++
		} else {
			upperRun = 0
		}

		boundary := false
		if unicode.IsUpper(cur) && !unicode.IsUpper(prev) {
			boundary = true
		} else if upperRun >= 3 && unicode.IsUpper(cur) &&
			i+1 < len(runes) && unicode.IsLower(runes[i+1]) {
			boundary = true
		}

		if boundary {
			words = append(words, string(runes[start:i]))
			start = i
		}
	}
	words = append(words, string(runes[start:]))
	return words
}

// Set is a token set used for overlap computations.
type Set map[string]struct{}

// NewSet builds a Set from a token slice.
func NewSet(tokens []string) Set {
	s := make(Set, len(tokens))
	for _, tok := range tokens {
		s[tok] = struct{}{}
	}
	return s
}

// Contains reports membership.
func (s Set) Contains(tok string) bool {
	_, ok := s[tok]
	return ok
}

// Intersection returns the number of tokens shared with other.
func (s Set) Intersection(other Set) int {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	n := 0
	for tok := range small {
		if _, ok := large[tok]; ok {
			n++
		}
	}
	return n
}

// OverlapCoefficient returns |a∩b| / min(|a|,|b|), the symmetric
// overlap measure used by tension detection. Empty sets never overlap.
func OverlapCoefficient(a, b Set) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	return float64(a.Intersection(b)) / float64(minLen)
}

// QueryScore returns |candidate∩query| / |query|, the asymmetric
// measure used by retrieval ranking. An empty query scores zero.
func QueryScore(candidate, query Set) float64 {
	if len(query) == 0 {
		return 0
	}
	return float64(candidate.Intersection(query)) / float64(len(query))
}
