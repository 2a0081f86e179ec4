// Package namematch ranks entity display names against an approximate,
// user-typed name using edit distance, Double Metaphone phonetic encoding and
// Jaro-Winkler similarity.
//
// The algorithm proceeds in three stages:
//
//  1. Edit distance: the candidate with the fewest edits from the query wins
//     when that count is within the edit budget (default 1). Equal counts go
//     to the higher similarity. A typo in a three-letter name is as findable
//     as one in a long name.
//
//  2. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word of the query and of each candidate. A candidate whose codes
//     overlap the query's codes is a phonetic candidate and is accepted when
//     its similarity reaches the phonetic threshold (default 0.70).
//
//  3. Fuzzy fallback: while no phonetic candidate has been accepted, any
//     candidate whose similarity reaches the fuzzy threshold (default 0.60)
//     is accepted.
//
// Earlier stages always win over later ones. Within a stage the best score
// wins, and equal scores keep the candidate that came first in the input
// slice.
package namematch

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

const (
	defaultMaxEdits          = 1
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.60
)

// Option is a functional option for configuring a [Matcher].
type Option func(*Matcher)

// WithPhoneticThreshold sets the minimum similarity required for a
// phonetically-matched candidate to be accepted. Default: 0.70.
func WithPhoneticThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.phoneticThreshold = threshold
	}
}

// WithFuzzyThreshold sets the minimum similarity required for a candidate
// with no phonetic overlap. Default: 0.60.
func WithFuzzyThreshold(threshold float64) Option {
	return func(m *Matcher) {
		m.fuzzyThreshold = threshold
	}
}

// WithMaxEdits sets the edit budget of the edit-distance stage. Zero leaves
// only exact (case-insensitive) names to that stage. Default: 1.
func WithMaxEdits(n int) Option {
	return func(m *Matcher) {
		m.maxEdits = max(n, 0)
	}
}

// Matcher ranks candidate names. It holds no mutable state and is safe for
// concurrent use.
type Matcher struct {
	maxEdits          int
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// New returns a [Matcher] configured with the supplied options.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		maxEdits:          defaultMaxEdits,
		phoneticThreshold: defaultPhoneticThreshold,
		fuzzyThreshold:    defaultFuzzyThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// MaxEdits returns the configured edit budget.
func (m *Matcher) MaxEdits() int { return m.maxEdits }

// PhoneticThreshold returns the configured phonetic acceptance threshold.
func (m *Matcher) PhoneticThreshold() float64 { return m.phoneticThreshold }

// FuzzyThreshold returns the configured fuzzy acceptance threshold.
func (m *Matcher) FuzzyThreshold() float64 { return m.fuzzyThreshold }

// Match returns the index into candidates of the best match for name along
// with its similarity score. ok is false (and index -1) when name is blank or
// no candidate reaches its threshold.
func (m *Matcher) Match(name string, candidates []string) (index int, score float64, ok bool) {
	nameLower := normalize(name)
	if nameLower == "" || len(candidates) == 0 {
		return -1, 0, false
	}
	nameTokens := strings.Fields(nameLower)
	nameCodes := codesForTokens(nameTokens)

	best := -1
	var bestScore float64
	bestPhonetic := false

	nearest, nearestEdits := -1, m.maxEdits+1
	var nearestScore float64

	for i, c := range candidates {
		candLower := normalize(c)
		if candLower == "" {
			continue
		}
		candTokens := strings.Fields(candLower)
		s := Similarity(nameTokens, candTokens, nameLower, candLower)

		if d := matchr.Levenshtein(nameLower, candLower); d <= m.maxEdits && (d < nearestEdits || (d == nearestEdits && s > nearestScore)) {
			nearest, nearestEdits, nearestScore = i, d, s
		}

		if codesOverlap(nameCodes, codesForTokens(candTokens)) {
			if s >= m.phoneticThreshold && (!bestPhonetic || s > bestScore) {
				best, bestScore, bestPhonetic = i, s, true
			}
			continue
		}
		if !bestPhonetic && s >= m.fuzzyThreshold && s > bestScore {
			best, bestScore = i, s
		}
	}

	if nearest >= 0 {
		return nearest, nearestScore, true
	}
	if best < 0 {
		return -1, 0, false
	}
	return best, bestScore, true
}

// normalize lower-cases s and collapses runs of whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// codesForTokens returns the union of the Double Metaphone codes of tokens.
// Empty codes are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// Similarity returns the best of several similarity measures between two
// lower-cased names, in [0, 1]:
//
//  1. Jaro-Winkler on the full strings.
//  2. Jaro-Winkler on the strings with spaces removed.
//  3. Normalised Levenshtein on the full strings.
//  4. Mean Jaro-Winkler of position-aligned tokens, only when both sides
//     have the same number of tokens.
func Similarity(aTokens, bTokens []string, aFull, bFull string) float64 {
	score := matchr.JaroWinkler(aFull, bFull, false)

	if len(aTokens) > 1 || len(bTokens) > 1 {
		if s := matchr.JaroWinkler(strings.Join(aTokens, ""), strings.Join(bTokens, ""), false); s > score {
			score = s
		}
	}

	if n := max(utf8.RuneCountInString(aFull), utf8.RuneCountInString(bFull)); n > 0 {
		if s := 1 - float64(matchr.Levenshtein(aFull, bFull))/float64(n); s > score {
			score = s
		}
	}

	// Token scores are averaged so one shared word ("Dark") cannot make
	// "Dark Seer" score like "Dark Willow".
	if len(aTokens) > 1 && len(aTokens) == len(bTokens) {
		var sum float64
		for i := range aTokens {
			sum += matchr.JaroWinkler(aTokens[i], bTokens[i], false)
		}
		if s := sum / float64(len(aTokens)); s > score {
			score = s
		}
	}

	return score
}
