package voiceline

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultLineTolerance is the number of edits (substitutions, insertions and
// deletions combined) a bare line may differ from a response text by.
const DefaultLineTolerance = 1

// LinePattern matches response texts against the line of a query. It is
// immutable and safe for concurrent use.
type LinePattern struct {
	re        *regexp.Regexp
	needle    []rune
	tolerance int
}

// CompileLine builds the pattern for line.
//
// A line wrapped in double quotes is a case-insensitive regular expression
// that may match anywhere in the text. Any other line is a literal that must
// occur somewhere in the text, case-insensitively, with at most tolerance
// edits.
func CompileLine(line string, tolerance int) (*LinePattern, error) {
	if inner, ok := unquote(line); ok {
		re, err := regexp.Compile("(?i)" + inner)
		if err != nil {
			return nil, &ParseError{Msg: fmt.Sprintf("Invalid regular expression %s: %v.", line, err), Err: err}
		}
		return &LinePattern{re: re}, nil
	}
	return &LinePattern{
		needle:    []rune(strings.ToLower(line)),
		tolerance: max(tolerance, 0),
	}, nil
}

// IsRegex reports whether p was compiled from a quoted line.
func (p *LinePattern) IsRegex() bool { return p.re != nil }

// Match reports whether text matches p.
func (p *LinePattern) Match(text string) bool {
	if p.re != nil {
		return p.re.MatchString(text)
	}
	return fuzzyContains([]rune(strings.ToLower(text)), p.needle, p.tolerance)
}

func unquote(line string) (string, bool) {
	if len(line) >= 2 && strings.HasPrefix(line, `"`) && strings.HasSuffix(line, `"`) {
		return line[1 : len(line)-1], true
	}
	return "", false
}

// fuzzyContains reports whether needle occurs in text with at most k edits,
// using Sellers' approximate substring dynamic program: the edit distance
// column is reset to zero cost at every text position, so the match may start
// anywhere. It runs in O(len(text) * len(needle)) time and O(len(needle))
// space. Both arguments must already be case-folded.
func fuzzyContains(text, needle []rune, k int) bool {
	m := len(needle)
	if m <= k {
		return true
	}
	// col[i] is the cheapest cost of matching needle[:i] ending at the
	// current text position.
	col := make([]int, m+1)
	for i := range col {
		col[i] = i
	}
	for _, c := range text {
		diag := col[0] // col[0] stays 0: a match may begin at any position.
		for i := 1; i <= m; i++ {
			cost := diag
			if needle[i-1] != c {
				cost++
			}
			diag = col[i]
			col[i] = min(cost, col[i]+1, col[i-1]+1)
		}
		if col[m] <= k {
			return true
		}
	}
	return false
}
