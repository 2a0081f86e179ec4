package voiceline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// queryPattern splits "<entity> [(<type>)] : <line> [(<level>)]" into its four
// groups. Qualifiers may use parentheses or square brackets. The entity may
// not contain brackets or colons; the line may contain anything, so display
// keys like "Axe [hero]: Come and get it! (Laughs) [1]" parse back with the
// last bracket group as the level.
var queryPattern = regexp.MustCompile(
	`(?s)^\s*([^()\[\]:]*?)\s*` + // entity
		`(?:[(\[]\s*([^()\[\]:]*?)\s*[)\]])?\s*` + // type
		`:\s*(.*?)\s*` + // line
		`(?:[(\[]\s*([^()\[\]]*?)\s*[)\]])?\s*$`, // level
)

// ParseQuery parses the whitespace-separated arguments of a voice-line
// command into a [ParsedQuery].
//
// Type defaults to [EntityHero] and level to 0. The level is typed 1-based and
// stored 0-based; a level that is not a positive integer is ignored. All
// failures are [*ParseError] values whose message can be shown to the user.
func ParseQuery(tokens []string) (ParsedQuery, error) {
	if len(tokens) < 2 {
		return ParsedQuery{}, &ParseError{Msg: "Not enough arguments."}
	}
	raw := strings.Join(tokens, " ")

	m := queryPattern.FindStringSubmatch(raw)
	if m == nil {
		return ParsedQuery{}, &ParseError{Msg: fmt.Sprintf("Could not parse args: %s.", raw)}
	}
	entity, typ, line, level := m[1], m[2], m[3], m[4]

	if entity == "" {
		return ParsedQuery{}, &ParseError{Msg: fmt.Sprintf("Could not parse out the name of the entity from '%s'.", raw)}
	}
	if line == "" || line == `""` {
		return ParsedQuery{}, &ParseError{Msg: fmt.Sprintf("Could not parse out the voiceline from '%s'.", raw)}
	}

	q := ParsedQuery{Entity: entity, Line: line, Type: EntityHero}
	if typ != "" {
		t, err := ParseEntityType(typ)
		if err != nil {
			return ParsedQuery{}, &ParseError{
				Msg: fmt.Sprintf("Unknown entity type '%s'. Valid types are: %s.", typ, typeList()),
				Err: err,
			}
		}
		q.Type = t
	}
	if n, err := strconv.Atoi(level); err == nil && n >= 1 {
		q.Level = n - 1
	}
	return q, nil
}
