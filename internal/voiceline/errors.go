package voiceline

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEntityType is returned when a query names a type outside [EntityTypes].
var ErrUnknownEntityType = errors.New("unknown entity type")

// ErrUnknownTitle is returned by [Corpus.Responses] when no responses are
// stored under a title. Titles only come from catalog records, so this
// indicates the two corpora are out of sync.
var ErrUnknownTitle = errors.New("no such title")

// ErrResourcesNotReady is returned while the corpora are missing or could
// not be loaded, even after a rebuild.
var ErrResourcesNotReady = errors.New("voice line resources are not ready yet, try again later")

// usageHelp is appended to every [ParseError].
const usageHelp = "The format should be '/voiceline Entity Name (entity_type): Voice line (level)'.\n" +
	`Enclose line in "double quotes" to use a regular expression.`

// ParseError reports malformed query input. Its message is meant to be
// shown to the user verbatim.
type ParseError struct {
	Msg string

	// Err is an optional underlying cause such as [ErrUnknownEntityType].
	Err error
}

func (e *ParseError) Error() string {
	return e.Msg + " " + usageHelp
}

func (e *ParseError) Unwrap() error { return e.Err }

// EntityNotFoundError reports that no entity matched the queried name, not
// even fuzzily.
type EntityNotFoundError struct {
	Entity string
	Type   EntityType
}

func (e *EntityNotFoundError) Error() string {
	return fmt.Sprintf("Could not find responses for '%s'", e.Entity)
}

// LineNotFoundError reports that the entity has no response matching the
// queried line. URL points at the entity's responses page.
type LineNotFoundError struct {
	Entity string
	URL    string
}

func (e *LineNotFoundError) Error() string {
	return fmt.Sprintf("Could not find line for '%s'. Check the responses page to see if you typed it correctly: %s", e.Entity, e.URL)
}

// LevelURL is an available level of a response, 0-based.
type LevelURL struct {
	Level int
	URL   string
}

// MissingResponseUrlError reports that the requested level of a matched
// response has no audio file. OutOfRange distinguishes a level beyond the
// response's level count from a level whose file is missing on the wiki.
type MissingResponseUrlError struct {
	Entity     string
	Level      int
	OutOfRange bool
	Available  []LevelURL
}

func (e *MissingResponseUrlError) Error() string {
	var b strings.Builder
	if e.OutOfRange {
		fmt.Fprintf(&b, "Entity %s does not have as many levels.", e.Entity)
		if len(e.Available) > 0 {
			fmt.Fprintf(&b, " Available levels are: %s.", e.alternatives())
		}
		return b.String()
	}
	b.WriteString("The requested response URL is not available (missing file on the wiki).")
	if len(e.Available) > 0 {
		fmt.Fprintf(&b, " Alternative response levels are available: %s.", e.alternatives())
	}
	return b.String()
}

// alternatives formats Available as "1: url, 2: url" with 1-based levels.
func (e *MissingResponseUrlError) alternatives() string {
	parts := make([]string, len(e.Available))
	for i, a := range e.Available {
		parts[i] = fmt.Sprintf("%d: %s", a.Level+1, a.URL)
	}
	return strings.Join(parts, ", ")
}

// CorpusCorruptionError reports a corpus file that exists but does not
// decode.
type CorpusCorruptionError struct {
	Path string
	Err  error
}

func (e *CorpusCorruptionError) Error() string {
	return fmt.Sprintf("corpus file %q is corrupted: %v", e.Path, e.Err)
}

func (e *CorpusCorruptionError) Unwrap() error { return e.Err }

// UserMessage converts an error returned by this package (or the corpus and
// fetch layers wrapping it) into the single message a chat transport should
// send. User-facing errors keep their text; corpus failures collapse into a
// generic "not ready" notice; anything else gets a generic failure line.
func UserMessage(err error) string {
	var (
		parseErr   *ParseError
		entityErr  *EntityNotFoundError
		lineErr    *LineNotFoundError
		missingErr *MissingResponseUrlError
		corruptErr *CorpusCorruptionError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &parseErr):
		return parseErr.Error()
	case errors.As(err, &entityErr):
		return entityErr.Error()
	case errors.As(err, &lineErr):
		return lineErr.Error()
	case errors.As(err, &missingErr):
		return missingErr.Error()
	case errors.Is(err, ErrUnknownEntityType):
		return "Unknown entity type. Valid types are: " + typeList() + "."
	case errors.Is(err, ErrResourcesNotReady), errors.As(err, &corruptErr), errors.Is(err, ErrUnknownTitle):
		return ErrResourcesNotReady.Error()
	default:
		var fe interface{ UserMessage() string }
		if errors.As(err, &fe) {
			return fe.UserMessage()
		}
		return "Something went wrong while getting that voice line."
	}
}

// Outcome labels returned by [Outcome].
const (
	OutcomeOK             = "ok"
	OutcomeParseError     = "parse_error"
	OutcomeUnknownType    = "unknown_type"
	OutcomeEntityNotFound = "entity_not_found"
	OutcomeLineNotFound   = "line_not_found"
	OutcomeMissingURL     = "missing_url"
	OutcomeNotReady       = "not_ready"
	OutcomeError          = "error"
)

// Outcome classifies err into a short, low-cardinality label for metrics
// and logs.
func Outcome(err error) string {
	var (
		parseErr   *ParseError
		entityErr  *EntityNotFoundError
		lineErr    *LineNotFoundError
		missingErr *MissingResponseUrlError
		corruptErr *CorpusCorruptionError
	)
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &parseErr):
		return OutcomeParseError
	case errors.As(err, &entityErr):
		return OutcomeEntityNotFound
	case errors.As(err, &lineErr):
		return OutcomeLineNotFound
	case errors.As(err, &missingErr):
		return OutcomeMissingURL
	case errors.Is(err, ErrUnknownEntityType):
		return OutcomeUnknownType
	case errors.Is(err, ErrResourcesNotReady), errors.As(err, &corruptErr), errors.Is(err, ErrUnknownTitle):
		return OutcomeNotReady
	default:
		return OutcomeError
	}
}
