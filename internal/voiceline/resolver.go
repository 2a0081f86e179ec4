package voiceline

import (
	"fmt"
	"strings"
)

// Resolution is a successfully resolved query.
type Resolution struct {
	Entity   EntityRecord
	Response ResponseRecord
	Level    int
	URL      string

	// Fuzzy is true when the entity was found by approximate name.
	Fuzzy bool
}

// ResolverOption configures a [Resolver].
type ResolverOption func(*Resolver)

// WithLineTolerance sets the edit budget for bare lines. Default:
// [DefaultLineTolerance].
func WithLineTolerance(n int) ResolverOption {
	return func(r *Resolver) {
		r.tolerance = n
	}
}

// Resolver turns a [ParsedQuery] into the audio URL of exactly one response.
// It keeps no per-request state and is safe for concurrent use.
type Resolver struct {
	matcher   NameMatcher
	tolerance int
}

// NewResolver returns a Resolver that falls back to m when an entity name has
// no exact match. A nil m disables the fallback.
func NewResolver(m NameMatcher, opts ...ResolverOption) *Resolver {
	r := &Resolver{matcher: m, tolerance: DefaultLineTolerance}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the audio URL q refers to in snap. See [Resolver.Lookup].
func (r *Resolver) Resolve(snap *Snapshot, q ParsedQuery) (string, error) {
	res, err := r.Lookup(snap, q)
	if err != nil {
		return "", err
	}
	return res.URL, nil
}

// Lookup resolves q against snap:
//
//  1. The entity is looked up by exact name within q.Type, then by
//     approximate name. Failing both yields [*EntityNotFoundError].
//  2. A response whose text equals the line verbatim (up to whitespace) is
//     taken first, preferring one that has q.Level. Otherwise the responses
//     are filtered by the line pattern (see [CompileLine]) and the first
//     match in corpus order is taken. No match yields [*LineNotFoundError].
//  3. The level is indexed into the response's URLs. An out-of-range or
//     absent level yields [*MissingResponseUrlError] listing the levels that
//     do have a file.
//
// A nil snap yields [ErrResourcesNotReady].
func (r *Resolver) Lookup(snap *Snapshot, q ParsedQuery) (Resolution, error) {
	if snap == nil {
		return Resolution{}, ErrResourcesNotReady
	}
	typ := q.Type
	if typ == "" {
		typ = EntityHero
	}
	if !typ.IsValid() {
		return Resolution{}, fmt.Errorf("voiceline: resolve: %w: %q", ErrUnknownEntityType, q.Type)
	}

	rec, ok := snap.Catalog().Lookup(q.Entity, typ)
	fuzzy := false
	if !ok {
		rec, ok = snap.Catalog().LookupFuzzy(q.Entity, typ, r.matcher)
		fuzzy = ok
	}
	if !ok {
		return Resolution{}, &EntityNotFoundError{Entity: q.Entity, Type: typ}
	}

	responses, err := snap.Corpus().Responses(rec.Title)
	if err != nil {
		return Resolution{}, err
	}

	matched := exactLine(responses, q.Line, q.Level)
	if matched < 0 {
		pattern, err := CompileLine(q.Line, r.tolerance)
		if err != nil {
			return Resolution{}, err
		}
		for i := range responses {
			if pattern.Match(responses[i].Text) {
				matched = i
				break
			}
		}
	}
	if matched < 0 {
		return Resolution{}, &LineNotFoundError{Entity: rec.Name, URL: rec.URL}
	}
	resp := responses[matched]

	url, ok := resp.URL(q.Level)
	if !ok {
		return Resolution{}, &MissingResponseUrlError{
			Entity:     rec.Name,
			Level:      q.Level,
			OutOfRange: q.Level < 0 || q.Level >= len(resp.URLs),
			Available:  availableLevels(resp),
		}
	}

	return Resolution{Entity: rec, Response: resp, Level: q.Level, URL: url, Fuzzy: fuzzy}, nil
}

// exactLine returns the index of the first response whose text is line with
// runs of whitespace collapsed, or -1. A response with a file at level beats
// an earlier one without. Display keys carry the verbatim text, so this keeps
// a key from resolving to an earlier response that merely contains it.
func exactLine(responses []ResponseRecord, line string, level int) int {
	first := -1
	for i := range responses {
		if strings.Join(strings.Fields(responses[i].Text), " ") != line {
			continue
		}
		if _, ok := responses[i].URL(level); ok {
			return i
		}
		if first < 0 {
			first = i
		}
	}
	return first
}

func availableLevels(r ResponseRecord) []LevelURL {
	var out []LevelURL
	for i, u := range r.URLs {
		if u != nil {
			out = append(out, LevelURL{Level: i, URL: *u})
		}
	}
	return out
}
