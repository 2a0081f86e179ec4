package voiceline

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	// DefaultSearchTolerance is the edit budget of an inline search query.
	DefaultSearchTolerance = 1

	// DefaultMaxResults bounds the number of keys a search returns.
	DefaultMaxResults = 50
)

// IndexEntry is one playable (entity, response, level) combination.
type IndexEntry struct {
	// Key is the display key, "{entity} [{type}]: {text} [{level}]", with a
	// 1-based level. It parses back through [ParseQuery].
	Key string

	// ID is the hex MD5 of Key, for transports that limit the length of
	// option values.
	ID string

	URL string
}

// Index is the flattened, searchable view over a catalog and corpus. It is
// immutable once built.
type Index struct {
	entries []IndexEntry
	folded  [][]rune // lower-cased keys, parallel to entries
	byKey   map[string]int
	byID    map[string]int
}

// DisplayKey formats the key of a response level. level is 0-based.
func DisplayKey(entity string, t EntityType, text string, level int) string {
	return fmt.Sprintf("%s [%s]: %s [%d]", entity, t, text, level+1)
}

// KeyID returns the short identifier of a display key.
func KeyID(key string) string {
	sum := md5.Sum([]byte(key))
	return hex.EncodeToString(sum[:])
}

// BuildIndex materialises one entry for every entity, response and level
// that has an audio file. Entries follow catalog order: types in
// [EntityTypes] order, entities in first-seen order, responses in corpus
// order, levels ascending. When two entries produce the same key the first
// one is kept, matching the resolver's first-match rule. Runs of whitespace in
// the text collapse to one space, as they do when a key is typed back. Entities
// whose title has no responses and responses with blank text are skipped.
func BuildIndex(cat *Catalog, corp *Corpus) *Index {
	ix := &Index{
		byKey: make(map[string]int),
		byID:  make(map[string]int),
	}
	if cat == nil || corp == nil {
		return ix
	}
	for _, t := range EntityTypes {
		for _, rec := range cat.Entities(t) {
			responses, err := corp.Responses(rec.Title)
			if err != nil {
				continue
			}
			for _, resp := range responses {
				text := strings.Join(strings.Fields(resp.Text), " ")
				if text == "" {
					continue
				}
				for level, u := range resp.URLs {
					if u == nil {
						continue
					}
					ix.add(DisplayKey(rec.Name, t, text, level), *u)
				}
			}
		}
	}
	return ix
}

func (ix *Index) add(key, url string) {
	if _, dup := ix.byKey[key]; dup {
		return
	}
	e := IndexEntry{Key: key, ID: KeyID(key), URL: url}
	ix.byKey[key] = len(ix.entries)
	ix.byID[e.ID] = len(ix.entries)
	ix.entries = append(ix.entries, e)
	ix.folded = append(ix.folded, []rune(strings.ToLower(key)))
}

// Len returns the number of entries.
func (ix *Index) Len() int { return len(ix.entries) }

// Entries returns all entries in index order. The returned slice must not be
// modified.
func (ix *Index) Entries() []IndexEntry { return ix.entries }

// Keys returns every display key in index order.
func (ix *Index) Keys() []string {
	keys := make([]string, len(ix.entries))
	for i, e := range ix.entries {
		keys[i] = e.Key
	}
	return keys
}

// Lookup returns the entry with the given display key.
func (ix *Index) Lookup(key string) (IndexEntry, bool) {
	i, ok := ix.byKey[key]
	if !ok {
		return IndexEntry{}, false
	}
	return ix.entries[i], true
}

// LookupID returns the entry whose [KeyID] is id.
func (ix *Index) LookupID(id string) (IndexEntry, bool) {
	i, ok := ix.byID[id]
	if !ok {
		return IndexEntry{}, false
	}
	return ix.entries[i], true
}

// Search returns, in index order, up to maxResults entries whose key contains
// query case-insensitively with at most tolerance edits. The scan stops as
// soon as maxResults entries are found. A blank query returns the first
// maxResults entries. A maxResults below 1 uses [DefaultMaxResults].
func (ix *Index) Search(query string, tolerance, maxResults int) []IndexEntry {
	if maxResults < 1 {
		maxResults = DefaultMaxResults
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return ix.entries[:min(maxResults, len(ix.entries))]
	}
	needle := []rune(strings.ToLower(query))
	tolerance = max(tolerance, 0)

	var out []IndexEntry
	for i, folded := range ix.folded {
		if fuzzyContains(folded, needle, tolerance) {
			out = append(out, ix.entries[i])
			if len(out) == maxResults {
				break
			}
		}
	}
	return out
}

// SearchPool is [Index.Search] over an arbitrary ordered pool of keys.
func SearchPool(query string, pool []string, tolerance, maxResults int) []string {
	if maxResults < 1 {
		maxResults = DefaultMaxResults
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return pool[:min(maxResults, len(pool))]
	}
	needle := []rune(strings.ToLower(query))
	tolerance = max(tolerance, 0)

	var out []string
	for _, key := range pool {
		if fuzzyContains([]rune(strings.ToLower(key)), needle, tolerance) {
			out = append(out, key)
			if len(out) == maxResults {
				break
			}
		}
	}
	return out
}
