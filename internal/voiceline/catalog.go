package voiceline

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// NameMatcher ranks candidate names against an approximate name. It returns
// the index of the best candidate, or ok=false when none is close enough.
// Implemented by [namematch.Matcher].
type NameMatcher interface {
	Match(name string, candidates []string) (index int, score float64, ok bool)
}

// Catalog indexes entity records by type and case-insensitive name while
// remembering the order in which names were first seen.
type Catalog struct {
	parts map[EntityType]*partition
	size  int
}

type partition struct {
	records []EntityRecord
	names   []string       // display names, parallel to records
	byName  map[string]int // lower-cased name -> index into records
}

// NewCatalog builds a catalog from records in the order given. When two
// records of the same type share a name case-insensitively, the later record
// replaces the earlier one but keeps its position. A record whose type is not
// one of [EntityTypes] is an error.
func NewCatalog(records []EntityRecord) (*Catalog, error) {
	c := &Catalog{parts: make(map[EntityType]*partition, len(EntityTypes))}
	for _, t := range EntityTypes {
		c.parts[t] = &partition{byName: make(map[string]int)}
	}
	for _, r := range records {
		p, ok := c.parts[r.Type]
		if !ok {
			return nil, fmt.Errorf("voiceline: entity %q: %w: %q", r.Name, ErrUnknownEntityType, r.Type)
		}
		key := strings.ToLower(r.Name)
		if i, dup := p.byName[key]; dup {
			p.records[i] = r
			p.names[i] = r.Name
			continue
		}
		p.byName[key] = len(p.records)
		p.records = append(p.records, r)
		p.names = append(p.names, r.Name)
		c.size++
	}
	return c, nil
}

// Len returns the number of distinct entities across all types.
func (c *Catalog) Len() int { return c.size }

// Entities returns the entities of type t in first-seen order. The returned
// slice must not be modified.
func (c *Catalog) Entities(t EntityType) []EntityRecord {
	p, ok := c.parts[t]
	if !ok {
		return nil
	}
	return p.records
}

// Lookup finds the entity of type t whose name equals name, ignoring case.
func (c *Catalog) Lookup(name string, t EntityType) (EntityRecord, bool) {
	p, ok := c.parts[t]
	if !ok {
		return EntityRecord{}, false
	}
	i, ok := p.byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return EntityRecord{}, false
	}
	return p.records[i], true
}

// LookupFuzzy asks m for the entity of type t whose name is closest to name.
func (c *Catalog) LookupFuzzy(name string, t EntityType, m NameMatcher) (EntityRecord, bool) {
	p, ok := c.parts[t]
	if !ok || m == nil {
		return EntityRecord{}, false
	}
	i, _, ok := m.Match(name, p.names)
	if !ok || i < 0 || i >= len(p.records) {
		return EntityRecord{}, false
	}
	return p.records[i], true
}

// Corpus maps entity page titles to their responses in scraped order.
type Corpus struct {
	byTitle   map[string][]ResponseRecord
	responses int
}

// NewCorpus takes ownership of byTitle. Responses with no levels are given a
// single absent level so every response has at least one.
func NewCorpus(byTitle map[string][]ResponseRecord) *Corpus {
	if byTitle == nil {
		byTitle = make(map[string][]ResponseRecord)
	}
	c := &Corpus{byTitle: byTitle}
	for _, rs := range byTitle {
		for i := range rs {
			if len(rs[i].URLs) == 0 {
				rs[i].URLs = []*string{nil}
			}
		}
		c.responses += len(rs)
	}
	return c
}

// Responses returns the responses stored under title. The returned slice
// must not be modified.
func (c *Corpus) Responses(title string) ([]ResponseRecord, error) {
	rs, ok := c.byTitle[title]
	if !ok {
		return nil, fmt.Errorf("voiceline: responses for %q: %w", title, ErrUnknownTitle)
	}
	return rs, nil
}

// Titles returns the number of titles in the corpus.
func (c *Corpus) Titles() int { return len(c.byTitle) }

// Len returns the total number of responses across all titles.
func (c *Corpus) Len() int { return c.responses }

// Snapshot is one consistent, immutable generation of the catalog and corpus.
// The inline search index is derived from it on first use.
type Snapshot struct {
	catalog  *Catalog
	corpus   *Corpus
	version  uint64
	loadedAt time.Time

	indexOnce sync.Once
	index     *Index
}

// NewSnapshot bundles a catalog and corpus that were loaded together.
func NewSnapshot(catalog *Catalog, corpus *Corpus, version uint64, loadedAt time.Time) *Snapshot {
	return &Snapshot{catalog: catalog, corpus: corpus, version: version, loadedAt: loadedAt}
}

func (s *Snapshot) Catalog() *Catalog   { return s.catalog }
func (s *Snapshot) Corpus() *Corpus     { return s.corpus }
func (s *Snapshot) Version() uint64     { return s.version }
func (s *Snapshot) LoadedAt() time.Time { return s.loadedAt }

// Index returns the inline search index for this snapshot, building it on
// the first call.
func (s *Snapshot) Index() *Index {
	s.indexOnce.Do(func() {
		s.index = BuildIndex(s.catalog, s.corpus)
	})
	return s.index
}
