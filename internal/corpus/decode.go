// Package corpus loads the scraped entity and response tables from disk into
// immutable [voiceline.Snapshot] values and keeps the current snapshot fresh.
//
// Two files make up the corpus:
//
//   - The entity table: a JSON object keyed by section name ("Hero
//     responses", "Voice Packs", ...), each value an object keyed by entity
//     name whose values are {name, title, url}. Key order is significant: it
//     is the order used for tie-breaking and for the inline search index.
//   - The response table: a JSON object keyed by page title, each value an
//     array of {text, urls} where urls holds one string or null per level.
//
// A [Store] owns the current snapshot and replaces it wholesale on reload, so
// readers always see both tables from the same generation.
package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/MrWong99/silibot/internal/voiceline"
)

// entityJSON is one leaf of the entity table.
type entityJSON struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

type entitySection = orderedmap.OrderedMap[string, *entityJSON]

// DecodeEntities decodes an entity table, preserving file order. Sections
// that do not name a known entity type are skipped. An entity without a name
// field is named by its key.
func DecodeEntities(r io.Reader) ([]voiceline.EntityRecord, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("corpus: read entity table: %w", err)
	}

	sections := orderedmap.New[string, *entitySection]()
	if err := json.Unmarshal(data, sections); err != nil {
		return nil, fmt.Errorf("corpus: decode entity table: %w", err)
	}

	var records []voiceline.EntityRecord
	for sec := sections.Oldest(); sec != nil; sec = sec.Next() {
		typ, ok := voiceline.TypeForSection(sec.Key)
		if !ok {
			slog.Debug("corpus: skipping unknown entity section", "section", sec.Key)
			continue
		}
		if sec.Value == nil {
			continue
		}
		for e := sec.Value.Oldest(); e != nil; e = e.Next() {
			if e.Value == nil {
				continue
			}
			name := e.Value.Name
			if name == "" {
				name = e.Key
			}
			records = append(records, voiceline.EntityRecord{
				Name:  name,
				Title: e.Value.Title,
				URL:   e.Value.URL,
				Type:  typ,
			})
		}
	}
	return records, nil
}

// DecodeResponses decodes a response table.
func DecodeResponses(r io.Reader) (map[string][]voiceline.ResponseRecord, error) {
	var byTitle map[string][]voiceline.ResponseRecord
	if err := json.NewDecoder(r).Decode(&byTitle); err != nil {
		return nil, fmt.Errorf("corpus: decode response table: %w", err)
	}
	return byTitle, nil
}
