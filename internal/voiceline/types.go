// Package voiceline implements voice-line lookup over the scraped response
// corpora: query parsing, entity lookup, response resolution and the inline
// search index.
//
// The corpora are held in an immutable [Snapshot]. Nothing in this package
// mutates a snapshot after construction, so every exported function and
// method is safe for concurrent use across goroutines sharing one snapshot.
// Refreshing the corpora means building a new snapshot (see package corpus).
package voiceline

import (
	"fmt"
	"strings"
)

// EntityType partitions response entities by the wiki section they are
// listed under.
type EntityType string

const (
	EntityHero      EntityType = "hero"
	EntityVoicePack EntityType = "voice_pack"
	EntityAnnouncer EntityType = "announcer"
	EntityLegacy    EntityType = "legacy"
	EntityOther     EntityType = "other"
)

// EntityTypes lists every [EntityType] in display order.
var EntityTypes = []EntityType{EntityHero, EntityVoicePack, EntityAnnouncer, EntityLegacy, EntityOther}

// sectionNames maps each type to its section header in the scraped entity table.
var sectionNames = map[EntityType]string{
	EntityHero:      "Hero responses",
	EntityVoicePack: "Voice Packs",
	EntityAnnouncer: "Announcer Packs",
	EntityLegacy:    "Archived",
	EntityOther:     "Other responses",
}

// IsValid reports whether t is a recognised entity type.
func (t EntityType) IsValid() bool {
	_, ok := sectionNames[t]
	return ok
}

// Section returns the entity table section header for t, or "" if t is
// not a recognised type.
func (t EntityType) Section() string {
	return sectionNames[t]
}

// TypeForSection returns the entity type whose section header is name.
func TypeForSection(name string) (EntityType, bool) {
	for t, s := range sectionNames {
		if s == name {
			return t, true
		}
	}
	return "", false
}

// ParseEntityType normalises user input ("Voice Pack", "voice_pack") to an
// [EntityType]. It returns an error naming the valid types when s is unknown.
func ParseEntityType(s string) (EntityType, error) {
	norm := strings.ToLower(strings.Join(strings.Fields(s), "_"))
	t := EntityType(norm)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: %q (valid types: %s)", ErrUnknownEntityType, s, typeList())
	}
	return t, nil
}

func typeList() string {
	names := make([]string, len(EntityTypes))
	for i, t := range EntityTypes {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// EntityRecord describes one response entity as scraped from the wiki.
type EntityRecord struct {
	// Name is the display name users type to address the entity.
	Name string `json:"name"`

	// Title is the wiki page title and the key into the [Corpus].
	Title string `json:"title"`

	// URL is the entity's responses page.
	URL string `json:"url"`

	// Type is the partition the entity was listed under.
	Type EntityType `json:"-"`
}

// ResponseRecord is a single line of dialogue of an entity.
type ResponseRecord struct {
	// Text is the transcribed dialogue.
	Text string `json:"text"`

	// URLs holds one audio URL per level. Index i is level i (0-based). A nil
	// element means the wiki has no file for that level.
	URLs []*string `json:"urls"`
}

// URL returns the audio URL for level, reporting false when the level is out
// of range or has no file.
func (r ResponseRecord) URL(level int) (string, bool) {
	if level < 0 || level >= len(r.URLs) || r.URLs[level] == nil {
		return "", false
	}
	return *r.URLs[level], true
}

// ParsedQuery is the structured form of a voice-line request.
type ParsedQuery struct {
	// Entity is the entity name as typed by the user.
	Entity string

	// Line is the line of dialogue. When wrapped in double quotes it is a
	// regular expression; otherwise it is matched fuzzily.
	Line string

	// Type selects the entity partition. Defaults to [EntityHero].
	Type EntityType

	// Level is the 0-based response level. Defaults to 0.
	Level int
}
