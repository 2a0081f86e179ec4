package voiceline_test

import (
	"testing"
	"time"

	"github.com/MrWong99/silibot/internal/voiceline"
	"github.com/MrWong99/silibot/internal/voiceline/namematch"
)

func ptr(s string) *string { return &s }

// fixtureSnapshot returns a small corpus covering every entity type.
func fixtureSnapshot(t *testing.T) *voiceline.Snapshot {
	t.Helper()

	cat, err := voiceline.NewCatalog([]voiceline.EntityRecord{
		{Name: "Abaddon", Title: "Abaddon/Responses", URL: "https://wiki.example/Abaddon/Responses", Type: voiceline.EntityHero},
		{Name: "Alice", Title: "Alice/Responses", URL: "https://wiki.example/Alice/Responses", Type: voiceline.EntityHero},
		{Name: "Crystal Maiden", Title: "Crystal Maiden/Responses", URL: "https://wiki.example/Crystal_Maiden/Responses", Type: voiceline.EntityHero},
		{Name: "Bastion", Title: "Bastion Announcer Pack", URL: "https://wiki.example/Bastion_Announcer_Pack", Type: voiceline.EntityAnnouncer},
		{Name: "Meepwn'd", Title: "Meepwn'd Voice Pack", URL: "https://wiki.example/Meepwnd", Type: voiceline.EntityVoicePack},
		{Name: "Orphan", Title: "Orphan/Responses", URL: "https://wiki.example/Orphan", Type: voiceline.EntityOther},
	})
	if err != nil {
		t.Fatalf("NewCatalog: %v", err)
	}

	corp := voiceline.NewCorpus(map[string][]voiceline.ResponseRecord{
		"Abaddon/Responses": {
			{Text: "Abaddon.", URLs: []*string{ptr("https://cdn.example/Vo_abaddon_1.mp3")}},
			{Text: "The mist is coming.", URLs: []*string{ptr("https://cdn.example/Vo_abaddon_mist_1.mp3"), ptr("https://cdn.example/Vo_abaddon_mist_2.mp3")}},
			{Text: "No levels at all.", URLs: nil},
		},
		"Alice/Responses": {
			{Text: "Hello.", URLs: []*string{ptr("u0"), nil}},
		},
		"Crystal Maiden/Responses": {
			{Text: "Freeze!", URLs: []*string{ptr("https://cdn.example/cm_freeze_1.mp3"), nil, ptr("https://cdn.example/cm_freeze_3.mp3")}},
			{Text: "Let it snow (laughs)", URLs: []*string{ptr("https://cdn.example/cm_snow.mp3/revision/latest")}},
		},
		"Bastion Announcer Pack": {
			{Text: "First blood!", URLs: []*string{ptr("https://cdn.example/bastion_first_blood.mp3")}},
		},
		"Meepwn'd Voice Pack": {
			{Text: "Meep meep.", URLs: []*string{ptr("https://cdn.example/meep.mp3")}},
		},
	})

	return voiceline.NewSnapshot(cat, corp, 1, time.Unix(0, 0))
}

func newResolver() *voiceline.Resolver {
	return voiceline.NewResolver(namematch.New())
}
