// Package corpustest writes small corpus tables for tests of packages that
// sit on top of the corpus store.
package corpustest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const entities = `{
  "Hero responses": {
    "Zeus": {"name": "Zeus", "title": "Zeus/Responses", "url": "https://wiki.example/Zeus/Responses"},
    "Abaddon": {"name": "Abaddon", "title": "Abaddon/Responses", "url": "https://wiki.example/Abaddon/Responses"}
  },
  "Announcer Packs": {
    "Bastion": {"name": "Bastion", "title": "Bastion Announcer Pack", "url": "https://wiki.example/Bastion"}
  }
}`

const responses = `{
  "Zeus/Responses": [
    {"text": "Zeus.", "urls": ["{{base}}/zeus.mp3"]}
  ],
  "Abaddon/Responses": [
    {"text": "Abaddon.", "urls": ["{{base}}/abaddon_1.mp3", null, "{{base}}/abaddon_3.mp3"]},
    {"text": "The mist is coming.", "urls": ["{{base}}/abaddon_mist.mp3"]}
  ],
  "Bastion Announcer Pack": [
    {"text": "First blood!", "urls": ["{{base}}/bastion_first_blood.mp3"]}
  ]
}`

// Keys lists the display keys of the fixture in index order.
var Keys = []string{
	"Zeus [hero]: Zeus. [1]",
	"Abaddon [hero]: Abaddon. [1]",
	"Abaddon [hero]: Abaddon. [3]",
	"Abaddon [hero]: The mist is coming. [1]",
	"Bastion [announcer]: First blood! [1]",
}

// WriteFiles writes the fixture tables into dir and returns their paths.
// Audio URLs are rooted at audioBase, e.g. an httptest server URL.
func WriteFiles(t testing.TB, dir, audioBase string) (entityFile, responseFile string) {
	t.Helper()
	entityFile = filepath.Join(dir, "entity_data.json")
	responseFile = filepath.Join(dir, "responses.json")
	if err := os.WriteFile(entityFile, []byte(entities), 0o644); err != nil {
		t.Fatalf("corpustest: write entity table: %v", err)
	}
	resp := strings.ReplaceAll(responses, "{{base}}", strings.TrimSuffix(audioBase, "/"))
	if err := os.WriteFile(responseFile, []byte(resp), 0o644); err != nil {
		t.Fatalf("corpustest: write response table: %v", err)
	}
	return entityFile, responseFile
}
