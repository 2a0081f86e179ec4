package config_test

import (
	"strings"
	"testing"

	"github.com/MrWong99/silibot/internal/config"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "invalid log level",
			yaml:    "server:\n  log_level: verbose\n",
			wantErr: "server.log_level",
		},
		{
			name:    "same corpus files",
			yaml:    "corpus:\n  entity_file: a.json\n  response_file: a.json\n",
			wantErr: "must differ",
		},
		{
			name:    "negative rebuild timeout",
			yaml:    "corpus:\n  rebuild_timeout: -1s\n",
			wantErr: "corpus.rebuild_timeout",
		},
		{
			name:    "phonetic threshold above one",
			yaml:    "resolver:\n  phonetic_threshold: 1.5\n",
			wantErr: "resolver.phonetic_threshold",
		},
		{
			name:    "negative fuzzy threshold",
			yaml:    "resolver:\n  fuzzy_threshold: -0.1\n",
			wantErr: "resolver.fuzzy_threshold",
		},
		{
			name:    "negative line tolerance",
			yaml:    "resolver:\n  line_tolerance: -1\n",
			wantErr: "resolver.line_tolerance",
		},
		{
			name:    "negative max results",
			yaml:    "search:\n  max_results: -5\n",
			wantErr: "search.max_results",
		},
		{
			name:    "negative search tolerance",
			yaml:    "search:\n  tolerance: -1\n",
			wantErr: "search.tolerance",
		},
		{
			name:    "negative audio timeout",
			yaml:    "audio:\n  timeout: -3s\n",
			wantErr: "audio.timeout",
		},
		{
			name:    "negative max bytes",
			yaml:    "audio:\n  max_bytes: -1\n",
			wantErr: "audio.max_bytes",
		},
		{
			name:    "negative breaker cooldown",
			yaml:    "audio:\n  breaker_cooldown: -1m\n",
			wantErr: "audio.breaker_cooldown",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error should mention %q, got: %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_JoinsAllErrors(t *testing.T) {
	t.Parallel()

	yaml := `
server:
  log_level: loud
search:
  max_results: -1
audio:
  max_bytes: -1
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	for _, want := range []string{"server.log_level", "search.max_results", "audio.max_bytes"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error should mention %q, got: %v", want, err)
		}
	}
}

func TestValidate_EmptyCorpusPaths(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Corpus.EntityFile = ""
	cfg.Corpus.ResponseFile = ""
	err := config.Validate(cfg)
	if err == nil {
		t.Fatal("expected error for empty corpus paths")
	}
	if !strings.Contains(err.Error(), "corpus.entity_file is required") || !strings.Contains(err.Error(), "corpus.response_file is required") {
		t.Errorf("unexpected error: %v", err)
	}
}
