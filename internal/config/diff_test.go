package config_test

import (
	"slices"
	"testing"

	"github.com/MrWong99/silibot/internal/config"
)

func TestDiff_NoChanges(t *testing.T) {
	t.Parallel()
	cfg := config.Default()
	cfg.Corpus.RebuildCommand = []string{"scrape"}

	d := config.Diff(cfg, cfg)
	if d.Changed() {
		t.Errorf("expected no changes for identical configs, got %+v", d)
	}
}

func TestDiff_LogLevelChanged(t *testing.T) {
	t.Parallel()
	old := &config.Config{Server: config.ServerConfig{LogLevel: config.LogInfo}}
	new := &config.Config{Server: config.ServerConfig{LogLevel: config.LogDebug}}

	d := config.Diff(old, new)
	if !d.LogLevelChanged {
		t.Error("expected LogLevelChanged=true")
	}
	if d.NewLogLevel != config.LogDebug {
		t.Errorf("expected NewLogLevel=debug, got %q", d.NewLogLevel)
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("log level change should not require a restart, got %v", d.RestartRequired)
	}
}

func TestDiff_HotReloadable(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Discord.ChannelID = "42"
	new.Resolver.FuzzyThreshold = 0.95
	new.Search.MaxResults = 10

	d := config.Diff(old, new)
	if !d.ChannelChanged || d.NewChannelID != "42" {
		t.Errorf("channel change not detected: %+v", d)
	}
	if !d.ResolverChanged {
		t.Error("expected ResolverChanged=true")
	}
	if !d.SearchChanged {
		t.Error("expected SearchChanged=true")
	}
	if len(d.RestartRequired) != 0 {
		t.Errorf("expected no restart-only changes, got %v", d.RestartRequired)
	}
}

func TestDiff_RestartRequired(t *testing.T) {
	t.Parallel()
	old := config.Default()
	new := config.Default()
	new.Discord.Token = "other"
	new.Corpus.RebuildCommand = []string{"scrape", "--all"}
	new.Audio.Timeout = 0
	new.Search.AllowlistPath = "elsewhere.db"

	d := config.Diff(old, new)
	want := []string{"discord.token", "corpus.rebuild_command", "search.allowlist_path", "audio"}
	if !slices.Equal(d.RestartRequired, want) {
		t.Errorf("RestartRequired = %v, want %v", d.RestartRequired, want)
	}
	if d.SearchChanged {
		t.Error("allowlist path is not a hot-reloadable search setting")
	}
	if !d.Changed() {
		t.Error("Changed() = false")
	}
}
