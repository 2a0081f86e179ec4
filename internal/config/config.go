// Package config provides the configuration schema, loader, and hot-reload
// watcher for the silibot voice-line bot.
package config

import (
	"log/slog"
	"time"
)

// LogLevel controls log verbosity for the silibot server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// SlogLevel maps l to the equivalent [slog.Level]. Unknown or empty levels map
// to [slog.LevelInfo].
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config is the root configuration structure for silibot.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Discord  DiscordConfig  `yaml:"discord"`
	Corpus   CorpusConfig   `yaml:"corpus"`
	Resolver ResolverConfig `yaml:"resolver"`
	Search   SearchConfig   `yaml:"search"`
	Audio    AudioConfig    `yaml:"audio"`
}

// ServerConfig holds the observability listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address serving /healthz, /readyz and /metrics
	// (e.g., ":9090").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// DiscordConfig configures the chat transport.
type DiscordConfig struct {
	// Token is the bot token. The SILIBOT_DISCORD_TOKEN environment variable
	// takes precedence over this value.
	Token string `yaml:"token"`

	// GuildID scopes slash command registration to one guild. Empty registers
	// global commands.
	GuildID string `yaml:"guild_id"`

	// ChannelID is the only channel in which commands are honoured. Empty
	// allows every channel. Hot-reloadable.
	ChannelID string `yaml:"channel_id"`
}

// CorpusConfig locates the scraped corpora and the command that rebuilds them.
type CorpusConfig struct {
	// EntityFile is the JSON entity table.
	EntityFile string `yaml:"entity_file"`

	// ResponseFile is the JSON response table.
	ResponseFile string `yaml:"response_file"`

	// Watch reloads the corpora when either file changes on disk.
	Watch bool `yaml:"watch"`

	// RebuildCommand is the argv run, without a shell, when a corpus file is
	// corrupted. It must rewrite both files. Empty disables rebuilds.
	RebuildCommand []string `yaml:"rebuild_command"`

	// RebuildTimeout bounds a single rebuild run.
	RebuildTimeout time.Duration `yaml:"rebuild_timeout"`
}

// ResolverConfig tunes approximate matching. Hot-reloadable.
type ResolverConfig struct {
	// PhoneticThreshold is the minimum name similarity for candidates that
	// sound alike, in (0, 1].
	PhoneticThreshold float64 `yaml:"phonetic_threshold"`

	// FuzzyThreshold is the minimum name similarity for all other
	// candidates, in (0, 1].
	FuzzyThreshold float64 `yaml:"fuzzy_threshold"`

	// NameEdits is the edit budget within which the nearest entity name
	// wins outright. Zero selects the default of 1; negative leaves only
	// the similarity thresholds.
	NameEdits int `yaml:"name_edits"`

	// LineTolerance is the edit budget for bare (unquoted) lines. Zero
	// selects the default of 1; quoted lines give exact control.
	LineTolerance int `yaml:"line_tolerance"`
}

// SearchConfig tunes the inline search feature.
type SearchConfig struct {
	// MaxResults bounds a search. Transports may lower it further to their
	// own limits. Hot-reloadable.
	MaxResults int `yaml:"max_results"`

	// Tolerance is the edit budget for search queries. Zero selects the
	// default of 1. Hot-reloadable.
	Tolerance int `yaml:"tolerance"`

	// AllowlistPath is the bbolt database holding the users opted in to
	// inline search.
	AllowlistPath string `yaml:"allowlist_path"`
}

// AudioConfig configures audio downloads.
type AudioConfig struct {
	// DownloadDir is the parent of per-request temporary directories. Empty
	// uses the OS temp dir.
	DownloadDir string `yaml:"download_dir"`

	// Timeout bounds one download including the body.
	Timeout time.Duration `yaml:"timeout"`

	// MaxBytes bounds the size of one download.
	MaxBytes int64 `yaml:"max_bytes"`

	// UserAgent is sent with every download request.
	UserAgent string `yaml:"user_agent"`

	// BreakerFailures is the number of consecutive server errors or
	// unanswered requests after which downloads from that host fail fast.
	// Negative disables the breaker.
	BreakerFailures int `yaml:"breaker_failures"`

	// BreakerCooldown is how long a host is skipped before it is tried again.
	BreakerCooldown time.Duration `yaml:"breaker_cooldown"`
}
