package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvDiscordToken overrides [DiscordConfig.Token] when set.
const EnvDiscordToken = "SILIBOT_DISCORD_TOKEN"

// Defaults applied by [ApplyDefaults] to zero-valued fields.
const (
	DefaultListenAddr        = ":9090"
	DefaultEntityFile        = "resources/entity_data.json"
	DefaultResponseFile      = "resources/responses.json"
	DefaultRebuildTimeout    = 10 * time.Minute
	DefaultPhoneticThreshold = 0.70
	DefaultFuzzyThreshold    = 0.60
	DefaultNameEdits         = 1
	DefaultLineTolerance     = 1
	DefaultMaxResults        = 50
	DefaultSearchTolerance   = 1
	DefaultAllowlistPath     = "resources/allowlist.db"
	DefaultAudioTimeout      = 30 * time.Second
	DefaultAudioMaxBytes     = 25 << 20
	DefaultUserAgent         = "silibot/1.0 (+https://github.com/MrWong99/silibot)"
	DefaultBreakerFailures   = 5
	DefaultBreakerCooldown   = 30 * time.Second
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, applies
// environment overrides and validates the result. An empty document yields
// the default configuration.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	applyEnv(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	applyEnv(cfg)
	return cfg
}

// ApplyDefaults fills every zero-valued field that has a default.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Corpus.EntityFile == "" {
		cfg.Corpus.EntityFile = DefaultEntityFile
	}
	if cfg.Corpus.ResponseFile == "" {
		cfg.Corpus.ResponseFile = DefaultResponseFile
	}
	if cfg.Corpus.RebuildTimeout == 0 {
		cfg.Corpus.RebuildTimeout = DefaultRebuildTimeout
	}
	if cfg.Resolver.PhoneticThreshold == 0 {
		cfg.Resolver.PhoneticThreshold = DefaultPhoneticThreshold
	}
	if cfg.Resolver.FuzzyThreshold == 0 {
		cfg.Resolver.FuzzyThreshold = DefaultFuzzyThreshold
	}
	if cfg.Resolver.NameEdits == 0 {
		cfg.Resolver.NameEdits = DefaultNameEdits
	}
	if cfg.Resolver.LineTolerance == 0 {
		cfg.Resolver.LineTolerance = DefaultLineTolerance
	}
	if cfg.Search.MaxResults == 0 {
		cfg.Search.MaxResults = DefaultMaxResults
	}
	if cfg.Search.Tolerance == 0 {
		cfg.Search.Tolerance = DefaultSearchTolerance
	}
	if cfg.Search.AllowlistPath == "" {
		cfg.Search.AllowlistPath = DefaultAllowlistPath
	}
	if cfg.Audio.Timeout == 0 {
		cfg.Audio.Timeout = DefaultAudioTimeout
	}
	if cfg.Audio.MaxBytes == 0 {
		cfg.Audio.MaxBytes = DefaultAudioMaxBytes
	}
	if cfg.Audio.UserAgent == "" {
		cfg.Audio.UserAgent = DefaultUserAgent
	}
	if cfg.Audio.BreakerFailures == 0 {
		cfg.Audio.BreakerFailures = DefaultBreakerFailures
	}
	if cfg.Audio.BreakerCooldown == 0 {
		cfg.Audio.BreakerCooldown = DefaultBreakerCooldown
	}
}

func applyEnv(cfg *Config) {
	if tok := os.Getenv(EnvDiscordToken); tok != "" {
		cfg.Discord.Token = tok
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Corpus
	if cfg.Corpus.EntityFile == "" {
		errs = append(errs, errors.New("corpus.entity_file is required"))
	}
	if cfg.Corpus.ResponseFile == "" {
		errs = append(errs, errors.New("corpus.response_file is required"))
	}
	if cfg.Corpus.EntityFile != "" && cfg.Corpus.EntityFile == cfg.Corpus.ResponseFile {
		errs = append(errs, fmt.Errorf("corpus.entity_file and corpus.response_file must differ, both are %q", cfg.Corpus.EntityFile))
	}
	if cfg.Corpus.RebuildTimeout < 0 {
		errs = append(errs, fmt.Errorf("corpus.rebuild_timeout %s must not be negative", cfg.Corpus.RebuildTimeout))
	}

	// Resolver
	if t := cfg.Resolver.PhoneticThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("resolver.phonetic_threshold %.2f is out of range [0, 1]", t))
	}
	if t := cfg.Resolver.FuzzyThreshold; t < 0 || t > 1 {
		errs = append(errs, fmt.Errorf("resolver.fuzzy_threshold %.2f is out of range [0, 1]", t))
	}
	if cfg.Resolver.LineTolerance < 0 {
		errs = append(errs, fmt.Errorf("resolver.line_tolerance %d must not be negative", cfg.Resolver.LineTolerance))
	}

	// Search
	if cfg.Search.MaxResults < 0 {
		errs = append(errs, fmt.Errorf("search.max_results %d must not be negative", cfg.Search.MaxResults))
	}
	if cfg.Search.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("search.tolerance %d must not be negative", cfg.Search.Tolerance))
	}

	// Audio
	if cfg.Audio.Timeout < 0 {
		errs = append(errs, fmt.Errorf("audio.timeout %s must not be negative", cfg.Audio.Timeout))
	}
	if cfg.Audio.MaxBytes < 0 {
		errs = append(errs, fmt.Errorf("audio.max_bytes %d must not be negative", cfg.Audio.MaxBytes))
	}
	if cfg.Audio.BreakerCooldown < 0 {
		errs = append(errs, fmt.Errorf("audio.breaker_cooldown %s must not be negative", cfg.Audio.BreakerCooldown))
	}

	return errors.Join(errs...)
}
