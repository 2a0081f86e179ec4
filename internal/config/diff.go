package config

import "slices"

// ConfigDiff describes what changed between two configs. Fields that can be
// applied to a running bot are reported individually; everything else is
// listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	ChannelChanged bool
	NewChannelID   string

	ResolverChanged bool
	SearchChanged   bool

	// RestartRequired names the changed settings that only take effect after
	// a restart, in YAML path form (e.g. "discord.token").
	RestartRequired []string
}

// Changed reports whether anything differs.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.ChannelChanged || d.ResolverChanged || d.SearchChanged || len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}
	if old.Discord.ChannelID != new.Discord.ChannelID {
		d.ChannelChanged = true
		d.NewChannelID = new.Discord.ChannelID
	}
	d.ResolverChanged = old.Resolver != new.Resolver
	d.SearchChanged = old.Search.MaxResults != new.Search.MaxResults ||
		old.Search.Tolerance != new.Search.Tolerance

	restart := func(path string, changed bool) {
		if changed {
			d.RestartRequired = append(d.RestartRequired, path)
		}
	}
	restart("server.listen_addr", old.Server.ListenAddr != new.Server.ListenAddr)
	restart("discord.token", old.Discord.Token != new.Discord.Token)
	restart("discord.guild_id", old.Discord.GuildID != new.Discord.GuildID)
	restart("corpus.entity_file", old.Corpus.EntityFile != new.Corpus.EntityFile)
	restart("corpus.response_file", old.Corpus.ResponseFile != new.Corpus.ResponseFile)
	restart("corpus.watch", old.Corpus.Watch != new.Corpus.Watch)
	restart("corpus.rebuild_command", !slices.Equal(old.Corpus.RebuildCommand, new.Corpus.RebuildCommand))
	restart("corpus.rebuild_timeout", old.Corpus.RebuildTimeout != new.Corpus.RebuildTimeout)
	restart("search.allowlist_path", old.Search.AllowlistPath != new.Search.AllowlistPath)
	restart("audio", old.Audio != new.Audio)

	return d
}
