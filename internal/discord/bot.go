// Package discord provides the Discord transport for silibot. It owns the
// discordgo.Session lifecycle, restricts commands to the configured channel,
// and routes slash command and autocomplete interactions to registered
// handlers.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token without the "Bot " prefix.
	Token string

	// GuildID scopes command registration to one guild. Empty registers
	// global commands.
	GuildID string

	// ChannelID is the only channel in which commands are honoured. Empty
	// allows all channels.
	ChannelID string
}

// Bot owns the Discord gateway connection and routes interactions
// to registered command handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	router    *CommandRouter
	guard     *ChannelGuard
	guildID   string
	commands  []*discordgo.ApplicationCommand
	connected atomic.Bool
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and registers the interaction handler.
func New(_ context.Context, cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	// Slash commands and autocomplete arrive without any privileged intent.
	session.Identify.Intents = discordgo.IntentsGuilds

	guard := NewChannelGuard(cfg.ChannelID)
	b := &Bot{
		session: session,
		router:  NewCommandRouter(WithChannelGuard(guard)),
		guard:   guard,
		guildID: cfg.GuildID,
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Ready) { b.setConnected(true) })
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Resumed) { b.setConnected(true) })
	session.AddHandler(func(_ *discordgo.Session, _ *discordgo.Disconnect) { b.setConnected(false) })

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}
	return b, nil
}

func (b *Bot) setConnected(v bool) {
	if b.connected.Swap(v) != v {
		slog.Info("discord gateway state changed", "connected", v)
	}
}

// Connected reports whether the gateway connection is currently up.
func (b *Bot) Connected() bool {
	return b.connected.Load()
}

// GuildID returns the target guild ID.
func (b *Bot) GuildID() string {
	return b.guildID
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// Guard returns the channel guard so the allowed channel can be changed at
// runtime.
func (b *Bot) Guard() *ChannelGuard {
	return b.guard
}

// Run registers slash commands with the Discord API and blocks until
// ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	if len(cmds) > 0 {
		registered, err := b.session.ApplicationCommandBulkOverwrite(appID, b.guildID, cmds)
		if err != nil {
			return fmt.Errorf("discord: register commands: %w", err)
		}
		b.mu.Lock()
		b.commands = registered
		b.mu.Unlock()
		slog.Info("discord commands registered", "count", len(registered), "guild", b.guildID)
	}

	<-ctx.Done()
	return ctx.Err()
}

// Close disconnects from Discord and unregisters commands.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil && len(b.commands) > 0 {
			appID := b.session.State.User.ID
			for _, cmd := range b.commands {
				if err := b.session.ApplicationCommandDelete(appID, b.guildID, cmd.ID); err != nil {
					slog.Warn("discord: failed to delete command", "name", cmd.Name, "err", err)
				}
			}
		}

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}
		b.connected.Store(false)

		slog.Info("discord bot closed")
	})
	return closeErr
}
