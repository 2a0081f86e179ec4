package discord

import (
	"fmt"
	"sync/atomic"
)

// ChannelGuard restricts commands to one channel. The channel can be
// changed while the bot is running. An empty channel ID allows every
// channel.
type ChannelGuard struct {
	channelID atomic.Pointer[string]
}

// NewChannelGuard returns a guard for channelID.
func NewChannelGuard(channelID string) *ChannelGuard {
	g := &ChannelGuard{}
	g.SetChannel(channelID)
	return g
}

// SetChannel replaces the allowed channel.
func (g *ChannelGuard) SetChannel(channelID string) {
	g.channelID.Store(&channelID)
}

// Channel returns the allowed channel, or "" when all are allowed.
func (g *ChannelGuard) Channel() string {
	return *g.channelID.Load()
}

// Allow reports whether commands from channelID are honoured.
func (g *ChannelGuard) Allow(channelID string) bool {
	allowed := g.Channel()
	return allowed == "" || allowed == channelID
}

// Rejection is the reply sent for commands used in another channel.
func (g *ChannelGuard) Rejection() string {
	return fmt.Sprintf("Voice lines are only available in <#%s>.", g.Channel())
}
