// Package commands implements the silibot slash commands.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/silibot/internal/app"
	"github.com/MrWong99/silibot/internal/audiofetch"
	"github.com/MrWong99/silibot/internal/discord"
	"github.com/MrWong99/silibot/internal/voiceline"
)

const (
	// maxChoices is Discord's limit on autocomplete suggestions.
	maxChoices = 25

	// maxChoiceName is Discord's limit on the length of a choice label.
	maxChoiceName = 100

	// idPrefix marks an option value picked from the suggestion list.
	idPrefix = "id:"

	audioContentType = "audio/mpeg"
)

// Lookup resolves voice line queries. [*app.Service] implements it.
type Lookup interface {
	Resolve(ctx context.Context, source, query string) (voiceline.Resolution, error)
	ResolveID(ctx context.Context, id string) (voiceline.IndexEntry, error)
	Search(ctx context.Context, source, query string, limit int) ([]voiceline.IndexEntry, error)
}

// Fetcher downloads audio files. [*audiofetch.Fetcher] implements it.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*audiofetch.Download, error)
}

// Members reports which users opted in to search suggestions.
// [*allowlist.Store] implements it.
type Members interface {
	Contains(userID string) (bool, error)
	Add(userID, name string) (bool, error)
	Remove(userID string) (bool, error)
}

// VoicelineCommands handles the /voiceline slash command and its
// autocomplete.
type VoicelineCommands struct {
	lookup  Lookup
	fetcher Fetcher
	members Members
}

// NewVoicelineCommands creates a VoicelineCommands handler.
func NewVoicelineCommands(lookup Lookup, fetcher Fetcher, members Members) *VoicelineCommands {
	return &VoicelineCommands{lookup: lookup, fetcher: fetcher, members: members}
}

// Register registers /voiceline with the router.
func (vc *VoicelineCommands) Register(router *discord.CommandRouter) {
	router.RegisterCommand("voiceline", vc.Definition(), vc.handleVoiceline)
	router.RegisterAutocomplete("voiceline", vc.handleAutocomplete)
}

// Definition returns the /voiceline ApplicationCommand for Discord registration.
func (vc *VoicelineCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "voiceline",
		Description: "Post a Dota 2 voice line",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:         "query",
				Description:  "Entity Name (entity_type): Voice line (level)",
				Type:         discordgo.ApplicationCommandOptionString,
				Required:     true,
				Autocomplete: true,
			},
		},
	}
}

// handleVoiceline resolves the query, downloads the audio, and posts it
// attributed to the requesting user. Resolution failures are posted as the
// reply text.
func (vc *VoicelineCommands) handleVoiceline(s discord.Responder, i *discordgo.InteractionCreate) {
	query := strings.TrimSpace(optionValue(i, "query"))
	ctx := context.Background()

	// Loading the corpus or the download can exceed the interaction
	// acknowledgement window.
	if !discord.DeferReply(s, i, false) {
		return
	}

	url, err := vc.resolve(ctx, query)
	if err != nil {
		discord.FollowUp(s, i, replyFor(err))
		return
	}

	dl, err := vc.fetcher.Fetch(ctx, url)
	if err != nil {
		slog.Warn("discord: voice line download failed", "url", url, "err", err)
		discord.FollowUp(s, i, voiceline.UserMessage(err))
		return
	}
	defer dl.Close()

	f, err := dl.Open()
	if err != nil {
		slog.Error("discord: open downloaded voice line", "path", dl.Path, "err", err)
		discord.FollowUp(s, i, voiceline.UserMessage(err))
		return
	}
	defer f.Close()

	sender := senderName(i)
	if err := discord.FollowUpFile(s, i, sender+":", dl.Name, audioContentType, f); err != nil {
		slog.Warn("discord: failed to post voice line", "err", err)
		return
	}
	slog.Info("voice line delivered", "user", sender, "file", dl.Name, "bytes", dl.Size)
}

// resolve maps an option value to an audio URL. Values picked from the
// suggestion list carry a result ID; anything else is a typed query.
func (vc *VoicelineCommands) resolve(ctx context.Context, value string) (string, error) {
	if id, ok := strings.CutPrefix(value, idPrefix); ok {
		e, err := vc.lookup.ResolveID(ctx, id)
		if err != nil {
			return "", err
		}
		return e.URL, nil
	}
	res, err := vc.lookup.Resolve(ctx, app.SourceDiscord, value)
	if err != nil {
		return "", err
	}
	return res.URL, nil
}

// replyFor is the chat text for a failed resolution.
func replyFor(err error) string {
	if errors.Is(err, app.ErrUnknownResult) {
		return "That suggestion is no longer available. Pick the voice line again."
	}
	return voiceline.UserMessage(err)
}

// handleAutocomplete suggests voice lines matching the partial query. Only
// users on the allow-list get suggestions.
func (vc *VoicelineCommands) handleAutocomplete(s discord.Responder, i *discordgo.InteractionCreate) {
	userID := userID(i)
	ok, err := vc.members.Contains(userID)
	if err != nil {
		slog.Error("discord: allow-list lookup failed", "user", userID, "err", err)
	}
	if !ok {
		discord.RespondChoices(s, i, nil)
		return
	}

	partial := focusedValue(i)
	entries, err := vc.lookup.Search(context.Background(), app.SourceDiscord, partial, maxChoices)
	if err != nil {
		slog.Warn("discord: voice line search failed", "query", partial, "err", err)
		discord.RespondChoices(s, i, nil)
		return
	}

	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(entries))
	for _, e := range entries {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{
			Name:  truncate(e.Key, maxChoiceName),
			Value: idPrefix + e.ID,
		})
	}
	discord.RespondChoices(s, i, choices)
}

// optionValue returns the string value of the named top-level option.
func optionValue(i *discordgo.InteractionCreate, name string) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Name == name && opt.Type == discordgo.ApplicationCommandOptionString {
			return opt.StringValue()
		}
	}
	return ""
}

// focusedValue returns the partial value of the option being typed.
func focusedValue(i *discordgo.InteractionCreate) string {
	for _, opt := range i.ApplicationCommandData().Options {
		if opt.Focused {
			return opt.StringValue()
		}
	}
	return ""
}

// interactionUser returns the invoking user for guild and direct-message
// interactions alike.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

func userID(i *discordgo.InteractionCreate) string {
	if u := interactionUser(i); u != nil {
		return u.ID
	}
	return ""
}

// senderName identifies the requesting user: username, then global display
// name, then user ID.
func senderName(i *discordgo.InteractionCreate) string {
	u := interactionUser(i)
	switch {
	case u == nil:
		return "Unknown user"
	case u.Username != "":
		return u.Username
	case u.GlobalName != "":
		return u.GlobalName
	case u.ID != "":
		return u.ID
	default:
		return "Unknown user"
	}
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
