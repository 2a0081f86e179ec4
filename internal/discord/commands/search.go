package commands

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/silibot/internal/discord"
)

// SearchCommands handles the /voicelinesearch command group, which opts
// users in and out of /voiceline suggestions.
type SearchCommands struct {
	members Members
}

// NewSearchCommands creates a SearchCommands handler.
func NewSearchCommands(members Members) *SearchCommands {
	return &SearchCommands{members: members}
}

// Register registers all /voicelinesearch subcommands with the router.
func (sc *SearchCommands) Register(router *discord.CommandRouter) {
	def := sc.Definition()
	router.RegisterCommand("voicelinesearch", def, func(s discord.Responder, i *discordgo.InteractionCreate) {
		discord.RespondEphemeral(s, i, "Please use a subcommand: `/voicelinesearch join` or `/voicelinesearch leave`.")
	})
	router.RegisterCommand("voicelinesearch/join", def, sc.handleJoin)
	router.RegisterCommand("voicelinesearch/leave", def, sc.handleLeave)
}

// Definition returns the /voicelinesearch ApplicationCommand for Discord
// registration.
func (sc *SearchCommands) Definition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "voicelinesearch",
		Description: "Manage voice line suggestions while typing /voiceline",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Name:        "join",
				Description: "Get voice line suggestions",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
			{
				Name:        "leave",
				Description: "Stop getting voice line suggestions",
				Type:        discordgo.ApplicationCommandOptionSubCommand,
			},
		},
	}
}

func (sc *SearchCommands) handleJoin(s discord.Responder, i *discordgo.InteractionCreate) {
	id := userID(i)
	if id == "" {
		discord.RespondEphemeral(s, i, "Could not identify you.")
		return
	}
	added, err := sc.members.Add(id, senderName(i))
	if err != nil {
		slog.Error("discord: allow-list add failed", "user", id, "err", err)
		discord.RespondEphemeral(s, i, "Could not enable suggestions. Try again later.")
		return
	}
	if !added {
		discord.RespondEphemeral(s, i, "Voice line suggestions are already enabled for you.")
		return
	}
	slog.Info("user joined voice line search", "user", id)
	discord.RespondEphemeral(s, i, "Voice line suggestions enabled. Start typing after `/voiceline`.")
}

func (sc *SearchCommands) handleLeave(s discord.Responder, i *discordgo.InteractionCreate) {
	id := userID(i)
	removed, err := sc.members.Remove(id)
	if err != nil {
		slog.Error("discord: allow-list remove failed", "user", id, "err", err)
		discord.RespondEphemeral(s, i, "Could not disable suggestions. Try again later.")
		return
	}
	if !removed {
		discord.RespondEphemeral(s, i, "Voice line suggestions were not enabled for you.")
		return
	}
	slog.Info("user left voice line search", "user", id)
	discord.RespondEphemeral(s, i, "Voice line suggestions disabled.")
}
