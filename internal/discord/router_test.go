package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"

	"github.com/MrWong99/silibot/internal/discord/mock"
)

func commandInteraction(channelID, name string, opts ...*discordgo.ApplicationCommandInteractionDataOption) *discordgo.InteractionCreate {
	return &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			ChannelID: channelID,
			Data:      discordgo.ApplicationCommandInteractionData{Name: name, Options: opts},
		},
	}
}

func TestNewCommandRouter(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	if r == nil {
		t.Fatal("NewCommandRouter() returned nil")
	}
	if len(r.commands) != 0 {
		t.Errorf("expected empty commands map, got %d entries", len(r.commands))
	}
	if len(r.autocomplete) != 0 {
		t.Errorf("expected empty autocomplete map, got %d entries", len(r.autocomplete))
	}
}

func TestCommandRouter_ApplicationCommands(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()

	cmd := &discordgo.ApplicationCommand{Name: "test"}
	r.RegisterCommand("test", cmd, func(Responder, *discordgo.InteractionCreate) {})

	cmds := r.ApplicationCommands()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 command, got %d", len(cmds))
	}
	if cmds[0].Name != "test" {
		t.Errorf("expected command name 'test', got %q", cmds[0].Name)
	}
}

func TestCommandRouter_ApplicationCommands_Dedup(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()

	cmd := &discordgo.ApplicationCommand{Name: "voicelinesearch"}
	r.RegisterCommand("voicelinesearch/join", cmd, func(Responder, *discordgo.InteractionCreate) {})
	r.RegisterCommand("voicelinesearch/leave", cmd, func(Responder, *discordgo.InteractionCreate) {})

	cmds := r.ApplicationCommands()
	if len(cmds) != 1 {
		t.Fatalf("expected 1 deduplicated command, got %d", len(cmds))
	}
}

func TestCommandRouter_RegisterHandler(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	called := false
	r.RegisterHandler("test", func(Responder, *discordgo.InteractionCreate) {
		called = true
	})

	// Handler without command definition should not appear in ApplicationCommands.
	if cmds := r.ApplicationCommands(); len(cmds) != 0 {
		t.Errorf("expected 0 commands, got %d", len(cmds))
	}

	r.Handle(&mock.InteractionResponder{}, commandInteraction("c1", "test"))
	if !called {
		t.Error("handler was not called")
	}
}

func TestCommandRouter_HandleSubcommand(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	var got string
	r.RegisterHandler("voicelinesearch/join", func(Responder, *discordgo.InteractionCreate) { got = "join" })
	r.RegisterHandler("voicelinesearch/leave", func(Responder, *discordgo.InteractionCreate) { got = "leave" })

	r.Handle(&mock.InteractionResponder{}, commandInteraction("c1", "voicelinesearch", &discordgo.ApplicationCommandInteractionDataOption{
		Name: "leave",
		Type: discordgo.ApplicationCommandOptionSubCommand,
	}))
	if got != "leave" {
		t.Errorf("dispatched to %q, want leave", got)
	}
}

func TestCommandRouter_UnknownCommand(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	resp := &mock.InteractionResponder{}
	r.Handle(resp, commandInteraction("c1", "nope"))

	last := resp.LastResponse()
	if last == nil || last.Data.Content != "Unknown command." {
		t.Fatalf("response = %+v, want Unknown command.", last)
	}
	if last.Data.Flags != discordgo.MessageFlagsEphemeral {
		t.Error("unknown command reply should be ephemeral")
	}
}

func TestCommandRouter_ChannelGuard(t *testing.T) {
	t.Parallel()

	guard := NewChannelGuard("allowed")
	r := NewCommandRouter(WithChannelGuard(guard))
	calls := 0
	r.RegisterHandler("voiceline", func(Responder, *discordgo.InteractionCreate) { calls++ })
	r.RegisterAutocomplete("voiceline", func(Responder, *discordgo.InteractionCreate) { calls++ })

	resp := &mock.InteractionResponder{}
	r.Handle(resp, commandInteraction("elsewhere", "voiceline"))
	if calls != 0 {
		t.Fatal("handler ran outside the allowed channel")
	}
	if got := resp.LastResponse().Data.Content; got != "Voice lines are only available in <#allowed>." {
		t.Errorf("rejection = %q", got)
	}

	auto := commandInteraction("elsewhere", "voiceline")
	auto.Type = discordgo.InteractionApplicationCommandAutocomplete
	r.Handle(resp, auto)
	if calls != 0 {
		t.Fatal("autocomplete ran outside the allowed channel")
	}
	if last := resp.LastResponse(); last.Type != discordgo.InteractionApplicationCommandAutocompleteResult || len(last.Data.Choices) != 0 {
		t.Errorf("autocomplete outside channel = %+v, want empty choices", last)
	}

	r.Handle(resp, commandInteraction("allowed", "voiceline"))
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 in the allowed channel", calls)
	}

	guard.SetChannel("")
	r.Handle(resp, commandInteraction("elsewhere", "voiceline"))
	if calls != 2 {
		t.Fatalf("calls = %d, want 2 once every channel is allowed", calls)
	}
}

func TestCommandRouter_AutocompleteWithoutHandler(t *testing.T) {
	t.Parallel()

	r := NewCommandRouter()
	resp := &mock.InteractionResponder{}
	i := commandInteraction("c1", "voiceline")
	i.Type = discordgo.InteractionApplicationCommandAutocomplete
	r.Handle(resp, i)

	last := resp.LastResponse()
	if last == nil || last.Type != discordgo.InteractionApplicationCommandAutocompleteResult {
		t.Fatalf("response = %+v, want empty autocomplete result", last)
	}
}

func TestBot_Connected(t *testing.T) {
	t.Parallel()

	var b Bot
	if b.Connected() {
		t.Fatal("zero Bot reports connected")
	}
	b.setConnected(true)
	if !b.Connected() {
		t.Error("Connected() = false after Ready")
	}
	b.setConnected(false)
	if b.Connected() {
		t.Error("Connected() = true after Disconnect")
	}
}
