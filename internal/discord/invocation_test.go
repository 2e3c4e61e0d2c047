package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
)

func TestInvocationString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data discordgo.ApplicationCommandInteractionData
		want string
	}{
		{
			name: "bare command",
			data: discordgo.ApplicationCommandInteractionData{Name: "help"},
			want: "help",
		},
		{
			name: "string option",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "say",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "text", Type: discordgo.ApplicationCommandOptionString, Value: "hello there"},
				},
			},
			want: "say text:hello there",
		},
		{
			name: "user option rendered as mention",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "say",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "text", Type: discordgo.ApplicationCommandOptionString, Value: "hi"},
					{Name: "to", Type: discordgo.ApplicationCommandOptionUser, Value: "42"},
				},
			},
			want: "say text:hi to:<@42>",
		},
		{
			name: "subcommand",
			data: discordgo.ApplicationCommandInteractionData{
				Name: "admin",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "skip", Type: discordgo.ApplicationCommandOptionSubCommand},
				},
			},
			want: "admin skip",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := InvocationString(tc.data); got != tc.want {
				t.Errorf("InvocationString() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestEventFromInteraction(t *testing.T) {
	t.Parallel()

	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			GuildID:   "g1",
			ChannelID: "c1",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "u1", Username: "alice"},
			},
			Data: discordgo.ApplicationCommandInteractionData{
				Name: "admin",
				Options: []*discordgo.ApplicationCommandInteractionDataOption{
					{Name: "disconnect", Type: discordgo.ApplicationCommandOptionSubCommand},
				},
			},
		},
	}

	ev := eventFromInteraction(nil, i)

	if ev.Command != "admin disconnect" {
		t.Errorf("Command = %q, want %q", ev.Command, "admin disconnect")
	}
	if ev.Invocation != "admin disconnect" {
		t.Errorf("Invocation = %q, want %q", ev.Invocation, "admin disconnect")
	}
	if ev.UserID != "u1" || ev.UserName != "alice" {
		t.Errorf("user = %q/%q, want u1/alice", ev.UserID, ev.UserName)
	}
	if ev.GuildID != "g1" || ev.ChannelID != "c1" {
		t.Errorf("ids = %q/%q, want g1/c1", ev.GuildID, ev.ChannelID)
	}
	if ev.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
}

func TestEventFromInteractionDirectMessage(t *testing.T) {
	t.Parallel()

	i := &discordgo.InteractionCreate{
		Interaction: &discordgo.Interaction{
			Type:      discordgo.InteractionApplicationCommand,
			ChannelID: "dm1",
			User:      &discordgo.User{ID: "u2", Username: "bob"},
			Data:      discordgo.ApplicationCommandInteractionData{Name: "privacy_policy"},
		},
	}

	ev := eventFromInteraction(nil, i)

	if ev.UserID != "u2" {
		t.Errorf("UserID = %q, want u2", ev.UserID)
	}
	if ev.GuildID != "" {
		t.Errorf("GuildID = %q, want empty", ev.GuildID)
	}
}
