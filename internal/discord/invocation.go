package discord

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/oratorbot/orator/internal/audit"
)

// interactionUser returns the command author, whether the interaction arrived
// from a guild or a DM.
func interactionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	return i.User
}

// InvocationString reconstructs a readable invocation from interaction data,
// e.g. "say text:hello there user:<@123>" or "admin skip". User and role
// options are rendered as mention tokens so the audit anonymiser can find
// them.
func InvocationString(data discordgo.ApplicationCommandInteractionData) string {
	var sb strings.Builder
	sb.WriteString(data.Name)
	writeOptions(&sb, data.Options)
	return sb.String()
}

func writeOptions(sb *strings.Builder, opts []*discordgo.ApplicationCommandInteractionDataOption) {
	for _, o := range opts {
		sb.WriteByte(' ')
		switch o.Type {
		case discordgo.ApplicationCommandOptionSubCommand,
			discordgo.ApplicationCommandOptionSubCommandGroup:
			sb.WriteString(o.Name)
			writeOptions(sb, o.Options)
		default:
			sb.WriteString(o.Name)
			sb.WriteByte(':')
			sb.WriteString(optionValue(o))
		}
	}
}

func optionValue(o *discordgo.ApplicationCommandInteractionDataOption) string {
	switch o.Type {
	case discordgo.ApplicationCommandOptionUser:
		return fmt.Sprintf("<@%v>", o.Value)
	case discordgo.ApplicationCommandOptionRole:
		return fmt.Sprintf("<@&%v>", o.Value)
	case discordgo.ApplicationCommandOptionChannel:
		return fmt.Sprintf("<#%v>", o.Value)
	default:
		return fmt.Sprint(o.Value)
	}
}

// eventFromInteraction builds the audit event for one command interaction.
// Names are resolved best-effort from the state cache; ids are always set.
func eventFromInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) audit.Event {
	data := i.ApplicationCommandData()

	ev := audit.Event{
		ChannelID:  i.ChannelID,
		GuildID:    i.GuildID,
		Command:    strings.ReplaceAll(interactionKey(data), "/", " "),
		Invocation: InvocationString(data),
		CreatedAt:  time.Now().UTC(),
	}
	if u := interactionUser(i); u != nil {
		ev.UserID = u.ID
		ev.UserName = u.Username
	}
	if s != nil && s.State != nil {
		if ch, err := s.State.Channel(i.ChannelID); err == nil {
			ev.ChannelName = ch.Name
		}
		if g, err := s.State.Guild(i.GuildID); err == nil {
			ev.GuildName = g.Name
		}
	}
	return ev
}
