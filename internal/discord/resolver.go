package discord

import (
	"github.com/bwmarrin/discordgo"

	"github.com/oratorbot/orator/internal/sanitize"
)

var _ sanitize.Resolver = (*StateResolver)(nil)

// StateResolver resolves mention tokens against the session's state cache,
// falling back to the REST API on a cache miss.
type StateResolver struct {
	session *discordgo.Session
}

// NewStateResolver creates a resolver backed by session.
func NewStateResolver(session *discordgo.Session) *StateResolver {
	return &StateResolver{session: session}
}

// MemberName implements [sanitize.Resolver]. Nicknames win over usernames.
func (r *StateResolver) MemberName(guildID, userID string) (string, bool) {
	member, err := r.session.State.Member(guildID, userID)
	if err != nil {
		member, err = r.session.GuildMember(guildID, userID)
		if err != nil {
			return "", false
		}
	}
	if member.Nick != "" {
		return member.Nick, true
	}
	if member.User != nil {
		return member.User.Username, true
	}
	return "", false
}

// ChannelName implements [sanitize.Resolver].
func (r *StateResolver) ChannelName(channelID string) (string, bool) {
	channel, err := r.session.State.Channel(channelID)
	if err != nil {
		channel, err = r.session.Channel(channelID)
		if err != nil {
			return "", false
		}
	}
	return channel.Name, true
}

// RoleName implements [sanitize.Resolver].
func (r *StateResolver) RoleName(guildID, roleID string) (string, bool) {
	role, err := r.session.State.Role(guildID, roleID)
	if err != nil {
		return "", false
	}
	return role.Name, true
}
