// Package discord provides a [voice.Gateway] implementation backed by Discord
// voice channels via the bwmarrin/discordgo library. It bridges Discord's
// Opus-based voice transport with Orator's file-playback pipeline: audio files
// are decoded to PCM by an external ffmpeg process and encoded to Opus frames
// for transmission.
//
// The gateway requires an active *discordgo.Session (owned by the bot layer).
// Each call to [Gateway.Join] joins the requested voice channel and returns a
// [Conn] able to stream one file at a time.
package discord

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/oratorbot/orator/pkg/voice"
)

// Compile-time interface assertion.
var _ voice.Gateway = (*Gateway)(nil)

// Gateway implements [voice.Gateway] using discordgo voice connections.
// It is safe for concurrent use; one Gateway serves every guild.
type Gateway struct {
	session *discordgo.Session

	// ffmpegPre and ffmpegPost are extra ffmpeg options placed before and
	// after the input file argument, from configuration.
	ffmpegPre  []string
	ffmpegPost []string
}

// Option is a functional option for [New].
type Option func(*Gateway)

// WithFFmpegArgs sets extra options passed to the ffmpeg decode process.
// pre is spliced before the "-i <file>" argument, post after it.
func WithFFmpegArgs(pre, post string) Option {
	return func(g *Gateway) {
		g.ffmpegPre = splitArgs(pre)
		g.ffmpegPost = splitArgs(post)
	}
}

// New creates a Gateway for the given session.
func New(session *discordgo.Session, opts ...Option) *Gateway {
	g := &Gateway{session: session}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Join connects to the voice channel identified by channelID within guildID.
// mute=false (we send audio), deaf=true (we never consume incoming audio).
func (g *Gateway) Join(ctx context.Context, guildID, channelID string) (voice.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vc, err := g.session.ChannelVoiceJoin(guildID, channelID, false, true)
	if err != nil {
		return nil, fmt.Errorf("discord: join voice channel %q: %w", channelID, err)
	}
	return newConn(vc, g.ffmpegPre, g.ffmpegPost), nil
}

// ChannelMembers returns the members whose voice state places them on the
// given channel. Membership and the bot flag are read from the session state
// cache, which requires the guild-voice-states intent.
func (g *Gateway) ChannelMembers(guildID, channelID string) ([]voice.Member, error) {
	guild, err := g.session.State.Guild(guildID)
	if err != nil {
		return nil, fmt.Errorf("discord: guild %q not in state: %w", guildID, err)
	}

	var members []voice.Member
	for _, vs := range guild.VoiceStates {
		if vs.ChannelID != channelID {
			continue
		}
		m := voice.Member{ID: vs.UserID}
		if member, merr := g.session.State.Member(guildID, vs.UserID); merr == nil && member.User != nil {
			m.Bot = member.User.Bot
		}
		members = append(members, m)
	}
	return members, nil
}

// Permissions computes the bot identity's effective permissions on channelID.
func (g *Gateway) Permissions(channelID string) (voice.Permissions, error) {
	botID := g.session.State.User.ID
	perms, err := g.session.State.UserChannelPermissions(botID, channelID)
	if err != nil {
		return voice.Permissions{}, fmt.Errorf("discord: permissions on channel %q: %w", channelID, err)
	}
	return voice.Permissions{
		Connect: perms&discordgo.PermissionVoiceConnect != 0,
		Speak:   perms&discordgo.PermissionVoiceSpeak != 0,
	}, nil
}

// splitArgs splits a whitespace-separated option string into argv elements.
// Empty input yields nil.
func splitArgs(s string) []string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil
	}
	return fields
}
