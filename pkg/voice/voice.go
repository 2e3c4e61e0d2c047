// Package voice defines the interfaces and types for voice-channel
// connectivity and audio playback within Orator.
//
// The two primary abstractions are:
//
//   - [Gateway] — joins a guild voice channel and answers questions about
//     channel membership and the bot's effective permissions.
//   - [Conn] — an active voice connection, able to move between channels,
//     stream an audio file, and disconnect.
//
// Implementations are provided by platform-specific adapter packages
// (e.g. voice/discord). The interfaces are intentionally narrow so that the
// playback scheduler never touches platform SDK types.
//
// This package lives under pkg/ because external platform adapters are
// expected to implement [Gateway] and [Conn].
package voice

import "context"

// Member is one connected member of a voice channel.
type Member struct {
	// ID is the platform-specific user identifier.
	ID string

	// Bot reports whether the member is an automated account. Bots are
	// excluded from skip-vote tallies.
	Bot bool
}

// Permissions holds the subset of channel permissions the playback pipeline
// cares about.
type Permissions struct {
	// Connect allows joining the channel.
	Connect bool

	// Speak allows transmitting audio once joined.
	Speak bool
}

// Conn is an active voice connection in a single guild.
//
// Implementations must be safe for concurrent use: Play runs on the
// scheduler's dispatcher goroutine while Playing and Disconnect may be called
// from command handlers.
type Conn interface {
	// ChannelID returns the id of the channel the connection is currently on.
	ChannelID() string

	// Move switches the connection to another channel in the same guild.
	Move(ctx context.Context, channelID string) error

	// Play streams the audio file at path to the channel and blocks until the
	// file has fully played, ctx is cancelled, or an unrecoverable transport
	// error occurs. Cancelling ctx stops the stream promptly and returns
	// ctx.Err(). Only one Play may be in flight per connection.
	Play(ctx context.Context, path string) error

	// Playing reports whether audio is currently in flight.
	Playing() bool

	// Disconnect leaves the voice channel. Safe to call more than once;
	// subsequent calls are no-ops and return nil.
	Disconnect() error
}

// Gateway is the per-guild entry point to a voice platform.
//
// Implementations must be safe for concurrent use; one Gateway is shared by
// every guild's scheduler.
type Gateway interface {
	// Join connects to the voice channel identified by channelID within
	// guildID and returns the active [Conn]. ctx bounds the connection
	// attempt only.
	Join(ctx context.Context, guildID, channelID string) (Conn, error)

	// ChannelMembers returns the members currently connected to the given
	// voice channel.
	ChannelMembers(guildID, channelID string) ([]Member, error)

	// Permissions returns the bot's effective permissions on the channel.
	Permissions(channelID string) (Permissions, error)
}
