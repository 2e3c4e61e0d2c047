// Package mock provides in-memory mock implementations of [voice.Gateway]
// and [voice.Conn] for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so
// that tests can assert on call counts and arguments, and they expose
// exported fields that the test can set to control return values.
//
// Typical usage:
//
//	conn := &mock.Conn{Channel: "vc-1"}
//	gw := &mock.Gateway{
//	    JoinResult: conn,
//	    Members:    map[string][]voice.Member{"vc-1": {{ID: "u1"}}},
//	}
package mock

import (
	"context"
	"sync"

	"github.com/oratorbot/orator/pkg/voice"
)

// ─── Conn ─────────────────────────────────────────────────────────────────────

// Conn is a mock implementation of [voice.Conn].
//
// Play blocks until the test releases it (see PlayRelease) or the play
// context is cancelled, which lets tests drive the scheduler through its
// Playing and Draining states deterministically.
type Conn struct {
	mu sync.Mutex

	// Channel is returned by ChannelID and updated by Move.
	Channel string

	// MoveError is returned by Move.
	MoveError error

	// PlayError is returned by Play when the test releases playback via
	// FinishPlay. A cancelled context always wins and returns ctx.Err().
	PlayError error

	// PlayStarted receives the played path each time Play begins.
	// Left nil, starts are not reported.
	PlayStarted chan string

	// DisconnectError is returned by the first Disconnect call.
	DisconnectError error

	// CallCountDisconnect records how many times Disconnect was called.
	CallCountDisconnect int

	// MoveCalls records the channel ids passed to Move, in order.
	MoveCalls []string

	// PlayCalls records the paths passed to Play, in order.
	PlayCalls []string

	playing      bool
	disconnected bool
	release      chan struct{}
}

// ChannelID implements [voice.Conn].
func (c *Conn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Channel
}

// Move implements [voice.Conn]. On success the mock's channel is updated.
func (c *Conn) Move(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MoveCalls = append(c.MoveCalls, channelID)
	if c.MoveError != nil {
		return c.MoveError
	}
	c.Channel = channelID
	return nil
}

// Play implements [voice.Conn]. It blocks until [Conn.FinishPlay] is called
// or ctx is cancelled.
func (c *Conn) Play(ctx context.Context, path string) error {
	c.mu.Lock()
	c.PlayCalls = append(c.PlayCalls, path)
	c.playing = true
	release := make(chan struct{})
	c.release = release
	started := c.PlayStarted
	c.mu.Unlock()

	if started != nil {
		started <- path
	}

	defer func() {
		c.mu.Lock()
		c.playing = false
		c.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-release:
		c.mu.Lock()
		err := c.PlayError
		c.mu.Unlock()
		return err
	}
}

// FinishPlay unblocks the in-flight Play call, simulating natural playback
// completion. It is a no-op when nothing is playing.
func (c *Conn) FinishPlay() {
	c.mu.Lock()
	release := c.release
	c.release = nil
	c.mu.Unlock()
	if release != nil {
		close(release)
	}
}

// Playing implements [voice.Conn].
func (c *Conn) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Disconnect implements [voice.Conn].
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CallCountDisconnect++
	if c.disconnected {
		return nil
	}
	c.disconnected = true
	return c.DisconnectError
}

// Disconnected reports whether Disconnect has been called at least once.
func (c *Conn) Disconnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnected
}

// ─── Gateway ──────────────────────────────────────────────────────────────────

// JoinCall records the arguments of a single [Gateway.Join] invocation.
type JoinCall struct {
	GuildID   string
	ChannelID string
}

// Gateway is a mock implementation of [voice.Gateway].
type Gateway struct {
	mu sync.Mutex

	// JoinResult is returned by Join. When nil and JoinError is nil, Join
	// fabricates a fresh [Conn] on the requested channel.
	JoinResult *Conn

	// JoinError is returned by Join.
	JoinError error

	// Members maps channel id to the members reported by ChannelMembers.
	Members map[string][]voice.Member

	// MembersError is returned by ChannelMembers.
	MembersError error

	// Perms maps channel id to the permissions reported by Permissions.
	// Channels absent from the map report full permissions.
	Perms map[string]voice.Permissions

	// JoinCalls records every Join invocation.
	JoinCalls []JoinCall
}

// Join implements [voice.Gateway].
func (g *Gateway) Join(_ context.Context, guildID, channelID string) (voice.Conn, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.JoinCalls = append(g.JoinCalls, JoinCall{GuildID: guildID, ChannelID: channelID})
	if g.JoinError != nil {
		return nil, g.JoinError
	}
	if g.JoinResult != nil {
		g.JoinResult.mu.Lock()
		g.JoinResult.Channel = channelID
		g.JoinResult.mu.Unlock()
		return g.JoinResult, nil
	}
	return &Conn{Channel: channelID}, nil
}

// ChannelMembers implements [voice.Gateway].
func (g *Gateway) ChannelMembers(_, channelID string) ([]voice.Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.MembersError != nil {
		return nil, g.MembersError
	}
	return append([]voice.Member(nil), g.Members[channelID]...), nil
}

// SetMembers replaces the member list reported for channelID. Use this in
// tests to simulate members joining or leaving mid-vote.
func (g *Gateway) SetMembers(channelID string, members []voice.Member) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Members == nil {
		g.Members = make(map[string][]voice.Member)
	}
	g.Members[channelID] = members
}

// Permissions implements [voice.Gateway].
func (g *Gateway) Permissions(channelID string) (voice.Permissions, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Perms == nil {
		return voice.Permissions{Connect: true, Speak: true}, nil
	}
	if p, ok := g.Perms[channelID]; ok {
		return p, nil
	}
	return voice.Permissions{Connect: true, Speak: true}, nil
}

// Compile-time interface assertions.
var (
	_ voice.Gateway = (*Gateway)(nil)
	_ voice.Conn    = (*Conn)(nil)
)
