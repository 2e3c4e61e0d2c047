package discord

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/oratorbot/orator/pkg/voice"
)

// Compile-time interface assertion.
var _ voice.Conn = (*Conn)(nil)

// Conn wraps a discordgo.VoiceConnection and adapts it to the [voice.Conn]
// interface. Playback decodes the source file to 48 kHz stereo PCM with an
// external ffmpeg process, encodes 20 ms Opus frames, and feeds them to the
// Discord voice websocket.
//
// Conn is safe for concurrent use.
type Conn struct {
	mu sync.Mutex
	vc *discordgo.VoiceConnection

	ffmpegPre  []string
	ffmpegPost []string

	playing      bool
	disconnected bool
}

func newConn(vc *discordgo.VoiceConnection, pre, post []string) *Conn {
	return &Conn{vc: vc, ffmpegPre: pre, ffmpegPost: post}
}

// ChannelID returns the channel the connection is currently on.
func (c *Conn) ChannelID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.vc.ChannelID
}

// Move switches the connection to another channel in the same guild.
func (c *Conn) Move(ctx context.Context, channelID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	vc := c.vc
	c.mu.Unlock()
	if err := vc.ChangeChannel(channelID, false, true); err != nil {
		return fmt.Errorf("discord: move to channel %q: %w", channelID, err)
	}
	return nil
}

// Playing reports whether a Play call is currently streaming audio.
func (c *Conn) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.playing
}

// Play streams the audio file at path to the connected channel. It blocks
// until the file is fully played or ctx is cancelled; cancellation kills the
// decode process and returns ctx.Err().
func (c *Conn) Play(ctx context.Context, path string) error {
	c.mu.Lock()
	if c.playing {
		c.mu.Unlock()
		return errors.New("discord: a play is already in flight")
	}
	if c.disconnected {
		c.mu.Unlock()
		return errors.New("discord: connection is closed")
	}
	c.playing = true
	vc := c.vc
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		c.playing = false
		c.mu.Unlock()
	}()

	enc, err := newOpusEncoder()
	if err != nil {
		return err
	}

	args := append([]string(nil), c.ffmpegPre...)
	args = append(args, "-i", path)
	args = append(args, c.ffmpegPost...)
	args = append(args, "-f", "s16le", "-ar", "48000", "-ac", "2", "-loglevel", "error", "pipe:1")

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("discord: ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("discord: start ffmpeg: %w", err)
	}
	defer func() {
		if werr := cmd.Wait(); werr != nil && ctx.Err() == nil {
			slog.Debug("ffmpeg exited with error", "path", path, "err", werr)
		}
	}()

	if err := vc.Speaking(true); err != nil {
		slog.Warn("speaking notification error", "err", err)
	}
	defer func() {
		if err := vc.Speaking(false); err != nil {
			slog.Debug("speaking notification error", "err", err)
		}
	}()

	buf := make([]byte, opusFrameBytes)
	for {
		if _, err := io.ReadFull(stdout, buf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return ctx.Err()
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("discord: read pcm: %w", err)
		}

		opus, err := enc.encode(buf)
		if err != nil {
			slog.Warn("opus encode error", "err", err)
			continue
		}

		select {
		case vc.OpusSend <- opus:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Disconnect leaves the voice channel. Safe to call more than once.
func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disconnected {
		return nil
	}
	c.disconnected = true
	if err := c.vc.Disconnect(); err != nil {
		return fmt.Errorf("discord: disconnect: %w", err)
	}
	return nil
}
