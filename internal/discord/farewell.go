package discord

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/oratorbot/orator/internal/playback"
	"github.com/oratorbot/orator/internal/tts"
)

// IdleFarewell returns an idle handler that reads a random goodbye phrase
// before dropping the voice connection. With no phrases configured the
// connection is dropped straight away.
func IdleFarewell(ctx context.Context, renderer *tts.Renderer, phrases []string) playback.IdleHandler {
	return func(s *playback.Scheduler, disconnect func()) {
		channelID := s.ConnectedChannel()
		if len(phrases) == 0 || channelID == "" {
			disconnect()
			return
		}
		phrase := phrases[rand.IntN(len(phrases))]

		// Farewell phrases are operator-configured, so the character limit
		// does not apply.
		path, err := renderer.Synthesize(ctx, phrase, true)
		if err != nil {
			slog.Warn("farewell synthesis failed", "error", err)
			disconnect()
			return
		}

		req := &playback.Request{
			ChannelID: channelID,
			Path:      path,
			OnComplete: func() {
				renderer.Release(path)
				disconnect()
			},
		}
		if err := s.Enqueue(req); err != nil {
			renderer.Release(path)
			disconnect()
		}
	}
}
