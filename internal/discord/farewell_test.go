package discord

import (
	"context"
	"testing"

	"github.com/oratorbot/orator/internal/playback"
	"github.com/oratorbot/orator/pkg/voice/mock"
)

func TestIdleFarewellWithoutPhrasesDisconnects(t *testing.T) {
	t.Parallel()

	handler := IdleFarewell(context.Background(), nil, nil)

	s := playback.NewScheduler(playback.Config{
		GuildID: "g1",
		Gateway: &mock.Gateway{},
	})

	disconnected := false
	handler(s, func() { disconnected = true })

	if !disconnected {
		t.Error("handler did not drop the connection")
	}
}

func TestIdleFarewellWithoutChannelDisconnects(t *testing.T) {
	t.Parallel()

	handler := IdleFarewell(context.Background(), nil, []string{"bye"})

	// Never connected, so there is no channel to read the farewell in.
	s := playback.NewScheduler(playback.Config{
		GuildID: "g1",
		Gateway: &mock.Gateway{},
	})

	disconnected := false
	handler(s, func() { disconnected = true })

	if !disconnected {
		t.Error("handler did not drop the connection")
	}
}
