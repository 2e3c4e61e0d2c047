package discord

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/oratorbot/orator/internal/playback"
	"github.com/oratorbot/orator/internal/tts"
)

func sayDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "say",
		Description: "Read a message out loud in your voice channel",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "text",
				Description: "The text to read out",
				Required:    true,
			},
			{
				Type:        discordgo.ApplicationCommandOptionUser,
				Name:        "to",
				Description: "Play in this user's voice channel instead of your own",
			},
		},
	}
}

// handleSay synthesizes the given text and queues it on the guild's
// dispatcher. Reports false when the invocation was rejected before any work
// started.
func (c *Commands) handleSay(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" {
		RespondEphemeral(s, i, "This command only works inside a server.")
		return false
	}
	user := interactionUser(i)
	if user == nil {
		RespondEphemeral(s, i, "I couldn't figure out who sent that.")
		return false
	}

	if !c.sayLimiter(user.ID).Allow() {
		RespondEphemeral(s, i, "You're sending messages too quickly, please slow down.")
		return false
	}

	data := i.ApplicationCommandData()
	textOpt := option(data, "text")
	if textOpt == nil {
		RespondEphemeral(s, i, "There is nothing to say.")
		return false
	}
	text := textOpt.StringValue()

	// The clip plays where the target sits; the target defaults to the
	// command author.
	target := user.ID
	if toOpt := option(data, "to"); toOpt != nil {
		target = toOpt.UserValue(nil).ID
	}
	channelID := voiceChannelOf(s, i.GuildID, target)
	if channelID == "" {
		RespondEphemeral(s, i, "You need to be in a voice channel for me to read that out.")
		return false
	}

	// The dispatcher re-checks on connect; this early check lets the refusal
	// be audited with the invocation.
	perms, err := s.State.UserChannelPermissions(s.State.User.ID, channelID)
	if err == nil && (perms&discordgo.PermissionVoiceConnect == 0 || perms&discordgo.PermissionVoiceSpeak == 0) {
		RespondEphemeral(s, i, "I'm not allowed to connect or speak in that voice channel.")
		return false
	}

	DeferReply(s, i)

	cleaned := c.cleaner.Clean(i.GuildID, text)

	start := time.Now()
	path, err := c.renderer.SynthesizeVoice(c.runCtx, cleaned, c.voiceFor(user.ID), false)
	if err != nil {
		c.metrics.RecordSynth(c.runCtx, 0, synthErrorKind(err))
		FollowUp(s, i, synthErrorMessage(err))
		var tooLong *tts.MessageTooLongError
		return !errors.As(err, &tooLong)
	}
	c.metrics.RecordSynth(c.runCtx, time.Since(start), "")

	sched := c.registry.GetOrCreate(c.runCtx, i.GuildID)
	req := &playback.Request{
		Requester: user.ID,
		ChannelID: channelID,
		Path:      path,
		Reply: func(msg string) {
			FollowUp(s, i, msg)
		},
	}
	req.OnComplete = func() {
		c.renderer.Release(path)
	}
	if err := sched.Enqueue(req); err != nil {
		c.renderer.Release(path)
		FollowUp(s, i, "I'm shutting down right now, please try again in a moment.")
		return false
	}
	c.metrics.RecordPlayRequest(c.runCtx, "say")

	FollowUp(s, i, fmt.Sprintf("Reading out %d characters.", len(cleaned)))
	return true
}

// synthErrorKind classifies a synthesis failure for metrics.
func synthErrorKind(err error) string {
	var tooLong *tts.MessageTooLongError
	var failed *tts.RenderFailedError
	switch {
	case errors.As(err, &tooLong):
		return "too_long"
	case errors.Is(err, tts.ErrRenderTimeout):
		return "timeout"
	case errors.As(err, &failed):
		return "render_failed"
	}
	return "internal"
}

// synthErrorMessage maps a synthesis failure to the user-facing reply.
func synthErrorMessage(err error) string {
	var tooLong *tts.MessageTooLongError
	if errors.As(err, &tooLong) {
		return fmt.Sprintf("That message is too long, the limit is %d characters.", tooLong.Limit)
	}
	if errors.Is(err, tts.ErrRenderTimeout) {
		return "Generating the audio took too long, please try a shorter message."
	}
	slog.Error("speech synthesis failed", "error", err)
	return "I couldn't generate the audio for that, sorry."
}
