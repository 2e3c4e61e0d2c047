package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/oratorbot/orator/internal/playback"
)

// handleSkip registers a skip vote on the guild's dispatcher and answers with
// the tally state.
func (c *Commands) handleSkip(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" {
		RespondEphemeral(s, i, "This command only works inside a server.")
		return false
	}
	user := interactionUser(i)
	if user == nil {
		RespondEphemeral(s, i, "I couldn't figure out who sent that.")
		return false
	}

	sched, ok := c.registry.Get(i.GuildID)
	if !ok {
		RespondEphemeral(s, i, "There is nothing playing right now.")
		return false
	}

	res := sched.RequestSkip(user.ID)
	c.metrics.RecordSkipVote(c.runCtx, res.Outcome.String())

	switch res.Outcome {
	case playback.SkipNotPlaying:
		RespondEphemeral(s, i, "There is nothing playing right now.")
		return false
	case playback.SkipSelf:
		Respond(s, i, "Skipping your own message.")
	case playback.SkipAlreadyVoted:
		RespondEphemeral(s, i, "You already voted to skip this message.")
	case playback.SkipVoteAdded:
		Respond(s, i, fmt.Sprintf("Skip vote counted (%d of %d needed).", res.Votes, res.Needed))
	case playback.SkipTallyUnavailable:
		Respond(s, i, fmt.Sprintf("Skip vote counted (%d so far), I'll settle the tally on the next vote.", res.Votes))
	case playback.SkipVotePassed:
		Respond(s, i, "Skipping the current message.")
	}
	return true
}
