package discord

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
)

// handleDeleteMyData queues the caller for the next weekly purge window.
func (c *Commands) handleDeleteMyData(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	user := interactionUser(i)
	if user == nil {
		RespondEphemeral(s, i, "I couldn't figure out who sent that.")
		return false
	}
	if c.privacy == nil || !c.recorder.Enabled() {
		RespondEphemeral(s, i, "No data is being stored about you, there is nothing to delete.")
		return true
	}

	if err := c.privacy.Submit(user.ID); err != nil {
		slog.Error("queue deletion request", "user_id", user.ID, "error", err)
		RespondEphemeral(s, i, "I couldn't queue your deletion request, please try again later.")
		return false
	}

	RespondEphemeral(s, i, "Your data is queued for deletion. All stored records about you "+
		"will be removed during the next weekly cleanup.")
	return true
}

// handlePrivacyPolicy answers with a static description of what the bot
// stores.
func (c *Commands) handlePrivacyPolicy(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	ttl := time.Duration(c.cfg.DatabaseDetailedTableTTLSeconds) * time.Second
	days := int(ttl.Hours() / 24)

	var policy string
	if c.recorder.Enabled() {
		policy = fmt.Sprintf(
			"Every command invocation is stored twice:\n"+
				"- a detailed record (your user id, name, channel and command) kept for %d days,\n"+
				"- a permanent anonymous record with all user mentions replaced by placeholders.\n\n"+
				"Use /delete_my_data to have every stored record about you removed "+
				"during the next weekly cleanup. Generated audio files are deleted "+
				"right after playback.", days)
	} else {
		policy = "Command auditing is disabled on this instance; no invocation data " +
			"is stored. Generated audio files are deleted right after playback."
	}
	RespondEphemeral(s, i, policy)
	return true
}
