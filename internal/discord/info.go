package discord

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// invitePermissions is the permission set requested by the invite link.
const invitePermissions = discordgo.PermissionVoiceConnect |
	discordgo.PermissionVoiceSpeak |
	discordgo.PermissionViewChannel

// handleInvite answers with an OAuth2 invite link for this bot.
func (c *Commands) handleInvite(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	url := fmt.Sprintf(
		"https://discord.com/oauth2/authorize?client_id=%s&scope=bot%%20applications.commands&permissions=%d",
		s.State.User.ID, invitePermissions)
	RespondEphemeral(s, i, "Invite me to your own server: "+url)
	return true
}

// handleHelp lists every command with a short description.
func (c *Commands) handleHelp(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	RespondEphemeral(s, i,
		"**Commands**\n"+
			"/say — read a message out loud in your voice channel\n"+
			"/skip — vote to skip the message currently playing\n"+
			"/speech_config — pick the voice used for your messages\n"+
			"/privacy_policy — what data is stored and for how long\n"+
			"/delete_my_data — queue all data about you for deletion\n"+
			"/invite — invite the bot to your own server\n"+
			"/help — this list")
	return true
}
