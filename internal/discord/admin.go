package discord

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
)

func adminDefinition() *discordgo.ApplicationCommand {
	return &discordgo.ApplicationCommand{
		Name:        "admin",
		Description: "Owner-only maintenance commands",
		Options: []*discordgo.ApplicationCommandOption{
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "skip",
				Description: "Skip the current message without a vote",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "disconnect",
				Description: "Drop the voice connection in this server",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "reload_modules",
				Description: "Reload every bot module",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "sync_local",
				Description: "Re-register the slash commands on this server",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "sync_global",
				Description: "Re-register the slash commands globally",
			},
			{
				Type:        discordgo.ApplicationCommandOptionSubCommand,
				Name:        "clear_local",
				Description: "Remove the slash commands from this server",
			},
		},
	}
}

// adminOnly rejects every caller except the bot owner with a fixed refusal.
// Refused invocations are audited as invalid.
func (c *Commands) adminOnly(h func(s *discordgo.Session, i *discordgo.InteractionCreate) bool) func(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
		user := interactionUser(i)
		if user == nil || !c.bot.IsOwner(user.ID) {
			RespondEphemeral(s, i, "You are not allowed to use admin commands.")
			return false
		}
		return h(s, i)
	}
}

func (c *Commands) handleAdminSkip(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" {
		RespondEphemeral(s, i, "This command only works inside a server.")
		return false
	}
	sched, ok := c.registry.Get(i.GuildID)
	if !ok || !sched.ForceSkip() {
		RespondEphemeral(s, i, "There is nothing playing right now.")
		return true
	}
	Respond(s, i, "Skipped the current message.")
	return true
}

func (c *Commands) handleAdminDisconnect(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" {
		RespondEphemeral(s, i, "This command only works inside a server.")
		return false
	}
	sched, ok := c.registry.Get(i.GuildID)
	if !ok {
		RespondEphemeral(s, i, "I'm not connected to a voice channel here.")
		return true
	}
	if err := sched.Disconnect("admin request"); err != nil {
		slog.Error("admin disconnect", "guild_id", i.GuildID, "error", err)
		RespondEphemeral(s, i, "Disconnecting failed, check the logs.")
		return true
	}
	Respond(s, i, "Disconnected from the voice channel.")
	return true
}

func (c *Commands) handleAdminReload(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if c.graph == nil {
		RespondEphemeral(s, i, "Module reloading is not available on this instance.")
		return true
	}
	DeferReply(s, i)
	if err := c.graph.ReloadAll(c.runCtx); err != nil {
		slog.Error("module reload", "error", err)
		FollowUp(s, i, "Reloading failed, the previous modules are still active. Check the logs.")
		return true
	}
	FollowUp(s, i, "All modules reloaded.")
	return true
}

func (c *Commands) handleAdminSyncLocal(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" {
		RespondEphemeral(s, i, "This command only works inside a server.")
		return false
	}
	DeferReply(s, i)
	if err := c.bot.SyncCommands(i.GuildID); err != nil {
		slog.Error("local command sync", "guild_id", i.GuildID, "error", err)
		FollowUp(s, i, "Syncing the commands failed, check the logs.")
		return true
	}
	FollowUp(s, i, "Commands synced to this server.")
	return true
}

func (c *Commands) handleAdminSyncGlobal(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	DeferReply(s, i)
	if err := c.bot.SyncCommands(""); err != nil {
		slog.Error("global command sync", "error", err)
		FollowUp(s, i, "Syncing the commands failed, check the logs.")
		return true
	}
	FollowUp(s, i, "Commands synced globally. Discord can take up to an hour to show them.")
	return true
}

func (c *Commands) handleAdminClearLocal(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if i.GuildID == "" {
		RespondEphemeral(s, i, "This command only works inside a server.")
		return false
	}
	DeferReply(s, i)
	if err := c.bot.ClearCommands(i.GuildID); err != nil {
		slog.Error("local command clear", "guild_id", i.GuildID, "error", err)
		FollowUp(s, i, "Clearing the commands failed, check the logs.")
		return true
	}
	FollowUp(s, i, "Commands removed from this server.")
	return true
}
