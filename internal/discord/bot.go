// Package discord provides the Discord adapter for Orator. It owns the
// discordgo.Session lifecycle, routes slash command interactions to
// registered handlers, and translates interactions into calls on the
// platform-agnostic core (scheduler, renderer, audit, privacy).
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bwmarrin/discordgo"
)

// Config holds Discord bot configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string

	// OwnerID identifies the bot owner for admin commands. When empty, the
	// application owner reported by the Discord API is used.
	OwnerID string
}

// Bot owns the Discord gateway connection and routes interactions to
// registered command handlers.
type Bot struct {
	mu        sync.RWMutex
	session   *discordgo.Session
	router    *CommandRouter
	ownerID   string
	commands  []*discordgo.ApplicationCommand
	closeOnce sync.Once
}

// New creates a Bot, connects to Discord, and registers the interaction
// handler.
func New(_ context.Context, cfg Config) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord: open session: %w", err)
	}

	b := &Bot{
		session: session,
		router:  NewCommandRouter(),
		ownerID: cfg.OwnerID,
	}

	if b.ownerID == "" {
		app, err := session.Application("@me")
		if err != nil {
			session.Close()
			return nil, fmt.Errorf("discord: resolve application owner: %w", err)
		}
		if app.Owner != nil {
			b.ownerID = app.Owner.ID
		}
	}

	session.AddHandler(func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		b.router.Handle(s, i)
	})

	return b, nil
}

// Session returns the underlying discordgo session. Used by subsystems that
// need direct Discord API access.
func (b *Bot) Session() *discordgo.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.session
}

// Router returns the command router for registering handlers.
func (b *Bot) Router() *CommandRouter {
	return b.router
}

// IsOwner reports whether userID is the configured bot owner.
func (b *Bot) IsOwner(userID string) bool {
	return b.ownerID != "" && userID == b.ownerID
}

// Run pushes the global slash command set to the Discord API and blocks until
// ctx is cancelled. Guild-scoped re-syncs happen later through the admin
// commands.
func (b *Bot) Run(ctx context.Context) error {
	if err := b.SyncCommands(""); err != nil {
		return err
	}
	<-ctx.Done()
	return ctx.Err()
}

// SyncCommands bulk-overwrites the registered command set for guildID. An
// empty guildID targets the global scope.
func (b *Bot) SyncCommands(guildID string) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	cmds := b.router.ApplicationCommands()
	registered, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, cmds)
	if err != nil {
		return fmt.Errorf("discord: register commands (guild %q): %w", guildID, err)
	}

	b.mu.Lock()
	b.commands = registered
	b.mu.Unlock()

	slog.Info("discord commands registered", "count", len(registered), "guild_id", guildID)
	return nil
}

// ClearCommands removes every command registered on guildID.
func (b *Bot) ClearCommands(guildID string) error {
	b.mu.RLock()
	appID := b.session.State.User.ID
	b.mu.RUnlock()

	if _, err := b.session.ApplicationCommandBulkOverwrite(appID, guildID, nil); err != nil {
		return fmt.Errorf("discord: clear commands (guild %q): %w", guildID, err)
	}
	slog.Info("discord commands cleared", "guild_id", guildID)
	return nil
}

// Close disconnects from Discord.
func (b *Bot) Close() error {
	var closeErr error
	b.closeOnce.Do(func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.session != nil {
			if err := b.session.Close(); err != nil {
				closeErr = fmt.Errorf("discord: close session: %w", err)
			}
		}
		slog.Info("discord bot closed")
	})
	return closeErr
}
