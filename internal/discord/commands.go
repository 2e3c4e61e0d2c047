package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/time/rate"

	"github.com/oratorbot/orator/internal/audit"
	"github.com/oratorbot/orator/internal/config"
	"github.com/oratorbot/orator/internal/modgraph"
	"github.com/oratorbot/orator/internal/observe"
	"github.com/oratorbot/orator/internal/playback"
	"github.com/oratorbot/orator/internal/privacy"
	"github.com/oratorbot/orator/internal/sanitize"
	"github.com/oratorbot/orator/internal/tts"
)

// sayRateEvery and sayRateBurst bound how fast a single user may fire the say
// command.
const (
	sayRateEvery = 2 * time.Second
	sayRateBurst = 3
)

// Commands holds the dependencies for all Orator slash commands and the
// per-user state the command surface keeps (rate limiters, voice choices).
type Commands struct {
	bot      *Bot
	registry *playback.Registry
	renderer *tts.Renderer
	cleaner  *sanitize.Sanitizer
	recorder *audit.Recorder
	privacy  *privacy.Scheduler
	graph    *modgraph.Graph
	metrics  *observe.Metrics
	cfg      *config.Config

	// runCtx bounds the lifetime of dispatchers started on demand.
	runCtx context.Context

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	voices   map[string]string // user id → preferred voice
}

// CommandsConfig wires a [Commands] instance.
type CommandsConfig struct {
	Bot      *Bot
	Registry *playback.Registry
	Renderer *tts.Renderer
	Cleaner  *sanitize.Sanitizer
	Recorder *audit.Recorder
	Privacy  *privacy.Scheduler
	Graph    *modgraph.Graph
	Metrics  *observe.Metrics
	Config   *config.Config

	// RunCtx is the application lifetime context; schedulers created by the
	// commands run until it is cancelled.
	RunCtx context.Context
}

// NewCommands creates the command surface and registers every handler with
// the bot's router.
func NewCommands(cfg CommandsConfig) *Commands {
	c := &Commands{
		bot:      cfg.Bot,
		registry: cfg.Registry,
		renderer: cfg.Renderer,
		cleaner:  cfg.Cleaner,
		recorder: cfg.Recorder,
		privacy:  cfg.Privacy,
		graph:    cfg.Graph,
		metrics:  cfg.Metrics,
		cfg:      cfg.Config,
		runCtx:   cfg.RunCtx,
		limiters: make(map[string]*rate.Limiter),
		voices:   make(map[string]string),
	}
	if c.runCtx == nil {
		c.runCtx = context.Background()
	}
	if c.metrics == nil {
		c.metrics = observe.DefaultMetrics()
	}
	c.register(cfg.Bot.Router())
	return c
}

// audited wraps a handler so that every invocation runs under a command span
// and is recorded as an audit event pair and a command metric. The wrapped
// handler reports whether the invocation was valid.
func (c *Commands) audited(h func(s *discordgo.Session, i *discordgo.InteractionCreate) bool) HandlerFunc {
	return func(s *discordgo.Session, i *discordgo.InteractionCreate) {
		ev := eventFromInteraction(s, i)
		ctx, span := observe.StartCommandSpan(c.runCtx, ev.Command, ev.GuildID)
		defer span.End()

		valid := h(s, i)

		status := "ok"
		if !valid {
			status = "invalid"
		}
		c.recorder.Record(ctx, ev, valid)
		c.metrics.RecordCommand(ctx, ev.Command, status)
	}
}

// register wires all command definitions and handlers into the router.
func (c *Commands) register(router *CommandRouter) {
	router.RegisterCommand("say", sayDefinition(), c.audited(c.handleSay))
	router.RegisterCommand("skip", &discordgo.ApplicationCommand{
		Name:        "skip",
		Description: "Vote to skip the message currently being read out",
	}, c.audited(c.handleSkip))
	router.RegisterCommand("delete_my_data", &discordgo.ApplicationCommand{
		Name:        "delete_my_data",
		Description: "Queue all data stored about you for deletion",
	}, c.audited(c.handleDeleteMyData))
	router.RegisterCommand("invite", &discordgo.ApplicationCommand{
		Name:        "invite",
		Description: "Get a link to invite the bot to your own server",
	}, c.audited(c.handleInvite))
	router.RegisterCommand("privacy_policy", &discordgo.ApplicationCommand{
		Name:        "privacy_policy",
		Description: "Read what data the bot stores and for how long",
	}, c.audited(c.handlePrivacyPolicy))
	router.RegisterCommand("speech_config", speechConfigDefinition(), c.audited(c.handleSpeechConfig))
	router.RegisterAutocomplete("speech_config", c.completeVoice)
	router.RegisterCommand("help", &discordgo.ApplicationCommand{
		Name:        "help",
		Description: "List the available commands",
	}, c.audited(c.handleHelp))

	router.RegisterCommand("admin", adminDefinition(), c.audited(func(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
		RespondEphemeral(s, i, "Please use an admin subcommand.")
		return false
	}))
	router.RegisterHandler("admin/skip", c.audited(c.adminOnly(c.handleAdminSkip)))
	router.RegisterHandler("admin/disconnect", c.audited(c.adminOnly(c.handleAdminDisconnect)))
	router.RegisterHandler("admin/reload_modules", c.audited(c.adminOnly(c.handleAdminReload)))
	router.RegisterHandler("admin/sync_local", c.audited(c.adminOnly(c.handleAdminSyncLocal)))
	router.RegisterHandler("admin/sync_global", c.audited(c.adminOnly(c.handleAdminSyncGlobal)))
	router.RegisterHandler("admin/clear_local", c.audited(c.adminOnly(c.handleAdminClearLocal)))
}

// sayLimiter returns the rate limiter for one user, creating it on first use.
func (c *Commands) sayLimiter(userID string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.limiters[userID]
	if !ok {
		l = rate.NewLimiter(rate.Every(sayRateEvery), sayRateBurst)
		c.limiters[userID] = l
	}
	return l
}

// voiceFor returns the user's chosen voice, or empty for the default.
func (c *Commands) voiceFor(userID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voices[userID]
}

func (c *Commands) setVoice(userID, voice string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.voices[userID] = voice
}

// voiceChannelOf returns the id of the voice channel userID currently sits
// in, or empty when they are not connected.
func voiceChannelOf(s *discordgo.Session, guildID, userID string) string {
	guild, err := s.State.Guild(guildID)
	if err != nil {
		return ""
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID {
			return vs.ChannelID
		}
	}
	return ""
}

// option returns the named top-level option, or nil.
func option(data discordgo.ApplicationCommandInteractionData, name string) *discordgo.ApplicationCommandInteractionDataOption {
	opts := data.Options
	if len(opts) > 0 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		opts = opts[0].Options
	}
	for _, o := range opts {
		if o.Name == name {
			return o
		}
	}
	return nil
}
