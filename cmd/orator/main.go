// Command orator is the Orator text-to-speech Discord bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/oratorbot/orator/internal/audit"
	auditpg "github.com/oratorbot/orator/internal/audit/postgres"
	"github.com/oratorbot/orator/internal/config"
	discordbot "github.com/oratorbot/orator/internal/discord"
	"github.com/oratorbot/orator/internal/health"
	"github.com/oratorbot/orator/internal/modgraph"
	"github.com/oratorbot/orator/internal/observe"
	"github.com/oratorbot/orator/internal/playback"
	"github.com/oratorbot/orator/internal/privacy"
	"github.com/oratorbot/orator/internal/sanitize"
	"github.com/oratorbot/orator/internal/tts"
	voicediscord "github.com/oratorbot/orator/pkg/voice/discord"
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := flag.String("config", "configs", "directory holding the layered config files")
	componentDirs := flag.String("components", "", "comma-separated component config directories, applied after the root layers")
	flag.Parse()

	var extra []string
	if *componentDirs != "" {
		extra = strings.Split(*componentDirs, ",")
	}
	cfg, err := config.Load(*configDir, extra...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "orator: %v\n", err)
		return 1
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		fmt.Fprintf(os.Stderr, "orator: %v\n", err)
		return 1
	}
	if cfg.DatabaseEnable && secrets.PostgresDSN == "" {
		fmt.Fprintln(os.Stderr, "orator: database_enable is set but POSTGRES_DSN is empty")
		return 1
	}

	slog.SetDefault(newLogger(cfg))
	slog.Info("orator starting",
		"config", *configDir,
		"listen_addr", cfg.ListenAddr,
		"log_level", cfg.LogLevel,
		"database", cfg.DatabaseEnable,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "orator"})
	if err != nil {
		slog.Error("telemetry init failed", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	graph := modgraph.New()
	registerModules(graph, cfg, secrets, metrics)
	if err := graph.Load(ctx); err != nil {
		slog.Error("module load failed", "err", err)
		return 1
	}
	for _, name := range graph.Skipped() {
		slog.Error("module skipped", "module", name, "err", graph.Err(name))
	}

	bot, ok := instanceOf[*discordbot.Bot](graph, "bot")
	if !ok {
		return 1
	}
	defer bot.Close()
	registry, ok := instanceOf[*playback.Registry](graph, "registry")
	if !ok {
		return 1
	}
	defer registry.Close()
	renderer, ok := instanceOf[*tts.Renderer](graph, "renderer")
	if !ok {
		return 1
	}
	defer renderer.Close()
	if _, ok := instanceOf[*discordbot.Commands](graph, "commands"); !ok {
		return 1
	}
	store, _ := graph.Instance("audit_store")
	privacySched, _ := instanceOf[*privacy.Scheduler](graph, "privacy")

	group, runCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if err := bot.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("discord bot: %w", err)
		}
		return nil
	})

	if privacySched != nil {
		group.Go(func() error {
			if err := privacySched.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("privacy scheduler: %w", err)
			}
			return nil
		})
	}

	server := newHTTPServer(cfg, metrics, bot, store)
	group.Go(func() error {
		slog.Info("http server listening", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-runCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	if closer, ok := store.(io.Closer); ok {
		closer.Close()
	}
	slog.Info("goodbye")
	return 0
}

// registerModules wires every subsystem into the dependency graph. The graph
// owns construction order and lets a broken optional branch (e.g. the audit
// store) skip without taking the bot down.
func registerModules(graph *modgraph.Graph, cfg *config.Config, secrets config.Secrets, metrics *observe.Metrics) {
	graph.Register("bot", nil, func(ctx context.Context, _ map[string]any) (any, error) {
		return discordbot.New(ctx, discordbot.Config{
			Token:   secrets.DiscordToken,
			OwnerID: secrets.OwnerID,
		})
	})

	graph.Register("renderer", nil, func(_ context.Context, _ map[string]any) (any, error) {
		return tts.NewRenderer(tts.Config{
			OutputDir:          cfg.OutputDir,
			Command:            cfg.SynthCommand,
			DefaultVoice:       cfg.DefaultVoice,
			CharLimit:          cfg.CharLimit,
			Timeout:            cfg.SynthTimeout(),
			Prepend:            cfg.Prepend,
			Append:             cfg.Append,
			NewlineReplacement: cfg.NewlineReplacement,
		})
	})

	graph.Register("audit_store", nil, func(ctx context.Context, _ map[string]any) (any, error) {
		if !cfg.DatabaseEnable {
			return (audit.Store)(nil), nil
		}
		store, err := auditpg.NewStore(ctx, secrets.PostgresDSN)
		if err != nil {
			// Auditing degrades to disabled rather than blocking the whole
			// command surface behind a broken database.
			slog.Error("audit store unavailable, auditing disabled", "err", err)
			return (audit.Store)(nil), nil
		}
		return store, nil
	})

	graph.Register("recorder", []string{"audit_store"}, func(_ context.Context, parents map[string]any) (any, error) {
		store, _ := parents["audit_store"].(audit.Store)
		return audit.NewRecorder(store, cfg.DetailedTTL()), nil
	})

	graph.Register("privacy", []string{"recorder"}, func(_ context.Context, parents map[string]any) (any, error) {
		recorder := parents["recorder"].(*audit.Recorder)
		timeOfDay, err := cfg.PurgeTimeOfDay()
		if err != nil {
			return nil, err
		}
		return privacy.NewScheduler(cfg.StateDir, recorder, cfg.PurgeWeekday(), timeOfDay)
	})

	graph.Register("registry", []string{"bot", "renderer"}, func(ctx context.Context, parents map[string]any) (any, error) {
		bot := parents["bot"].(*discordbot.Bot)
		renderer := parents["renderer"].(*tts.Renderer)

		gateway := voicediscord.New(bot.Session(),
			voicediscord.WithFFmpegArgs(cfg.FFmpegParameters, cfg.FFmpegPostParameters))
		onIdle := discordbot.IdleFarewell(ctx, renderer, cfg.ChannelTimeoutPhrases)

		return playback.NewRegistry(func(guildID string) *playback.Scheduler {
			return playback.NewScheduler(playback.Config{
				GuildID:       guildID,
				Gateway:       gateway,
				IdleTimeout:   cfg.IdleTimeout(),
				SkipThreshold: cfg.SkipPercentage,
				OnIdle:        onIdle,
			})
		}), nil
	})

	graph.Register("commands", []string{"bot", "renderer", "recorder", "privacy", "registry"},
		func(ctx context.Context, parents map[string]any) (any, error) {
			bot := parents["bot"].(*discordbot.Bot)
			return discordbot.NewCommands(discordbot.CommandsConfig{
				Bot:      bot,
				Registry: parents["registry"].(*playback.Registry),
				Renderer: parents["renderer"].(*tts.Renderer),
				Cleaner:  sanitize.New(discordbot.NewStateResolver(bot.Session())),
				Recorder: parents["recorder"].(*audit.Recorder),
				Privacy:  parents["privacy"].(*privacy.Scheduler),
				Graph:    graph,
				Metrics:  metrics,
				Config:   cfg,
				RunCtx:   ctx,
			}), nil
		})
}

// instanceOf fetches a loaded graph instance and logs when it is missing or
// has an unexpected type.
func instanceOf[T any](graph *modgraph.Graph, name string) (T, bool) {
	var zero T
	inst, ok := graph.Instance(name)
	if !ok {
		slog.Error("required module not loaded", "module", name, "err", graph.Err(name))
		return zero, false
	}
	typed, ok := inst.(T)
	if !ok {
		slog.Error("module has unexpected type", "module", name)
		return zero, false
	}
	return typed, true
}

// newLogger builds the process logger: text to stderr, optionally duplicated
// into a size-rotated file.
func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case config.LogDebug:
		level = slog.LevelDebug
	case config.LogWarn:
		level = slog.LevelWarn
	case config.LogError:
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stderr
	if cfg.LogFile != "" {
		out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
		})
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}

// newHTTPServer builds the operational HTTP endpoint: Prometheus metrics plus
// liveness and readiness probes.
func newHTTPServer(cfg *config.Config, metrics *observe.Metrics, bot *discordbot.Bot, store any) *http.Server {
	checkers := []health.Checker{
		{
			Name: "discord",
			Check: func(_ context.Context) error {
				if bot.Session().State.User == nil {
					return errors.New("gateway session not ready")
				}
				return nil
			},
		},
	}
	if pg, ok := store.(*auditpg.Store); ok && pg != nil {
		checkers = append(checkers, health.Checker{
			Name:  "database",
			Check: pg.Ping,
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	health.New(checkers...).Register(mux)

	return &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
