package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/silibot/internal/app"
	"github.com/MrWong99/silibot/internal/config"
	"github.com/MrWong99/silibot/internal/discord"
	"github.com/MrWong99/silibot/internal/discord/commands"
	"github.com/MrWong99/silibot/internal/observe"
)

func newServeCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord bot and the observability endpoints",
		Long: "Connects to Discord when a token is configured, registers /voiceline and /voicelinesearch, " +
			"and serves /healthz, /readyz and /metrics. Log level, channel, resolver and search settings " +
			"are reloaded when the config file changes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.runServe(cmd)
		},
	}
}

func (o *options) runServe(cmd *cobra.Command) error {
	cfg, fromFile, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	lvl := setupLogging(cmd, cfg)
	slog.Info("silibot starting",
		"version", Version,
		"config", o.configPath,
		"config_file", fromFile,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceVersion: Version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}

	// ── Discord bot (optional) ────────────────────────────────────────────────
	appOpts := []app.Option{app.WithLogLevel(lvl)}
	var bot *discord.Bot
	if cfg.Discord.Token != "" {
		bot, err = discord.New(ctx, discord.Config{
			Token:     cfg.Discord.Token,
			GuildID:   cfg.Discord.GuildID,
			ChannelID: cfg.Discord.ChannelID,
		})
		if err != nil {
			_ = shutdownTelemetry(context.Background())
			return fmt.Errorf("create discord bot: %w", err)
		}
		appOpts = append(appOpts, app.WithGatewayCheck(bot.Connected))
		slog.Info("discord bot connected", "guild_id", cfg.Discord.GuildID, "channel_id", cfg.Discord.ChannelID)
	} else {
		slog.Warn("no discord token configured, serving probes only", "env", config.EnvDiscordToken)
	}

	application, err := app.New(ctx, cfg, appOpts...)
	if err != nil {
		if bot != nil {
			_ = bot.Close()
		}
		_ = shutdownTelemetry(context.Background())
		return fmt.Errorf("initialise application: %w", err)
	}

	if bot != nil {
		commands.NewVoicelineCommands(application.Service(), application.Fetcher(), application.AllowList()).Register(bot.Router())
		commands.NewSearchCommands(application.AllowList()).Register(bot.Router())

		go func() {
			if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("discord bot error", "err", err)
			}
		}()
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	var watcher *config.Watcher
	if fromFile {
		watcher, err = config.NewWatcher(o.configPath, func(_, next *config.Config) {
			d := application.Reconfigure(next)
			if d.ChannelChanged && bot != nil {
				bot.Guard().SetChannel(d.NewChannelID)
				slog.Info("voice line channel changed", "channel_id", d.NewChannelID)
			}
		})
		if err != nil {
			slog.Warn("config hot reload disabled", "err", err)
		}
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	} else {
		runErr = nil
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("stopping")

	// Unregister commands before the stores they read from go away.
	if bot != nil {
		if err := bot.Close(); err != nil {
			slog.Warn("discord bot close error", "err", err)
		}
	}
	if watcher != nil {
		watcher.Stop()
	}
	shutdownErr := application.Shutdown(shutdownCtx)
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		slog.Warn("telemetry shutdown error", "err", err)
	}
	if runErr != nil {
		return runErr
	}
	if shutdownErr != nil {
		return fmt.Errorf("shutdown: %w", shutdownErr)
	}
	slog.Info("goodbye")
	return nil
}
