// Package cmd implements the silibot command tree.
package cmd

import (
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/silibot/internal/config"
)

// Version is stamped at build time with
// -ldflags "-X github.com/MrWong99/silibot/cmd/silibot/cmd.Version=...".
var Version = "dev"

// options holds the flags shared by every subcommand.
type options struct {
	configPath string
}

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "silibot",
		Short:         "Look up and post voice lines",
		Long:          "silibot resolves \"Entity (type): line (level)\" queries against the scraped response corpora.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(
		newServeCmd(o),
		newResolveCmd(o),
		newSearchCmd(o),
		newAllowlistCmd(o),
		newMCPCmd(o),
		newRebuildCmd(o),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig reads the config file. A missing default file falls back to
// the built-in defaults; a missing file named with --config is an error.
func (o *options) loadConfig(cmd *cobra.Command) (cfg *config.Config, fromFile bool, err error) {
	cfg, err = config.Load(o.configPath)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("config") {
		return config.Default(), false, nil
	}
	return nil, false, err
}

// newLogger returns a text logger on w whose level follows lvl.
func newLogger(w io.Writer, lvl *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// setupLogging installs the default logger for a one-shot command. Logs
// always go to stderr so stdout carries only results.
func setupLogging(cmd *cobra.Command, cfg *config.Config) *slog.LevelVar {
	lvl := new(slog.LevelVar)
	lvl.Set(cfg.Server.LogLevel.SlogLevel())
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), lvl))
	return lvl
}
