package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/silibot/internal/app"
	"github.com/MrWong99/silibot/internal/corpus"
	"github.com/MrWong99/silibot/internal/mcp"
)

func newMCPCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the voice line tools over MCP on stdio",
		Long: "Runs a Model Context Protocol server on stdin/stdout exposing " +
			mcp.ToolResolve + " and " + mcp.ToolSearch + ". Logs go to stderr.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			setupLogging(cmd, cfg)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			store, svc := app.NewCorpusService(cfg, nil)
			if _, err := store.Reload(ctx); err != nil {
				slog.Warn("initial corpus load failed, will retry on demand", "err", err)
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				defer stop()
				return mcp.NewServer(svc, Version).Run(gctx, &mcpsdk.StdioTransport{})
			})
			if cfg.Corpus.Watch {
				g.Go(func() error {
					return corpus.NewWatcher(store).Run(gctx)
				})
			}
			if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
