package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrWong99/silibot/internal/corpus"
)

func newRebuildCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Regenerate the corpus files and check that they load",
		Long: "Runs corpus.rebuild_command, then loads both corpus files and prints their sizes. " +
			"serve picks up the new files on its own when corpus.watch is set.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			setupLogging(cmd, cfg)

			if len(cfg.Corpus.RebuildCommand) == 0 {
				return errors.New("corpus.rebuild_command is not configured")
			}
			if err := corpus.NewExecRebuilder(cfg.Corpus.RebuildCommand, cfg.Corpus.RebuildTimeout).Rebuild(cmd.Context()); err != nil {
				return err
			}

			snap, err := corpus.NewLoader(cfg.Corpus.EntityFile, cfg.Corpus.ResponseFile).Load(cmd.Context())
			if err != nil {
				return fmt.Errorf("rebuilt corpus does not load: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "entities: %d\nresponses: %d\nsearch keys: %d\n",
				snap.Catalog().Len(), snap.Corpus().Len(), snap.Index().Len())
			return nil
		},
	}
}
