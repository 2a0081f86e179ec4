package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/silibot/internal/app"
	"github.com/MrWong99/silibot/internal/voiceline"
)

func newSearchCmd(o *options) *cobra.Command {
	var (
		limit    int
		showURLs bool
	)
	c := &cobra.Command{
		Use:   "search [query]...",
		Short: "Search the voice line index",
		Long: "Prints the display keys matching the query in corpus order. Every key can be passed " +
			"back to resolve unchanged.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return fmt.Errorf("--limit %d must not be negative", limit)
			}
			cfg, _, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			setupLogging(cmd, cfg)

			_, svc := app.NewCorpusService(cfg, nil)
			results, err := svc.Search(cmd.Context(), app.SourceCLI, strings.Join(args, " "), limit)
			if err != nil {
				return errors.New(voiceline.UserMessage(err))
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				if showURLs {
					fmt.Fprintf(out, "%s\t%s\n", r.Key, r.URL)
					continue
				}
				fmt.Fprintln(out, r.Key)
			}
			return nil
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (0 uses search.max_results)")
	c.Flags().BoolVar(&showURLs, "urls", false, "print the audio URL after each key")
	return c
}
