package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/MrWong99/silibot/internal/app"
	"github.com/MrWong99/silibot/internal/audiofetch"
	"github.com/MrWong99/silibot/internal/voiceline"
)

func newResolveCmd(o *options) *cobra.Command {
	var (
		verbose     bool
		downloadDir string
	)
	c := &cobra.Command{
		Use:   "resolve <query>...",
		Short: "Resolve a voice line query to its audio URL",
		Long: "Resolves \"Entity (type): line (level)\" and prints the audio URL. The arguments are joined " +
			"with spaces, so the query does not need to be quoted. Wrap the line in double quotes to " +
			"match it as a regular expression.",
		Example: `  silibot resolve Abaddon: mist
  silibot resolve 'Bastion (announcer): "^First blood"'
  silibot resolve --download . Zeus: Zeus.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := o.loadConfig(cmd)
			if err != nil {
				return err
			}
			setupLogging(cmd, cfg)

			_, svc := app.NewCorpusService(cfg, nil)
			res, err := svc.Resolve(cmd.Context(), app.SourceCLI, strings.Join(args, " "))
			if err != nil {
				return errors.New(voiceline.UserMessage(err))
			}

			out := cmd.OutOrStdout()
			if verbose {
				fmt.Fprintf(out, "entity: %s [%s]\n", res.Entity.Name, res.Entity.Type)
				fmt.Fprintf(out, "line:   %s\n", res.Response.Text)
				fmt.Fprintf(out, "level:  %d\n", res.Level+1)
				if res.Fuzzy {
					fmt.Fprintln(out, "fuzzy:  entity matched approximately")
				}
			}
			fmt.Fprintln(out, res.URL)

			if downloadDir == "" {
				return nil
			}
			path, err := saveAudio(cmd, app.NewFetcher(cfg.Audio), res.URL, downloadDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "saved %s\n", path)
			return nil
		},
	}
	c.Flags().BoolVarP(&verbose, "verbose", "v", false, "also print the matched entity, line and level")
	c.Flags().StringVarP(&downloadDir, "download", "d", "", "download the audio file into this directory")
	return c
}

// saveAudio downloads url and copies the file into dir under its wiki name.
func saveAudio(cmd *cobra.Command, f *audiofetch.Fetcher, url, dir string) (string, error) {
	d, err := f.Fetch(cmd.Context(), url)
	if err != nil {
		return "", errors.New(voiceline.UserMessage(err))
	}
	defer d.Close()

	src, err := d.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	path := filepath.Join(dir, d.Name)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("save audio: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("save audio: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("save audio: %w", err)
	}
	return path, nil
}
