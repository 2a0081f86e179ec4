package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/silibot/internal/allowlist"
	"github.com/MrWong99/silibot/internal/app"
)

func newAllowlistCmd(o *options) *cobra.Command {
	c := &cobra.Command{
		Use:   "allowlist",
		Short: "Manage the users opted in to voice line suggestions",
		Long: "Edits the search allow-list directly. The database is locked while serve runs; " +
			"users can opt in themselves with /voicelinesearch join.",
	}
	c.AddCommand(
		&cobra.Command{
			Use:   "add <user-id> [name]",
			Short: "Opt a user in",
			Args:  cobra.RangeArgs(1, 2),
			RunE: func(cmd *cobra.Command, args []string) error {
				name := ""
				if len(args) == 2 {
					name = args[1]
				}
				return o.withAllowList(cmd, func(s *allowlist.Store) error {
					added, err := s.Add(args[0], name)
					if err != nil {
						return err
					}
					if added {
						fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", args[0])
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s is already opted in\n", args[0])
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "remove <user-id>",
			Short: "Opt a user out",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return o.withAllowList(cmd, func(s *allowlist.Store) error {
					removed, err := s.Remove(args[0])
					if err != nil {
						return err
					}
					if removed {
						fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s was not opted in\n", args[0])
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "list",
			Short: "List opted-in users",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return o.withAllowList(cmd, func(s *allowlist.Store) error {
					members, err := s.List()
					if err != nil {
						return err
					}
					tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "USER ID\tNAME\tADDED")
					for _, m := range members {
						fmt.Fprintf(tw, "%s\t%s\t%s\n", m.UserID, m.Name, m.AddedAt.Format(time.DateTime))
					}
					return tw.Flush()
				})
			},
		},
	)
	return c
}

// withAllowList opens the configured allow-list for the duration of fn.
func (o *options) withAllowList(cmd *cobra.Command, fn func(*allowlist.Store) error) error {
	cfg, _, err := o.loadConfig(cmd)
	if err != nil {
		return err
	}
	setupLogging(cmd, cfg)

	s, err := app.OpenAllowList(cfg.Search.AllowlistPath)
	if errors.Is(err, allowlist.ErrLocked) {
		return fmt.Errorf("%w; stop serve first or use /voicelinesearch", err)
	}
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
