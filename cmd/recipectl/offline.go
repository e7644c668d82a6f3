package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"recipegate/internal/app"
	"recipegate/internal/offline"
)

var errOfflineDisabled = errors.New("offline cache is disabled (offline.enabled: false)")

func newOfflineCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "offline",
		Short: "Manage the offline asset cache",
	}

	info := &cobra.Command{
		Use:   "info",
		Short: "Show entry counts per namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOffline(cmd, flags, func(ctx context.Context, c *offline.Controller) error {
				counts, err := c.Info(ctx)
				if err != nil {
					return err
				}
				names := make([]string, 0, len(counts))
				for name := range counts {
					names = append(names, name)
				}
				sort.Strings(names)

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(w, "NAMESPACE\tENTRIES")
				for _, name := range names {
					fmt.Fprintf(w, "%s\t%d\n", name, counts[name])
				}
				return w.Flush()
			})
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every cached asset",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOffline(cmd, flags, func(ctx context.Context, c *offline.Controller) error {
				if err := c.Clear(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "offline cache cleared")
				return nil
			})
		},
	}

	save := &cobra.Command{
		Use:   "save <recipe-id>",
		Short: "Fetch a recipe and its image into the offline cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("recipe id must be a positive integer: %q", args[0])
			}
			return withOffline(cmd, flags, func(ctx context.Context, c *offline.Controller) error {
				saved, err := c.CacheRecipe(ctx, id)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), saved)
			})
		},
	}

	cmd.AddCommand(info, clearCmd, save)
	return cmd
}

func withOffline(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, c *offline.Controller) error) error {
	return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
		c := a.Offline()
		if c == nil {
			return errOfflineDisabled
		}
		return fn(ctx, c)
	})
}
