package main

import (
	"context"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"recipegate/internal/app"
)

func newUsageCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show or reset the daily upstream call ledger",
	}

	var asJSON bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Show today's usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				stats := a.Recipes().UsageStats(ctx)
				reset := a.Recipes().TimeUntilReset()
				if asJSON {
					return printJSON(cmd.OutOrStdout(), map[string]any{"usage": stats, "resetIn": reset})
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintf(w, "CALLS\t%d / %d\n", stats.Calls, stats.Limit)
				fmt.Fprintf(w, "REMAINING\t%d\n", stats.Remaining)
				fmt.Fprintf(w, "STATUS\t%s (%.1f%%)\n", stats.Status, stats.UsagePercent)
				fmt.Fprintf(w, "ERRORS\t%d\n", stats.Errors)
				fmt.Fprintf(w, "CACHED HITS\t%d\n", stats.Cached)
				fmt.Fprintf(w, "RESETS IN\t%dh %dm\n", reset.Hours, reset.Minutes)

				endpoints := make([]string, 0, len(stats.Endpoints))
				for name := range stats.Endpoints {
					endpoints = append(endpoints, name)
				}
				sort.Strings(endpoints)
				for _, name := range endpoints {
					fmt.Fprintf(w, "  %s\t%d\n", name, stats.Endpoints[name])
				}
				return w.Flush()
			})
		},
	}
	show.Flags().BoolVar(&asJSON, "json", false, "print JSON")

	reset := &cobra.Command{
		Use:   "reset",
		Short: "Reset today's counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				a.Recipes().ResetUsage(ctx)
				fmt.Fprintln(cmd.OutOrStdout(), "usage reset")
				return nil
			})
		},
	}

	cmd.AddCommand(show, reset)
	return cmd
}
