package main

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"recipegate/internal/app"
	"recipegate/internal/core"
)

func newSearchCmd(flags *globalFlags) *cobra.Command {
	var opts core.SearchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search recipes through the cache and quota gate",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				result, err := a.Recipes().SearchRecipes(ctx, strings.Join(args, " "), opts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().IntVarP(&opts.Number, "number", "n", 0, "maximum results")
	cmd.Flags().StringVar(&opts.Diet, "diet", "", "diet filter, e.g. vegetarian")
	cmd.Flags().StringVar(&opts.Cuisine, "cuisine", "", "cuisine filter")
	cmd.Flags().StringVar(&opts.Type, "type", "", "dish type filter")
	return cmd
}

func newLocalCmd(flags *globalFlags) *cobra.Command {
	var opts core.IngredientOptions

	cmd := &cobra.Command{
		Use:   "local <ingredient>...",
		Short: "Rank the bundled catalog by ingredients without calling upstream",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				list := a.Recipes().FindLocalRecipesByIngredients(ctx, args, opts)
				return printJSON(cmd.OutOrStdout(), map[string]any{"results": list, "source": core.SourceLocal})
			})
		},
	}
	cmd.Flags().IntVarP(&opts.Number, "number", "n", 0, "maximum results")
	cmd.Flags().IntVar(&opts.Ranking, "ranking", 1, "1 maximizes used ingredients, 2 minimizes missing ones")
	cmd.Flags().BoolVar(&opts.Vegetarian, "vegetarian", false, "only vegetarian recipes")
	return cmd
}

func newStatusCmd(flags *globalFlags) *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Report whether the upstream API is configured",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, flags, func(ctx context.Context, a *app.App) error {
				if probe {
					return printJSON(cmd.OutOrStdout(), a.Recipes().TestConnection(ctx))
				}
				return printJSON(cmd.OutOrStdout(), a.Recipes().APIStatus())
			})
		},
	}
	cmd.Flags().BoolVar(&probe, "probe", false, "make one upstream call (counts against the daily quota)")
	return cmd
}
