// Package main is the operator CLI for recipegate. It opens the same storage
// and offline store as the server, so usage and offline assets are shared.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"recipegate/config"
	"recipegate/internal/app"
	"recipegate/internal/logging"
)

var version = "dev"

type globalFlags struct {
	configPath string
	verbose    bool
}

func main() {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "recipectl",
		Short:         "Inspect and operate a recipegate deployment",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to config.yaml (default: config.yaml or config/config.yaml)")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newUsageCmd(flags),
		newOfflineCmd(flags),
		newSearchCmd(flags),
		newLocalCmd(flags),
		newStatusCmd(flags),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// withApp loads configuration, builds the application and hands it to fn.
func withApp(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, a *app.App) error) error {
	if flags.configPath != "" {
		if err := os.Setenv("RECIPEGATE_CONFIG", flags.configPath); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level := "warn"
	if flags.verbose {
		level = "debug"
	}
	logging.Setup(cfg.Log.Format, level)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Shutdown(context.Background()) }()

	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
