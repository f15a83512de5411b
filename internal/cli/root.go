// Package cli provides the command-line interface for the matcher.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"go-catmat-matcher/internal/config"
)

// Version is set at build time.
var Version = "0.1.0"

var (
	verbose bool

	cfg      config.Config
	logger   *slog.Logger
	closeLog = func() error { return nil }
)

// NewRootCmd builds the command tree
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "matcher",
		Short: "Match material descriptions against the CATMAT catalog",
		Long: `matcher runs CATMAT matching jobs and inspects the jobs persisted
by matcher-api.

Configuration is read from the environment (and a .env file if present);
flags override it.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			_ = godotenv.Load()

			var err error
			if cfg, err = config.Load(); err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if verbose {
				cfg.LogLevel = slog.LevelDebug
			}
			logger, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return closeLog()
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(newRunCmd())
	root.AddCommand(newJobsCmd())
	root.AddCommand(newEventsCmd())
	root.AddCommand(newWatchCmd())
	return root
}

// Execute runs the root command with the given output
func Execute(out io.Writer, args []string) error {
	root := NewRootCmd()
	root.SetOut(out)
	root.SetArgs(args)
	return root.ExecuteContext(context.Background())
}
