// Package cli implements imagehostctl, the operator command line.
package cli

import (
	"os"

	"github.com/imagehost/backend/internal/config"
	"github.com/imagehost/backend/internal/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCommand builds the imagehostctl command tree. Configuration is read
// from the environment (and .env when present) before any subcommand runs.
func NewRootCommand() *cobra.Command {
	var cfg *config.Config

	root := &cobra.Command{
		Use:           "imagehostctl",
		Short:         "Operator tooling for the image host",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()
			cfg = config.New()
			return logger.Init(&logger.Config{
				Level:  cfg.LogLevel,
				Format: cfg.LogFormat,
				Output: "console",
			})
		},
	}

	conf := func() *config.Config { return cfg }
	root.AddCommand(newMigrateCommand(conf))
	root.AddCommand(newTokenCommand(conf))
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCommand()
	if err := root.Execute(); err != nil {
		root.PrintErrln("Error:", err)
		os.Exit(1)
	}
}
