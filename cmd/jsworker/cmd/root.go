package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/GriffinCanCode/jsworker/internal/infrastructure/config"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/logging"
)

var ErrMissingSubcommand = errors.New("must specify a subcommand")

type rootFlags struct {
	logLevel string
	dev      bool
}

var (
	flags = rootFlags{}
	cfg   = config.LoadOrDefault()
)

var rootCmd = &cobra.Command{
	Use:           "jsworker",
	Short:         "Run JavaScript workers and manage worker hosts",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(*cobra.Command, []string) error {
		return ErrMissingSubcommand
	},
}

func init() {
	cobra.EnablePrefixMatching = true
	rootCmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&flags.dev, "dev", cfg.Logging.Development, "human readable logs")
}

// Execute runs the command line.
func Execute() error {
	return rootCmd.Execute()
}

// newLogger logs to stderr; stdout carries worker messages.
func newLogger() (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if flags.dev {
		lc = logging.DevelopmentConfig()
	}
	lc.Level = flags.logLevel
	lc.OutputPaths = []string{"stderr"}
	return logging.New(lc)
}
