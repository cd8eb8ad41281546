// Package cmd contains CLI command definitions
package cmd

import (
	"fmt"
	"os"

	"github.com/ethpandaops/chatbot-e2e/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Logger is the shared logger instance for all commands
	Logger *logrus.Logger

	envFile    string
	configFile string
	verbose    bool

	rootCmd = &cobra.Command{
		Use:   "chatbot-e2e",
		Short: "Chatbot E2E - browser tests for an embedded chat widget",
		Long: `Chatbot E2E drives a real browser against a website's chat widget, sends
fixture prompts and scores the replies by embedding similarity, intent
classification or prompt-injection refusal.

Run without arguments to launch interactive mode, or use subcommands for direct operations.`,
		SilenceUsage: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			InitLogger()
		},
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// InitLogger (re)initializes the shared logger from --verbose and LOG_LEVEL.
func InitLogger() {
	Logger = newLogger(verbose)
}

// loadSettings loads the configuration selected by --env and --config. The
// env file may set LOG_LEVEL, so the logger level is applied again after.
func loadSettings() (*config.Settings, error) {
	cfg, err := config.Load(envFile, configFile)
	if err != nil {
		return nil, err
	}

	setLevel(Logger, verbose)

	Logger.WithField("base_url", cfg.BaseURL).Debug("configuration loaded")

	return cfg, nil
}

func init() {
	Logger = newLogger(false)

	rootCmd.PersistentFlags().StringVar(&envFile, "env", "", "Env file to load (default .env when present)")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Optional YAML config file; environment variables override it")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output (debug logging)")
}
