package cmd

import (
	"fmt"
	"os"

	"github.com/ethpandaops/chatbot-e2e/internal/actions"
	"github.com/spf13/cobra"
)

var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Display current configuration",
	Long:  `Shows the effective configuration built from defaults, the optional YAML file, the .env file and the environment. Secrets are masked.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		if err := actions.ShowConfig(os.Stdout, envFile, configFile); err != nil {
			return fmt.Errorf("failed to show config: %w", err)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
}
