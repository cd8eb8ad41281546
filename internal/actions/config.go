// Package actions implements operator actions shared by the CLI commands and
// the interactive menu.
package actions

import (
	"fmt"
	"io"

	"github.com/ethpandaops/chatbot-e2e/internal/config"
)

// ShowConfig displays the effective configuration with secrets masked.
func ShowConfig(w io.Writer, envFile, configFile string) error {
	cfg, err := config.Load(envFile, configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	_, err = fmt.Fprintln(w, cfg.String())

	return err
}
