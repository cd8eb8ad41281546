package cmd

import (
	"fmt"
	"os"

	"github.com/ethpandaops/chatbot-e2e/internal/actions"
	"github.com/ethpandaops/chatbot-e2e/internal/config"
	"github.com/ethpandaops/chatbot-e2e/internal/interactive"
	"github.com/ethpandaops/chatbot-e2e/internal/provider"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	initConfigPath  string
	initFixturesDir string
	initDefaults    bool
	initForce       bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Scaffold a config file and example fixtures",
	Long: `Ask for the widget URL, selectors and providers, then write a YAML config
file and an example fixture file. API keys are not written; set them in the
environment or a .env file.

Example:
  chatbot-e2e init
  chatbot-e2e init --defaults --config-path chatbot-e2e.yaml`,
	RunE: func(_ *cobra.Command, _ []string) error {
		return scaffold(!initDefaults)
	},
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().StringVar(&initConfigPath, "config-path", "chatbot-e2e.yaml", "Config file to write")
	initCmd.Flags().StringVar(&initFixturesDir, "fixtures-dir", config.DefaultFixturesDir, "Directory for the example fixture")
	initCmd.Flags().BoolVar(&initDefaults, "defaults", false, "Write the defaults without prompting")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing files")
}

func scaffold(ask bool) error {
	settings := config.Defaults()

	if ask {
		if err := askSettings(settings); err != nil {
			return err
		}
	}

	written, err := actions.Scaffold(Logger, actions.ScaffoldOptions{
		Settings:    settings,
		ConfigPath:  initConfigPath,
		FixturesDir: initFixturesDir,
		Overwrite:   initForce,
	})
	if err != nil {
		return err
	}

	for _, path := range written {
		fmt.Fprintln(os.Stdout, color.GreenString("✓ wrote %s", path))
	}

	fmt.Fprintf(os.Stdout, "\nSet the API key of your provider (for example OPENAI_API_KEY) in .env, then run:\n  chatbot-e2e run --config %s\n", initConfigPath)

	return nil
}

// askSettings prompts for the values most sites need to change.
func askSettings(s *config.Settings) error {
	prompts := []struct {
		message  string
		help     string
		target   *string
		required bool
	}{
		{"Page hosting the chat widget:", "The URL the browser opens for every case", &s.BaseURL, true},
		{"Open-widget control selector:", "CSS selector, or an XPath starting with / or xpath=", &s.Selectors.OpenWidget, true},
		{"Input area selector:", "", &s.Selectors.InputArea, true},
		{"Send button selector:", "Leave empty to submit with Enter", &s.Selectors.SendButton, false},
		{"Messages container selector:", "Leave empty to search message rows in the whole page", &s.Selectors.MessagesContainer, false},
		{"Message row selector:", "", &s.Selectors.MessageRow, true},
		{"Message role attribute:", "Attribute whose tokens tell user rows from bot rows", &s.Selectors.MessageRoleAttribute, true},
		{"Message text selector:", "Leave empty to read the whole row", &s.Selectors.MessageText, false},
	}

	for _, p := range prompts {
		var (
			answer string
			err    error
		)

		if p.required {
			answer, err = interactive.Input(p.message, *p.target, p.help)
		} else {
			answer, err = interactive.Optional(p.message, *p.target, p.help)
		}

		if err != nil {
			return err
		}

		*p.target = answer
	}

	chat, err := interactive.Select("Chat provider for intent and injection checks:",
		[]string{provider.OpenAI, provider.Gemini, provider.Claude}, provider.OpenAI)
	if err != nil {
		return err
	}

	s.Providers.ChatProvider = chat

	if s.Providers.ChatModel, err = interactive.Input("Chat model:", defaultChatModel(chat), ""); err != nil {
		return err
	}

	embedding, err := interactive.Select("Embedding provider for semantic checks:",
		[]string{provider.OpenAI, provider.Gemini}, provider.OpenAI)
	if err != nil {
		return err
	}

	s.Providers.EmbeddingProvider = embedding

	if s.Providers.EmbeddingModel, err = interactive.Input("Embedding model:", defaultEmbeddingModel(embedding), ""); err != nil {
		return err
	}

	return nil
}

func defaultChatModel(name string) string {
	switch name {
	case provider.Gemini:
		return "gemini-2.5-flash"
	case provider.Claude:
		return "claude-sonnet-4-5"
	default:
		return config.DefaultChatModel
	}
}

func defaultEmbeddingModel(name string) string {
	if name == provider.Gemini {
		return "gemini-embedding-001"
	}

	return config.DefaultEmbeddingModel
}
