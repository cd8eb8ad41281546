package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ethpandaops/chatbot-e2e/internal/testing/table"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate [fixture paths...]",
	Short: "Check configuration and fixture files without running them",
	Long: `Load the configuration and every fixture file, reporting the first error
with its file and case index. Nothing is sent to the chatbot or a provider.

Example:
  chatbot-e2e validate
  chatbot-e2e validate fixtures/ extra/booking.yaml`,
	RunE: func(_ *cobra.Command, args []string) error {
		return validateFixtures(os.Stdout, args)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func validateFixtures(w io.Writer, paths []string) error {
	cfg, err := loadSettings()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cases, err := loadCases(paths, nil, nil)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, len(cases))

	for _, tc := range cases {
		kinds := make([]string, 0, 1)
		for _, step := range tc.Steps() {
			if step.ValidatorKind != "" {
				kinds = append(kinds, string(step.ValidatorKind))
			}
		}

		rows = append(rows, []string{
			tc.ID,
			strings.Join(kinds, ", "),
			strconv.Itoa(len(tc.Steps())),
			strings.Join(tc.Tags, ", "),
			tc.Source,
		})
	}

	table.NewRenderer(Logger).RenderToWriter(w, []string{"Case", "Validators", "Turns", "Tags", "Source"}, rows)

	embed, classify := requirements(cases)

	fmt.Fprintf(w, "\nTarget:      %s\n", cfg.BaseURL)
	fmt.Fprintf(w, "Embeddings:  %s\n", providerNeed(embed, cfg.Providers.EmbeddingModel))
	fmt.Fprintf(w, "Classifier:  %s\n\n", providerNeed(classify, cfg.Providers.ChatModel))

	fmt.Fprintln(w, color.GreenString("✓ %d case(s) valid", len(cases)))

	return nil
}

func providerNeed(needed bool, model string) string {
	if !needed {
		return "not needed"
	}

	return model
}
