package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethpandaops/chatbot-e2e/internal/testing/testdef"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

var schemaOutput string

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Print the JSON Schema of fixture files",
	Long: `Print the JSON Schema describing fixture files, for editor completion and
validation of YAML fixtures.

Example:
  chatbot-e2e schema --output fixtures/schema.json`,
	RunE: func(_ *cobra.Command, _ []string) error {
		data, err := fixtureSchema()
		if err != nil {
			return err
		}

		if schemaOutput == "" {
			_, err = os.Stdout.Write(data)
			return err
		}

		if err := os.WriteFile(schemaOutput, data, 0o600); err != nil {
			return fmt.Errorf("writing schema: %w", err)
		}

		Logger.WithField("path", schemaOutput).Info("schema written")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(schemaCmd)

	schemaCmd.Flags().StringVarP(&schemaOutput, "output", "o", "", "Write the schema to this file instead of stdout")
}

// fixtureSchema reflects the fixture types using their YAML field names.
func fixtureSchema() ([]byte, error) {
	reflector := &jsonschema.Reflector{
		FieldNameTag: "yaml",
	}

	schema := reflector.Reflect(&testdef.File{})
	schema.Title = "chatbot-e2e fixture file"
	schema.Description = "Test cases sent to the chat widget and the expectations their replies must meet."

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding schema: %w", err)
	}

	return append(data, '\n'), nil
}
