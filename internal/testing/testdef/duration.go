package testdef

import (
	"fmt"
	"strconv"
	"time"

	"github.com/invopop/jsonschema"
	"gopkg.in/yaml.v3"
)

// Duration is a YAML duration given either as a Go duration string ("2.5s")
// or as a number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: duration must be a scalar", node.Line)
	}

	if seconds, err := strconv.ParseFloat(node.Value, 64); err == nil {
		if seconds < 0 {
			return fmt.Errorf("line %d: duration must not be negative", node.Line)
		}

		*d = Duration(seconds * float64(time.Second))

		return nil
	}

	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("line %d: invalid duration %q: %w", node.Line, node.Value, err)
	}

	if parsed < 0 {
		return fmt.Errorf("line %d: duration must not be negative", node.Line)
	}

	*d = Duration(parsed)

	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// JSONSchema describes the accepted forms.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		OneOf: []*jsonschema.Schema{
			{Type: "number", Description: "seconds"},
			{Type: "string", Description: "Go duration such as 1.5s or 500ms"},
		},
	}
}
