package static

import (
	"fmt"

	"github.com/andybalholm/cascadia"
)

// compileCSS parses a CSS selector group, rejecting invalid syntax instead
// of silently matching nothing.
func compileCSS(expr string) (cascadia.Selector, error) {
	sel, err := cascadia.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid css selector %q: %w", expr, err)
	}

	return sel, nil
}
