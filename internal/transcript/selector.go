package transcript

import "strings"

// Selector is a parsed CSS or XPath selector.
type Selector struct {
	Expr  string
	XPath bool
}

// ParseSelector classifies raw as XPath when it carries an "xpath=" prefix
// or starts with "/", "./" or "("; anything else is CSS.
func ParseSelector(raw string) Selector {
	raw = strings.TrimSpace(raw)

	if expr, ok := strings.CutPrefix(raw, "xpath="); ok {
		return Selector{Expr: strings.TrimSpace(expr), XPath: true}
	}

	if strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "./") || strings.HasPrefix(raw, "(") {
		return Selector{Expr: raw, XPath: true}
	}

	return Selector{Expr: raw}
}

func (s Selector) String() string {
	if s.XPath {
		return "xpath=" + s.Expr
	}

	return s.Expr
}
