package transcript

import (
	"errors"
	"fmt"
	"time"
)

// ErrElementNotFound is matched by every ElementNotFoundError.
var ErrElementNotFound = errors.New("element not found")

// ElementNotFoundError reports a required selector that matched nothing
// within the wait window.
type ElementNotFoundError struct {
	Name     string
	Selector string
	Waited   time.Duration
	Err      error
}

func (e *ElementNotFoundError) Error() string {
	msg := fmt.Sprintf("%s: %s selector %q matched nothing after %s", ErrElementNotFound, e.Name, e.Selector, e.Waited)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Is reports whether target is ErrElementNotFound.
func (e *ElementNotFoundError) Is(target error) bool {
	return target == ErrElementNotFound //nolint:errorlint // sentinel identity
}

func (e *ElementNotFoundError) Unwrap() error {
	return e.Err
}
