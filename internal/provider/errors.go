package provider

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrProvider is matched by every *Error.
	ErrProvider = errors.New("provider error")
	// ErrMalformedResponse marks a provider answer that could not be parsed
	// into the requested structure.
	ErrMalformedResponse = errors.New("malformed provider response")

	errMissingAPIKey       = errors.New("missing API key")
	errUnknownProvider     = errors.New("unknown provider")
	errUnsupportedEmbedder = errors.New("provider does not support embeddings")
	errEmptyResponse       = errors.New("empty response")
)

// Error is a failed provider call, after retries.
type Error struct {
	Provider   string
	Op         string
	StatusCode int
	Attempts   int
	Elapsed    time.Duration
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s failed", e.Provider, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}

	msg += fmt.Sprintf(" after %d attempt(s) in %s", e.Attempts, e.Elapsed.Round(time.Millisecond))

	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

// Is reports whether target is ErrProvider.
func (e *Error) Is(target error) bool {
	return target == ErrProvider //nolint:errorlint // sentinel identity
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx HTTP answer.
type StatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s", e.StatusCode, e.Body)
}
