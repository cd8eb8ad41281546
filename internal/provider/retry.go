package provider

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sirupsen/logrus"
	"google.golang.org/genai"
)

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = time.Second
	defaultMaxDelay     = 30 * time.Second
	defaultMultiplier   = 2.0
)

// retryDelayRegex matches "Please retry in Xs" or "retryDelay:Xs" patterns.
var retryDelayRegex = regexp.MustCompile(`(?i)(?:Please retry in |retryDelay[:\s"]+)(\d+(?:\.\d+)?)\s*s`)

var statusRegex = regexp.MustCompile(`\bError (\d{3}),`)

// RetryPolicy retries rate-limited provider calls with exponential backoff.
// Errors that are not rate limits are returned after the first attempt.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// AttemptTimeout bounds each attempt. Zero leaves only the caller's deadline.
	AttemptTimeout time.Duration
}

// DefaultRetryPolicy returns the policy used when none is configured.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  defaultMaxAttempts,
		InitialDelay: defaultInitialDelay,
		MaxDelay:     defaultMaxDelay,
		Multiplier:   defaultMultiplier,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}

	if p.InitialDelay <= 0 {
		p.InitialDelay = defaultInitialDelay
	}

	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}

	if p.Multiplier < 1 {
		p.Multiplier = defaultMultiplier
	}

	return p
}

// Backoff returns the wait before retry number attempt (0-based). A
// server-suggested delay replaces the computed one when it is longer.
func (p RetryPolicy) Backoff(attempt int, suggested time.Duration) time.Duration {
	p = p.withDefaults()

	delay := float64(p.InitialDelay)
	for i := 0; i < attempt; i++ {
		delay *= p.Multiplier
	}

	backoff := time.Duration(delay)
	if suggested > backoff {
		backoff = suggested
	}

	if backoff > p.MaxDelay {
		backoff = p.MaxDelay
	}

	return backoff
}

// Do runs fn until it succeeds, fails with a non rate-limit error, or the
// attempts are exhausted. Failures are returned as *Error.
func (p RetryPolicy) Do(ctx context.Context, log logrus.FieldLogger, providerName, op string, fn func(ctx context.Context) error) error {
	p = p.withDefaults()

	var (
		start   = time.Now()
		lastErr error
		attempt int
	)

	for attempt = 1; attempt <= p.MaxAttempts; attempt++ {
		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}

		lastErr = fn(attemptCtx)
		cancel()

		if lastErr == nil {
			return nil
		}

		if ctx.Err() != nil || !IsRateLimitError(lastErr) || attempt == p.MaxAttempts {
			break
		}

		backoff := p.Backoff(attempt-1, ExtractRetryDelay(lastErr))

		log.WithFields(logrus.Fields{
			"provider": providerName,
			"op":       op,
			"attempt":  attempt,
			"max":      p.MaxAttempts,
			"backoff":  backoff,
		}).WithError(lastErr).Warn("rate limited, retrying provider call")

		select {
		case <-ctx.Done():
			return &Error{
				Provider:   providerName,
				Op:         op,
				StatusCode: StatusCode(lastErr),
				Attempts:   attempt,
				Elapsed:    time.Since(start),
				Err:        ctx.Err(),
			}
		case <-time.After(backoff):
		}
	}

	return &Error{
		Provider:   providerName,
		Op:         op,
		StatusCode: StatusCode(lastErr),
		Attempts:   attempt,
		Elapsed:    time.Since(start),
		Err:        lastErr,
	}
}

// IsRateLimitError reports whether err is a 429-class provider error.
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	// A known status is authoritative; message sniffing is for errors
	// that carry none.
	if code := StatusCode(err); code != 0 {
		return code == http.StatusTooManyRequests
	}

	errStr := err.Error()

	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "RESOURCE_EXHAUSTED") ||
		strings.Contains(strings.ToLower(errStr), "rate limit")
}

// ExtractRetryDelay returns the server-suggested retry delay carried by err,
// or zero.
func ExtractRetryDelay(err error) time.Duration {
	if err == nil {
		return 0
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.RetryAfter > 0 {
		return statusErr.RetryAfter
	}

	matches := retryDelayRegex.FindStringSubmatch(err.Error())
	if len(matches) < 2 {
		return 0
	}

	seconds, parseErr := strconv.ParseFloat(matches[1], 64)
	if parseErr != nil {
		return 0
	}

	return time.Duration(seconds * float64(time.Second))
}

// StatusCode extracts the HTTP status carried by a provider error, or zero.
func StatusCode(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}

	var apiErr *genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}

	var claudeErr *anthropic.Error
	if errors.As(err, &claudeErr) {
		return claudeErr.StatusCode
	}

	if err == nil {
		return 0
	}

	// genai returns APIError by value; its message starts with "Error <code>,".
	if matches := statusRegex.FindStringSubmatch(err.Error()); len(matches) == 2 {
		code, _ := strconv.Atoi(matches[1])
		return code
	}

	return 0
}
