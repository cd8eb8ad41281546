package testing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/provider"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/testdef"
	"github.com/ethpandaops/chatbot-e2e/internal/transcript"
	"github.com/ethpandaops/chatbot-e2e/internal/validation"
)

// State is a step of the per-case state machine.
type State string

const (
	StateIdle          State = "idle"
	StateWidgetOpened  State = "widget_opened"
	StatePromptSent    State = "prompt_sent"
	StateReplyReceived State = "reply_received"
	StateValidated     State = "validated"
	StatePassed        State = "passed"
	StateFailed        State = "failed"
	StateErrored       State = "errored"
)

// Outcome is the terminal classification of a test case.
type Outcome string

const (
	// OutcomePassed means every validated turn met its expectation.
	OutcomePassed Outcome = "passed"
	// OutcomeFailed is a genuine assertion failure.
	OutcomeFailed Outcome = "failed"
	// OutcomeErrored is an infrastructure failure; no verdict was reached.
	OutcomeErrored Outcome = "errored"
)

// ErrorKind classifies why a case did not pass.
type ErrorKind string

const (
	ErrorKindNone              ErrorKind = ""
	ErrorKindSetupFailure      ErrorKind = "SetupFailure"
	ErrorKindElementNotFound   ErrorKind = "ElementNotFound"
	ErrorKindResponseTimeout   ErrorKind = "ResponseTimeout"
	ErrorKindProviderError     ErrorKind = "ProviderError"
	ErrorKindMalformedResponse ErrorKind = "MalformedProviderResponse"
	ErrorKindEmbeddingError    ErrorKind = "EmbeddingError"
	ErrorKindAssertionFailure  ErrorKind = "AssertionFailure"
	ErrorKindBrowserError      ErrorKind = "BrowserError"
	ErrorKindCanceled          ErrorKind = "Canceled"
)

var (
	errWidgetUnavailable   = errors.New("chat widget unavailable")
	errReplyTimeout        = errors.New("no bot reply")
	errSendFailed          = errors.New("sending message failed")
	errValidatorMissing    = errors.New("validator not configured")
	errResponseTooSlow     = errors.New("reply slower than max_response_time")
	errUnknownValidator    = errors.New("unknown validator kind")
	errAssertionNotReached = errors.New("assertion not met")
)

// CaseError is an infrastructure failure with the context needed for
// triage.
type CaseError struct {
	Kind    ErrorKind
	State   State
	Turn    int
	Elapsed time.Duration
	Err     error
}

func (e *CaseError) Error() string {
	return fmt.Sprintf("%s in state %s (turn %d, after %s): %v",
		e.Kind, e.State, e.Turn, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *CaseError) Unwrap() error {
	return e.Err
}

// classifyError maps an error raised while in state onto the error taxonomy.
func classifyError(state State, err error) ErrorKind {
	var elementErr *transcript.ElementNotFoundError

	switch {
	case errors.Is(err, context.Canceled):
		return ErrorKindCanceled
	case errors.Is(err, validation.ErrMalformedResponse):
		return ErrorKindMalformedResponse
	case errors.Is(err, provider.ErrProvider):
		return ErrorKindProviderError
	case errors.Is(err, validation.ErrEmbedding):
		return ErrorKindEmbeddingError
	case errors.Is(err, errReplyTimeout):
		return ErrorKindResponseTimeout
	case state == StateIdle, errors.Is(err, errWidgetUnavailable), errors.Is(err, errValidatorMissing):
		return ErrorKindSetupFailure
	case errors.As(err, &elementErr):
		return ErrorKindElementNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindResponseTimeout
	default:
		return ErrorKindBrowserError
	}
}

// TurnResult records one conversational turn of a case.
type TurnResult struct {
	Index      int                `json:"index"`
	Action     testdef.Action     `json:"action"`
	Input      string             `json:"input,omitempty"`
	Selector   string             `json:"selector,omitempty"`
	Reply      string             `json:"reply,omitempty"`
	Latency    time.Duration      `json:"latency"`
	Validation *validation.Result `json:"validation,omitempty"`
}

// CaseResult is the complete outcome of one test case.
type CaseResult struct {
	CaseID      string                `json:"case_id"`
	Description string                `json:"description,omitempty"`
	Source      string                `json:"source,omitempty"`
	Tags        []string              `json:"tags,omitempty"`
	Outcome     Outcome               `json:"outcome"`
	ErrorKind   ErrorKind             `json:"error_kind,omitempty"`
	Error       string                `json:"error,omitempty"`
	Trace       []State               `json:"trace"`
	Turns       []TurnResult          `json:"turns"`
	Transcript  []transcript.ChatTurn `json:"transcript"`
	Evidence    *validation.Evidence  `json:"evidence,omitempty"`
	StartedAt   time.Time             `json:"started_at"`
	Duration    time.Duration         `json:"duration"`
	Err         error                 `json:"-"`
	Case        *testdef.TestCase     `json:"-"`
}

// Passed reports whether the case passed.
func (r *CaseResult) Passed() bool {
	return r.Outcome == OutcomePassed
}

// FailedValidation returns the first validation that did not pass, if any.
func (r *CaseResult) FailedValidation() *validation.Result {
	for i := range r.Turns {
		if v := r.Turns[i].Validation; v != nil && !v.Passed {
			return v
		}
	}

	return nil
}

// MaxLatency is the slowest reply of the case.
func (r *CaseResult) MaxLatency() time.Duration {
	var slowest time.Duration

	for _, turn := range r.Turns {
		if turn.Latency > slowest {
			slowest = turn.Latency
		}
	}

	return slowest
}
