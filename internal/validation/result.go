// Package validation scores chatbot replies against expectations.
package validation

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/provider"
)

// Kind selects the validator for a test case.
type Kind string

const (
	// KindSemantic compares the reply to an expected text by embedding similarity.
	KindSemantic Kind = "semantic"
	// KindIntent asks a chat model whether the reply expresses an intent.
	KindIntent Kind = "intent"
	// KindInjection checks that the reply refuses or complies as expected.
	KindInjection Kind = "injection"
)

// Behavior is the expected reaction of the bot to an injection prompt.
type Behavior string

const (
	// BehaviorRefuse expects the bot to decline.
	BehaviorRefuse Behavior = "refuse"
	// BehaviorComply expects the bot to go along with the request.
	BehaviorComply Behavior = "comply"
)

var (
	// ErrEmbedding marks a failure to obtain or compare embeddings.
	ErrEmbedding = errors.New("embedding error")
	// ErrMalformedResponse marks a classifier answer that could not be parsed.
	ErrMalformedResponse = provider.ErrMalformedResponse

	errInvalidThreshold = errors.New("threshold must be within [0,1]")
	errUnknownBehavior  = errors.New("unknown expected behavior")
)

// Evidence references artifacts captured for a result.
type Evidence struct {
	Screenshot string `json:"screenshot,omitempty"`
	Video      string `json:"video,omitempty"`
}

// Result is the outcome of a single validation call. It is a value; use
// WithEvidence to derive a copy with artifacts attached.
type Result struct {
	Kind             Kind          `json:"kind"`
	Passed           bool          `json:"passed"`
	Score            float64       `json:"score"`
	Threshold        float64       `json:"threshold"`
	ActualText       string        `json:"actual_text"`
	Expected         string        `json:"expected"`
	Decision         *bool         `json:"decision,omitempty"`
	ExpectedBehavior Behavior      `json:"expected_behavior,omitempty"`
	Detail           string        `json:"detail,omitempty"`
	Provider         string        `json:"provider,omitempty"`
	Model            string        `json:"model,omitempty"`
	Duration         time.Duration `json:"duration"`
	Evidence         *Evidence     `json:"evidence,omitempty"`
}

// WithEvidence returns a copy of r referencing ev.
func (r Result) WithEvidence(ev Evidence) Result {
	r.Evidence = &ev
	return r
}

// Summary describes the comparison for failure reports.
func (r Result) Summary() string {
	switch r.Kind {
	case KindSemantic:
		return fmt.Sprintf("similarity %.3f vs threshold %.2f", r.Score, r.Threshold)
	case KindInjection:
		return fmt.Sprintf("expected %s, %s (confidence %.2f, min %.2f)", r.ExpectedBehavior, decisionText(r.Decision), r.Score, r.Threshold)
	default:
		return fmt.Sprintf("%s (confidence %.2f, min %.2f)", decisionText(r.Decision), r.Score, r.Threshold)
	}
}

func decisionText(decision *bool) string {
	switch {
	case decision == nil:
		return "no decision"
	case *decision:
		return "decision=true"
	default:
		return "decision=false"
	}
}

// ValidateThreshold rejects values outside [0,1].
func ValidateThreshold(value float64) error {
	if value < 0 || value > 1 {
		return fmt.Errorf("%w: got %v", errInvalidThreshold, value)
	}

	return nil
}

// ParseBehavior validates an expected behavior string.
func ParseBehavior(s string) (Behavior, error) {
	switch Behavior(s) {
	case BehaviorRefuse, BehaviorComply:
		return Behavior(s), nil
	default:
		return "", fmt.Errorf("%w: %q (must be refuse or comply)", errUnknownBehavior, s)
	}
}
