package testing

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/browser"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/testdef"
	"github.com/ethpandaops/chatbot-e2e/internal/transcript"
	"github.com/ethpandaops/chatbot-e2e/internal/validation"
	"github.com/sirupsen/logrus"
)

// caseRun is the state of one test case while it executes. It is owned by a
// single goroutine.
type caseRun struct {
	o       *Orchestrator
	tc      *testdef.TestCase
	log     logrus.FieldLogger
	result  *CaseResult
	state   State
	start   time.Time
	session browser.Session

	stopRecording func() (int, error)
	// failure is set by the first turn that does not meet its expectation.
	failure string
	// failedTurn indexes result.Turns, or -1.
	failedTurn int
}

// runCase drives one test case through the state machine. It never returns
// nil and never panics on infrastructure errors: they end in OutcomeErrored.
func (o *Orchestrator) runCase(ctx context.Context, tc *testdef.TestCase) *CaseResult {
	start := time.Now()

	run := &caseRun{
		o:     o,
		tc:    tc,
		log:   o.log.WithField("case", tc.ID),
		state: StateIdle,
		start: start,
		result: &CaseResult{
			CaseID:      tc.ID,
			Description: tc.Description,
			Source:      tc.Source,
			Tags:        tc.Tags,
			Trace:       []State{StateIdle},
			Turns:       []TurnResult{},
			StartedAt:   start,
			Case:        tc,
		},
		failedTurn: -1,
	}

	caseCtx, cancel := context.WithTimeout(ctx, o.cfg.Browser.CaseTimeout)
	defer cancel()

	run.log.Debug("starting test case")

	err := run.execute(caseCtx)
	run.finish(caseCtx, err)

	run.result.Duration = time.Since(start)

	run.log.WithFields(logrus.Fields{
		"outcome":  run.result.Outcome,
		"kind":     run.result.ErrorKind,
		"duration": run.result.Duration,
	}).Info("test case finished")

	return run.result
}

func (r *caseRun) transition(next State) {
	r.log.WithFields(logrus.Fields{
		"from": r.state,
		"to":   next,
	}).Debug("state transition")

	r.state = next
	r.result.Trace = append(r.result.Trace, next)
}

// errorf wraps err into a CaseError classified for the current state.
func (r *caseRun) errorf(turn int, err error) error {
	return &CaseError{
		Kind:    classifyError(r.state, err),
		State:   r.state,
		Turn:    turn,
		Elapsed: time.Since(r.start),
		Err:     err,
	}
}

func (r *caseRun) execute(ctx context.Context) error {
	session, err := r.o.browser.NewSession(ctx)
	if err != nil {
		return r.errorf(0, fmt.Errorf("opening browser session: %w", err))
	}

	r.session = session

	if r.o.cfg.Browser.RecordVideo {
		stop, err := session.StartRecording(ctx, r.o.cfg.VideoDir(r.tc.ID))
		if err != nil {
			r.log.WithError(err).Warn("screencast unavailable, continuing without video")
		} else {
			r.stopRecording = stop
		}
	}

	if err := r.openWidget(ctx); err != nil {
		return r.errorf(0, err)
	}

	for i, step := range r.tc.Steps() {
		passed, err := r.runTurn(ctx, i, step)
		if err != nil {
			return r.errorf(i, err)
		}

		if !passed {
			return nil
		}
	}

	return nil
}

// openWidget performs Idle → WidgetOpened.
func (r *caseRun) openWidget(ctx context.Context) error {
	var (
		cfg       = r.o.cfg
		selectors = cfg.Selectors
		timeout   = cfg.Browser.WidgetTimeout
	)

	if err := r.session.Navigate(ctx, cfg.BaseURL); err != nil {
		return err
	}

	if err := r.session.WaitForNetworkIdle(ctx, cfg.Browser.NetworkIdleTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.log.WithError(err).Warn("network did not become idle, continuing")
	}

	if err := r.session.WaitForSelector(ctx, selectors.OpenWidget, timeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Some widgets open on page load and hide their launcher.
		visible, visErr := r.session.Visible(ctx, selectors.InputArea)
		if visErr != nil || !visible {
			return fmt.Errorf("%w: %w", errWidgetUnavailable, &transcript.ElementNotFoundError{
				Name:     "open_widget",
				Selector: selectors.OpenWidget,
				Waited:   timeout,
				Err:      err,
			})
		}

		r.log.Debug("open-widget control absent but input area visible")
	} else if err := r.session.Click(ctx, selectors.OpenWidget); err != nil {
		return fmt.Errorf("%w: %w", errWidgetUnavailable, err)
	}

	if err := r.session.WaitForSelector(ctx, selectors.InputArea, timeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		return fmt.Errorf("%w: %w", errWidgetUnavailable, &transcript.ElementNotFoundError{
			Name:     "input_area",
			Selector: selectors.InputArea,
			Waited:   timeout,
			Err:      err,
		})
	}

	r.transition(StateWidgetOpened)

	return nil
}

// runTurn performs WidgetOpened → PromptSent → ReplyReceived → Validated for
// one turn. It reports whether the turn met its expectations.
func (r *caseRun) runTurn(ctx context.Context, index int, step *testdef.Turn) (bool, error) {
	log := r.log.WithFields(logrus.Fields{
		"turn":   index,
		"action": step.Action,
	})

	baseline, err := r.o.pollExtractor.Extract(ctx, r.session)
	switch {
	case err == nil:
		r.result.Transcript = baseline
	case errors.Is(err, transcript.ErrElementNotFound):
		// The container may only render after the first message.
		baseline = nil
	default:
		return false, err
	}

	sentAt, err := r.send(ctx, step)
	if err != nil {
		return false, err
	}

	r.transition(StatePromptSent)

	reply, latency, err := r.awaitReply(ctx, len(baseline), sentAt)
	if err != nil {
		return false, err
	}

	r.transition(StateReplyReceived)

	log.WithFields(logrus.Fields{
		"latency": latency,
		"reply":   reply,
	}).Debug("reply received")

	turn := TurnResult{
		Index:    index,
		Action:   step.Action,
		Input:    step.Input,
		Selector: step.Selector,
		Reply:    reply,
		Latency:  latency,
	}

	passed := true

	if step.ValidatorKind != "" {
		res, err := r.validate(ctx, step, reply)
		if err != nil {
			return false, err
		}

		r.transition(StateValidated)

		turn.Validation = &res

		if !res.Passed {
			passed = false
			r.failure = res.Summary()

			if res.Detail != "" {
				r.failure += "; " + res.Detail
			}
		}
	}

	if limit := r.tc.MaxResponseTime.Std(); passed && limit > 0 && latency > limit {
		passed = false
		r.failure = fmt.Sprintf("%s: took %s, limit %s", errResponseTooSlow, latency.Round(time.Millisecond), limit)
	}

	r.result.Turns = append(r.result.Turns, turn)

	if !passed {
		r.failedTurn = len(r.result.Turns) - 1
		log.WithField("reason", r.failure).Info("turn failed")
	}

	return passed, nil
}

// send triggers a message or option click and returns when it was sent.
func (r *caseRun) send(ctx context.Context, step *testdef.Turn) (time.Time, error) {
	selectors := r.o.cfg.Selectors

	if step.Action == testdef.ActionClick {
		if err := r.session.Click(ctx, step.Selector); err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", errSendFailed, err)
		}
	}

	if step.Input != "" {
		if err := r.session.TypeText(ctx, selectors.InputArea, step.Input); err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", errSendFailed, err)
		}
	}

	if err := r.submit(ctx); err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", errSendFailed, err)
	}

	return time.Now(), nil
}

// submit clicks the send button when one is configured and visible, else
// presses Enter in the input area.
func (r *caseRun) submit(ctx context.Context) error {
	selectors := r.o.cfg.Selectors

	if selectors.SendButton != "" {
		visible, err := r.session.Visible(ctx, selectors.SendButton)
		if err != nil {
			return err
		}

		if visible {
			return r.session.Click(ctx, selectors.SendButton)
		}
	}

	return r.session.Submit(ctx, selectors.InputArea)
}

func (r *caseRun) validate(ctx context.Context, step *testdef.Turn, reply string) (validation.Result, error) {
	thresholds := r.o.cfg.Thresholds

	switch step.ValidatorKind {
	case validation.KindSemantic:
		if r.o.semantic == nil {
			return validation.Result{}, fmt.Errorf("%w: semantic", errValidatorMissing)
		}

		return r.o.semantic.Validate(ctx, reply, step.Expected, thresholdOr(step.Threshold, thresholds.Semantic))
	case validation.KindIntent:
		if r.o.intent == nil {
			return validation.Result{}, fmt.Errorf("%w: intent", errValidatorMissing)
		}

		return r.o.intent.Validate(ctx, reply, step.Expected, thresholdOr(step.Threshold, thresholds.IntentConfidence))
	case validation.KindInjection:
		if r.o.refusal == nil {
			return validation.Result{}, fmt.Errorf("%w: injection", errValidatorMissing)
		}

		return r.o.refusal.Validate(ctx, reply, step.ExpectedBehavior,
			thresholdOr(step.Threshold, thresholds.IntentConfidence), step.RefusalExamples)
	default:
		return validation.Result{}, fmt.Errorf("%w: %q", errUnknownValidator, step.ValidatorKind)
	}
}

func thresholdOr(override *float64, fallback float64) float64 {
	if override != nil {
		return *override
	}

	return fallback
}

// finish records the terminal state, captures evidence for non-passing
// outcomes and releases the session.
func (r *caseRun) finish(ctx context.Context, err error) {
	res := r.result

	switch {
	case err != nil:
		var caseErr *CaseError
		if errors.As(err, &caseErr) {
			res.ErrorKind = caseErr.Kind
		} else {
			res.ErrorKind = classifyError(r.state, err)
		}

		res.Outcome = OutcomeErrored
		res.Error = err.Error()
		res.Err = err
		r.transition(StateErrored)
	case r.failure != "":
		res.Outcome = OutcomeFailed
		res.ErrorKind = ErrorKindAssertionFailure
		res.Error = r.failure
		res.Err = fmt.Errorf("%w: %s", errAssertionNotReached, r.failure)
		r.transition(StateFailed)
	default:
		res.Outcome = OutcomePassed
		r.transition(StatePassed)
	}

	if r.session == nil {
		return
	}

	// Evidence capture outlives the case deadline.
	evCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), evidenceTimeout)
	defer cancel()

	frames := r.stopScreencast()

	if !res.Passed() {
		r.captureEvidence(evCtx, frames)
	}

	if r.stopRecording != nil && (res.Passed() || frames == 0) {
		if err := os.RemoveAll(r.o.cfg.VideoDir(r.tc.ID)); err != nil {
			r.log.WithError(err).Debug("failed to remove screencast frames")
		}
	}

	if err := r.session.Close(); err != nil {
		r.log.WithError(err).Debug("failed to close browser session")
	}
}

// stopScreencast stops the recording, if any, and returns the frame count.
func (r *caseRun) stopScreencast() int {
	if r.stopRecording == nil {
		return 0
	}

	frames, err := r.stopRecording()
	if err != nil {
		r.log.WithError(err).Debug("failed to stop screencast")
	}

	return frames
}

func (r *caseRun) captureEvidence(ctx context.Context, frames int) {
	var (
		cfg = r.o.cfg
		res = r.result
		ev  validation.Evidence
	)

	if turns, err := r.o.pollExtractor.Extract(ctx, r.session); err == nil {
		res.Transcript = turns
	} else {
		r.log.WithError(err).Debug("keeping last transcript snapshot")
	}

	if cfg.Browser.ScreenshotOnFailure {
		path := cfg.ScreenshotPath(r.tc.ID)
		if err := r.session.Screenshot(ctx, path); err != nil {
			r.log.WithError(err).Warn("failed to capture screenshot")
		} else {
			ev.Screenshot = path
		}
	}

	if frames > 0 {
		ev.Video = cfg.VideoDir(r.tc.ID)

		r.log.WithFields(logrus.Fields{
			"frames": frames,
			"dir":    ev.Video,
		}).Info("saved screencast")
	}

	if ev == (validation.Evidence{}) {
		return
	}

	res.Evidence = &ev

	if r.failedTurn >= 0 {
		if v := res.Turns[r.failedTurn].Validation; v != nil {
			withEvidence := v.WithEvidence(ev)
			res.Turns[r.failedTurn].Validation = &withEvidence
		}
	}
}

// joinReplies concatenates bot turns into one reply text.
func joinReplies(turns []transcript.ChatTurn) string {
	texts := make([]string, 0, len(turns))
	for _, turn := range turns {
		texts = append(texts, turn.Text)
	}

	return strings.Join(texts, " ")
}
