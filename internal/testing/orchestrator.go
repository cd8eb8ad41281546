// Package testing provides end-to-end test orchestration and execution.
package testing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/browser"
	"github.com/ethpandaops/chatbot-e2e/internal/config"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/metrics"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/output"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/table"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/testdef"
	"github.com/ethpandaops/chatbot-e2e/internal/transcript"
	"github.com/ethpandaops/chatbot-e2e/internal/validation"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// evidenceTimeout bounds screenshot and transcript capture after a case has
// ended, including when its own deadline already expired.
const evidenceTimeout = 10 * time.Second

// ResultSink receives every case result as soon as it is final.
type ResultSink interface {
	Record(result *CaseResult) error
}

// OrchestratorConfig contains configuration for test orchestration.
type OrchestratorConfig struct {
	Logger           logrus.FieldLogger
	Settings         *config.Settings
	Verbose          bool
	Writer           io.Writer
	Browser          browser.Browser
	MetricsCollector metrics.Collector
	Semantic         *validation.SemanticValidator
	Intent           *validation.IntentValidator
	Refusal          *validation.RefusalValidator
	Sinks            []ResultSink
}

// Orchestrator coordinates end-to-end test execution.
type Orchestrator struct {
	cfg       *config.Settings
	log       logrus.FieldLogger
	browser   browser.Browser
	metrics   metrics.Collector
	formatter output.Formatter
	sinks     []ResultSink
	verbose   bool

	// extractor waits the full widget timeout for the messages container;
	// pollExtractor only one poll interval, so a reply poll never stalls.
	extractor     *transcript.Extractor
	pollExtractor *transcript.Extractor

	semantic *validation.SemanticValidator
	intent   *validation.IntentValidator
	refusal  *validation.RefusalValidator
}

// NewOrchestrator creates a new test orchestrator.
func NewOrchestrator(cfg *OrchestratorConfig) *Orchestrator {
	writer := cfg.Writer
	if writer == nil {
		writer = os.Stdout
	}

	renderer := table.NewRenderer(cfg.Logger)

	outputFormatter := output.NewFormatter(
		writer,
		cfg.Verbose,
		cfg.MetricsCollector,
		table.NewResultsFormatter(cfg.Logger, renderer),
		table.NewSummaryFormatter(cfg.Logger, renderer),
	)

	opts := transcript.OptionsFromSettings(cfg.Settings)
	pollOpts := opts
	pollOpts.WaitWindow = cfg.Settings.Browser.PollInterval

	return &Orchestrator{
		cfg:           cfg.Settings,
		log:           cfg.Logger.WithField("component", "test_orchestrator"),
		browser:       cfg.Browser,
		metrics:       cfg.MetricsCollector,
		formatter:     outputFormatter,
		sinks:         cfg.Sinks,
		verbose:       cfg.Verbose,
		extractor:     transcript.NewExtractor(cfg.Logger, opts),
		pollExtractor: transcript.NewExtractor(cfg.Logger, pollOpts),
		semantic:      cfg.Semantic,
		intent:        cfg.Intent,
		refusal:       cfg.Refusal,
	}
}

// Start initializes the orchestrator and all its components.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.log.Debug("starting test orchestrator")

	if err := o.metrics.Start(ctx); err != nil {
		return fmt.Errorf("starting metrics collector: %w", err)
	}

	if err := o.browser.Start(ctx); err != nil {
		return fmt.Errorf("starting browser: %w", err)
	}

	o.log.Info("test orchestrator started")

	return nil
}

// Stop cleans up all orchestrator resources.
func (o *Orchestrator) Stop() error {
	o.log.Debug("stopping test orchestrator")

	var errs []error

	// Stop all components in reverse order of start
	if err := o.browser.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping browser: %w", err))
	}

	if err := o.metrics.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stopping metrics collector: %w", err))
	}

	return errors.Join(errs...)
}

// Run executes the cases with at most concurrency cases in flight and
// returns their results in fixture order. A case that errors or times out
// never affects its siblings; only cancelling ctx stops the whole run.
func (o *Orchestrator) Run(ctx context.Context, cases []*testdef.TestCase, concurrency int) []*CaseResult {
	if concurrency <= 0 {
		concurrency = 1
	}

	start := time.Now()

	o.log.WithFields(logrus.Fields{
		"cases":       len(cases),
		"concurrency": concurrency,
		"base_url":    o.cfg.BaseURL,
	}).Info("running test cases")

	o.formatter.PrintPhase(fmt.Sprintf("Running %d case(s) against %s", len(cases), o.cfg.BaseURL))

	results := make([]*CaseResult, len(cases))

	var g errgroup.Group
	g.SetLimit(concurrency)

	for i, tc := range cases {
		g.Go(func() error {
			result := o.runCase(ctx, tc)

			// Each worker writes its own index.
			results[i] = result

			metric := caseMetric(i, result)
			o.metrics.RecordCase(metric)
			o.formatter.PrintCase(metric)
			o.publish(result)

			return nil
		})
	}

	_ = g.Wait()

	o.log.WithFields(logrus.Fields{
		"cases":    len(results),
		"duration": time.Since(start),
	}).Info("all test cases completed")

	o.formatter.PrintTestResults()
	o.formatter.PrintSummary()

	return results
}

func (o *Orchestrator) publish(result *CaseResult) {
	for _, sink := range o.sinks {
		if err := sink.Record(result); err != nil {
			o.log.WithError(err).WithField("case", result.CaseID).Warn("failed to record result")
		}
	}
}

// caseMetric summarizes a case result for the metrics collector.
func caseMetric(index int, result *CaseResult) *metrics.CaseMetric {
	metric := &metrics.CaseMetric{
		Index:        index,
		CaseID:       result.CaseID,
		Outcome:      string(result.Outcome),
		ErrorKind:    string(result.ErrorKind),
		ReplyLatency: result.MaxLatency(),
		Duration:     result.Duration,
		ErrorMessage: result.Error,
		Timestamp:    result.StartedAt.Add(result.Duration),
	}

	// The verdict comes from the failed validation, else the last one.
	scored := result.FailedValidation()
	if scored == nil {
		for i := len(result.Turns) - 1; i >= 0 && scored == nil; i-- {
			scored = result.Turns[i].Validation
		}
	}

	if scored != nil {
		metric.Validator = string(scored.Kind)
		metric.Score = scored.Score
		metric.Threshold = scored.Threshold
		metric.Scored = true
	}

	if result.Outcome == OutcomePassed {
		return metric
	}

	detail := &metrics.FailureDetail{}

	if failed := result.FailedValidation(); failed != nil {
		detail.Expected = failed.Expected
		if failed.ExpectedBehavior != "" {
			detail.Expected = fmt.Sprintf("%s (%s)", failed.ExpectedBehavior, failed.Expected)
		}

		detail.Actual = failed.ActualText
		detail.Comparison = failed.Summary()
		if failed.Detail != "" {
			detail.Comparison += "; " + failed.Detail
		}
	} else if n := len(result.Transcript); n > 0 {
		last := result.Transcript[n-1]
		detail.Actual = fmt.Sprintf("last %s turn: %s", last.Role, last.Text)
	}

	if ev := result.Evidence; ev != nil {
		detail.Evidence = ev.Screenshot
		if ev.Video != "" {
			if detail.Evidence != "" {
				detail.Evidence += ", "
			}

			detail.Evidence += ev.Video
		}
	}

	metric.Failure = detail

	return metric
}
