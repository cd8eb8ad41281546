package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/browser"
	"github.com/ethpandaops/chatbot-e2e/internal/config"
	"github.com/ethpandaops/chatbot-e2e/internal/testing"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/metrics"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/report"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/testdef"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	// Run command flags
	runIDs         []string
	runTags        []string
	runConcurrency int
	runTimeout     time.Duration

	errNoCases        = errors.New("no test cases selected")
	errCasesNotPassed = errors.New("some test cases did not pass")
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run [fixture paths...]",
	Short: "Run chatbot test cases",
	Long: `Run fixture test cases against the chat widget.

Each case gets its own browser context: the page is loaded, the widget opened,
the prompt sent and the reply validated. Cases that error (widget missing,
reply timeout, provider failure) are reported separately from cases that
fail their assertion. Results are written to <artifacts>/logs/results.jsonl
and summary.json.

Paths may be files or directories; directories contribute their .yaml and
.yml files. Without paths, ./fixtures is used.

Example:
  chatbot-e2e run
  chatbot-e2e run fixtures/security.yaml --tag injection
  chatbot-e2e run --id greeting_hello --verbose`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringSliceVar(&runIDs, "id", nil, "Only run cases with these ids")
	runCmd.Flags().StringSliceVar(&runTags, "tag", nil, "Only run cases carrying one of these tags")
	runCmd.Flags().IntVar(&runConcurrency, "concurrency", 1, "Number of cases to run in parallel")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "Overall run timeout (0 disables)")
}

// runOptions selects and bounds one run.
type runOptions struct {
	paths       []string
	ids         []string
	tags        []string
	concurrency int
	timeout     time.Duration
}

func runRun(_ *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	results, err := executeRun(ctx, runOptions{
		paths:       args,
		ids:         runIDs,
		tags:        runTags,
		concurrency: runConcurrency,
		timeout:     runTimeout,
	})
	if err != nil {
		return err
	}

	return checkResults(results)
}

// executeRun loads everything a run needs, failing fast on configuration,
// fixture and provider setup errors before any browser is launched.
func executeRun(ctx context.Context, opts runOptions) ([]*testing.CaseResult, error) {
	cfg, err := loadSettings()
	if err != nil {
		return nil, err
	}

	cases, err := loadCases(opts.paths, opts.ids, opts.tags)
	if err != nil {
		return nil, err
	}

	if opts.timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	validators, err := newValidators(ctx, cfg, cases)
	if err != nil {
		return nil, err
	}

	writer, err := report.NewWriter(Logger, cfg.LogsPath(), cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	defer func() {
		if err := writer.Close(); err != nil {
			Logger.WithError(err).Warn("failed to finish report")
		}
	}()

	orchestrator := testing.NewOrchestrator(&testing.OrchestratorConfig{
		Logger:           Logger,
		Settings:         cfg,
		Verbose:          verbose,
		Writer:           os.Stdout,
		Browser:          browser.NewBrowser(Logger, browser.ConfigFromSettings(cfg)),
		MetricsCollector: metrics.NewCollector(Logger),
		Semantic:         validators.semantic,
		Intent:           validators.intent,
		Refusal:          validators.refusal,
		Sinks:            []testing.ResultSink{writer},
	})

	if err := orchestrator.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting orchestrator: %w", err)
	}

	defer func() {
		if err := orchestrator.Stop(); err != nil {
			Logger.WithError(err).Warn("failed to stop orchestrator")
		}
	}()

	Logger.WithFields(logrus.Fields{
		"run_id": writer.RunID(),
		"cases":  len(cases),
	}).Info("run started")

	results := orchestrator.Run(ctx, cases, opts.concurrency)

	Logger.WithFields(logrus.Fields{
		"results": writer.ResultsPath(),
		"summary": writer.SummaryPath(),
	}).Info("run finished")

	return results, nil
}

// loadCases loads the fixtures in paths, ./fixtures by default, and keeps the
// cases selected by ids and tags.
func loadCases(paths, ids, tags []string) ([]*testdef.TestCase, error) {
	if len(paths) == 0 {
		paths = []string{config.DefaultFixturesDir}
	}

	cases, err := testdef.NewLoader(Logger).Load(paths)
	if err != nil {
		return nil, fmt.Errorf("loading fixtures: %w", err)
	}

	selected := testdef.Filter(cases, ids, tags)
	if len(selected) == 0 {
		return nil, fmt.Errorf("%w: %d case(s) loaded, none matched the filters", errNoCases, len(cases))
	}

	return selected, nil
}

// checkResults turns any non-passing case into an error, so the process
// exits non-zero.
func checkResults(results []*testing.CaseResult) error {
	var failed, errored int

	for _, result := range results {
		switch result.Outcome {
		case testing.OutcomeFailed:
			failed++
		case testing.OutcomeErrored:
			errored++
		}
	}

	if failed+errored == 0 {
		return nil
	}

	return fmt.Errorf("%w: %d failed, %d errored of %d", errCasesNotPassed, failed, errored, len(results))
}
