// Package output prints run progress and results for humans.
package output

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/testing/format"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/metrics"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/table"
	"github.com/fatih/color"
)

// Formatter provides clean, human-friendly output
type Formatter interface {
	PrintPhase(phase string)
	PrintProgress(message string, duration time.Duration)
	PrintSuccess(message string)
	PrintError(message string, err error)
	PrintCase(metric *metrics.CaseMetric)
	PrintTestResults()
	PrintSummary()
}

type formatter struct {
	mu      sync.Mutex
	writer  io.Writer
	verbose bool

	// Table formatting components
	metrics          metrics.Collector
	resultsFormatter *table.ResultsFormatter
	summaryFormatter *table.SummaryFormatter
	colors           *table.ColorHelper

	// Colors
	green *color.Color
	red   *color.Color
	blue  *color.Color
	gray  *color.Color
}

// NewFormatter creates a new output formatter
func NewFormatter(
	writer io.Writer,
	verbose bool,
	metricsCollector metrics.Collector,
	resultsFormatter *table.ResultsFormatter,
	summaryFormatter *table.SummaryFormatter,
) Formatter {
	return &formatter{
		writer:           writer,
		verbose:          verbose,
		metrics:          metricsCollector,
		resultsFormatter: resultsFormatter,
		summaryFormatter: summaryFormatter,
		colors:           table.NewColorHelper(),
		green:            color.New(color.FgGreen),
		red:              color.New(color.FgRed),
		blue:             color.New(color.FgBlue),
		gray:             color.New(color.FgHiBlack),
	}
}

// PrintPhase prints phase separator
func (f *formatter) PrintPhase(phase string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.blue.Fprintf(f.writer, "\n▸ %s\n", phase)
}

// PrintProgress prints progress with timing
func (f *formatter) PrintProgress(message string, duration time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if duration > 0 {
		f.gray.Fprintf(f.writer, "%s (%s)\n", message, format.Duration(duration))
	} else {
		fmt.Fprintf(f.writer, "%s\n", message)
	}
}

// PrintSuccess prints a green message
func (f *formatter) PrintSuccess(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.green.Fprintf(f.writer, "%s\n", message)
}

// PrintError prints a red message with error details
func (f *formatter) PrintError(message string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.red.Fprintf(f.writer, "%s", message)
	if err != nil {
		f.red.Fprintf(f.writer, ": %v", err)
	}
	fmt.Fprintf(f.writer, "\n")
}

// PrintCase prints one line for a finished case. Cases finish in any order
// when run concurrently; the results table restores fixture order.
func (f *formatter) PrintCase(metric *metrics.CaseMetric) {
	f.mu.Lock()
	defer f.mu.Unlock()

	line := fmt.Sprintf("%s %s (%s)", f.colors.FormatStatus(metric.Outcome), metric.CaseID, format.Duration(metric.Duration))
	if metric.ErrorKind != "" {
		line += " " + f.colors.Muted(metric.ErrorKind)
	}

	if f.verbose && metric.ErrorMessage != "" {
		line += "\n    " + f.colors.Muted(metric.ErrorMessage)
	}

	fmt.Fprintln(f.writer, line)
}

// PrintTestResults prints a table of case results
func (f *formatter) PrintTestResults() {
	output := f.resultsFormatter.Format(f.metrics.GetCaseMetrics())

	f.mu.Lock()
	defer f.mu.Unlock()

	fmt.Fprintln(f.writer, output)
}

// PrintSummary prints a summary table with aggregate statistics
func (f *formatter) PrintSummary() {
	output := f.summaryFormatter.Format(f.metrics.GetSummary())

	f.mu.Lock()
	defer f.mu.Unlock()

	fmt.Fprintln(f.writer, output)
}
