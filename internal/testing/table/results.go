package table

import (
	"fmt"
	"strings"

	"github.com/ethpandaops/chatbot-e2e/internal/testing/format"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/metrics"
	"github.com/sirupsen/logrus"
)

const detailsWidth = 50

// ResultsFormatter formats case results as a table.
type ResultsFormatter struct {
	log      logrus.FieldLogger
	renderer Renderer
	colors   *ColorHelper
}

// NewResultsFormatter creates a new results table formatter.
func NewResultsFormatter(log logrus.FieldLogger, renderer Renderer) *ResultsFormatter {
	return &ResultsFormatter{
		log:      log.WithField("component", "table.results_formatter"),
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format converts case metrics into a formatted table string with failure details.
func (f *ResultsFormatter) Format(caseMetrics []metrics.CaseMetric) string {
	if len(caseMetrics) == 0 {
		return "No test cases executed"
	}

	var (
		headers   = []string{"Case", "Status", "Validator", "Score", "Reply", "Duration", "Details"}
		rows      = make([][]string, 0, len(caseMetrics))
		notPassed = make([]metrics.CaseMetric, 0)
	)

	for _, metric := range caseMetrics {
		var details string

		if metric.Outcome != metrics.OutcomePassed {
			notPassed = append(notPassed, metric)

			details = f.colors.Muted(format.Truncate(metric.ErrorMessage, detailsWidth))
			if metric.ErrorKind != "" {
				details = f.colors.Failure(metric.ErrorKind) + " " + details
			}
		}

		latency := "-"
		if metric.ReplyLatency > 0 {
			latency = format.Duration(metric.ReplyLatency)
		}

		rows = append(rows, []string{
			metric.CaseID,
			f.colors.FormatStatus(metric.Outcome),
			metric.Validator,
			f.colors.FormatScore(metric.Score, metric.Threshold, metric.Scored),
			latency,
			format.Duration(metric.Duration),
			details,
		})
	}

	output := "\n" + f.colors.Header("▸ Test Results") + "\n\n" + f.renderer.RenderToString(headers, rows)

	if len(notPassed) > 0 {
		output += f.formatFailureDetails(notPassed)
	}

	return output
}

// formatFailureDetails lists the comparison and evidence of every case that did not pass.
func (f *ResultsFormatter) formatFailureDetails(cases []metrics.CaseMetric) string {
	var builder strings.Builder

	builder.WriteString("\n\n" + f.colors.Header("▸ Failed Case Details") + "\n\n")

	for i, tc := range cases {
		if i > 0 {
			builder.WriteString("\n")
		}

		fmt.Fprintf(&builder, "%s %s (%s)\n", f.colors.FormatStatus(tc.Outcome), f.colors.Bold(tc.CaseID), format.Duration(tc.Duration))

		if tc.ErrorMessage != "" {
			fmt.Fprintf(&builder, "  %s: %s\n", f.colors.Failure(kindOrError(tc.ErrorKind)), tc.ErrorMessage)
		}

		if tc.Failure == nil {
			continue
		}

		if tc.Failure.Expected != "" {
			fmt.Fprintf(&builder, "    %s: %s\n", f.colors.Info("Expected"), tc.Failure.Expected)
		}

		if tc.Failure.Actual != "" {
			fmt.Fprintf(&builder, "    %s: %s\n", f.colors.Warning("Actual"), tc.Failure.Actual)
		}

		if tc.Failure.Comparison != "" {
			fmt.Fprintf(&builder, "    %s: %s\n", f.colors.Info("Comparison"), tc.Failure.Comparison)
		}

		if tc.Failure.Evidence != "" {
			fmt.Fprintf(&builder, "    %s: %s\n", f.colors.Muted("Evidence"), tc.Failure.Evidence)
		}
	}

	return builder.String()
}

func kindOrError(kind string) string {
	if kind == "" {
		return "Error"
	}

	return kind
}
