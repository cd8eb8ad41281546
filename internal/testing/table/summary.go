package table

import (
	"fmt"
	"sort"

	"github.com/ethpandaops/chatbot-e2e/internal/testing/format"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/metrics"
	"github.com/sirupsen/logrus"
)

// SummaryFormatter formats summary statistics as a table.
type SummaryFormatter struct {
	log      logrus.FieldLogger
	renderer Renderer
	colors   *ColorHelper
}

// NewSummaryFormatter creates a new summary table formatter.
func NewSummaryFormatter(log logrus.FieldLogger, renderer Renderer) *SummaryFormatter {
	return &SummaryFormatter{
		log:      log.WithField("component", "table.summary_formatter"),
		renderer: renderer,
		colors:   NewColorHelper(),
	}
}

// Format converts summary metrics into a formatted table string.
func (f *SummaryFormatter) Format(summary metrics.SummaryMetric) string {
	var (
		passRate = summary.PassRate()
		share    = func(n int) float64 {
			if summary.TotalCases == 0 {
				return 0
			}

			return float64(n) / float64(summary.TotalCases) * 100.0
		}
	)

	// Format values with colors
	passedValue := fmt.Sprintf("%d (%s)", summary.PassedCases, f.colors.FormatPercentage(passRate))
	if summary.PassedCases == summary.TotalCases {
		passedValue = f.colors.Success(fmt.Sprintf("%d (%.1f%%)", summary.PassedCases, passRate))
	}

	failedValue := f.colors.Success(fmt.Sprintf("%d (%.1f%%)", summary.FailedCases, share(summary.FailedCases)))
	if summary.FailedCases > 0 {
		failedValue = f.colors.Failure(fmt.Sprintf("%d (%.1f%%)", summary.FailedCases, share(summary.FailedCases)))
	}

	erroredValue := f.colors.Success(fmt.Sprintf("%d (%.1f%%)", summary.ErroredCases, share(summary.ErroredCases)))
	if summary.ErroredCases > 0 {
		erroredValue = f.colors.Warning(fmt.Sprintf("%d (%.1f%%)", summary.ErroredCases, share(summary.ErroredCases)))
	}

	var (
		headers = []string{"Metric", "Value"}
		rows    = [][]string{
			{"Total Cases", f.colors.Bold(fmt.Sprintf("%d", summary.TotalCases))},
			{"Passed", passedValue},
			{"Failed", failedValue},
			{"Errored", erroredValue},
			{"Avg Reply Latency", format.Duration(summary.AvgReplyLatency)},
			{"Max Reply Latency", format.Duration(summary.MaxReplyLatency)},
			{"Total Duration", format.Duration(summary.TotalDuration)},
		}
	)

	output := "\n" + f.colors.Header("▸ Summary") + "\n\n" + f.renderer.RenderToString(headers, rows)

	if len(summary.ErrorKinds) > 0 {
		output += f.formatErrorKinds(summary.ErrorKinds)
	}

	return output
}

// formatErrorKinds breaks non-passing cases down by error kind, most frequent first.
func (f *SummaryFormatter) formatErrorKinds(kinds map[string]int) string {
	names := make([]string, 0, len(kinds))
	for kind := range kinds {
		names = append(names, kind)
	}

	sort.Slice(names, func(i, j int) bool {
		if kinds[names[i]] != kinds[names[j]] {
			return kinds[names[i]] > kinds[names[j]]
		}

		return names[i] < names[j]
	})

	rows := make([][]string, 0, len(names))
	for _, kind := range names {
		rows = append(rows, []string{kind, fmt.Sprintf("%d", kinds[kind])})
	}

	return "\n" + f.colors.Header("▸ Errors By Kind") + "\n\n" + f.renderer.RenderToString([]string{"Kind", "Cases"}, rows)
}
