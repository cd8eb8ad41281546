package output

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/testing/metrics"
	"github.com/ethpandaops/chatbot-e2e/internal/testing/table"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFormatter(t *testing.T, buf *bytes.Buffer, verbose bool) (Formatter, metrics.Collector) {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	collector := metrics.NewCollector(log)
	require.NoError(t, collector.Start(context.Background()))

	renderer := table.NewRenderer(log)

	return NewFormatter(
		buf,
		verbose,
		collector,
		table.NewResultsFormatter(log, renderer),
		table.NewSummaryFormatter(log, renderer),
	), collector
}

func TestFormatter_PrintCase(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	f, _ := newFormatter(t, &buf, true)

	f.PrintCase(&metrics.CaseMetric{
		CaseID:       "slow_bot",
		Outcome:      metrics.OutcomeErrored,
		ErrorKind:    "ResponseTimeout",
		ErrorMessage: "no bot reply within 5s",
		Duration:     5200 * time.Millisecond,
	})

	out := buf.String()
	assert.Contains(t, out, "! ERROR slow_bot (5.2s) ResponseTimeout")
	assert.Contains(t, out, "no bot reply within 5s")
}

func TestFormatter_PrintError(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	f, _ := newFormatter(t, &buf, false)

	f.PrintError("browser failed", errors.New("chrome not found"))
	assert.Equal(t, "browser failed: chrome not found\n", buf.String())
}

func TestFormatter_PrintTables(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	var buf bytes.Buffer
	f, collector := newFormatter(t, &buf, false)

	collector.RecordCase(&metrics.CaseMetric{Index: 1, CaseID: "second", Outcome: metrics.OutcomePassed})
	collector.RecordCase(&metrics.CaseMetric{Index: 0, CaseID: "first", Outcome: metrics.OutcomePassed})

	f.PrintTestResults()
	f.PrintSummary()

	out := buf.String()
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("first")), bytes.Index(buf.Bytes(), []byte("second")))
	assert.Contains(t, out, "Summary")
	assert.Contains(t, out, "2 (100.0%)")
}
