package metrics

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func TestCollector_Summary(t *testing.T) {
	c := NewCollector(newTestLogger())
	require.NoError(t, c.Start(context.Background()))

	c.RecordCase(&CaseMetric{Index: 0, CaseID: "a", Outcome: OutcomePassed, ReplyLatency: 1 * time.Second})
	c.RecordCase(&CaseMetric{Index: 1, CaseID: "b", Outcome: OutcomeFailed, ErrorKind: "AssertionFailure", ReplyLatency: 3 * time.Second})
	c.RecordCase(&CaseMetric{Index: 2, CaseID: "c", Outcome: OutcomeErrored, ErrorKind: "ResponseTimeout"})

	summary := c.GetSummary()
	assert.Equal(t, 3, summary.TotalCases)
	assert.Equal(t, 1, summary.PassedCases)
	assert.Equal(t, 1, summary.FailedCases)
	assert.Equal(t, 1, summary.ErroredCases)
	assert.Equal(t, map[string]int{"AssertionFailure": 1, "ResponseTimeout": 1}, summary.ErrorKinds)
	assert.Equal(t, 2*time.Second, summary.AvgReplyLatency)
	assert.Equal(t, 3*time.Second, summary.MaxReplyLatency)
	assert.InDelta(t, 33.3, summary.PassRate(), 0.1)

	require.NoError(t, c.Stop())
}

func TestCollector_CaseMetricsInFixtureOrder(t *testing.T) {
	c := NewCollector(newTestLogger())
	require.NoError(t, c.Start(context.Background()))

	var wg sync.WaitGroup

	for i := 9; i >= 0; i-- {
		wg.Add(1)

		go func(index int) {
			defer wg.Done()
			c.RecordCase(&CaseMetric{Index: index, Outcome: OutcomePassed})
		}(i)
	}

	wg.Wait()

	recorded := c.GetCaseMetrics()
	require.Len(t, recorded, 10)

	for i, metric := range recorded {
		assert.Equal(t, i, metric.Index)
	}
}

func TestSummaryMetric_PassRateEmpty(t *testing.T) {
	assert.Zero(t, SummaryMetric{}.PassRate())
}
