// Package metrics provides test execution metrics collection and aggregation.
package metrics

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Outcome values recorded on CaseMetric.
const (
	OutcomePassed  = "passed"
	OutcomeFailed  = "failed"
	OutcomeErrored = "errored"
)

// Collector interface for metrics collection
type Collector interface {
	Start(ctx context.Context) error
	Stop() error
	RecordCase(metric *CaseMetric)
	GetCaseMetrics() []CaseMetric
	GetSummary() SummaryMetric
}

// collector implements Collector interface
type collector struct {
	log         logrus.FieldLogger
	mu          sync.RWMutex
	caseMetrics []CaseMetric
	startTime   time.Time
}

// NewCollector creates a new metrics collector
func NewCollector(log logrus.FieldLogger) Collector {
	return &collector{
		log:         log.WithField("component", "metrics_collector"),
		caseMetrics: make([]CaseMetric, 0, 50),
	}
}

func (c *collector) Start(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startTime = time.Now()

	c.log.Debug("metrics collector started")

	return nil
}

func (c *collector) Stop() error {
	c.log.Debug("metrics collector stopped")

	return nil
}

func (c *collector) RecordCase(metric *CaseMetric) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.caseMetrics = append(c.caseMetrics, *metric)
}

// GetCaseMetrics returns a copy of the recorded metrics in fixture order.
func (c *collector) GetCaseMetrics() []CaseMetric {
	c.mu.RLock()
	result := make([]CaseMetric, len(c.caseMetrics))
	copy(result, c.caseMetrics)
	c.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})

	return result
}

func (c *collector) GetSummary() SummaryMetric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	summary := SummaryMetric{
		TotalDuration: time.Since(c.startTime),
		TotalCases:    len(c.caseMetrics),
		ErrorKinds:    make(map[string]int),
	}

	var (
		latencyTotal time.Duration
		latencyCount int
	)

	for _, cm := range c.caseMetrics {
		switch cm.Outcome {
		case OutcomePassed:
			summary.PassedCases++
		case OutcomeFailed:
			summary.FailedCases++
		default:
			summary.ErroredCases++
		}

		if cm.ErrorKind != "" {
			summary.ErrorKinds[cm.ErrorKind]++
		}

		if cm.ReplyLatency > 0 {
			latencyTotal += cm.ReplyLatency
			latencyCount++

			if cm.ReplyLatency > summary.MaxReplyLatency {
				summary.MaxReplyLatency = cm.ReplyLatency
			}
		}
	}

	if latencyCount > 0 {
		summary.AvgReplyLatency = latencyTotal / time.Duration(latencyCount)
	}

	return summary
}

// Compile-time interface compliance check
var _ Collector = (*collector)(nil)
