package metrics

import "time"

// SummaryMetric provides aggregate statistics across a run.
type SummaryMetric struct {
	TotalDuration   time.Duration
	TotalCases      int
	PassedCases     int
	FailedCases     int
	ErroredCases    int
	ErrorKinds      map[string]int
	AvgReplyLatency time.Duration
	MaxReplyLatency time.Duration
}

// PassRate is the share of passed cases, in percent.
func (s SummaryMetric) PassRate() float64 {
	if s.TotalCases == 0 {
		return 0
	}

	return float64(s.PassedCases) / float64(s.TotalCases) * 100.0
}
