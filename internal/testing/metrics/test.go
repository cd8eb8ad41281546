package metrics

import "time"

// FailureDetail captures the comparison behind a failed or errored case.
type FailureDetail struct {
	Expected   string
	Actual     string
	Comparison string
	Evidence   string
}

// CaseMetric captures metrics about a single test case execution.
type CaseMetric struct {
	Index        int // position in the fixture order
	CaseID       string
	Outcome      string
	ErrorKind    string
	Validator    string
	Score        float64
	Threshold    float64
	Scored       bool
	ReplyLatency time.Duration
	Duration     time.Duration
	ErrorMessage string // empty if passed
	Failure      *FailureDetail
	Timestamp    time.Time
}
