// Package report writes machine-readable run reports: one JSON line per case
// result and a summary document per run.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethpandaops/chatbot-e2e/internal/testing"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	// ResultsFile receives one JSON document per case result.
	ResultsFile = "results.jsonl"
	// SummaryFile receives the run summary when the writer is closed.
	SummaryFile = "summary.json"
)

var errClosed = errors.New("report writer closed")

// Record is one line of the results log.
type Record struct {
	RunID string `json:"run_id"`
	*testing.CaseResult
}

// Failure identifies a case that did not pass.
type Failure struct {
	CaseID    string            `json:"case_id"`
	Outcome   testing.Outcome   `json:"outcome"`
	ErrorKind testing.ErrorKind `json:"error_kind"`
	Error     string            `json:"error,omitempty"`
}

// Summary is the content of the summary file.
type Summary struct {
	RunID      string         `json:"run_id"`
	BaseURL    string         `json:"base_url"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Duration   time.Duration  `json:"duration"`
	Total      int            `json:"total"`
	Passed     int            `json:"passed"`
	Failed     int            `json:"failed"`
	Errored    int            `json:"errored"`
	ErrorKinds map[string]int `json:"error_kinds"`
	Failures   []Failure      `json:"failures"`
}

// Writer is a testing.ResultSink persisting results under one directory.
type Writer struct {
	log logrus.FieldLogger
	dir string

	mu      sync.Mutex
	file    *os.File
	enc     *json.Encoder
	summary Summary
	closed  bool
}

var _ testing.ResultSink = (*Writer)(nil)

// NewWriter creates dir if needed and starts a fresh results log in it.
func NewWriter(log logrus.FieldLogger, dir, baseURL string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating report directory: %w", err)
	}

	path := filepath.Join(dir, ResultsFile)

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	w := &Writer{
		log:  log.WithField("component", "report_writer"),
		dir:  dir,
		file: file,
		enc:  json.NewEncoder(file),
		summary: Summary{
			RunID:      uuid.NewString(),
			BaseURL:    baseURL,
			StartedAt:  time.Now().UTC(),
			ErrorKinds: make(map[string]int),
			Failures:   make([]Failure, 0),
		},
	}

	w.log.WithFields(logrus.Fields{
		"run_id": w.summary.RunID,
		"path":   path,
	}).Debug("report writer created")

	return w, nil
}

// RunID identifies this run in every record.
func (w *Writer) RunID() string {
	return w.summary.RunID
}

// ResultsPath is the path of the results log.
func (w *Writer) ResultsPath() string {
	return filepath.Join(w.dir, ResultsFile)
}

// SummaryPath is the path of the summary file.
func (w *Writer) SummaryPath() string {
	return filepath.Join(w.dir, SummaryFile)
}

// Record appends result to the results log.
func (w *Writer) Record(result *testing.CaseResult) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errClosed
	}

	if err := w.enc.Encode(Record{RunID: w.summary.RunID, CaseResult: result}); err != nil {
		return fmt.Errorf("writing result of %s: %w", result.CaseID, err)
	}

	w.count(result)

	return nil
}

// count must be called with mu held.
func (w *Writer) count(result *testing.CaseResult) {
	s := &w.summary
	s.Total++

	switch result.Outcome {
	case testing.OutcomePassed:
		s.Passed++

		return
	case testing.OutcomeFailed:
		s.Failed++
	default:
		s.Errored++
	}

	s.ErrorKinds[string(result.ErrorKind)]++
	s.Failures = append(s.Failures, Failure{
		CaseID:    result.CaseID,
		Outcome:   result.Outcome,
		ErrorKind: result.ErrorKind,
		Error:     result.Error,
	})
}

// Summary returns a snapshot of the counts so far.
func (w *Writer) Summary() Summary {
	w.mu.Lock()
	defer w.mu.Unlock()

	s := w.summary

	s.ErrorKinds = make(map[string]int, len(w.summary.ErrorKinds))
	for kind, n := range w.summary.ErrorKinds {
		s.ErrorKinds[kind] = n
	}

	s.Failures = append([]Failure(nil), w.summary.Failures...)

	return s
}

// Close writes the summary file and closes the results log. Calling Close
// again is a no-op.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}

	w.closed = true

	w.summary.FinishedAt = time.Now().UTC()
	w.summary.Duration = w.summary.FinishedAt.Sub(w.summary.StartedAt)

	var errs []error

	data, err := json.MarshalIndent(w.summary, "", "  ")
	if err != nil {
		errs = append(errs, fmt.Errorf("encoding summary: %w", err))
	} else if err := os.WriteFile(w.SummaryPath(), append(data, '\n'), 0o600); err != nil {
		errs = append(errs, fmt.Errorf("writing summary: %w", err))
	}

	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing results log: %w", err))
	}

	w.log.WithFields(logrus.Fields{
		"run_id":  w.summary.RunID,
		"total":   w.summary.Total,
		"passed":  w.summary.Passed,
		"summary": w.SummaryPath(),
	}).Info("report written")

	return errors.Join(errs...)
}
