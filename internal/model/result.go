package model

import (
	"time"
)

// Status values for scenarios and steps.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// StepResult captures the outcome of one executed step. Immutable once
// produced; consumed by the report sink.
type StepResult struct {
	Index      int           `json:"index"`
	Text       string        `json:"text"`
	Action     ActionKind    `json:"action,omitempty"`
	Status     string        `json:"status"`
	Message    string        `json:"message,omitempty"`
	ResolvedBy ResolvedBy    `json:"resolved_by,omitempty"`
	Attempts   int           `json:"attempts,omitempty"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
	Screenshot string        `json:"screenshot,omitempty"`
	Error      error         `json:"-"`
}

// ScenarioResult aggregates the step results of one scenario run.
type ScenarioResult struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Tags        []string      `json:"tags,omitempty"`
	Status      string        `json:"status"`
	Steps       []StepResult  `json:"steps"`
	FailedStep  int           `json:"failed_step,omitempty"`
	ErrorKind   string        `json:"error_kind,omitempty"`
	Message     string        `json:"message,omitempty"`
	Screenshot  string        `json:"screenshot,omitempty"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Worker      int           `json:"worker"`
	Duration    time.Duration `json:"duration"`
	Timestamp   time.Time     `json:"timestamp"`
}

// RunSummary is the aggregate view of a whole run.
type RunSummary struct {
	Total    int           `json:"total"`
	Passed   int           `json:"passed"`
	Failed   int           `json:"failed"`
	Skipped  int           `json:"skipped"`
	Duration time.Duration `json:"duration"`
}

// Summarize counts scenario outcomes in declaration order.
func Summarize(results []ScenarioResult) RunSummary {
	summary := RunSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			summary.Passed++
		case StatusFailed:
			summary.Failed++
		case StatusSkipped:
			summary.Skipped++
		}
		summary.Duration += r.Duration
	}
	return summary
}

// Success reports whether the run as a whole passed.
func (s RunSummary) Success() bool {
	return s.Failed == 0
}
