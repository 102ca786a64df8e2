package framework

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Report is a machine-readable summary of a test run.
type Report struct {
	RunID     string         `yaml:"run_id"`
	StartedAt time.Time      `yaml:"started_at"`
	Duration  time.Duration  `yaml:"duration"`
	Passed    int            `yaml:"passed"`
	Failed    int            `yaml:"failed"`
	Skipped   int            `yaml:"skipped"`
	Tests     []ReportedTest `yaml:"tests"`
}

type ReportedTest struct {
	ID     string   `yaml:"id"`
	Status string   `yaml:"status"`
	Reason string   `yaml:"reason,omitempty"`
	Errors []string `yaml:"errors,omitempty"`
}

const (
	StatusPassed  = "passed"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"
)

// NewReport builds a Report from the results of a run that started at the given time.
func NewReport(results Results, startedAt time.Time, duration time.Duration) Report {
	r := Report{
		RunID:     uuid.NewString(),
		StartedAt: startedAt.UTC(),
		Duration:  duration,
	}
	r.Passed, r.Failed, r.Skipped = results.Counts()
	for _, t := range results.Tests {
		rt := ReportedTest{ID: t.TestID.String(), Status: StatusPassed}
		switch {
		case t.Skipped:
			rt.Status = StatusSkipped
			rt.Reason = t.SkipReason
		case len(t.Errors) > 0:
			rt.Status = StatusFailed
		}
		for _, err := range t.Errors {
			rt.Errors = append(rt.Errors, err.Error())
		}
		r.Tests = append(r.Tests, rt)
	}
	return r
}

// Write encodes the report as YAML.
func (r Report) Write(out io.Writer) error {
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return enc.Close()
}
