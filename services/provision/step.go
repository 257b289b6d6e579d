package provision

import (
	"context"
	"fmt"
	"time"
)

// Status is the lifecycle state of one provisioning step.
type Status string

const (
	StatusPending         Status = "pending"
	StatusConfirmed       Status = "confirmed"
	StatusRunning         Status = "running"
	StatusSucceeded       Status = "succeeded"
	StatusPartiallyFailed Status = "partially-failed"
	StatusFailed          Status = "failed"
	StatusSkipped         Status = "skipped"
)

// Step is one idempotent unit of the pipeline. Run reports recoverable
// per-item problems through the Recorder and returns an error only when
// the step as a whole failed; either way the pipeline continues.
type Step struct {
	Name        string
	Description string
	Confirmable bool
	Run         func(ctx context.Context, rec *Recorder) error
}

// Recorder accumulates warnings raised inside a running step. Any
// warning downgrades a successful step to partially-failed in the run
// report.
type Recorder struct {
	env      *Env
	warnings []string
}

// Warnf records a recoverable problem and logs it.
func (r *Recorder) Warnf(format string, args ...any) {
	r.env.Log.Warnf(format, args...)
	r.warnings = append(r.warnings, fmt.Sprintf(format, args...))
}

// Infof logs progress without affecting the step outcome.
func (r *Recorder) Infof(format string, args ...any) {
	r.env.Log.Infof(format, args...)
}

// Result is the recorded outcome of one step.
type Result struct {
	Name     string        `yaml:"name"`
	Status   Status        `yaml:"status"`
	Error    string        `yaml:"error,omitempty"`
	Warnings []string      `yaml:"warnings,omitempty"`
	Duration time.Duration `yaml:"duration"`
}
