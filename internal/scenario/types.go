// Package scenario runs ordered step pipelines that share a single state
// value.
package scenario

import (
	"context"
	"time"
)

// Step is one stage of a pipeline. Steps run in slice order and receive the
// same state pointer, so a later step can read what an earlier one captured.
type Step[S any] struct {
	Name string
	Run  func(ctx context.Context, state *S) error
}

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Passed   bool
	Duration time.Duration
	Error    string // empty when passed
}

// Result records the outcome of an entire pipeline run.
type Result struct {
	Name     string
	Passed   bool
	Steps    []StepResult
	Duration time.Duration
}

// Counts returns the number of passed and failed steps.
func (r *Result) Counts() (passed, failed int) {
	for _, sr := range r.Steps {
		if sr.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// Failed returns the results of the steps that did not pass.
func (r *Result) Failed() []StepResult {
	var out []StepResult
	for _, sr := range r.Steps {
		if !sr.Passed {
			out = append(out, sr)
		}
	}
	return out
}
