package scenario

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Options configures a Runner.
type Options struct {
	// Logger receives one event per step. Nil disables logging.
	Logger *zerolog.Logger
	// OnStep is called after every step with its result.
	OnStep func(StepResult)
}

// Runner executes pipelines step by step. A failing step never prevents
// the following steps from running.
type Runner[S any] struct {
	logger zerolog.Logger
	onStep func(StepResult)
}

// NewRunner creates a Runner.
func NewRunner[S any](opts Options) *Runner[S] {
	r := &Runner[S]{
		logger: zerolog.Nop(),
		onStep: opts.OnStep,
	}
	if opts.Logger != nil {
		r.logger = *opts.Logger
	}
	return r
}

// Run executes steps in order against state and returns the aggregate result.
// Once ctx is done, the remaining steps are recorded as failed without
// being started.
func (r *Runner[S]) Run(ctx context.Context, name string, state *S, steps []Step[S]) *Result {
	start := time.Now()
	result := &Result{
		Name:   name,
		Passed: true,
		Steps:  make([]StepResult, 0, len(steps)),
	}

	for i := range steps {
		step := &steps[i]

		var sr StepResult
		if err := ctx.Err(); err != nil {
			sr = StepResult{Name: step.Name, Error: fmt.Sprintf("not run: %v", err)}
		} else {
			sr = r.runStep(ctx, step, state)
		}

		if sr.Passed {
			r.logger.Info().
				Int("step", i+1).
				Str("name", sr.Name).
				Dur("duration", sr.Duration).
				Msg("step passed")
		} else {
			result.Passed = false
			r.logger.Warn().
				Int("step", i+1).
				Str("name", sr.Name).
				Dur("duration", sr.Duration).
				Str("error", sr.Error).
				Msg("step failed")
		}
		if r.onStep != nil {
			r.onStep(sr)
		}
		result.Steps = append(result.Steps, sr)
	}

	result.Duration = time.Since(start)
	return result
}

// runStep executes a single step, turning a panic into a failed result.
func (r *Runner[S]) runStep(ctx context.Context, step *Step[S], state *S) (sr StepResult) {
	start := time.Now()
	sr.Name = step.Name

	defer func() {
		if p := recover(); p != nil {
			sr.Passed = false
			sr.Error = fmt.Sprintf("panic: %v", p)
		}
		sr.Duration = time.Since(start)
	}()

	if step.Run == nil {
		sr.Error = "step has no run function"
		return sr
	}
	if err := step.Run(ctx, state); err != nil {
		sr.Error = err.Error()
		return sr
	}

	sr.Passed = true
	return sr
}
