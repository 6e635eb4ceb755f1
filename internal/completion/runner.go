package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// CompensationError is a compensation that failed while unwinding a run.
type CompensationError struct {
	Step string
	Err  error
}

// StepFailure reports the step that failed a run. Cause is the original
// error; compensation failures are listed separately and never replace it.
type StepFailure struct {
	Step               string
	Index              int
	Cause              error
	CompensationErrors []CompensationError
}

func (e *StepFailure) Error() string {
	msg := fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
	if len(e.CompensationErrors) == 0 {
		return msg
	}
	parts := make([]string, len(e.CompensationErrors))
	for i, ce := range e.CompensationErrors {
		parts[i] = ce.Step + ": " + ce.Err.Error()
	}
	return msg + " (compensation failed: " + strings.Join(parts, "; ") + ")"
}

func (e *StepFailure) Unwrap() error { return e.Cause }

// RunRecorder receives run outcomes. The metrics package implements it.
type RunRecorder interface {
	ObserveRun(kind, outcome string, d time.Duration)
	CompensationFailed(step string)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRun(string, string, time.Duration) {}
func (noopRecorder) CompensationFailed(string)                {}

// Runner applies steps in order. When a step fails, every step applied
// before it is compensated in reverse order.
type Runner struct {
	logger   *slog.Logger
	recorder RunRecorder
}

func NewRunner(logger *slog.Logger, recorder RunRecorder) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Runner{logger: logger, recorder: recorder}
}

// Run executes steps under kind ("complete" or "cancel"). It returns nil or
// a *StepFailure.
func (r *Runner) Run(ctx context.Context, kind string, steps []Step) error {
	start := time.Now()
	for i, s := range steps {
		err := s.Apply(ctx)
		if err == nil {
			r.logger.DebugContext(ctx, "step_applied", "kind", kind, "step", s.Name(), "index", i)
			continue
		}

		failure := &StepFailure{Step: s.Name(), Index: i, Cause: err}
		r.logger.WarnContext(ctx, "step_failed", "kind", kind, "step", s.Name(), "index", i, "err", err)
		for j := i - 1; j >= 0; j-- {
			prev := steps[j]
			if cerr := prev.Compensate(ctx); cerr != nil {
				failure.CompensationErrors = append(failure.CompensationErrors, CompensationError{Step: prev.Name(), Err: cerr})
				r.recorder.CompensationFailed(prev.Name())
				r.logger.ErrorContext(ctx, "compensation_failed", "kind", kind, "step", prev.Name(), "err", cerr)
				continue
			}
			r.logger.InfoContext(ctx, "step_compensated", "kind", kind, "step", prev.Name())
		}
		outcome := "compensated"
		if len(failure.CompensationErrors) > 0 {
			outcome = "compensation_failed"
		}
		r.recorder.ObserveRun(kind, outcome, time.Since(start))
		return failure
	}
	r.recorder.ObserveRun(kind, "applied", time.Since(start))
	return nil
}
