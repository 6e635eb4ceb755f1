package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedStep struct {
	name       string
	applyErr   error
	compErr    error
	log        *[]string
	compensate int
}

func (*scriptedStep) step() {}

func (s *scriptedStep) Name() string { return s.name }

func (s *scriptedStep) Apply(context.Context) error {
	*s.log = append(*s.log, "apply:"+s.name)
	return s.applyErr
}

func (s *scriptedStep) Compensate(context.Context) error {
	s.compensate++
	*s.log = append(*s.log, "compensate:"+s.name)
	return s.compErr
}

type recordingRecorder struct {
	runs     []string
	failures []string
}

func (r *recordingRecorder) ObserveRun(kind, outcome string, _ time.Duration) {
	r.runs = append(r.runs, kind+"/"+outcome)
}

func (r *recordingRecorder) CompensationFailed(step string) {
	r.failures = append(r.failures, step)
}

func TestRunner_AppliesInOrder(t *testing.T) {
	var log []string
	rec := &recordingRecorder{}
	steps := []Step{
		&scriptedStep{name: "a", log: &log},
		&scriptedStep{name: "b", log: &log},
	}
	require.NoError(t, NewRunner(nil, rec).Run(context.Background(), "complete", steps))
	assert.Equal(t, []string{"apply:a", "apply:b"}, log)
	assert.Equal(t, []string{"complete/applied"}, rec.runs)
}

func TestRunner_CompensatesAppliedStepsInReverse(t *testing.T) {
	var log []string
	cause := errors.New("boom")
	failing := &scriptedStep{name: "c", applyErr: cause, log: &log}
	steps := []Step{
		&scriptedStep{name: "a", log: &log},
		&scriptedStep{name: "b", log: &log},
		failing,
		&scriptedStep{name: "d", log: &log},
	}

	err := NewRunner(nil, nil).Run(context.Background(), "complete", steps)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var failure *StepFailure
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, "c", failure.Step)
	assert.Equal(t, 2, failure.Index)
	assert.Equal(t, []string{"apply:a", "apply:b", "apply:c", "compensate:b", "compensate:a"}, log)
	assert.Zero(t, failing.compensate, "the failed step is not compensated")
}

func TestRunner_CompensationErrorDoesNotMaskCause(t *testing.T) {
	var log []string
	cause := errors.New("materials registry rejected batch")
	rec := &recordingRecorder{}
	steps := []Step{
		&scriptedStep{name: "a", log: &log},
		&scriptedStep{name: "b", compErr: errors.New("cannot restore"), log: &log},
		&scriptedStep{name: "c", applyErr: cause, log: &log},
	}

	err := NewRunner(nil, rec).Run(context.Background(), "cancel", steps)
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)

	var failure *StepFailure
	require.ErrorAs(t, err, &failure)
	require.Len(t, failure.CompensationErrors, 1)
	assert.Equal(t, "b", failure.CompensationErrors[0].Step)
	assert.Contains(t, err.Error(), "materials registry rejected batch")
	assert.Contains(t, err.Error(), "cannot restore")
	assert.Equal(t, []string{"apply:a", "apply:b", "apply:c", "compensate:b", "compensate:a"}, log, "compensation continues past a failure")
	assert.Equal(t, []string{"b"}, rec.failures)
	assert.Equal(t, []string{"cancel/compensation_failed"}, rec.runs)
}

func TestRunner_FirstStepFailureCompensatesNothing(t *testing.T) {
	var log []string
	steps := []Step{&scriptedStep{name: "a", applyErr: errors.New("x"), log: &log}}
	err := NewRunner(nil, nil).Run(context.Background(), "complete", steps)
	require.Error(t, err)
	assert.Equal(t, []string{"apply:a"}, log)
}
