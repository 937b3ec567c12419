package audit

import (
	"errors"
	"fmt"
)

// ErrCritical matches step failures that aborted the run, via errors.Is.
var ErrCritical = errors.New("critical step failed")

// StepError records which step failed and whether the failure is fatal for
// the run. Non-critical step failures degrade the run to partial data
// instead of aborting it.
type StepError struct {
	Step     string
	Critical bool
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

func (e *StepError) Is(target error) bool {
	return target == ErrCritical && e.Critical
}
