// internal/bond/journal.go
package bond

import (
	"context"
	"errors"
)

// journal records the inverse of every applied step of one operation. On
// failure the steps are undone last-in first-out.
type journal struct {
	steps []undoStep
}

type undoStep struct {
	name string
	fn   func(ctx context.Context) error
}

func (j *journal) push(name string, fn func(ctx context.Context) error) {
	j.steps = append(j.steps, undoStep{name: name, fn: fn})
}

// rollback runs every undo step even if some fail, and joins their errors.
func (j *journal) rollback(ctx context.Context) error {
	var errs []error
	for i := len(j.steps) - 1; i >= 0; i-- {
		if err := j.steps[i].fn(ctx); err != nil {
			errs = append(errs, &RollbackError{Step: j.steps[i].name, Err: err})
		}
	}
	j.steps = nil
	return errors.Join(errs...)
}

// RollbackError reports an undo step that could not be applied.
type RollbackError struct {
	Step string
	Err  error
}

func (e *RollbackError) Error() string {
	return "rollback " + e.Step + ": " + e.Err.Error()
}

func (e *RollbackError) Unwrap() error { return e.Err }
