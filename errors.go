package weenie

import (
	"errors"
	"fmt"
	"time"
)

// ErrTimeout matches any [*TimeoutError] with [errors.Is].
var ErrTimeout = errors.New("weenie: retry timeout exceeded")

// TimedOut returns true if the error is the final result of a job that
// exhausted its retry budget.
func TimedOut(e error) bool {
	var te *TimeoutError
	return errors.As(e, &te)
}

// TimeoutError is returned by a rejecting [Runner] when a job has used up its
// retry budget without succeeding. Callers may requeue the job elsewhere.
type TimeoutError struct {
	JobID   string
	Elapsed time.Duration
	Retries int
}

// Error implements the error interface.
func (te *TimeoutError) Error() string {
	return fmt.Sprintf("job %s timed out after %v (%d retries)",
		te.JobID, te.Elapsed.Round(time.Millisecond), te.Retries)
}

// Is allows errors.Is(err, ErrTimeout).
func (te *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// PanicError wraps a value recovered from a panicking job. It is handled the
// same as any other job error and never escapes [Runner.Run].
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (pe *PanicError) Error() string {
	return fmt.Sprintf("job panicked: %v", pe.Value)
}

// Unwrap returns the panic value if it was an error.
func (pe *PanicError) Unwrap() error {
	err, _ := pe.Value.(error)
	return err
}
