package weenie

import (
	"context"
	"fmt"
	"time"
)

type statusCtxKeyT string

const (
	statusCtxKey statusCtxKeyT = "weenie"
)

// GetStatus can be used to retrieve information about the current retry loop
// from within the job being run, as opposed to setting a callback with
// [Each].
// It will return Status{} if not called from a job run by a [Runner].
func GetStatus(ctx context.Context) Status {
	stats := ctx.Value(statusCtxKey)
	if stats == nil {
		return Status{}
	}
	return stats.(Status)
}

// Status represents the state of a job in its retry loop.
type Status struct {
	JobID string
	// Attempt is the 1-indexed number of the current (or just failed) attempt.
	Attempt int
	// Retries is the number of retries scheduled so far.
	Retries int
	// Elapsed since the job was first run.
	Elapsed time.Duration
	// Err is the error returned by the last attempt, if any.
	Err error
	// NextWait is the wait before the next attempt. It is only set in the
	// Status passed to [Each], and is zero when the runner is giving up.
	NextWait time.Duration
	// GivingUp is set in the Status passed to [Each] for the final failure.
	GivingUp bool
}

// String implements fmt.Stringer
func (s Status) String() string {
	return fmt.Sprintf("job %s attempt %d", s.JobID, s.Attempt)
}

// Format implements fmt.Formatter it supports the %s and %q print verbs. Output
// is flag-dependent:
//
//	%s -  "job <id> attempt #"
//	%+s - "job <id> attempt # - next in <duration>"
//
// The %+s form prints "giving up" in place of the next wait on the final
// failure.
func (s Status) Format(state fmt.State, verb rune) {
	switch verb {
	case 's', 'q':
		str := s.String()
		if state.Flag('+') {
			if s.GivingUp {
				str = str + " - giving up"
			} else {
				str = fmt.Sprintf("%s - next in %v", str, shortWait(s.NextWait))
			}
		}
		if verb == 'q' {
			str = fmt.Sprintf("%q", str)
		}
		fmt.Fprint(state, str)
	}
}

func shortWait(d time.Duration) time.Duration {
	switch {
	case d < time.Second:
		return d.Truncate(time.Millisecond)
	default:
		return d.Round(time.Second)
	}
}
