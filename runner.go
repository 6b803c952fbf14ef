package weenie

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"andy.dev/weenie/logging"
)

// Job is a unit of work run by a [Runner]. It returns true once it has done
// its work. Returning false means it kept control but could not complete;
// returning an error means it lost control. Both are retried, and an error
// is also logged. A true result paired with a non-nil error counts as a
// failure.
type Job func(ctx context.Context) (bool, error)

// Runner runs jobs until they succeed or their retry budget is spent,
// waiting between attempts according to its [Policy].
//
// A single Runner may drive any number of concurrent jobs. State is kept per
// job id, so concurrent Run calls sharing an id share a budget. The state is
// dropped once the last of them returns.
type Runner struct {
	policy Policy
	opts   opts

	mu   sync.Mutex
	jobs map[string]*jobState
}

type jobState struct {
	runs     int
	start    time.Time
	retries  int
	lastWait time.Duration
}

// New creates a Runner for an arbitrary policy. It panics if the policy has
// no strategy.
func New(p Policy, options ...Option) *Runner {
	if p.Strategy == nil {
		panic("weenie: policy requires a strategy")
	}
	if p.Name == "" {
		p.Name = "custom"
	}
	o := opts{}
	for _, opt := range options {
		opt(&o)
	}
	applyDefaults(&o)
	return &Runner{
		policy: p,
		opts:   o,
		jobs:   make(map[string]*jobState),
	}
}

// NewExponential creates a Runner that doubles its wait after each failure
// and returns a *TimeoutError once cfg.MaxRetry has elapsed.
func NewExponential(cfg ExponentialConfig, options ...Option) *Runner {
	return New(cfg.Policy(), options...)
}

// NewPeriodic creates a Runner that retries at a fixed interval and returns
// a *TimeoutError once cfg.MaxRetry has elapsed.
func NewPeriodic(cfg PeriodicConfig, options ...Option) *Runner {
	return New(cfg.Policy(), options...)
}

// NewBackoff creates a Runner that doubles its wait up to cfg.MaxJobWait and
// then gives up softly, returning false with a nil error.
func NewBackoff(cfg BackoffConfig, options ...Option) *Runner {
	return New(cfg.Policy(), options...)
}

// Policy returns the runner's policy.
func (r *Runner) Policy() Policy {
	return r.policy
}

// Tracked returns the number of jobs currently in their retry loop.
func (r *Runner) Tracked() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Run runs job until it succeeds, returning true, or until the policy's
// budget is spent. In the latter case a rejecting policy returns a
// *TimeoutError and a give-up policy returns false with a nil error. Errors
// returned by job are logged and retried; they are never returned.
//
// If jobID is empty, a random id is generated. If ctx is cancelled while
// waiting for the next attempt, Run stops and returns context.Cause(ctx).
func (r *Runner) Run(ctx context.Context, job Job, log logging.Logger, jobID string) (bool, error) {
	if jobID == "" {
		jobID = r.opts.newID()
	}
	log = logging.OrNop(log).With(zap.String(logging.JobID, jobID))
	name := r.policy.Name
	metrics := r.opts.metrics

	log.Info("beginning run sequence")
	metrics.begin(name)
	r.track(jobID)

	for attempt := 1; ; attempt++ {
		ok, err := r.attempt(ctx, job, r.status(jobID, attempt))
		if ok && err == nil {
			r.forget(jobID)
			metrics.finish(name, outcomeSuccess)
			log.Info("job successful", zap.Int(logging.Attempt, attempt))
			return true, nil
		}
		if err != nil {
			fields := []zap.Field{zap.Error(err)}
			if pe, isPanic := err.(*PanicError); isPanic {
				fields = append(fields, zap.ByteString("stack", pe.Stack))
			}
			log.Error("error executing job", fields...)
		} else {
			log.Info("job failed", zap.Int(logging.Attempt, attempt))
		}

		if ctx.Err() != nil {
			r.forget(jobID)
			metrics.finish(name, outcomeCanceled)
			return false, context.Cause(ctx)
		}

		status, giveUp := r.schedule(jobID, attempt, err, log)
		if r.opts.eachFn != nil {
			r.opts.eachFn(status)
		}
		if giveUp {
			log.Warning("giving up on job",
				zap.Duration(logging.Elapsed, status.Elapsed),
				zap.Int(logging.Retries, status.Retries),
			)
			r.forget(jobID)
			if r.policy.OnTimeout == GiveUp {
				metrics.finish(name, outcomeGiveUp)
				return false, nil
			}
			metrics.finish(name, outcomeTimeout)
			return false, &TimeoutError{
				JobID:   jobID,
				Elapsed: status.Elapsed,
				Retries: status.Retries,
			}
		}

		metrics.wait(name, status.NextWait)
		log.Warning("job failed, retrying",
			zap.Duration(logging.Wait, status.NextWait),
			zap.Int(logging.Retries, status.Retries),
		)
		select {
		case <-ctx.Done():
			r.forget(jobID)
			metrics.finish(name, outcomeCanceled)
			return false, context.Cause(ctx)
		case <-r.opts.clock.After(status.NextWait):
		}
	}
}

func (r *Runner) attempt(ctx context.Context, job Job, s Status) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, &PanicError{Value: p, Stack: debug.Stack()}
		}
	}()
	r.opts.metrics.attempt(r.policy.Name)
	return job(context.WithValue(ctx, statusCtxKey, s))
}

// schedule records a failure of jobID and computes the next wait. It returns
// true if the budget is spent.
func (r *Runner) schedule(jobID string, attempt int, lastErr error, log logging.Logger) (Status, bool) {
	now := r.opts.clock.Now()
	p := r.policy

	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stateLocked(jobID, now)
	elapsed := now.Sub(st.start)
	status := Status{
		JobID:   jobID,
		Attempt: attempt,
		Retries: st.retries,
		Elapsed: elapsed,
		Err:     lastErr,
	}

	if (p.MaxRetry > 0 && elapsed >= p.MaxRetry) || (p.MaxWait > 0 && st.lastWait >= p.MaxWait) {
		status.GivingUp = true
		return status, true
	}

	wait := p.Strategy.Next(st.retries+1, st.lastWait)
	if wait < 0 {
		log.Warning("next wait was negative, resetting",
			zap.Duration(logging.Wait, wait),
			zap.Duration("reset", negativeWaitReset),
		)
		wait = negativeWaitReset
	}
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}
	if p.MaxRetry > 0 {
		if over := elapsed + wait - p.MaxRetry; over > 0 {
			wait = max(wait-over, 0)
		}
	}

	st.retries++
	st.lastWait = wait
	status.Retries = st.retries
	status.NextWait = wait
	return status, false
}

func (r *Runner) status(jobID string, attempt int) Status {
	now := r.opts.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.stateLocked(jobID, now)
	return Status{
		JobID:   jobID,
		Attempt: attempt,
		Retries: st.retries,
		Elapsed: now.Sub(st.start),
	}
}

func (r *Runner) track(jobID string) {
	now := r.opts.clock.Now()
	r.mu.Lock()
	r.stateLocked(jobID, now).runs++
	r.mu.Unlock()
}

func (r *Runner) stateLocked(jobID string, now time.Time) *jobState {
	st, ok := r.jobs[jobID]
	if !ok {
		st = &jobState{start: now}
		r.jobs[jobID] = st
	}
	return st
}

// forget ends one run of jobID, dropping its state after the last one.
func (r *Runner) forget(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.jobs[jobID]
	if !ok {
		return
	}
	if st.runs--; st.runs <= 0 {
		delete(r.jobs, jobID)
	}
}

func newJobID() string {
	return uuid.NewString()
}
