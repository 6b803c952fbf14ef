// Package cron runs named, recurring jobs on cron schedules.
//
// Jobs may be registered at any time. When the scheduler is tied to a service
// lifecycle, jobs registered before the service is ready are held until it is,
// and every job is stopped on shutdown.
//
// Handlers return true on success. Returning false or an error marks the run
// as failed, as does a panic; the failure is logged and the job keeps its
// schedule. A tick that arrives while the previous run of the same job is
// still going is skipped. Wrap handlers in a retry runner if a failed run
// should be retried.
package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"andy.dev/weenie/logging"
	"andy.dev/weenie/svc"
)

// ErrUnknownJob is returned for operations on a name that was never registered.
var ErrUnknownJob = errors.New("cron: unknown job")

// parser accepts 5 or 6 fields (leading seconds optional), descriptors like
// "@hourly" and a CRON_TZ= prefix.
var parser = cronlib.NewParser(
	cronlib.SecondOptional | cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor,
)

// Handler is the work done on each run of a job.
type Handler func(ctx context.Context, log logging.Logger) (bool, error)

// Job describes a cron job.
type Job struct {
	// Name identifies the job in logs and for Kill.
	Name string
	// Spec is the cron schedule, e.g. "0 0 * * *" or "*/30 * * * * *".
	Spec string
	// TZ is the IANA time zone the schedule is evaluated in. Defaults to the
	// local time zone.
	TZ string
	// Handler runs on every tick.
	Handler Handler
	// Overwrite replaces an existing job of the same name. Otherwise a
	// numeric suffix is added to the new job's name.
	Overwrite bool
}

// Registrar is the part of a scheduler that applications use. It is
// implemented by *Cron and *Mock.
type Registrar interface {
	Register(jobs ...Job) error
	Kill(name string) bool
	KillAll()
}

// Lifecycle is the service lifecycle a Cron can be tied to. *svc.Manager
// satisfies it.
type Lifecycle interface {
	Ready() <-chan struct{}
	OnShutdown(task svc.Task)
}

// Cron schedules jobs using robfig/cron.
type Cron struct {
	log    logging.Logger
	sched  *cronlib.Cron
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	ready   bool
	crontab map[string]*entry
}

type entry struct {
	job       Job
	schedule  cronlib.Schedule
	id        cronlib.EntryID
	scheduled bool
	killed    bool
}

// New creates a Cron. If lc is not nil, jobs are only started once lc is
// ready, and all jobs are stopped when lc shuts down. Otherwise jobs start as
// soon as they are registered.
func New(log logging.Logger, lc Lifecycle) *Cron {
	log = logging.OrNop(log)
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cron{
		log: log,
		sched: cronlib.New(
			cronlib.WithParser(parser),
			cronlib.WithLogger(cl),
			cronlib.WithChain(cronlib.Recover(cl), cronlib.SkipIfStillRunning(cl)),
		),
		ctx:     ctx,
		cancel:  cancel,
		crontab: make(map[string]*entry),
	}
	c.sched.Start()

	if lc == nil {
		c.ready = true
		return c
	}
	go func() {
		select {
		case <-lc.Ready():
			c.start()
		case <-ctx.Done():
		}
	}()
	lc.OnShutdown(c.Stop)
	return c
}

// Register adds jobs to the crontab, starting them if the scheduler is
// ready. Invalid jobs are reported and skipped; valid ones are still added.
func (c *Cron) Register(jobs ...Job) error {
	var errs error
	for _, job := range jobs {
		sched, err := parse(job)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		c.add(job, sched)
	}
	return errs
}

func (c *Cron) add(job Job, sched cronlib.Schedule) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.crontab[job.Name]; ok {
		if job.Overwrite {
			c.unscheduleLocked(existing)
		} else {
			c.log.Warning("cronjob already registered, adding suffix to avoid collision; "+
				"use a different name or set Overwrite to replace it",
				zap.String(logging.Name, job.Name))
			suffix := 1
			for c.crontab[fmt.Sprintf("%s-%d", job.Name, suffix)] != nil {
				suffix++
			}
			job.Name = fmt.Sprintf("%s-%d", job.Name, suffix)
		}
	}

	e := &entry{job: job, schedule: sched}
	c.crontab[job.Name] = e
	if c.ready {
		c.scheduleLocked(e)
	}
}

func (c *Cron) start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ready = true
	for _, e := range c.crontab {
		if !e.scheduled && !e.killed {
			c.scheduleLocked(e)
		}
	}
}

func (c *Cron) scheduleLocked(e *entry) {
	c.log.Info("registering cronjob", zap.String(logging.Name, e.job.Name), zap.String("spec", e.job.Spec))
	e.id = c.sched.Schedule(e.schedule, cronlib.FuncJob(c.wrap(e.job)))
	e.scheduled = true
}

func (c *Cron) unscheduleLocked(e *entry) {
	if e.scheduled {
		c.sched.Remove(e.id)
		e.scheduled = false
	}
	e.killed = true
}

// Kill stops the named job. It returns false if no such job was registered.
func (c *Cron) Kill(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.crontab[name]
	if !ok {
		return false
	}
	c.unscheduleLocked(e)
	return true
}

// KillAll stops every job.
func (c *Cron) KillAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range c.crontab {
		c.unscheduleLocked(e)
	}
}

// Stop kills every job, stops the scheduler and waits for running jobs to
// finish or ctx to be done. It has the signature of a shutdown task.
func (c *Cron) Stop(ctx context.Context) error {
	c.KillAll()
	c.cancel()
	select {
	case <-c.sched.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs the named job immediately, outside of its schedule, and
// returns its result.
func (c *Cron) Trigger(ctx context.Context, name string) (bool, error) {
	c.mu.Lock()
	e, ok := c.crontab[name]
	c.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return c.run(ctx, e.job)
}

// Next returns the next scheduled run of the named job, or false if the job
// is unknown or not currently scheduled.
func (c *Cron) Next(name string) (time.Time, bool) {
	c.mu.Lock()
	e, ok := c.crontab[name]
	if !ok || !e.scheduled {
		c.mu.Unlock()
		return time.Time{}, false
	}
	id, sched := e.id, e.schedule
	c.mu.Unlock()

	next := c.sched.Entry(id).Next
	if next.IsZero() {
		// scheduled but not yet picked up by the scheduler loop
		next = sched.Next(time.Now())
	}
	return next, true
}

// Names returns the names of all registered jobs.
func (c *Cron) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.crontab))
	for name := range c.crontab {
		names = append(names, name)
	}
	return names
}

func (c *Cron) wrap(job Job) func() {
	return func() {
		_, _ = c.run(c.ctx, job)
	}
}

func (c *Cron) run(ctx context.Context, job Job) (bool, error) {
	log := c.log.With(zap.String(logging.Name, job.Name))
	log.Debug("running")
	ok, err := handle(ctx, job.Handler, log)
	switch {
	case err != nil:
		log.Error("cronjob failed", zap.Error(err))
	case !ok:
		log.Error("cronjob failed")
	default:
		log.Notice("completed successfully")
	}
	return ok && err == nil, err
}

func handle(ctx context.Context, h Handler, log logging.Logger) (ok bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ok, err = false, fmt.Errorf("cronjob panicked: %v", p)
		}
	}()
	return h(ctx, log)
}

func parse(job Job) (cronlib.Schedule, error) {
	if job.Name == "" {
		return nil, errors.New("cron: job name is required")
	}
	if job.Handler == nil {
		return nil, fmt.Errorf("cron: job %q has no handler", job.Name)
	}
	spec := job.Spec
	if job.TZ != "" {
		spec = "CRON_TZ=" + job.TZ + " " + spec
	}
	sched, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("cron: job %q: %w", job.Name, err)
	}
	return sched, nil
}

// cronLogger adapts a logging.Logger to the robfig/cron logger.
type cronLogger struct {
	log logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, fields(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(fields(keysAndValues), zap.Error(err))...)
}

func fields(keysAndValues []any) []zap.Field {
	fs := make([]zap.Field, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fs = append(fs, zap.Any(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1]))
	}
	return fs
}
