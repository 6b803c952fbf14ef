package svc

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"andy.dev/weenie/logging"
)

const (
	DefaultInitializationTimeout = 5 * time.Second

	// ReasonInitTimeout is the shutdown reason used when readiness is not
	// declared before the initialization deadline.
	ReasonInitTimeout = "INIT_TIMEOUT"
)

// Config configures a [Manager].
type Config struct {
	// InitializationTimeout is how long to wait for DeclareReady before
	// considering startup failed and shutting down.
	// Default: 5s
	InitializationTimeout time.Duration `yaml:"initialization_timeout"`
	// HandleShutdown subscribes to SIGINT and SIGTERM and shuts down on
	// either. Default: false
	HandleShutdown bool `yaml:"handle_shutdown"`
	// ShutdownTimeout bounds how long shutdown waits for its tasks. Zero
	// waits for as long as they take.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Task is a cleanup action run during shutdown, such as closing a database
// pool or draining an HTTP server. Its context is cancelled when the
// shutdown timeout, if any, expires.
type Task func(ctx context.Context) error

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger. Defaults to a zap production logger, since a
// failed startup must not go unreported.
func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithProcess replaces the OS process, mostly for tests.
func WithProcess(p Process) Option {
	return func(m *Manager) { m.proc = p }
}

// Manager tracks the readiness of a service and coordinates its shutdown.
// Create one with [New].
type Manager struct {
	cfg  Config
	log  logging.Logger
	proc Process

	mu           sync.Mutex
	ready        bool
	deadline     *time.Timer
	shuttingDown bool
	tasks        []Task

	readyCh chan struct{}
	done    chan struct{}

	sigs      chan os.Signal
	stopSigs  chan struct{}
	closeOnce sync.Once
}

// New creates a Manager and arms its initialization deadline. If
// cfg.HandleShutdown is set it also subscribes to termination signals.
func New(cfg Config, opts ...Option) *Manager {
	if cfg.InitializationTimeout <= 0 {
		cfg.InitializationTimeout = DefaultInitializationTimeout
	}
	m := &Manager{
		cfg:      cfg,
		readyCh:  make(chan struct{}),
		done:     make(chan struct{}),
		stopSigs: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logging.New(zap.Must(zap.NewProduction()))
	}
	if m.proc == nil {
		m.proc = OSProcess()
	}

	m.mu.Lock()
	m.deadline = time.AfterFunc(cfg.InitializationTimeout, m.initTimeout)
	m.mu.Unlock()

	if cfg.HandleShutdown {
		m.sigs = make(chan os.Signal, len(shutdownSignals))
		m.proc.Notify(m.sigs, shutdownSignals...)
		go m.watchSignals()
	}
	return m
}

// DeclareReady marks the service as initialized, cancelling the startup
// deadline and releasing everything waiting on readiness. Calls after the
// first have no effect.
func (m *Manager) DeclareReady() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ready {
		return
	}
	m.ready = true
	m.deadline.Stop()
	close(m.readyCh)
	m.log.Info("service ready")
}

// Ready returns a channel that is closed once DeclareReady has been called.
func (m *Manager) Ready() <-chan struct{} {
	return m.readyCh
}

// IsReady reports whether DeclareReady has been called.
func (m *Manager) IsReady() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// WhenReady blocks until the service is ready or ctx is done.
func (m *Manager) WhenReady(ctx context.Context) error {
	select {
	case <-m.readyCh:
		return nil
	case <-ctx.Done():
		return context.Cause(ctx)
	}
}

// OnShutdown registers a task to run on shutdown. Tasks registered once
// shutdown has begun are never run.
func (m *Manager) OnShutdown(task Task) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuttingDown {
		m.log.Warning("shutdown already in progress, ignoring shutdown task")
		return
	}
	m.tasks = append(m.tasks, task)
}

// Done returns a channel that is closed once shutdown tasks have finished,
// just before the process exits.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Shutdown runs every registered task concurrently, waits for all of them,
// then exits the process with status 0. reason is logged, e.g. the name of
// the signal received. Only the first call does anything; later calls return
// nil immediately.
//
// With a real process Shutdown does not return. Otherwise it returns the
// combined errors of the failed tasks.
func (m *Manager) Shutdown(reason string) error {
	m.mu.Lock()
	if m.shuttingDown {
		m.mu.Unlock()
		return nil
	}
	m.shuttingDown = true
	tasks := slices.Clone(m.tasks)
	m.mu.Unlock()

	m.log.Notice("shutting down gracefully", zap.String(logging.Signal, reason), zap.Int("tasks", len(tasks)))
	err := m.runTasks(tasks)
	m.Close()
	close(m.done)
	m.proc.Exit(0)
	return err
}

// Close stops the initialization deadline and the signal subscription
// without shutting down.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.deadline.Stop()
		m.mu.Unlock()
		if m.sigs != nil {
			m.proc.Stop(m.sigs)
		}
		close(m.stopSigs)
	})
}

func (m *Manager) initTimeout() {
	m.mu.Lock()
	ready := m.ready
	m.mu.Unlock()
	if ready {
		return
	}
	m.log.Emergency(
		"INITIALIZATION FAILED: service took longer than the configured initialization timeout and is "+
			"therefore considered failed. Make sure DeclareReady is called once the service has initialized.",
		zap.Duration("timeout", m.cfg.InitializationTimeout),
	)
	_ = m.Shutdown(ReasonInitTimeout)
}

func (m *Manager) watchSignals() {
	for {
		select {
		case sig := <-m.sigs:
			_ = m.Shutdown(signalName(sig))
		case <-m.stopSigs:
			return
		}
	}
}

func (m *Manager) runTasks(tasks []Task) error {
	ctx := context.Background()
	if m.cfg.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.ShutdownTimeout)
		defer cancel()
	}

	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	for i, task := range tasks {
		g.Go(func() error {
			err := runTask(ctx, task)
			if err != nil {
				m.log.Error("shutdown task failed", zap.Int("task", i), zap.Error(err))
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return err
		})
	}

	finished := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		m.log.Error("shutdown tasks did not finish in time", zap.Duration("timeout", m.cfg.ShutdownTimeout))
		mu.Lock()
		errs = multierr.Append(errs, ctx.Err())
		mu.Unlock()
	}

	mu.Lock()
	defer mu.Unlock()
	return errs
}

func runTask(ctx context.Context, task Task) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("shutdown task panicked: %v", p)
		}
	}()
	return task(ctx)
}
