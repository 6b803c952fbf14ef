package svc_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"andy.dev/weenie/logging"
	"andy.dev/weenie/svc"
)

type fakeProcess struct {
	mu       sync.Mutex
	notified []os.Signal
	ch       chan<- os.Signal
	stopped  bool
	exits    chan int
}

func newFakeProcess() *fakeProcess {
	return &fakeProcess{exits: make(chan int, 10)}
}

func (p *fakeProcess) Notify(c chan<- os.Signal, sig ...os.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ch = c
	p.notified = append(p.notified, sig...)
}

func (p *fakeProcess) Stop(chan<- os.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopped = true
}

func (p *fakeProcess) Exit(code int) {
	p.exits <- code
}

// Send delivers sig the way the runtime would, dropping it once stopped.
func (p *fakeProcess) Send(sig os.Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil || p.stopped {
		return
	}
	select {
	case p.ch <- sig:
	default:
	}
}

func (p *fakeProcess) Notified() []os.Signal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.notified
}

func (p *fakeProcess) waitExit(t *testing.T, within time.Duration) int {
	t.Helper()
	select {
	case code := <-p.exits:
		return code
	case <-time.After(within):
		t.Fatalf("process did not exit within %v", within)
		return -1
	}
}

func (p *fakeProcess) assertNoExit(t *testing.T, within time.Duration) {
	t.Helper()
	select {
	case code := <-p.exits:
		t.Fatalf("process exited with %d", code)
	case <-time.After(within):
	}
}

func newManager(t *testing.T, cfg svc.Config) (*svc.Manager, *fakeProcess, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	proc := newFakeProcess()
	m := svc.New(cfg,
		svc.WithProcess(proc),
		svc.WithLogger(logging.New(zap.New(core))),
	)
	t.Cleanup(m.Close)
	return m, proc, logs
}

func TestInitializationTimeout(t *testing.T) {
	start := time.Now()
	m, proc, logs := newManager(t, svc.Config{InitializationTimeout: 10 * time.Millisecond})
	var ran atomic.Int32
	m.OnShutdown(func(context.Context) error {
		ran.Add(1)
		return nil
	})

	assert.Equal(t, 0, proc.waitExit(t, 200*time.Millisecond))
	assert.Less(t, time.Since(start), 200*time.Millisecond)
	assert.EqualValues(t, 1, ran.Load())

	emergencies := logs.Filter(func(e observer.LoggedEntry) bool {
		return e.ContextMap()[logging.Severity] == logging.SeverityEmergency
	}).AllUntimed()
	require.Len(t, emergencies, 1)
	assert.True(t, strings.HasPrefix(emergencies[0].Message, "INITIALIZATION FAILED"))

	shutdown := logs.FilterMessage("shutting down gracefully").AllUntimed()
	require.Len(t, shutdown, 1)
	assert.Equal(t, svc.ReasonInitTimeout, shutdown[0].ContextMap()[logging.Signal])
	assert.False(t, m.IsReady())
	<-m.Done()
}

func TestDeclareReadyCancelsDeadline(t *testing.T) {
	m, proc, _ := newManager(t, svc.Config{InitializationTimeout: 50 * time.Millisecond})
	m.DeclareReady()
	proc.assertNoExit(t, 100*time.Millisecond)
	assert.True(t, m.IsReady())
}

func TestDeclareReadyIsIdempotent(t *testing.T) {
	m, proc, logs := newManager(t, svc.Config{InitializationTimeout: 20 * time.Millisecond})
	assert.NotPanics(t, func() {
		m.DeclareReady()
		m.DeclareReady()
		m.DeclareReady()
	})
	assert.Equal(t, 1, logs.FilterMessage("service ready").Len())
	proc.assertNoExit(t, 60*time.Millisecond)
}

func TestReadinessFansOut(t *testing.T) {
	m, _, _ := newManager(t, svc.Config{})

	select {
	case <-m.Ready():
		t.Fatal("ready before DeclareReady")
	default:
	}

	var wg sync.WaitGroup
	var released atomic.Int32
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.WhenReady(context.Background()); err == nil {
				released.Add(1)
			}
		}()
	}
	m.DeclareReady()
	wg.Wait()
	assert.EqualValues(t, 3, released.Load())
	<-m.Ready()
}

func TestWhenReadyCancelled(t *testing.T) {
	m, _, _ := newManager(t, svc.Config{})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, m.WhenReady(ctx), context.DeadlineExceeded)
}

func TestSignalsShutDownOnce(t *testing.T) {
	m, proc, logs := newManager(t, svc.Config{HandleShutdown: true})
	var ran atomic.Int32
	m.OnShutdown(func(context.Context) error {
		ran.Add(1)
		return nil
	})
	m.DeclareReady()
	assert.ElementsMatch(t, []os.Signal{os.Interrupt, syscall.SIGTERM}, proc.Notified())

	proc.Send(syscall.SIGINT)
	proc.Send(syscall.SIGTERM)
	proc.Send(syscall.SIGINT)

	assert.Equal(t, 0, proc.waitExit(t, time.Second))
	proc.assertNoExit(t, 50*time.Millisecond)
	assert.EqualValues(t, 1, ran.Load())

	shutdown := logs.FilterMessage("shutting down gracefully").AllUntimed()
	require.Len(t, shutdown, 1)
	assert.Equal(t, "SIGINT", shutdown[0].ContextMap()[logging.Signal])
}

func TestNoSignalsUnlessConfigured(t *testing.T) {
	m, proc, _ := newManager(t, svc.Config{})
	m.DeclareReady()
	assert.Empty(t, proc.Notified())
}

func TestDuplicateShutdownCalls(t *testing.T) {
	m, proc, _ := newManager(t, svc.Config{})
	var ran atomic.Int32
	m.OnShutdown(func(context.Context) error {
		ran.Add(1)
		time.Sleep(5 * time.Millisecond)
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Shutdown("manual")
		}()
	}
	wg.Wait()
	<-m.Done()

	assert.EqualValues(t, 1, ran.Load())
	assert.Equal(t, 0, proc.waitExit(t, time.Second))
	proc.assertNoExit(t, 20*time.Millisecond)
}

func TestLateRegistrationNeverRuns(t *testing.T) {
	m, _, logs := newManager(t, svc.Config{})
	var early, late atomic.Int32
	m.OnShutdown(func(context.Context) error {
		early.Add(1)
		return nil
	})
	require.NoError(t, m.Shutdown("manual"))

	m.OnShutdown(func(context.Context) error {
		late.Add(1)
		return nil
	})
	_ = m.Shutdown("again")

	assert.EqualValues(t, 1, early.Load())
	assert.EqualValues(t, 0, late.Load())
	assert.Equal(t, 1, logs.FilterMessage("shutdown already in progress, ignoring shutdown task").Len())
}

func TestTasksRunConcurrently(t *testing.T) {
	m, _, _ := newManager(t, svc.Config{})

	// each task only finishes once the other has started
	a, b := make(chan struct{}), make(chan struct{})
	wait := func(started, other chan struct{}) svc.Task {
		return func(context.Context) error {
			close(started)
			select {
			case <-other:
				return nil
			case <-time.After(time.Second):
				return errors.New("tasks ran sequentially")
			}
		}
	}
	m.OnShutdown(wait(a, b))
	m.OnShutdown(wait(b, a))

	assert.NoError(t, m.Shutdown("manual"))
}

func TestTaskErrorsAreCombined(t *testing.T) {
	m, proc, logs := newManager(t, svc.Config{})
	errDB := errors.New("db pool close failed")
	m.OnShutdown(func(context.Context) error { return errDB })
	m.OnShutdown(func(context.Context) error { panic("listener gone") })
	m.OnShutdown(func(context.Context) error { return nil })

	err := m.Shutdown("manual")
	require.Error(t, err)
	assert.ErrorIs(t, err, errDB)
	assert.Contains(t, err.Error(), "listener gone")
	assert.Equal(t, 2, logs.FilterMessage("shutdown task failed").Len())
	assert.Equal(t, 0, proc.waitExit(t, time.Second))
}

func TestShutdownTimeout(t *testing.T) {
	m, proc, _ := newManager(t, svc.Config{ShutdownTimeout: 20 * time.Millisecond})
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	var sawCancel atomic.Bool
	m.OnShutdown(func(ctx context.Context) error {
		<-ctx.Done()
		sawCancel.Store(true)
		<-release
		return nil
	})

	start := time.Now()
	err := m.Shutdown("manual")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 0, proc.waitExit(t, time.Second))
	assert.Eventually(t, sawCancel.Load, time.Second, time.Millisecond)
}
