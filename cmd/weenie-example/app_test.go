package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"andy.dev/weenie"
	"andy.dev/weenie/cron"
	"andy.dev/weenie/logging"
	"andy.dev/weenie/svc"
)

type nopProcess struct{ exits atomic.Int32 }

func (*nopProcess) Notify(chan<- os.Signal, ...os.Signal) {}
func (*nopProcess) Stop(chan<- os.Signal)                 {}
func (p *nopProcess) Exit(int)                            { p.exits.Add(1) }

// flakyUpstream fails its first n health checks with a 503.
func flakyUpstream(t *testing.T, n int32) (*httptest.Server, *atomic.Int32, *atomic.Int32) {
	t.Helper()
	var pings, syncs atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/healthz":
			if pings.Add(1) <= n {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
		case "/sync":
			syncs.Add(1)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &pings, &syncs
}

func newTestApp(t *testing.T, upstreamURL string) (*App, *cron.Mock, *nopProcess, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	log := logging.New(zap.New(core))

	cfg := defaultConfig()
	cfg.HTTP.Addr = "127.0.0.1:0"
	cfg.Upstream.URL = upstreamURL
	cfg.Svc = svc.Config{InitializationTimeout: 5 * time.Second}
	cfg.Retry.Exponential.InitialWait = time.Millisecond
	cfg.Retry.Exponential.MaxRetry = time.Second

	proc := &nopProcess{}
	mgr := svc.New(cfg.Svc, svc.WithLogger(log), svc.WithProcess(proc))
	t.Cleanup(mgr.Close)
	mock := &cron.Mock{}
	app := &App{
		Config:   &cfg,
		Log:      log,
		Manager:  mgr,
		Retry:    ProvideRetryers(&cfg, nil, log),
		Cron:     mock,
		Upstream: NewUpstream(cfg.Upstream, http.DefaultClient, log),
		Server:   &http.Server{Addr: cfg.HTTP.Addr, Handler: http.NotFoundHandler()},
	}
	return app, mock, proc, logs
}

func runApp(t *testing.T, app *App) <-chan error {
	t.Helper()
	errs := make(chan error, 1)
	go func() { errs <- app.Run(context.Background()) }()
	return errs
}

func TestAppWarmsUpBeforeReady(t *testing.T) {
	upstream, pings, syncs := flakyUpstream(t, 2)
	app, mock, proc, logs := newTestApp(t, upstream.URL)

	errs := runApp(t, app)
	require.Eventually(t, app.Manager.IsReady, 2*time.Second, time.Millisecond)
	assert.EqualValues(t, 3, pings.Load())
	assert.Equal(t, 2, logs.FilterMessage("job failed, retrying").
		FilterField(zap.String(logging.JobID, "upstream-warmup")).Len())

	jobs := mock.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, "sync", jobs[0].Name)
	assert.Equal(t, "heartbeat", jobs[1].Name)

	ok, err := jobs[0].Handler(context.Background(), logging.Nop())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.EqualValues(t, 1, syncs.Load())

	require.NoError(t, app.Manager.Shutdown("test"))
	select {
	case err := <-errs:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after shutdown")
	}
	assert.EqualValues(t, 1, proc.exits.Load())
}

func TestAppWarmUpTimesOut(t *testing.T) {
	upstream, _, _ := flakyUpstream(t, 1<<30)
	app, mock, _, _ := newTestApp(t, upstream.URL)
	app.Retry.Exponential = weenie.NewExponential(weenie.ExponentialConfig{
		InitialWait: time.Millisecond,
		MaxRetry:    20 * time.Millisecond,
	})

	err := <-runApp(t, app)
	assert.True(t, weenie.TimedOut(err))
	assert.False(t, app.Manager.IsReady())
	assert.Empty(t, mock.Jobs())
	_ = app.Server.Close()
}

func TestAppWithoutUpstream(t *testing.T) {
	app, mock, _, logs := newTestApp(t, "")

	errs := runApp(t, app)
	require.Eventually(t, app.Manager.IsReady, time.Second, time.Millisecond)
	assert.Empty(t, mock.Jobs())
	assert.Equal(t, 1, logs.FilterMessage("no upstream configured, skipping warm-up").Len())

	require.NoError(t, app.Manager.Shutdown("test"))
	assert.NoError(t, <-errs)
}
