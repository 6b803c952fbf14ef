package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"andy.dev/weenie/cron"
	"andy.dev/weenie/logging"
	"andy.dev/weenie/svc"
)

// App is the wired example service.
type App struct {
	Config   *Config
	Log      logging.Logger
	Manager  *svc.Manager
	Retry    *Retryers
	Cron     cron.Registrar
	Upstream *Upstream
	Server   *http.Server
}

// Run serves HTTP, waits for the upstream to come up, schedules the recurring
// jobs and declares the service ready. It returns once the service has shut
// down.
func (a *App) Run(ctx context.Context) error {
	a.Manager.OnShutdown(a.Server.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		a.Log.Info("listening", zap.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if err := a.warmUp(ctx); err != nil {
		return err
	}
	if err := a.Cron.Register(a.jobs()...); err != nil {
		return err
	}
	a.Manager.DeclareReady()

	select {
	case <-a.Manager.Done():
		return nil
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		return a.Manager.Shutdown("CONTEXT_DONE")
	}
}

func (a *App) warmUp(ctx context.Context) error {
	if !a.Upstream.Enabled() {
		a.Log.Info("no upstream configured, skipping warm-up")
		return nil
	}
	ok, err := a.Retry.Exponential.Run(ctx, a.Upstream.Ping, a.Log, "upstream-warmup")
	if err != nil {
		return fmt.Errorf("warming up: %w", err)
	}
	if !ok {
		return errors.New("warming up: upstream never became available")
	}
	return nil
}

func (a *App) jobs() []cron.Job {
	if !a.Upstream.Enabled() {
		return nil
	}
	sync, beat := a.Config.Cron.Sync, a.Config.Cron.Heartbeat
	return []cron.Job{
		{
			Name: "sync",
			Spec: sync.Spec,
			TZ:   sync.TZ,
			Handler: func(ctx context.Context, log logging.Logger) (bool, error) {
				return a.Retry.Periodic.Run(ctx, a.Upstream.Sync, log, "sync")
			},
		},
		{
			Name: "heartbeat",
			Spec: beat.Spec,
			TZ:   beat.TZ,
			Handler: func(ctx context.Context, log logging.Logger) (bool, error) {
				return a.Retry.Backoff.Run(ctx, a.Upstream.Ping, log, "heartbeat")
			},
		},
	}
}
