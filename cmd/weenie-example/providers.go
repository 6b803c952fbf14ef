package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"andy.dev/weenie"
	"andy.dev/weenie/cron"
	"andy.dev/weenie/logging"
	"andy.dev/weenie/svc"
)

var providerSet = wire.NewSet(
	ProvideZap,
	ProvideLogger,
	ProvideManager,
	ProvideRegistry,
	ProvideMetrics,
	ProvideRetryers,
	ProvideCron,
	wire.Bind(new(cron.Registrar), new(*cron.Cron)),
	ProvideUpstream,
	ProvideServer,
	wire.Struct(new(App), "*"),
)

// Retryers holds one runner per retry policy.
type Retryers struct {
	Exponential *weenie.Runner
	Periodic    *weenie.Runner
	Backoff     *weenie.Runner
}

func ProvideZap(cfg *Config) (*zap.Logger, func(), error) {
	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("log.level: %w", err)
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	l, err := zc.Build()
	if err != nil {
		return nil, nil, err
	}
	return l, func() { _ = l.Sync() }, nil
}

func ProvideLogger(l *zap.Logger) logging.Logger {
	return logging.New(l)
}

func ProvideManager(cfg *Config, log logging.Logger) *svc.Manager {
	return svc.New(cfg.Svc, svc.WithLogger(log), svc.WithProcess(svc.OSProcess()))
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) *weenie.Metrics {
	return weenie.NewMetrics(reg)
}

func ProvideRetryers(cfg *Config, m *weenie.Metrics, log logging.Logger) *Retryers {
	each := weenie.Each(func(s weenie.Status) {
		log.Debug(fmt.Sprintf("%+s", s), zap.Int(logging.Retries, s.Retries))
	})
	return &Retryers{
		Exponential: weenie.NewExponential(cfg.Retry.Exponential, weenie.WithMetrics(m), each),
		Periodic:    weenie.NewPeriodic(cfg.Retry.Periodic, weenie.WithMetrics(m), each),
		Backoff:     weenie.NewBackoff(cfg.Backoff, weenie.WithMetrics(m), each),
	}
}

func ProvideCron(log logging.Logger, mgr *svc.Manager) *cron.Cron {
	return cron.New(log.With(zap.String("component", "cron")), mgr)
}

func ProvideUpstream(cfg *Config, log logging.Logger) *Upstream {
	client := &http.Client{Timeout: cfg.Upstream.Timeout}
	return NewUpstream(cfg.Upstream, client, log.With(zap.String("component", "upstream")))
}

func ProvideServer(cfg *Config, log logging.Logger, mgr *svc.Manager, c *cron.Cron, reg *prometheus.Registry) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           NewRouter(log, mgr, c, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
