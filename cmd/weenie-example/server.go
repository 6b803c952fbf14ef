package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"andy.dev/weenie/cron"
	"andy.dev/weenie/logging"
)

type readiness interface {
	IsReady() bool
}

// jobTable is the part of the scheduler exposed over HTTP.
type jobTable interface {
	Names() []string
	Next(name string) (time.Time, bool)
	Trigger(ctx context.Context, name string) (bool, error)
}

type jobInfo struct {
	Name string     `json:"name"`
	Next *time.Time `json:"next,omitempty"`
}

type triggerResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewRouter builds the example's HTTP API.
func NewRouter(log logging.Logger, ready readiness, jobs jobTable, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !ready.IsReady() {
			http.Error(w, "initializing", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			names := jobs.Names()
			sort.Strings(names)
			out := make([]jobInfo, 0, len(names))
			for _, name := range names {
				info := jobInfo{Name: name}
				if next, ok := jobs.Next(name); ok {
					info.Next = &next
				}
				out = append(out, info)
			}
			writeJSON(w, http.StatusOK, out)
		})
		r.Post("/{name}/trigger", func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "name")
			ok, err := jobs.Trigger(r.Context(), name)
			res := triggerResult{Name: name, OK: ok}
			status := http.StatusOK
			switch {
			case errors.Is(err, cron.ErrUnknownJob):
				http.Error(w, err.Error(), http.StatusNotFound)
				return
			case err != nil:
				res.Error = err.Error()
				status = http.StatusBadGateway
			case !ok:
				status = http.StatusBadGateway
			}
			writeJSON(w, status, res)
		})
	})
	return r
}

func requestLogger(log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", chimiddleware.GetReqID(r.Context())),
			)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
