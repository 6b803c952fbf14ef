package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"andy.dev/weenie"
	"andy.dev/weenie/logging"
)

// Upstream is the remote service the example depends on.
type Upstream struct {
	base   string
	client *http.Client
	log    logging.Logger
}

func NewUpstream(cfg UpstreamConfig, client *http.Client, log logging.Logger) *Upstream {
	return &Upstream{
		base:   strings.TrimRight(cfg.URL, "/"),
		client: client,
		log:    logging.OrNop(log),
	}
}

// Enabled reports whether an upstream URL was configured.
func (u *Upstream) Enabled() bool { return u.base != "" }

// Ping checks the upstream health endpoint. A 5xx response is a failed
// attempt; any other non-2xx response is an error.
func (u *Upstream) Ping(ctx context.Context) (bool, error) {
	return u.do(ctx, http.MethodGet, "/healthz")
}

// Sync asks the upstream to sync its state.
func (u *Upstream) Sync(ctx context.Context) (bool, error) {
	return u.do(ctx, http.MethodPost, "/sync")
}

func (u *Upstream) do(ctx context.Context, method, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.base+path, nil)
	if err != nil {
		return false, err
	}
	resp, err := u.client.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode >= 500:
		st := weenie.GetStatus(ctx)
		u.log.Debug("upstream unavailable",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Int(logging.Attempt, st.Attempt),
		)
		return false, nil
	default:
		return false, fmt.Errorf("%s %s: unexpected status %s", method, path, resp.Status)
	}
}
