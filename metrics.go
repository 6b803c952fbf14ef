package weenie

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// outcome label values
const (
	outcomeSuccess  = "success"
	outcomeTimeout  = "timeout"
	outcomeGiveUp   = "give_up"
	outcomeCanceled = "canceled"
)

// Metrics holds the Prometheus collectors a [Runner] reports to.
type Metrics struct {
	Attempts *prometheus.CounterVec
	Outcomes *prometheus.CounterVec
	Waits    *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

// NewMetrics creates the runner collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Attempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "weenie",
				Subsystem: "retry",
				Name:      "attempts_total",
				Help:      "Total number of job attempts",
			},
			[]string{"runner"},
		),
		Outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "weenie",
				Subsystem: "retry",
				Name:      "outcomes_total",
				Help:      "Total number of finished runs by outcome (success, timeout, give_up, canceled)",
			},
			[]string{"runner", "outcome"},
		),
		Waits: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "weenie",
				Subsystem: "retry",
				Name:      "wait_seconds",
				Help:      "Scheduled wait before each retry in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"runner"},
		),
		InFlight: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "weenie",
				Subsystem: "retry",
				Name:      "in_flight",
				Help:      "Number of jobs currently in their retry loop",
			},
			[]string{"runner"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Attempts, m.Outcomes, m.Waits, m.InFlight)
	}
	return m
}

func (m *Metrics) attempt(runner string) {
	if m == nil {
		return
	}
	m.Attempts.WithLabelValues(runner).Inc()
}

func (m *Metrics) wait(runner string, d time.Duration) {
	if m == nil {
		return
	}
	m.Waits.WithLabelValues(runner).Observe(d.Seconds())
}

func (m *Metrics) begin(runner string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(runner).Inc()
}

func (m *Metrics) finish(runner, outcome string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(runner).Dec()
	m.Outcomes.WithLabelValues(runner, outcome).Inc()
}
