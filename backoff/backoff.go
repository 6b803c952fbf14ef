// Package backoff provides the wait strategies used by the retry runners.
//
// Strategies are stateless; the runner keeps the previous wait for each job
// and passes it back in, so one strategy value can serve any number of
// concurrent jobs.
package backoff

import "time"

// Strategy computes the wait before a retry.
type Strategy interface {
	// Next returns the wait before retry n (1-indexed). prev is the wait
	// actually used before the previous retry, or zero before the first.
	Next(n int, prev time.Duration) time.Duration
}

// Exponential doubles the previous wait, starting from Initial.
type Exponential struct {
	Initial time.Duration
}

// NewExponential creates an exponential strategy.
func NewExponential(initial time.Duration) Exponential {
	return Exponential{Initial: initial}
}

// Next returns prev*2, or Initial when there is no previous wait. Doubling a
// very large wait overflows to a negative duration, which the runner treats
// as a misconfiguration.
func (e Exponential) Next(_ int, prev time.Duration) time.Duration {
	if prev > 0 {
		return prev * 2
	}
	return e.Initial
}

// Periodic waits Initial before the first retry and Interval before every
// retry after that.
type Periodic struct {
	Initial  time.Duration
	Interval time.Duration
}

// NewPeriodic creates a periodic strategy.
func NewPeriodic(initial, interval time.Duration) Periodic {
	return Periodic{Initial: initial, Interval: interval}
}

// Next returns Initial for n == 1 and Interval otherwise.
func (p Periodic) Next(n int, _ time.Duration) time.Duration {
	if n <= 1 {
		return p.Initial
	}
	return p.Interval
}

// Func adapts a plain function to a Strategy.
type Func func(n int, prev time.Duration) time.Duration

// Next calls f.
func (f Func) Next(n int, prev time.Duration) time.Duration {
	return f(n, prev)
}
