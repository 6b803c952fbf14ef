package weenie_test

import (
	"sync"
	"time"
)

// fakeClock advances its time by the requested duration on every After call,
// so runs complete instantly with exact elapsed times.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 2, 6, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.Advance(d)
	return ch
}

// Advance moves the clock forward, simulating time spent running a job.
func (c *fakeClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// stoppedClock never fires.
type stoppedClock struct{}

func (stoppedClock) Now() time.Time                       { return time.Now() }
func (stoppedClock) After(time.Duration) <-chan time.Time { return nil }
