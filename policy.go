package weenie

import (
	"time"

	"andy.dev/weenie/backoff"
)

const (
	DefaultExponentialInitialWait = 10 * time.Millisecond
	DefaultExponentialMaxRetry    = time.Hour
	DefaultPeriodicInterval       = 5 * time.Second
	DefaultPeriodicMaxRetry       = 5 * time.Minute
	DefaultBackoffInitialWait     = 10 * time.Millisecond
	DefaultBackoffMaxJobWait      = 72 * time.Hour

	// negativeWaitReset replaces a negative computed wait.
	negativeWaitReset = 10 * time.Millisecond
)

// TimeoutPolicy decides what a [Runner] returns once a job's budget is spent.
type TimeoutPolicy int

const (
	// Reject returns a *TimeoutError.
	Reject TimeoutPolicy = iota
	// GiveUp returns false with a nil error. Callers must check the boolean.
	GiveUp
)

// String implements fmt.Stringer
func (tp TimeoutPolicy) String() string {
	switch tp {
	case Reject:
		return "reject"
	case GiveUp:
		return "give_up"
	default:
		return "unknown"
	}
}

// Policy describes a bounded-retry runner. At least one of MaxRetry and
// MaxWait must be set, otherwise a failing job retries forever.
type Policy struct {
	// Name labels log lines and metrics, e.g. "exponential".
	Name string
	// Strategy computes each wait.
	Strategy backoff.Strategy
	// MaxRetry is the total time a job may spend retrying, including the time
	// spent running it. Waits are shrunk so they never run past it. Zero
	// disables the budget.
	MaxRetry time.Duration
	// MaxWait caps every wait. Once a wait equal to MaxWait has been used and
	// the job fails again, the runner gives up. Zero disables the cap.
	MaxWait time.Duration
	// OnTimeout selects the result once the budget is spent.
	OnTimeout TimeoutPolicy
}

// ExponentialConfig configures [NewExponential].
type ExponentialConfig struct {
	// InitialWait before the first retry, doubled on every retry after it.
	// Default: 10ms
	InitialWait time.Duration `yaml:"initial_wait"`
	// MaxRetry is the absolute budget, including job run time. If set to 1h
	// and the job takes 30m to run, it only gets 2 tries.
	// Default: 1h
	MaxRetry time.Duration `yaml:"max_retry"`
}

func (c ExponentialConfig) withDefaults() ExponentialConfig {
	if c.InitialWait <= 0 {
		c.InitialWait = DefaultExponentialInitialWait
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = DefaultExponentialMaxRetry
	}
	return c
}

// Policy returns the reject-on-timeout policy for the config.
func (c ExponentialConfig) Policy() Policy {
	c = c.withDefaults()
	return Policy{
		Name:      "exponential",
		Strategy:  backoff.NewExponential(c.InitialWait),
		MaxRetry:  c.MaxRetry,
		OnTimeout: Reject,
	}
}

// PeriodicConfig configures [NewPeriodic].
type PeriodicConfig struct {
	// InitialWait before the first retry.
	// Default: Interval
	InitialWait time.Duration `yaml:"initial_wait"`
	// Interval between every retry after the first.
	// Default: InitialWait if set, otherwise 5s
	Interval time.Duration `yaml:"interval"`
	// MaxRetry is the absolute budget, including job run time.
	// Default: 5m
	MaxRetry time.Duration `yaml:"max_retry"`
}

func (c PeriodicConfig) withDefaults() PeriodicConfig {
	if c.Interval <= 0 {
		if c.InitialWait > 0 {
			c.Interval = c.InitialWait
		} else {
			c.Interval = DefaultPeriodicInterval
		}
	}
	if c.InitialWait <= 0 {
		c.InitialWait = c.Interval
	}
	if c.MaxRetry <= 0 {
		c.MaxRetry = DefaultPeriodicMaxRetry
	}
	return c
}

// Policy returns the reject-on-timeout policy for the config.
func (c PeriodicConfig) Policy() Policy {
	c = c.withDefaults()
	return Policy{
		Name:      "periodic",
		Strategy:  backoff.NewPeriodic(c.InitialWait, c.Interval),
		MaxRetry:  c.MaxRetry,
		OnTimeout: Reject,
	}
}

// BackoffConfig configures [NewBackoff].
type BackoffConfig struct {
	// InitialWait before the first retry, doubled on every retry after it.
	// Default: 10ms
	InitialWait time.Duration `yaml:"initial_wait"`
	// MaxJobWait caps a single wait. After waiting this long once, the next
	// failure gives up.
	// Default: 72h
	MaxJobWait time.Duration `yaml:"max_job_wait"`
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.InitialWait <= 0 {
		c.InitialWait = DefaultBackoffInitialWait
	}
	if c.MaxJobWait <= 0 {
		c.MaxJobWait = DefaultBackoffMaxJobWait
	}
	return c
}

// Policy returns the soft give-up policy for the config.
func (c BackoffConfig) Policy() Policy {
	c = c.withDefaults()
	return Policy{
		Name:      "backoff",
		Strategy:  backoff.NewExponential(c.InitialWait),
		MaxWait:   c.MaxJobWait,
		OnTimeout: GiveUp,
	}
}
