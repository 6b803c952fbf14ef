package weenie

// Option represents an optional runner setting.
type Option func(o *opts)

// Each allows you to set a function to be called directly after each failed
// attempt. It is passed a [Status] value that you can use for logging or
// reporting. Defaults to nil, which will take no action.
func Each(eachFn func(Status)) Option {
	return func(o *opts) {
		o.eachFn = eachFn
	}
}

// WithMetrics records attempts, outcomes and waits to m. Several runners may
// share one *Metrics; they are told apart by their policy name.
func WithMetrics(m *Metrics) Option {
	return func(o *opts) {
		o.metrics = m
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c Clock) Option {
	return func(o *opts) {
		o.clock = c
	}
}

// WithIDGenerator replaces the generator used for jobs run without an id.
// Defaults to random UUIDs.
func WithIDGenerator(gen func() string) Option {
	return func(o *opts) {
		o.newID = gen
	}
}

func applyDefaults(o *opts) {
	if o.clock == nil {
		o.clock = realClock{}
	}
	if o.newID == nil {
		o.newID = newJobID
	}
}

type opts struct {
	eachFn  func(Status)
	metrics *Metrics
	clock   Clock
	newID   func() string
}
