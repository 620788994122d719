package resilience

import "time"

// Option adjusts an ExecutorConfig before the executor is built.
type Option func(*ExecutorConfig)

// WithMaxConcurrent caps handlers running at once.
func WithMaxConcurrent(n int) Option {
	return func(c *ExecutorConfig) {
		c.MaxConcurrent = n
	}
}

// WithMaxQueue caps invocations waiting for a handler slot.
func WithMaxQueue(n int) Option {
	return func(c *ExecutorConfig) {
		c.MaxQueue = n
	}
}

// WithTimeout sets the deadline used when neither the request nor the
// tool annotation names one.
func WithTimeout(d time.Duration) Option {
	return func(c *ExecutorConfig) {
		c.DefaultTimeout = d
	}
}

// NewExecutorWithOptions applies opts over DefaultExecutorConfig. Zero
// values from unset dispatch settings keep the defaults.
func NewExecutorWithOptions(opts ...Option) *Executor {
	config := DefaultExecutorConfig()
	for _, opt := range opts {
		opt(&config)
	}
	return NewExecutor(config)
}
