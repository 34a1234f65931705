package runner

import (
	"time"

	"github.com/torosent/provbench/internal/request"
)

const (
	DefaultIterations        = 10
	MaxIterations            = 100
	DefaultInterRequestDelay = 200 * time.Millisecond
	DefaultRetries           = 2
)

// RunConfiguration holds the knobs for one run. Start copies it, so later
// changes never affect a run in progress.
type RunConfiguration struct {
	IterationsPerScenario int
	// InterRequestDelay staggers dispatch: iteration i of every pair waits
	// i*InterRequestDelay before acquiring its provider's limiter.
	InterRequestDelay time.Duration
	Timeout           time.Duration
	MaxRetries        int
	BaseRetryDelay    time.Duration
	MaxRetryDelay     time.Duration
}

// DefaultRunConfiguration returns the CLI defaults.
func DefaultRunConfiguration() RunConfiguration {
	return RunConfiguration{
		IterationsPerScenario: DefaultIterations,
		InterRequestDelay:     DefaultInterRequestDelay,
		Timeout:               request.DefaultTimeout,
		MaxRetries:            DefaultRetries,
		BaseRetryDelay:        request.DefaultBaseDelay,
		MaxRetryDelay:         request.DefaultMaxDelay,
	}
}

// Normalize clamps iterations to [1, MaxIterations] (non-positive means
// DefaultIterations) and replaces invalid durations with defaults.
func (c RunConfiguration) Normalize() RunConfiguration {
	switch {
	case c.IterationsPerScenario <= 0:
		c.IterationsPerScenario = DefaultIterations
	case c.IterationsPerScenario > MaxIterations:
		c.IterationsPerScenario = MaxIterations
	}
	if c.InterRequestDelay < 0 {
		c.InterRequestDelay = 0
	}
	if c.Timeout <= 0 {
		c.Timeout = request.DefaultTimeout
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseRetryDelay < 0 {
		c.BaseRetryDelay = request.DefaultBaseDelay
	}
	if c.MaxRetryDelay <= 0 {
		c.MaxRetryDelay = request.DefaultMaxDelay
	}
	return c
}

// Policy returns the executor policy implied by the configuration.
func (c RunConfiguration) Policy() request.Policy {
	return request.Policy{
		Timeout:   c.Timeout,
		Retries:   c.MaxRetries,
		BaseDelay: c.BaseRetryDelay,
		MaxDelay:  c.MaxRetryDelay,
	}
}
