package poll

import (
	"time"

	"github.com/ternarybob/arbor"
)

const (
	DefaultTimeout        = 5 * time.Second
	DefaultInterval       = 100 * time.Millisecond
	DefaultMaxInterval    = time.Second
	DefaultAttemptTimeout = 10 * time.Second
	DefaultProgressEvery  = 5 * time.Second
)

// Policy configures a single poll. Zero fields take the package defaults, so
// Policy{Timeout: 15 * time.Second} is a complete policy.
type Policy struct {
	Name           string        // subject used in logs and timeout errors
	Timeout        time.Duration // maximum wait
	Interval       time.Duration // first delay between attempts
	MaxInterval    time.Duration // ceiling for the delay when Backoff > 1
	Backoff        float64       // delay multiplier per attempt; <= 1 keeps the interval fixed
	AttemptTimeout time.Duration // bound on one observation, independent of caller cancellation
	ProgressEvery  time.Duration // throttle for "still waiting" debug lines
	Logger         arbor.ILogger
}

// WithName returns a copy of p with Name set
func (p Policy) WithName(name string) Policy {
	p.Name = name
	return p
}

// WithTimeout returns a copy of p with Timeout set
func (p Policy) WithTimeout(timeout time.Duration) Policy {
	p.Timeout = timeout
	return p
}

// WithLogger returns a copy of p with Logger set
func (p Policy) WithLogger(logger arbor.ILogger) Policy {
	p.Logger = logger
	return p
}

func (p Policy) withDefaults() Policy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultTimeout
	}
	if p.Interval <= 0 {
		p.Interval = DefaultInterval
	}
	if p.Interval > p.Timeout {
		p.Interval = p.Timeout
	}
	if p.MaxInterval < p.Interval {
		p.MaxInterval = max(DefaultMaxInterval, p.Interval)
	}
	if p.Backoff < 1 {
		p.Backoff = 1
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = DefaultAttemptTimeout
	}
	if p.ProgressEvery <= 0 {
		p.ProgressEvery = DefaultProgressEvery
	}
	if p.Logger == nil {
		p.Logger = arbor.NewNoOpLogger()
	}
	return p
}

// next returns the delay that follows current
func (p Policy) next(current time.Duration) time.Duration {
	if p.Backoff <= 1 {
		return current
	}
	grown := time.Duration(float64(current) * p.Backoff)
	if grown > p.MaxInterval {
		return p.MaxInterval
	}
	return grown
}
