package retry

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Default policy parameters, matching the store reconnect defaults.
const (
	DefaultInitialDelay = 1 * time.Second
	DefaultMaxDelay     = 60 * time.Second
	DefaultMultiplier   = 2.0
	DefaultMaxAttempts  = 3
)

// Policy computes exponential backoff delays for a bounded attempt budget.
// It performs no I/O and holds no mutable state; callers drive the loop.
type Policy struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	MaxAttempts  int
}

// DefaultPolicy returns the policy used for store connections.
func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: DefaultInitialDelay,
		MaxDelay:     DefaultMaxDelay,
		Multiplier:   DefaultMultiplier,
		MaxAttempts:  DefaultMaxAttempts,
	}
}

// NewPolicy validates the parameters and returns a Policy.
// Construction fails fast on invalid input.
func NewPolicy(initial, max time.Duration, multiplier float64, maxAttempts int) (Policy, error) {
	if maxAttempts < 1 {
		return Policy{}, fmt.Errorf("max attempts must be >= 1, got %d", maxAttempts)
	}
	if initial <= 0 {
		return Policy{}, errors.New("initial delay must be > 0")
	}
	if max <= 0 {
		return Policy{}, errors.New("max delay must be > 0")
	}
	if max < initial {
		return Policy{}, fmt.Errorf("max delay %v is below initial delay %v", max, initial)
	}
	if multiplier < 1 {
		return Policy{}, fmt.Errorf("multiplier must be >= 1, got %g", multiplier)
	}
	return Policy{
		InitialDelay: initial,
		MaxDelay:     max,
		Multiplier:   multiplier,
		MaxAttempts:  maxAttempts,
	}, nil
}

// NextDelay returns the backoff delay to sleep after the given 1-based
// attempt, capped at MaxDelay. Attempts below 1 are treated as 1.
func (p Policy) NextDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// Context carries the state of a single retry-loop iteration.
// It exists for structured logging only and is discarded after the loop.
type Context struct {
	Attempt     int
	MaxAttempts int
	Delay       time.Duration
	LastErr     error
}
