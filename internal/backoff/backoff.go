// Package backoff computes retry delays for the scheduler loop.
package backoff

import (
	"time"
)

// Retrier hands out successive delays and can be reset after a success
type Retrier interface {
	NextBackOff() time.Duration
	Reset()
}

// RetryPolicy maps an attempt number, starting at 1, to a delay
type RetryPolicy interface {
	CalculateNextDelay(attempt int) time.Duration
}

// NewRetrier is used for creating a new instance of Retrier
func NewRetrier(policy RetryPolicy) Retrier {
	return &retrier{
		policy:  policy,
		attempt: 1,
	}
}

type retrier struct {
	policy  RetryPolicy
	attempt int
}

// NextBackOff returns the next delay interval
func (r *retrier) NextBackOff() time.Duration {
	next := r.policy.CalculateNextDelay(r.attempt)
	r.attempt++
	return next
}

// Reset starts the sequence over
func (r *retrier) Reset() {
	r.attempt = 1
}

// NewExponentialPolicy returns a policy starting at initial and growing by
// multiplier per attempt, capped at maxDelay. A multiplier below 1 is treated as 1.
func NewExponentialPolicy(initial, maxDelay time.Duration, multiplier float64) RetryPolicy {
	if multiplier < 1 {
		multiplier = 1
	}
	if maxDelay < initial {
		maxDelay = initial
	}
	return &exponentialPolicy{
		initial:    initial,
		max:        maxDelay,
		multiplier: multiplier,
	}
}

type exponentialPolicy struct {
	initial    time.Duration
	max        time.Duration
	multiplier float64
}

// CalculateNextDelay returns initial*multiplier^(attempt-1), never above max
func (p *exponentialPolicy) CalculateNextDelay(attempt int) time.Duration {
	delay := float64(p.initial)
	for i := 1; i < attempt; i++ {
		delay *= p.multiplier
		if delay >= float64(p.max) {
			return p.max
		}
	}
	return time.Duration(delay)
}
