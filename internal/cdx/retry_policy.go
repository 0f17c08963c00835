package cdx

import "time"

// RetryPolicy decides whether a transient query failure is retried and how
// long to wait first.
type RetryPolicy interface {
	// ShouldRetry reports whether another attempt is allowed after attempt
	// retries have already been made.
	ShouldRetry(attempt int) bool
	// Backoff returns the wait before the next attempt.
	Backoff(attempt int) time.Duration
}

// FixedRetryPolicy waits the same delay before every retry.
type FixedRetryPolicy struct {
	delay      time.Duration
	maxRetries int
}

// NewFixedRetryPolicy builds a policy with a constant delay. maxRetries <= 0
// retries forever.
func NewFixedRetryPolicy(delay time.Duration, maxRetries int) *FixedRetryPolicy {
	if delay < 0 {
		delay = 0
	}
	return &FixedRetryPolicy{delay: delay, maxRetries: maxRetries}
}

// ShouldRetry implements RetryPolicy.
func (p *FixedRetryPolicy) ShouldRetry(attempt int) bool {
	if p.maxRetries <= 0 {
		return true
	}
	return attempt < p.maxRetries
}

// Backoff implements RetryPolicy.
func (p *FixedRetryPolicy) Backoff(int) time.Duration {
	return p.delay
}
