package http

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	DefaultMaxRetries   = 2
	InitialRetryDelay   = 500 * time.Millisecond
	MaxRetryDelay       = 8 * time.Second
	DefaultTimeout      = 600 * time.Second
	DefaultConnTimeout  = 5 * time.Second
	DefaultMaxConns     = 1000
	DefaultMaxIdleConns = 100
)

// RetryPolicy controls how many times a retryable failure is retried and how
// long to sleep between attempts.
type RetryPolicy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   DefaultMaxRetries,
		InitialDelay: InitialRetryDelay,
		MaxDelay:     MaxRetryDelay,
	}
}

// Delay returns the sleep before retry k (0-based): min(InitialDelay * 2^k, MaxDelay).
func (p RetryPolicy) Delay(k int) time.Duration {
	d := p.InitialDelay
	for i := 0; i < k && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// policyBackOff is a deterministic backoff.BackOff yielding RetryPolicy delays
// and stopping after maxRetries.
type policyBackOff struct {
	policy     RetryPolicy
	maxRetries int
	retry      int
}

func newPolicyBackOff(policy RetryPolicy, maxRetries int) *policyBackOff {
	return &policyBackOff{policy: policy, maxRetries: maxRetries}
}

func (b *policyBackOff) NextBackOff() time.Duration {
	if b.retry >= b.maxRetries {
		return backoff.Stop
	}
	d := b.policy.Delay(b.retry)
	b.retry++
	return d
}

func (b *policyBackOff) Reset() { b.retry = 0 }
