// Copyright 2025 Blockscout
//
// Package retry implements the retry/backoff harness: a cross-cutting
// utility that wraps provider calls so transient upstream failures are
// retried without surfacing to callers, while exhausted retry budgets
// are recorded rather than escalated to a process crash.
package retry

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blockscout/indexing-core/internal/errorkind"
)

// Policy configures the harness. A zero-value Policy retries forever
// at a fixed interval, matching the fetcher's stall-and-retry
// contract.
type Policy struct {
	// Interval is the fixed delay between attempts, and the starting
	// delay when Exponential is true.
	Interval time.Duration
	// MaxAttempts bounds the number of attempts; 0 means unbounded.
	MaxAttempts int
	// Exponential backs off interval*2^attempt up to MaxInterval when true.
	Exponential bool
	MaxInterval time.Duration
}

func (p Policy) delay(attempt int) time.Duration {
	if !p.Exponential {
		if p.Interval <= 0 {
			return time.Second
		}
		return p.Interval
	}
	d := p.Interval
	if d <= 0 {
		d = 100 * time.Millisecond
	}
	for i := 0; i < attempt && d < p.MaxInterval; i++ {
		d *= 2
	}
	if p.MaxInterval > 0 && d > p.MaxInterval {
		d = p.MaxInterval
	}
	return d
}

// Harness runs fallible operations under a Policy, tracking exhausted
// attempts in lock-free counters.
type Harness struct {
	policy    Policy
	logger    *log.Logger
	attempts  atomic.Int64
	exhausted atomic.Int64

	mu         sync.Mutex
	failedKeys map[string]time.Time
}

// New creates a Harness with the given policy and an optional logger,
// defaulting to a prefixed stdlib logger.
func New(policy Policy, logger *log.Logger) *Harness {
	if logger == nil {
		logger = log.New(log.Writer(), "[Retry] ", log.LstdFlags)
	}
	return &Harness{policy: policy, logger: logger, failedKeys: make(map[string]time.Time)}
}

// Do runs fn, retrying on any error for which shouldRetry returns true
// (defaulting to errorkind.Retryable when shouldRetry is nil) until
// ctx is canceled, the policy's MaxAttempts is exhausted, or fn
// succeeds. A non-retryable error returns immediately.
func (h *Harness) Do(ctx context.Context, key string, shouldRetry func(error) bool, fn func(context.Context) error) error {
	if shouldRetry == nil {
		shouldRetry = errorkind.Retryable
	}
	attempt := 0
	for {
		err := fn(ctx)
		if err == nil {
			h.clearFailed(key)
			return nil
		}
		h.attempts.Add(1)
		if !shouldRetry(err) {
			return err
		}
		attempt++
		if h.policy.MaxAttempts > 0 && attempt >= h.policy.MaxAttempts {
			h.exhausted.Add(1)
			h.markFailed(key)
			return err
		}
		h.logger.Printf("retrying %s after error (attempt %d): %v", key, attempt, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(h.policy.delay(attempt)):
		}
	}
}

func (h *Harness) markFailed(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failedKeys[key] = time.Now()
}

func (h *Harness) clearFailed(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.failedKeys, key)
}

// FailedKeys returns a snapshot of keys whose retry budget is
// exhausted, for a later pass to retry from the persisted checkpoint.
func (h *Harness) FailedKeys() map[string]time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make(map[string]time.Time, len(h.failedKeys))
	for k, v := range h.failedKeys {
		out[k] = v
	}
	return out
}

// Attempts returns the total number of failed attempts observed.
func (h *Harness) Attempts() int64 { return h.attempts.Load() }

// Exhausted returns the total number of retry budgets that ran out.
func (h *Harness) Exhausted() int64 { return h.exhausted.Load() }
