package jobqueue

import (
	"errors"
	"time"

	"github.com/erp/fulfillment/internal/domain/shared"
)

// RetryPolicy decides when a failed job body is re-attempted. A conflict
// (as classified by IsConflict) means the underlying storage detected a
// concurrent write; the job body is re-run from scratch after a backoff
// instead of failing, so races between a re-plan and an in-flight task
// resolve to a retry rather than lost updates.
type RetryPolicy struct {
	// MaxAttempts caps total attempts per job, including the first
	MaxAttempts int
	// Backoff is the base delay between attempts, doubled per retry
	Backoff time.Duration
	// IsConflict classifies an error as a transient storage conflict
	IsConflict func(error) bool
}

// DefaultRetryPolicy returns the policy used by the pipeline engine
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Backoff:     100 * time.Millisecond,
		IsConflict:  IsConcurrencyConflict,
	}
}

// Validate validates the policy
func (p RetryPolicy) Validate() error {
	if p.MaxAttempts <= 0 {
		return ErrInvalidConfig
	}
	if p.Backoff < 0 {
		return ErrInvalidConfig
	}
	if p.IsConflict == nil {
		return ErrInvalidConfig
	}
	return nil
}

// delay returns the backoff before the given attempt (1-indexed)
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := p.Backoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if d > 30*time.Second {
			return 30 * time.Second
		}
	}
	return d
}

// IsConcurrencyConflict reports whether the error is the storage layer's
// optimistic-locking conflict.
func IsConcurrencyConflict(err error) bool {
	return errors.Is(err, shared.ErrConcurrencyConflict)
}
