package gateway

import (
	"context"
	"fmt"
	"time"
)

// retryPolicy is a bounded fixed-delay retry: at most Attempts tries, Delay
// apart, honoring ctx cancellation between tries. Deletes that race
// provider-side dependency release (security group deletion while the
// instance's interface is still detaching) all share this policy.
type retryPolicy struct {
	Attempts int
	Delay    time.Duration
}

var ErrRetriesExhausted = fmt.Errorf("operation failed after all retry attempts")

// Do runs 'op' under the policy. The terminal error wraps both
// ErrRetriesExhausted and the last failure.
func (p retryPolicy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	var last error
	for attempt := 1; attempt <= p.Attempts; attempt++ {
		last = op(ctx)
		if last == nil {
			return nil
		}
		if attempt == p.Attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	return fmt.Errorf("%w (%d attempts): %w", ErrRetriesExhausted, p.Attempts, last)
}
