package gateway

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRetryPolicy(t *testing.T) {
	t.Run("succeeds-first-try", func(t *testing.T) {
		calls := 0
		policy := retryPolicy{Attempts: 5, Delay: time.Millisecond}
		err := policy.Do(t.Context(), func(ctx context.Context) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, calls)
	})

	t.Run("succeeds-after-transient-failures", func(t *testing.T) {
		calls := 0
		policy := retryPolicy{Attempts: 5, Delay: time.Millisecond}
		err := policy.Do(t.Context(), func(ctx context.Context) error {
			calls++
			if calls < 4 {
				return fmt.Errorf("not yet")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 4, calls)
	})

	t.Run("exhausts-attempts", func(t *testing.T) {
		calls := 0
		cause := fmt.Errorf("still racing")
		policy := retryPolicy{Attempts: 3, Delay: time.Millisecond}
		err := policy.Do(t.Context(), func(ctx context.Context) error {
			calls++
			return cause
		})
		require.ErrorIs(t, err, ErrRetriesExhausted)
		require.ErrorIs(t, err, cause)
		require.Equal(t, 3, calls)
	})

	t.Run("honors-cancellation-between-attempts", func(t *testing.T) {
		ctx, cancel := context.WithCancel(t.Context())
		calls := 0
		policy := retryPolicy{Attempts: 10, Delay: time.Minute}
		errCh := make(chan error, 1)
		go func() {
			errCh <- policy.Do(ctx, func(ctx context.Context) error {
				calls++
				return fmt.Errorf("fail")
			})
		}()
		time.Sleep(10 * time.Millisecond)
		cancel()
		require.ErrorIs(t, <-errCh, context.Canceled)
		require.Equal(t, 1, calls)
	})
}
