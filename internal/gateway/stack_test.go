package gateway

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStack(t *testing.T) {
	t.Run("ensure-LIFO-order", func(t *testing.T) {
		var order []int
		s := new(stack)
		for i := 1; i <= 3; i++ {
			s.Push(func(ctx context.Context) error {
				order = append(order, i)
				return nil
			})
		}
		require.NoError(t, s.Destroy(t.Context()))
		require.Equal(t, []int{3, 2, 1}, order)
	})

	t.Run("ensure-errors-joined", func(t *testing.T) {
		err1 := fmt.Errorf("one")
		err2 := fmt.Errorf("two")
		s := new(stack)
		s.Push(func(ctx context.Context) error { return err1 })
		s.Push(func(ctx context.Context) error { return err2 })
		s.Push(func(ctx context.Context) error { return nil })

		err := s.Destroy(t.Context())
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})
}
