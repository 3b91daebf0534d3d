package bootscript

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	t.Run("hard-backstop-at-twice-idle-timeout", func(t *testing.T) {
		for _, idleTimeout := range []int{10, 30, 45} {
			script, err := Render(Params{
				HardTimeoutMinutes: HardTimeout(idleTimeout),
			})
			require.NoError(t, err)
			require.Contains(t, script, fmt.Sprintf("shutdown -h +%d\n", 2*idleTimeout))
		}
	})

	t.Run("defaults-applied", func(t *testing.T) {
		script, err := Render(Params{HardTimeoutMinutes: 60})
		require.NoError(t, err)
		require.Contains(t, script, "threshold=95")
		require.Contains(t, script, "window=30")
	})

	t.Run("explicit-params", func(t *testing.T) {
		script, err := Render(Params{
			IdleThresholdPercent: 80,
			IdleWindowMinutes:    15,
			HardTimeoutMinutes:   20,
		})
		require.NoError(t, err)
		require.Contains(t, script, "threshold=80")
		require.Contains(t, script, "window=15")
		require.Contains(t, script, "shutdown -h +20")
	})

	t.Run("cron-entry-present", func(t *testing.T) {
		script, err := Render(Params{HardTimeoutMinutes: 60})
		require.NoError(t, err)
		require.Contains(t, script, "/etc/cron.d/idle-watchdog")
		require.Contains(t, script, "* * * * * root /usr/local/bin/idle-watchdog")
	})

	t.Run("missing-hard-timeout-rejected", func(t *testing.T) {
		_, err := Render(Params{})
		require.ErrorIs(t, err, ErrRender)
		_, err = Render(Params{HardTimeoutMinutes: -5})
		require.ErrorIs(t, err, ErrRender)
	})
}
