package tunnel

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apophenist/vpn-tunnel/internal/state"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *state.Store) {
	t.Helper()
	store, err := state.NewStore(filepath.Join(t.TempDir(), "state"))
	require.NoError(t, err)
	return NewSupervisor(store), store
}

func TestCommand(t *testing.T) {
	sup, store := newTestSupervisor(t)

	args := sup.Command(Config{
		Address: "203.0.113.7",
		User:    "ubuntu",
		KeyPath: "/home/op/.vpn-tunnel/key.pem",
	})

	require.Contains(t, args, "--daemon")
	require.Contains(t, args, "--pidfile")
	require.Contains(t, args, store.PIDFilePath())
	require.Contains(t, args, "-r")
	require.Contains(t, args, "ubuntu@203.0.113.7")
	// The full default range routes through the gateway.
	require.Equal(t, "0.0.0.0/0", args[len(args)-1])

	// The ssh command is one quoted argument carrying the key.
	i := indexOf(t, args, "--ssh-cmd")
	require.Contains(t, args[i+1], "-i /home/op/.vpn-tunnel/key.pem")
	require.Contains(t, args[i+1], "StrictHostKeyChecking=no")
}

func TestCommandExtraArgs(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	args := sup.Command(Config{
		Address:   "203.0.113.7",
		User:      "ubuntu",
		KeyPath:   "/k.pem",
		ExtraArgs: []string{"--dns", "-x", "10.0.0.0/8"},
	})
	require.Contains(t, args, "--dns")
	require.Contains(t, args, "-x")
	require.Contains(t, args, "10.0.0.0/8")
}

func TestStopWithoutProcess(t *testing.T) {
	sup, store := newTestSupervisor(t)

	// No pid recorded at all.
	require.NoError(t, sup.Stop(t.Context()))

	// A recorded pid whose process is long gone.
	require.NoError(t, store.SavePID(99999999))
	require.NoError(t, sup.Stop(t.Context()))

	pid, err := store.LoadPID()
	require.NoError(t, err)
	require.Zero(t, pid, "stop must clear the pid record")
}

func TestAlive(t *testing.T) {
	sup, store := newTestSupervisor(t)
	require.False(t, sup.Alive())

	require.NoError(t, store.SavePID(99999999))
	require.False(t, sup.Alive())
}

func TestSuperviseHonorsCancellation(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	err := sup.Supervise(ctx, 1)
	require.ErrorIs(t, err, context.Canceled)
}

func indexOf(t *testing.T, args []string, want string) int {
	t.Helper()
	for i, a := range args {
		if a == want {
			return i
		}
	}
	t.Fatalf("argument %q not found in %v", want, args)
	return -1
}
