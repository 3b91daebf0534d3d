package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/apophenist/vpn-tunnel/internal/proc"
)

const lockFile = "lock"

var ErrLocked = fmt.Errorf("another invocation holds the session lock")

// AcquireLock takes the exclusive session lock, acquire-or-fail. It guards
// the active-session check plus the provisioning sequence against a
// concurrent 'start' racing past the check. The returned release func is
// safe to call more than once.
//
// The lock is a plain O_EXCL file holding the owner's pid. A crash leaves
// it behind; if the recorded pid is no longer alive the lock is considered
// stale and taken over.
func (s *Store) AcquireLock() (func(), error) {
	path := filepath.Join(s.dir, lockFile)
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			fmt.Fprintf(f, "%d\n", os.Getpid())
			_ = f.Close()
			released := false
			return func() {
				if released {
					return
				}
				released = true
				_ = os.Remove(path)
			}, nil
		}
		if !os.IsExist(err) {
			return nil, fmt.Errorf("%w: %w", ErrStateWrite, err)
		}
		if holderAlive(path) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, path)
		}
		// Stale lock from a dead process, remove and retry once.
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %w", ErrStateWrite, err)
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrLocked, path)
}

func holderAlive(path string) bool {
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	return proc.Alive(pid)
}
