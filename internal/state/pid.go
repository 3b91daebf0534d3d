package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrPIDRead = fmt.Errorf("failed to read the tunnel pid file")

// PIDFilePath is where the tunnel process records its pid so a different
// invocation ('status', 'stop') can find and signal it.
func (s *Store) PIDFilePath() string {
	return filepath.Join(s.dir, pidFile)
}

// SavePID records the tunnel process handle.
func (s *Store) SavePID(pid int) error {
	data := strconv.Itoa(pid) + "\n"
	if err := os.WriteFile(s.PIDFilePath(), []byte(data), 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrStateWrite, err)
	}
	return nil
}

// LoadPID returns the recorded tunnel pid, or 0 when no pid file exists.
func (s *Store) LoadPID() (int, error) {
	data, err := os.ReadFile(s.PIDFilePath())
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPIDRead, err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPIDRead, err)
	}
	return pid, nil
}

// ClearPID removes the pid file, tolerating its absence.
func (s *Store) ClearPID() error {
	if err := os.Remove(s.PIDFilePath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %w", ErrStateWrite, err)
	}
	return nil
}
