// Package state persists the active session record across process restarts.
//
// The on-disk format is a flat key=value file so an operator can always
// inspect or repair it with a text editor. Parsing is deliberately tolerant:
// unknown keys are ignored and missing keys come back zero-valued, so a
// record written by an older build never breaks status reporting. The
// session file's presence is the sole source of truth for "is a tunnel
// active"; the orchestrator may have restarted since provisioning.
package state

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	sessionFile = "session"
	pidFile     = "tunnel.pid"
)

var (
	ErrStateDir   = fmt.Errorf("failed to prepare the state directory")
	ErrStateRead  = fmt.Errorf("failed to read the session record")
	ErrStateWrite = fmt.Errorf("failed to write the session record")
)

// Session is the durable record of the one active resource bundle.
type Session struct {
	SessionID         string
	Region            string
	InstanceID        string
	SecurityGroupID   string
	SecurityGroupName string
	KeyName           string
	KeyPath           string
	StartedAt         time.Time
}

// Elapsed reports how long the session has been running.
func (s Session) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt).Truncate(time.Second)
}

// Store reads and writes session records under a single directory.
type Store struct {
	dir string
}

// DefaultDir is the per-user state directory, '~/.vpn-tunnel'.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrStateDir, err)
	}
	return filepath.Join(home, ".vpn-tunnel"), nil
}

// NewStore opens a store rooted at 'dir', creating it owner-only if absent.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateDir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string {
	return s.dir
}

// KeyFilePath returns where the private key material for 'keyName' lives.
func (s *Store) KeyFilePath(keyName string) string {
	return filepath.Join(s.dir, keyName+".pem")
}

// ReapKeyFiles removes every .pem file from the state directory and reports
// how many were removed. Key material belongs to exactly one session; with
// no session active, any remaining .pem is leftover from a crash. 'keep'
// names paths to spare, for when a session is still live.
func (s *Store) ReapKeyFiles(keep ...string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "*.pem"))
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrStateRead, err)
	}
	spared := make(map[string]bool, len(keep))
	for _, path := range keep {
		spared[path] = true
	}
	removed := 0
	var failures error
	for _, path := range matches {
		if spared[path] {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			failures = errors.Join(failures, fmt.Errorf("%w: %w", ErrStateWrite, err))
			continue
		}
		removed++
	}
	return removed, failures
}

// Save writes the session record, replacing any previous one.
func (s *Store) Save(sess Session) error {
	var b strings.Builder
	fmt.Fprintf(&b, "session_id=%s\n", sess.SessionID)
	fmt.Fprintf(&b, "region=%s\n", sess.Region)
	fmt.Fprintf(&b, "instance_id=%s\n", sess.InstanceID)
	fmt.Fprintf(&b, "security_group_id=%s\n", sess.SecurityGroupID)
	fmt.Fprintf(&b, "security_group_name=%s\n", sess.SecurityGroupName)
	fmt.Fprintf(&b, "key_name=%s\n", sess.KeyName)
	fmt.Fprintf(&b, "key_path=%s\n", sess.KeyPath)
	fmt.Fprintf(&b, "started_at=%d\n", sess.StartedAt.Unix())
	if err := os.WriteFile(s.sessionPath(), []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("%w: %w", ErrStateWrite, err)
	}
	return nil
}

// Load reads the session record. A nil Session with a nil error means no
// session exists. Malformed lines and unknown keys are skipped rather than
// failing the load.
func (s *Store) Load() (*Session, error) {
	f, err := os.Open(s.sessionPath())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateRead, err)
	}
	defer f.Close()

	sess := &Session{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch key {
		case "session_id":
			sess.SessionID = value
		case "region":
			sess.Region = value
		case "instance_id":
			sess.InstanceID = value
		case "security_group_id":
			sess.SecurityGroupID = value
		case "security_group_name":
			sess.SecurityGroupName = value
		case "key_name":
			sess.KeyName = value
		case "key_path":
			sess.KeyPath = value
		case "started_at":
			if epoch, err := strconv.ParseInt(value, 10, 64); err == nil {
				sess.StartedAt = time.Unix(epoch, 0)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStateRead, err)
	}
	return sess, nil
}

// Clear removes the session record unconditionally. A missing record is not
// an error: clearing must always succeed so the "active" flag can never get
// permanently stuck.
func (s *Store) Clear() error {
	if err := os.Remove(s.sessionPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %w", ErrStateWrite, err)
	}
	return nil
}

func (s *Store) sessionPath() string {
	return filepath.Join(s.dir, sessionFile)
}
