// Package tunnel launches and supervises the external sshuttle process that
// actually routes traffic through the gateway. sshuttle is a black box
// here: it gets a reachable address and a key, daemonizes itself, and is
// watched purely through its pid.
package tunnel

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/kballard/go-shellquote"

	"github.com/apophenist/vpn-tunnel/internal/proc"
	"github.com/apophenist/vpn-tunnel/internal/state"
)

const (
	// Binary is the tunnel program this tool supervises.
	Binary = "sshuttle"

	// The full default traffic range routes through the gateway.
	routedRange = "0.0.0.0/0"

	superviseInterval = 5 * time.Second
	pidfileWait       = 10 * time.Second

	stopGrace     = 30 * time.Second
	stopPollEvery = time.Second
)

var (
	ErrLaunch = fmt.Errorf("tunnel process failed to start")
	ErrStop   = fmt.Errorf("failed to stop tunnel process")
)

// Config describes one tunnel to establish.
type Config struct {
	Address   string
	User      string
	KeyPath   string
	ExtraArgs []string
}

// Supervisor starts, watches and stops the tunnel process, recording its
// pid through the state store so other invocations can find it.
type Supervisor struct {
	store *state.Store
}

func NewSupervisor(store *state.Store) *Supervisor {
	return &Supervisor{store: store}
}

// Command builds the sshuttle invocation for 'cfg'. Split out so the
// argument construction is checkable without running anything.
func (s *Supervisor) Command(cfg Config) []string {
	sshCmd := shellquote.Join(
		"ssh",
		"-i", cfg.KeyPath,
		"-o", "StrictHostKeyChecking=no",
		"-o", "UserKnownHostsFile=/dev/null",
	)
	args := []string{
		"--daemon",
		"--pidfile", s.store.PIDFilePath(),
		"--ssh-cmd", sshCmd,
		"-r", cfg.User + "@" + cfg.Address,
		routedRange,
	}
	return append(args, cfg.ExtraArgs...)
}

// Start launches sshuttle in daemon mode and returns the daemon's pid.
// sshuttle's parent process exits zero only once the tunnel is established
// and the pidfile written, so a non-zero exit here means the launch failed
// outright and no supervision is warranted.
func (s *Supervisor) Start(ctx context.Context, cfg Config) (int, error) {
	log := clog.FromContext(ctx)
	args := s.Command(cfg)
	log.Info("starting tunnel", "binary", Binary, "remote", cfg.User+"@"+cfg.Address)
	log.Debug("tunnel command", "args", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, Binary, args...)
	// Inherit stderr directly. Piping it would leave this process reading
	// from a descriptor the detached daemon still holds open, and the wait
	// would never return.
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrLaunch, err)
	}

	pid, err := s.awaitPIDFile(ctx)
	if err != nil {
		return 0, err
	}
	log.Info("tunnel established", "pid", pid)
	return pid, nil
}

func (s *Supervisor) awaitPIDFile(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, pidfileWait)
	defer cancel()
	for {
		pid, err := s.store.LoadPID()
		if err == nil && pid > 0 {
			return pid, nil
		}
		select {
		case <-ctx.Done():
			return 0, fmt.Errorf("%w: daemon pidfile never appeared", ErrLaunch)
		case <-time.After(200 * time.Millisecond):
		}
	}
}

// Supervise blocks until the tunnel process exits (by any cause) or ctx is
// cancelled. It returns nil when the process went away on its own and
// ctx.Err() when the operator interrupted; both converge on the same
// teardown path in the caller.
func (s *Supervisor) Supervise(ctx context.Context, pid int) error {
	log := clog.FromContext(ctx).With("pid", pid)
	log.Info("supervising tunnel, blocking until it exits")
	ticker := time.NewTicker(superviseInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !proc.Alive(pid) {
				log.Info("tunnel process has exited")
				return nil
			}
		}
	}
}

// Stop signals the recorded tunnel process to terminate: graceful TERM
// first, escalating to KILL after a bounded wait. It is a no-op when no
// pid is recorded or the process is already gone, and always clears the
// pid record.
func (s *Supervisor) Stop(ctx context.Context) error {
	log := clog.FromContext(ctx)
	pid, err := s.store.LoadPID()
	if err != nil || pid <= 0 {
		_ = s.store.ClearPID()
		return nil
	}
	defer func() {
		_ = s.store.ClearPID()
	}()

	if !proc.Alive(pid) {
		log.Debug("tunnel process already gone", "pid", pid)
		return nil
	}

	log.Info("stopping tunnel", "pid", pid)
	if err := syscall.Kill(pid, syscall.SIGTERM); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("%w: %w", ErrStop, err)
	}

	deadline := time.Now().Add(stopGrace)
	for time.Now().Before(deadline) {
		if !proc.Alive(pid) {
			log.Info("tunnel stopped")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(stopPollEvery):
		}
	}

	log.Warn("tunnel did not stop in time, escalating to SIGKILL", "pid", pid)
	if err := syscall.Kill(pid, syscall.SIGKILL); err != nil && err != syscall.ESRCH {
		return fmt.Errorf("%w: %w", ErrStop, err)
	}
	return nil
}

// Alive reports whether the recorded tunnel process is currently running.
func (s *Supervisor) Alive() bool {
	pid, err := s.store.LoadPID()
	if err != nil || pid <= 0 {
		return false
	}
	return proc.Alive(pid)
}

// LookPath verifies the tunnel binary is installed.
func LookPath() error {
	if _, err := exec.LookPath(Binary); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", Binary, err)
	}
	return nil
}
