package trial

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/llehouerou/noticed/internal/logging"
)

// System is the host access the negotiator needs.
type System interface {
	ReadComm(ctx context.Context, pid uint32) (string, bool)
	ReadArgs(ctx context.Context, pid uint32) ([]string, bool)
	PgrepExact(ctx context.Context, name string) []int
	UnitActive(ctx context.Context, unit string) bool
	StopUnit(ctx context.Context, unit string) error
	StartUnit(ctx context.Context, unit string) error
	Terminate(pid uint32) error
	Spawn(program string, args []string) error
}

const commandTimeout = 2 * time.Second

// HostSystem talks to /proc, systemctl --user and the process table.
type HostSystem struct {
	procRoot string
	logger   *zap.Logger
}

// NewHostSystem returns the real System.
func NewHostSystem(logger *zap.Logger) *HostSystem {
	return &HostSystem{procRoot: "/proc", logger: logger}
}

// run executes a command bounded by commandTimeout. ok is false when the
// command could not run or timed out.
func (s *HostSystem) run(ctx context.Context, name string, args ...string) (out []byte, exitCode int, ok bool) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	line := logging.Snippet(name + " " + strings.Join(args, " "))
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.Output()
	if ctx.Err() != nil {
		s.logger.Warn("trial command timed out", zap.String("command", line))
		return nil, -1, false
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, exitErr.ExitCode(), true
		}
		s.logger.Warn("trial command failed", zap.String("command", line), zap.Error(err))
		return nil, -1, false
	}
	return out, 0, true
}

func (s *HostSystem) ReadComm(ctx context.Context, pid uint32) (string, bool) {
	if b, err := os.ReadFile(fmt.Sprintf("%s/%d/comm", s.procRoot, pid)); err == nil {
		if comm := strings.TrimSpace(string(b)); comm != "" {
			return comm, true
		}
	}
	out, code, ok := s.run(ctx, "ps", "-p", strconv.FormatUint(uint64(pid), 10), "-o", "comm=")
	if !ok || code != 0 {
		return "", false
	}
	comm := strings.TrimSpace(string(out))
	return comm, comm != ""
}

func (s *HostSystem) ReadArgs(ctx context.Context, pid uint32) ([]string, bool) {
	if b, err := os.ReadFile(fmt.Sprintf("%s/%d/cmdline", s.procRoot, pid)); err == nil {
		if args := splitCmdline(b); len(args) > 0 {
			return args, true
		}
	}
	out, code, ok := s.run(ctx, "ps", "-p", strconv.FormatUint(uint64(pid), 10), "-o", "args=")
	if !ok || code != 0 {
		return nil, false
	}
	args := strings.Fields(string(out))
	return args, len(args) > 0
}

// splitCmdline splits a NUL separated /proc cmdline, keeping argument
// boundaries.
func splitCmdline(b []byte) []string {
	var args []string
	for _, part := range bytes.Split(b, []byte{0}) {
		if len(part) > 0 {
			args = append(args, string(part))
		}
	}
	return args
}

func (s *HostSystem) PgrepExact(ctx context.Context, name string) []int {
	out, code, ok := s.run(ctx, "pgrep", "-x", name)
	if !ok || code != 0 {
		return nil
	}
	var pids []int
	for _, line := range strings.Split(string(out), "\n") {
		if pid, err := strconv.Atoi(strings.TrimSpace(line)); err == nil {
			pids = append(pids, pid)
		}
	}
	return pids
}

func (s *HostSystem) UnitActive(ctx context.Context, unit string) bool {
	_, code, ok := s.run(ctx, "systemctl", "--user", "is-active", "--quiet", unit)
	return ok && code == 0
}

func (s *HostSystem) StopUnit(ctx context.Context, unit string) error {
	return s.systemctl(ctx, "stop", unit)
}

func (s *HostSystem) StartUnit(ctx context.Context, unit string) error {
	return s.systemctl(ctx, "start", unit)
}

func (s *HostSystem) systemctl(ctx context.Context, verb, unit string) error {
	_, code, ok := s.run(ctx, "systemctl", "--user", verb, unit)
	if !ok {
		return fmt.Errorf("systemctl %s %s: command error", verb, unit)
	}
	if code != 0 {
		return fmt.Errorf("systemctl %s %s: exit status %d", verb, unit, code)
	}
	return nil
}

func (s *HostSystem) Terminate(pid uint32) error {
	if pid == 0 || pid > 1<<31-1 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	return unix.Kill(int(pid), unix.SIGTERM)
}

// Spawn starts program detached in its own session and does not wait.
func (s *HostSystem) Spawn(program string, args []string) error {
	cmd := exec.Command(program, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	pid := cmd.Process.Pid
	go func() {
		err := cmd.Wait()
		s.logger.Debug("restored process exited", zap.Int("pid", pid), zap.Error(err))
	}()
	return nil
}
