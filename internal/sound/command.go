package sound

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/llehouerou/noticed/internal/logging"
)

const (
	commandTimeout = 3 * time.Second
	maxConcurrent  = 2
)

// commandBackend runs an external player per sound and reaps it in the
// background.
type commandBackend struct {
	name    string
	program string
	sem     *semaphore.Weighted
	timeout time.Duration
	logger  *zap.Logger
}

func newCommandBackend(name, program string, logger *zap.Logger) *commandBackend {
	return &commandBackend{
		name:    name,
		program: program,
		sem:     semaphore.NewWeighted(maxConcurrent),
		timeout: commandTimeout,
		logger:  logger,
	}
}

func (b *commandBackend) Name() string { return b.name }

// args builds the command line; ok is false when the player cannot play
// this kind of source.
func (b *commandBackend) args(src Source) ([]string, bool) {
	if b.name == BackendCanberra {
		if src.File != "" {
			return []string{"-f", src.File}, true
		}
		return []string{"-i", src.Name}, true
	}
	if src.File == "" {
		return nil, false
	}
	return []string{src.File}, true
}

func (b *commandBackend) Play(src Source) Outcome {
	args, ok := b.args(src)
	if !ok {
		b.logger.Warn("sound backend does not support sound names", zap.String("backend", b.name))
		return Failed
	}
	if !b.sem.TryAcquire(1) {
		b.logger.Debug("sound command skipped, concurrency limit reached", zap.String("backend", b.name))
		return Busy
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
	cmd := exec.CommandContext(ctx, b.program, args...)
	line := logging.Snippet(b.program + " " + strings.Join(args, " "))

	if err := cmd.Start(); err != nil {
		cancel()
		b.sem.Release(1)
		b.logger.Warn("failed to spawn sound command",
			zap.String("backend", b.name), zap.String("command", line), zap.Error(err))
		return Failed
	}
	pid := cmd.Process.Pid
	b.logger.Debug("sound command spawned",
		zap.String("backend", b.name), zap.Int("pid", pid), zap.String("command", line))

	go func() {
		defer b.sem.Release(1)
		defer cancel()
		started := time.Now()
		err := cmd.Wait()
		fields := []zap.Field{
			zap.String("backend", b.name),
			zap.Int("pid", pid),
			zap.String("command", line),
			zap.Duration("elapsed", time.Since(started)),
		}
		var exitErr *exec.ExitError
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			b.logger.Warn("sound command timed out", fields...)
		case errors.As(err, &exitErr):
			b.logger.Warn("sound command exited with error",
				append(fields, zap.Int("status", exitErr.ExitCode()))...)
		case err != nil:
			b.logger.Warn("sound command wait failed", append(fields, zap.Error(err))...)
		default:
			b.logger.Debug("sound command completed", fields...)
		}
	}()
	return Played
}
