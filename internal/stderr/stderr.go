//go:build unix

// Package stderr captures output that C libraries (ALSA through the audio
// backend) write directly to file descriptor 2, bypassing Go's os.Stderr,
// and forwards it to the structured logger.
package stderr

import (
	"bufio"
	"context"
	"os"
	"strings"
	"syscall"

	"go.uber.org/zap"
)

// Messages receives stderr lines captured from C libraries.
var Messages = make(chan string, 100)

var (
	origStderr int
	origFile   *os.File
	pipeRead   *os.File
	pipeWrite  *os.File
	started    bool
)

// Start begins capturing stderr output.
// Must be called early in main(), before the logger is built and before
// any C library initialization. os.Stderr is pointed at a duplicate of the
// original descriptor so Go writers, the logger included, are not captured.
// Returns an error if capture cannot be set up, but the program can continue
// without stderr capture.
func Start() error {
	if started {
		return nil
	}

	// Create a pipe
	r, w, err := os.Pipe()
	if err != nil {
		return err
	}

	// Save original stderr file descriptor
	origStderr, err = syscall.Dup(int(os.Stderr.Fd()))
	if err != nil {
		r.Close()
		w.Close()
		return err
	}

	// Redirect stderr (fd 2) to the pipe's write end
	err = syscall.Dup2(int(w.Fd()), int(os.Stderr.Fd()))
	if err != nil {
		syscall.Close(origStderr)
		r.Close()
		w.Close()
		return err
	}

	pipeRead = r
	pipeWrite = w
	origFile = os.NewFile(uintptr(origStderr), "/dev/stderr")
	os.Stderr = origFile
	started = true

	// Start goroutine to read from pipe and send to channel
	go func() {
		scanner := bufio.NewScanner(pipeRead)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				select {
				case Messages <- line:
				default:
					// Channel full, drop message to avoid blocking
				}
			}
		}
	}()

	return nil
}

// Forward logs captured lines at warn level until ctx is done.
func Forward(ctx context.Context, logger *zap.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-Messages:
			if !ok {
				return
			}
			logger.Warn("native library output", zap.String("line", line))
		}
	}
}

// WriteOriginal writes directly to the original stderr, bypassing capture.
func WriteOriginal(msg string) {
	if origStderr > 0 {
		_, _ = syscall.Write(origStderr, []byte(msg))
	}
}

// Stop restores the original stderr. Should be called on program exit.
func Stop() {
	if !started {
		return
	}

	// Restore original stderr; origFile owns origStderr.
	_ = syscall.Dup2(origStderr, 2)
	os.Stderr = os.NewFile(2, "/dev/stderr")
	_ = origFile.Close()
	origStderr = 0

	// Close pipe
	pipeWrite.Close()
	pipeRead.Close()

	started = false
}
