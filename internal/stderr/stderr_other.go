//go:build !unix

// Package stderr provides a no-op implementation where fd 2 cannot be
// redirected.
package stderr

import (
	"context"
	"os"

	"go.uber.org/zap"
)

// Start is a no-op on this platform.
func Start() error {
	return nil
}

// Forward returns when ctx is done; nothing is ever captured.
func Forward(ctx context.Context, _ *zap.Logger) {
	<-ctx.Done()
}

// WriteOriginal writes to stderr.
func WriteOriginal(msg string) {
	_, _ = os.Stderr.WriteString(msg)
}

// Stop is a no-op on this platform.
func Stop() {}
