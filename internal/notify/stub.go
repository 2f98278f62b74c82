//go:build !linux

package notify

import (
	"errors"

	"github.com/godbus/dbus/v5"
)

var errUnsupported = errors.New("desktop notifications are only supported on Linux")

// stubNotifier is a no-op notifier for non-Linux platforms.
type stubNotifier struct{}

// New returns a no-op notifier on non-Linux platforms.
func New(_ *dbus.Conn) (Notifier, error) {
	return &stubNotifier{}, nil
}

func (s *stubNotifier) Notify(_ Notification) (uint32, error) {
	return 0, errUnsupported
}

func (s *stubNotifier) Close(_ uint32) error {
	return errUnsupported
}

func (s *stubNotifier) Capabilities() ([]string, error) {
	return nil, errUnsupported
}

func (s *stubNotifier) ServerInformation() (ServerInfo, error) {
	return ServerInfo{}, errUnsupported
}
