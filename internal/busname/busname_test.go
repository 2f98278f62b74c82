package busname

import (
	"context"
	"errors"
	"testing"
	"testing/synctest"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeBus struct {
	owner   string
	unique  string
	reply   dbus.RequestNameReply
	owners  chan string
	stopped bool
}

func newFakeBus(owner string) *fakeBus {
	return &fakeBus{owner: owner, unique: ":1.50", owners: make(chan string, 4)}
}

func (b *fakeBus) NameHasOwner(string) (bool, error) { return b.owner != "", nil }

func (b *fakeBus) GetNameOwner(string) (string, error) {
	if b.owner == "" {
		return "", errors.New("no owner")
	}
	return b.owner, nil
}

func (b *fakeBus) ConnectionPID(string) (uint32, error) { return 0, errors.New("unsupported") }

func (b *fakeBus) UniqueName() string { return b.unique }

func (b *fakeBus) RequestName(string, dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	return b.reply, nil
}

func (b *fakeBus) ReleaseName(string) error { return nil }

func (b *fakeBus) WatchOwner(string) (<-chan string, func(), error) {
	return b.owners, func() { b.stopped = true }, nil
}

func TestWaitForOwnerState_AlreadyThere(t *testing.T) {
	bus := newFakeBus(":1.7")

	ok, err := WaitForOwnerState(t.Context(), bus, "org.example", true, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, bus.stopped)
}

func TestWaitForOwnerState_Change(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		bus := newFakeBus(":1.7")
		go func() {
			time.Sleep(100 * time.Millisecond)
			bus.owners <- ":1.9"
			time.Sleep(100 * time.Millisecond)
			bus.owners <- ""
		}()

		start := time.Now()
		ok, err := WaitForOwnerState(t.Context(), bus, "org.example", false, time.Second)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, 200*time.Millisecond, time.Since(start))
	})
}

func TestWaitForOwnerState_Timeout(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		bus := newFakeBus("")

		start := time.Now()
		ok, err := WaitForOwnerState(t.Context(), bus, "org.example", true, 2*time.Second)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, 2*time.Second, time.Since(start))
	})
}

func TestWaitForOwnerState_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	ok, err := WaitForOwnerState(ctx, newFakeBus(""), "org.example", true, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ok)
}

func TestAcquireExclusive(t *testing.T) {
	tests := []struct {
		reply   dbus.RequestNameReply
		wantErr bool
	}{
		{dbus.RequestNameReplyPrimaryOwner, false},
		{dbus.RequestNameReplyAlreadyOwner, false},
		{dbus.RequestNameReplyExists, true},
		{dbus.RequestNameReplyInQueue, true},
	}
	for _, tt := range tests {
		t.Run(ReplyString(tt.reply), func(t *testing.T) {
			bus := newFakeBus("")
			bus.reply = tt.reply
			err := AcquireExclusive(bus, "org.example")
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrNameTaken)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLogCurrentOwner(t *testing.T) {
	assert.False(t, LogCurrentOwner(newFakeBus(""), "org.example", zap.NewNop()))
	assert.False(t, LogCurrentOwner(newFakeBus(":1.7"), "org.example", zap.NewNop()))
	assert.True(t, LogCurrentOwner(newFakeBus(":1.50"), "org.example", zap.NewNop()))
}
