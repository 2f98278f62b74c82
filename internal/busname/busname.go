// Package busname wraps the bus daemon's name ownership calls.
package busname

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// ErrNameTaken is returned when another connection owns a name we need.
var ErrNameTaken = errors.New("bus name is owned by another connection")

const (
	busName      = "org.freedesktop.DBus"
	busInterface = "org.freedesktop.DBus"
	ownerChanged = "NameOwnerChanged"
)

// Bus is the subset of the bus daemon used for ownership negotiation.
type Bus interface {
	NameHasOwner(name string) (bool, error)
	GetNameOwner(name string) (string, error)
	ConnectionPID(uniqueName string) (uint32, error)
	UniqueName() string
	RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error)
	ReleaseName(name string) error
	// WatchOwner streams the new owner of name ("" when released) until
	// stop is called.
	WatchOwner(name string) (owners <-chan string, stop func(), err error)
}

// Conn implements Bus on a live connection.
type Conn struct {
	conn *dbus.Conn
}

// New wraps conn.
func New(conn *dbus.Conn) *Conn {
	return &Conn{conn: conn}
}

func (c *Conn) call(method string, args ...any) *dbus.Call {
	return c.conn.BusObject().Call(busInterface+"."+method, 0, args...)
}

func (c *Conn) NameHasOwner(name string) (bool, error) {
	var has bool
	err := c.call("NameHasOwner", name).Store(&has)
	return has, err
}

func (c *Conn) GetNameOwner(name string) (string, error) {
	var owner string
	err := c.call("GetNameOwner", name).Store(&owner)
	return owner, err
}

func (c *Conn) ConnectionPID(uniqueName string) (uint32, error) {
	var pid uint32
	err := c.call("GetConnectionUnixProcessID", uniqueName).Store(&pid)
	return pid, err
}

func (c *Conn) UniqueName() string {
	names := c.conn.Names()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func (c *Conn) RequestName(name string, flags dbus.RequestNameFlags) (dbus.RequestNameReply, error) {
	return c.conn.RequestName(name, flags)
}

func (c *Conn) ReleaseName(name string) error {
	reply, err := c.conn.ReleaseName(name)
	if err != nil {
		return err
	}
	if reply != dbus.ReleaseNameReplyReleased {
		return fmt.Errorf("release %s: reply %d", name, reply)
	}
	return nil
}

func (c *Conn) WatchOwner(name string) (<-chan string, func(), error) {
	opts := []dbus.MatchOption{
		dbus.WithMatchSender(busName),
		dbus.WithMatchInterface(busInterface),
		dbus.WithMatchMember(ownerChanged),
		dbus.WithMatchArg(0, name),
	}
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return nil, nil, fmt.Errorf("watch %s: %w", name, err)
	}

	signals := make(chan *dbus.Signal, 16)
	c.conn.Signal(signals)

	owners := make(chan string, 4)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				return
			case sig := <-signals:
				if sig.Name != busInterface+"."+ownerChanged || len(sig.Body) != 3 {
					continue
				}
				if n, _ := sig.Body[0].(string); n != name {
					continue
				}
				owner, _ := sig.Body[2].(string)
				select {
				case owners <- owner:
				case <-done:
					return
				}
			}
		}
	}()

	stop := func() {
		close(done)
		c.conn.RemoveSignal(signals)
		_ = c.conn.RemoveMatchSignal(opts...)
	}
	return owners, stop, nil
}

// WaitForOwnerState waits until name is owned (expectOwner) or unowned.
// It subscribes before polling so a change between the two is not lost,
// and never blocks past timeout. The bool reports whether the state was
// reached.
func WaitForOwnerState(ctx context.Context, bus Bus, name string, expectOwner bool, timeout time.Duration) (bool, error) {
	owners, stop, err := bus.WatchOwner(name)
	if err != nil {
		return false, err
	}
	defer stop()

	if has, err := bus.NameHasOwner(name); err == nil && has == expectOwner {
		return true, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-timer.C:
			return false, nil
		case owner, ok := <-owners:
			if !ok {
				return false, nil
			}
			if (owner != "") == expectOwner {
				return true, nil
			}
		}
	}
}

// AcquireExclusive requests name without queueing or replacement.
func AcquireExclusive(bus Bus, name string) error {
	reply, err := bus.RequestName(name, dbus.NameFlagDoNotQueue)
	if err != nil {
		return fmt.Errorf("request %s: %w", name, err)
	}
	switch reply {
	case dbus.RequestNameReplyPrimaryOwner, dbus.RequestNameReplyAlreadyOwner:
		return nil
	default:
		return fmt.Errorf("%s: %w", name, ErrNameTaken)
	}
}

// LogCurrentOwner logs who owns name and reports whether it is us.
func LogCurrentOwner(bus Bus, name string, logger *zap.Logger) bool {
	owner, err := bus.GetNameOwner(name)
	if err != nil {
		logger.Info("bus name has no owner", zap.String("name", name), zap.Error(err))
		return false
	}
	self := owner == bus.UniqueName()
	logger.Info("bus name owner",
		zap.String("name", name),
		zap.String("owner", owner),
		zap.Bool("self", self),
	)
	return self
}

// ReplyString names a RequestName reply for logs.
func ReplyString(r dbus.RequestNameReply) string {
	switch r {
	case dbus.RequestNameReplyPrimaryOwner:
		return "primary-owner"
	case dbus.RequestNameReplyInQueue:
		return "in-queue"
	case dbus.RequestNameReplyExists:
		return "exists"
	case dbus.RequestNameReplyAlreadyOwner:
		return "already-owner"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(r))
	}
}
