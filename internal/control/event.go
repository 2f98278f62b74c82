package control

import (
	"errors"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/noticed/internal/notification"
)

var errUnknownSignal = errors.New("unknown signal")

// Kind identifies a decoded signal.
type Kind int

const (
	KindAdded Kind = iota + 1
	KindUpdated
	KindClosed
	KindStateChanged
	KindPanelRequested
	KindActionInvoked
	// KindStandardClosed is NotificationClosed on the standard interface.
	KindStandardClosed
)

func (k Kind) String() string {
	switch k {
	case KindAdded:
		return "added"
	case KindUpdated:
		return "updated"
	case KindClosed:
		return "closed"
	case KindStateChanged:
		return "state"
	case KindPanelRequested:
		return "panel"
	case KindActionInvoked:
		return "action"
	case KindStandardClosed:
		return "std-closed"
	default:
		return "unknown"
	}
}

// Event is one signal emitted by the daemon. Only the fields relevant to
// Kind are set.
type Event struct {
	Kind      Kind
	View      notification.View
	ShowPopup bool
	ID        uint32
	Reason    notification.CloseReason
	ActionKey string
	State     notification.ControlState
	Panel     notification.PanelRequest
}

// Decode converts a raw bus signal into an Event.
func Decode(sig *dbus.Signal) (Event, error) {
	var ev Event
	var err error
	switch sig.Name {
	case member(notification.ControlInterface, notification.SignalAdded):
		ev.Kind = KindAdded
		err = dbus.Store(sig.Body, &ev.View, &ev.ShowPopup)
	case member(notification.ControlInterface, notification.SignalUpdated):
		ev.Kind = KindUpdated
		err = dbus.Store(sig.Body, &ev.View, &ev.ShowPopup)
	case member(notification.ControlInterface, notification.SignalNotificationClosed):
		ev.Kind = KindClosed
		err = storeClosed(sig.Body, &ev)
	case member(notification.ControlInterface, notification.SignalStateChanged):
		ev.Kind = KindStateChanged
		err = dbus.Store(sig.Body, &ev.State)
	case member(notification.ControlInterface, notification.SignalPanelRequested):
		ev.Kind = KindPanelRequested
		err = dbus.Store(sig.Body, &ev.Panel)
	case member(notification.NotificationsInterface, notification.SignalActionInvoked):
		ev.Kind = KindActionInvoked
		err = dbus.Store(sig.Body, &ev.ID, &ev.ActionKey)
	case member(notification.NotificationsInterface, notification.SignalNotificationClosed):
		ev.Kind = KindStandardClosed
		err = storeClosed(sig.Body, &ev)
	default:
		return Event{}, fmt.Errorf("%w: %s", errUnknownSignal, sig.Name)
	}
	if err != nil {
		return Event{}, fmt.Errorf("decode %s: %w", sig.Name, err)
	}
	return ev, nil
}

func storeClosed(body []any, ev *Event) error {
	var reason uint32
	if err := dbus.Store(body, &ev.ID, &reason); err != nil {
		return err
	}
	ev.Reason = notification.CloseReason(reason)
	return nil
}

func member(iface, name string) string {
	return iface + "." + name
}
