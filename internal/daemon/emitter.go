package daemon

import (
	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/noticed/internal/notification"
)

// Emitter sends the signals of both interfaces. The first two belong to
// the standard interface, the rest to the control interface.
type Emitter interface {
	NotificationClosed(id uint32, reason notification.CloseReason) error
	ActionInvoked(id uint32, key string) error

	ControlAdded(v notification.View, showPopup bool) error
	ControlUpdated(v notification.View, showPopup bool) error
	ControlClosed(id uint32, reason notification.CloseReason) error
	StateChanged(s notification.ControlState) error
	PanelRequested(r notification.PanelRequest) error
}

// BusEmitter emits on a session bus connection.
type BusEmitter struct {
	conn *dbus.Conn
}

// NewBusEmitter returns an Emitter backed by conn.
func NewBusEmitter(conn *dbus.Conn) *BusEmitter {
	return &BusEmitter{conn: conn}
}

func (e *BusEmitter) standard(name string, values ...any) error {
	return e.conn.Emit(notification.NotificationsPath, notification.NotificationsInterface+"."+name, values...)
}

func (e *BusEmitter) control(name string, values ...any) error {
	return e.conn.Emit(notification.ControlPath, notification.ControlInterface+"."+name, values...)
}

func (e *BusEmitter) NotificationClosed(id uint32, reason notification.CloseReason) error {
	return e.standard(notification.SignalNotificationClosed, id, uint32(reason))
}

func (e *BusEmitter) ActionInvoked(id uint32, key string) error {
	return e.standard(notification.SignalActionInvoked, id, key)
}

func (e *BusEmitter) ControlAdded(v notification.View, showPopup bool) error {
	return e.control(notification.SignalAdded, v, showPopup)
}

func (e *BusEmitter) ControlUpdated(v notification.View, showPopup bool) error {
	return e.control(notification.SignalUpdated, v, showPopup)
}

func (e *BusEmitter) ControlClosed(id uint32, reason notification.CloseReason) error {
	return e.control(notification.SignalNotificationClosed, id, uint32(reason))
}

func (e *BusEmitter) StateChanged(s notification.ControlState) error {
	return e.control(notification.SignalStateChanged, s)
}

func (e *BusEmitter) PanelRequested(r notification.PanelRequest) error {
	return e.control(notification.SignalPanelRequested, r)
}
