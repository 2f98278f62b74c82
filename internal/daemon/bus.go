package daemon

import (
	"fmt"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/llehouerou/noticed/internal/notification"
)

const errInvalidArgs = "org.freedesktop.DBus.Error.InvalidArgs"

// notificationsObject serves org.freedesktop.Notifications.
type notificationsObject struct {
	state *State
}

func (o *notificationsObject) GetCapabilities() ([]string, *dbus.Error) {
	return o.state.Capabilities(), nil
}

func (o *notificationsObject) Notify(
	appName string,
	replacesID uint32,
	appIcon string,
	summary string,
	body string,
	actions []string,
	hints map[string]dbus.Variant,
	expireTimeout int32,
) (uint32, *dbus.Error) {
	id, err := o.state.Notify(notification.Request{
		AppName:       appName,
		ReplacesID:    replacesID,
		AppIcon:       appIcon,
		Summary:       summary,
		Body:          body,
		Actions:       actions,
		Hints:         notification.Hints(hints),
		ExpireTimeout: expireTimeout,
	})
	if err != nil {
		return id, dbus.MakeFailedError(err)
	}
	return id, nil
}

func (o *notificationsObject) CloseNotification(id uint32) *dbus.Error {
	return failed(o.state.CloseNotification(id, notification.ClosedByCall))
}

func (o *notificationsObject) GetServerInformation() (string, string, string, string, *dbus.Error) {
	name, vendor, version, spec := o.state.ServerInformation()
	return name, vendor, version, spec, nil
}

// controlObject serves the private control interface.
type controlObject struct {
	state *State
}

func (o *controlObject) GetState() (notification.ControlState, *dbus.Error) {
	return o.state.GetState(), nil
}

func (o *controlObject) ListActive() ([]notification.View, *dbus.Error) {
	return o.state.ListActive(), nil
}

func (o *controlObject) ListHistory() ([]notification.View, *dbus.Error) {
	return o.state.ListHistory(), nil
}

func (o *controlObject) OpenPanel() *dbus.Error {
	return failed(o.state.RequestPanel(notification.OpenRequest()))
}

func (o *controlObject) OpenPanelDebug(level byte) *dbus.Error {
	if notification.PanelDebugLevel(level) > notification.DebugVerbose {
		return dbus.NewError(errInvalidArgs, []any{fmt.Sprintf("unknown debug level %d", level)})
	}
	return failed(o.state.RequestPanel(notification.OpenDebugRequest(notification.PanelDebugLevel(level))))
}

func (o *controlObject) ClosePanel() *dbus.Error {
	return failed(o.state.RequestPanel(notification.CloseRequest()))
}

func (o *controlObject) TogglePanel() *dbus.Error {
	return failed(o.state.RequestPanel(notification.ToggleRequest()))
}

func (o *controlObject) SetDnd(enabled bool) *dbus.Error {
	return failed(o.state.SetDND(enabled))
}

func (o *controlObject) Dismiss(id uint32) *dbus.Error {
	return failed(o.state.Dismiss(id))
}

func (o *controlObject) InvokeAction(id uint32, key string) *dbus.Error {
	return failed(o.state.InvokeAction(id, key))
}

func (o *controlObject) ClearAll() *dbus.Error {
	return failed(o.state.ClearAll())
}

func failed(err error) *dbus.Error {
	if err == nil {
		return nil
	}
	return dbus.MakeFailedError(err)
}

// Export registers both interfaces, with introspection data, on conn.
// Names are requested separately.
func Export(conn *dbus.Conn, state *State) error {
	notifications := &notificationsObject{state: state}
	control := &controlObject{state: state}

	if err := exportObject(conn, notifications, notification.NotificationsPath,
		notification.NotificationsInterface, notificationsSignals()); err != nil {
		return err
	}
	return exportObject(conn, control, notification.ControlPath,
		notification.ControlInterface, controlSignals())
}

func exportObject(conn *dbus.Conn, obj any, path dbus.ObjectPath, iface string, signals []introspect.Signal) error {
	if err := conn.Export(obj, path, iface); err != nil {
		return fmt.Errorf("export %s: %w", iface, err)
	}
	node := introspectNode(obj, path, iface, signals)
	if err := conn.Export(introspect.NewIntrospectable(node), path, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection for %s: %w", iface, err)
	}
	return nil
}

func introspectNode(obj any, path dbus.ObjectPath, iface string, signals []introspect.Signal) *introspect.Node {
	return &introspect.Node{
		Name: string(path),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			{
				Name:    iface,
				Methods: introspect.Methods(obj),
				Signals: signals,
			},
		},
	}
}

func arg(name string, v any) introspect.Arg {
	return introspect.Arg{Name: name, Type: dbus.SignatureOf(v).String()}
}

func notificationsSignals() []introspect.Signal {
	return []introspect.Signal{
		{Name: notification.SignalNotificationClosed, Args: []introspect.Arg{arg("id", uint32(0)), arg("reason", uint32(0))}},
		{Name: notification.SignalActionInvoked, Args: []introspect.Arg{arg("id", uint32(0)), arg("action_key", "")}},
	}
}

func controlSignals() []introspect.Signal {
	view := arg("view", notification.View{})
	popup := arg("show_popup", false)
	return []introspect.Signal{
		{Name: notification.SignalAdded, Args: []introspect.Arg{view, popup}},
		{Name: notification.SignalUpdated, Args: []introspect.Arg{view, popup}},
		{Name: notification.SignalNotificationClosed, Args: []introspect.Arg{arg("id", uint32(0)), arg("reason", uint32(0))}},
		{Name: notification.SignalStateChanged, Args: []introspect.Arg{arg("state", notification.ControlState{})}},
		{Name: notification.SignalPanelRequested, Args: []introspect.Arg{arg("request", notification.PanelRequest{})}},
	}
}
