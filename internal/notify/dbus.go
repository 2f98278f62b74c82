//go:build linux

package notify

import (
	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/noticed/internal/notification"
)

// dbusNotifier sends notifications via D-Bus.
type dbusNotifier struct {
	obj dbus.BusObject
}

// New creates a Notifier talking to whoever owns the notifications name
// on conn.
func New(conn *dbus.Conn) (Notifier, error) {
	obj := conn.Object(notification.NotificationsName, notification.NotificationsPath)
	return &dbusNotifier{obj: obj}, nil
}

func (n *dbusNotifier) method(name string) string {
	return notification.NotificationsInterface + "." + name
}

// Notify sends a notification via D-Bus.
func (n *dbusNotifier) Notify(notif Notification) (uint32, error) {
	appName := notif.AppName
	if appName == "" {
		appName = "noticectl"
	}

	// Notify(app_name, replaces_id, icon, summary, body, actions, hints, timeout) -> id
	call := n.obj.Call(
		n.method("Notify"),
		0,
		appName,
		notif.ReplacesID,
		notif.Icon,
		notif.Title,
		notif.Body,
		actions(notif),
		hints(notif),
		notif.Timeout,
	)

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// Close closes a notification by ID.
func (n *dbusNotifier) Close(id uint32) error {
	return n.obj.Call(n.method("CloseNotification"), 0, id).Err
}

func (n *dbusNotifier) Capabilities() ([]string, error) {
	var caps []string
	err := n.obj.Call(n.method("GetCapabilities"), 0).Store(&caps)
	return caps, err
}

func (n *dbusNotifier) ServerInformation() (ServerInfo, error) {
	var info ServerInfo
	err := n.obj.Call(n.method("GetServerInformation"), 0).
		Store(&info.Name, &info.Vendor, &info.Version, &info.SpecVersion)
	return info, err
}
