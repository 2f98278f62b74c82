// Package control is a client for the daemon's private control interface,
// used by noticectl and front-ends.
package control

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/noticed/internal/notification"
)

// Client calls the control object owned by the daemon.
type Client struct {
	conn *dbus.Conn
	obj  dbus.BusObject
}

// New returns a Client on conn.
func New(conn *dbus.Conn) *Client {
	return &Client{
		conn: conn,
		obj:  conn.Object(notification.ControlName, notification.ControlPath),
	}
}

func (c *Client) call(method string, args ...any) *dbus.Call {
	return c.obj.Call(notification.ControlInterface+"."+method, 0, args...)
}

func (c *Client) GetState() (notification.ControlState, error) {
	var s notification.ControlState
	err := c.call("GetState").Store(&s)
	return s, err
}

func (c *Client) ListActive() ([]notification.View, error) {
	var views []notification.View
	err := c.call("ListActive").Store(&views)
	return views, err
}

func (c *Client) ListHistory() ([]notification.View, error) {
	var views []notification.View
	err := c.call("ListHistory").Store(&views)
	return views, err
}

func (c *Client) OpenPanel() error {
	return c.call("OpenPanel").Err
}

func (c *Client) OpenPanelDebug(level notification.PanelDebugLevel) error {
	return c.call("OpenPanelDebug", byte(level)).Err
}

func (c *Client) ClosePanel() error {
	return c.call("ClosePanel").Err
}

func (c *Client) TogglePanel() error {
	return c.call("TogglePanel").Err
}

func (c *Client) SetDnd(enabled bool) error {
	return c.call("SetDnd", enabled).Err
}

func (c *Client) Dismiss(id uint32) error {
	return c.call("Dismiss", id).Err
}

func (c *Client) InvokeAction(id uint32, key string) error {
	return c.call("InvokeAction", id, key).Err
}

func (c *Client) ClearAll() error {
	return c.call("ClearAll").Err
}

// Subscribe streams decoded signals from both daemon interfaces until ctx
// is done. Signals that fail to decode are dropped.
func (c *Client) Subscribe(ctx context.Context) (<-chan Event, error) {
	matches := [][]dbus.MatchOption{
		{dbus.WithMatchObjectPath(notification.ControlPath), dbus.WithMatchInterface(notification.ControlInterface)},
		{dbus.WithMatchObjectPath(notification.NotificationsPath), dbus.WithMatchInterface(notification.NotificationsInterface)},
	}
	for i, opts := range matches {
		if err := c.conn.AddMatchSignal(opts...); err != nil {
			for _, added := range matches[:i] {
				_ = c.conn.RemoveMatchSignal(added...)
			}
			return nil, fmt.Errorf("subscribe: %w", err)
		}
	}

	signals := make(chan *dbus.Signal, 32)
	c.conn.Signal(signals)

	events := make(chan Event, 32)
	go func() {
		defer close(events)
		defer func() {
			c.conn.RemoveSignal(signals)
			for _, opts := range matches {
				_ = c.conn.RemoveMatchSignal(opts...)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-signals:
				if !ok {
					return
				}
				ev, err := Decode(sig)
				if err != nil {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return events, nil
}
