package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/llehouerou/noticed/internal/control"
	"github.com/llehouerou/noticed/internal/errmsg"
	"github.com/llehouerou/noticed/internal/notification"
	"github.com/llehouerou/noticed/internal/notify"
)

// controller is the part of control.Client used by the commands.
type controller interface {
	GetState() (notification.ControlState, error)
	ListActive() ([]notification.View, error)
	ListHistory() ([]notification.View, error)
	OpenPanel() error
	OpenPanelDebug(level notification.PanelDebugLevel) error
	ClosePanel() error
	TogglePanel() error
	SetDnd(enabled bool) error
	Dismiss(id uint32) error
	InvokeAction(id uint32, key string) error
	ClearAll() error
	Subscribe(ctx context.Context) (<-chan control.Event, error)
}

type env struct {
	ctl controller
	ntf notify.Notifier
	out io.Writer
	now func() time.Time
}

type command struct {
	name string
	args string
	help string
	run  func(ctx context.Context, e *env, args []string) error
}

var commands = []command{
	{"open-panel", "", "open the notification panel", noArgs(errmsg.OpPanel, func(c controller) error { return c.OpenPanel() })},
	{"close-panel", "", "close the notification panel", noArgs(errmsg.OpPanel, func(c controller) error { return c.ClosePanel() })},
	{"toggle-panel", "", "toggle the notification panel", noArgs(errmsg.OpPanel, func(c controller) error { return c.TogglePanel() })},
	{"debug-panel", "<level>", "open the panel with diagnostics (off, critical, warn, info, verbose)", runDebugPanel},
	{"dnd", "on|off|toggle", "set do-not-disturb", runDnd},
	{"clear", "", "close every active notification", noArgs(errmsg.OpClearAll, func(c controller) error { return c.ClearAll() })},
	{"dismiss", "<id>", "remove a notification from the panel", runDismiss},
	{"invoke", "<id> <key>", "invoke a notification action", runInvoke},
	{"close", "<id>", "close a notification through the standard interface", runClose},
	{"list-active", "", "list active notifications", runListActive},
	{"list-history", "", "list notification history", runListHistory},
	{"state", "", "show do-not-disturb and history size", runState},
	{"info", "", "show server information and capabilities", runInfo},
	{"send", "<summary> [body]", "send a notification (see send --help)", runSend},
	{"watch", "", "print daemon signals until interrupted", runWatch},
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func expectArgs(args []string, n int) error {
	if len(args) != n {
		return fail(errmsg.OpParseArgs, fmt.Errorf("expected %d argument(s), got %d", n, len(args)))
	}
	return nil
}

func noArgs(op errmsg.Op, fn func(controller) error) func(context.Context, *env, []string) error {
	return func(_ context.Context, e *env, args []string) error {
		if err := expectArgs(args, 0); err != nil {
			return err
		}
		return fail(op, fn(e.ctl))
	}
}

func parseID(s string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimPrefix(s, "#"), 10, 32)
	if err != nil || id == 0 {
		return 0, fail(errmsg.OpParseArgs, fmt.Errorf("invalid notification id %q", s))
	}
	return uint32(id), nil
}

func runDebugPanel(_ context.Context, e *env, args []string) error {
	if err := expectArgs(args, 1); err != nil {
		return err
	}
	level, ok := notification.ParseDebugLevel(strings.ToLower(args[0]))
	if !ok {
		return fail(errmsg.OpParseArgs, fmt.Errorf("unknown debug level %q", args[0]))
	}
	return fail(errmsg.OpPanel, e.ctl.OpenPanelDebug(level))
}

func runDnd(_ context.Context, e *env, args []string) error {
	if err := expectArgs(args, 1); err != nil {
		return err
	}
	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "1":
		enabled = true
	case "off", "false", "0":
		enabled = false
	case "toggle":
		s, err := e.ctl.GetState()
		if err != nil {
			return fail(errmsg.OpState, err)
		}
		enabled = !s.DndEnabled
	default:
		return fail(errmsg.OpParseArgs, fmt.Errorf("expected on, off or toggle, got %q", args[0]))
	}
	if err := e.ctl.SetDnd(enabled); err != nil {
		return fail(errmsg.OpDnd, err)
	}
	fmt.Fprintf(e.out, "do-not-disturb %s\n", onOff(enabled))
	return nil
}

func runDismiss(_ context.Context, e *env, args []string) error {
	if err := expectArgs(args, 1); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return fail(errmsg.OpDismiss, e.ctl.Dismiss(id))
}

func runInvoke(_ context.Context, e *env, args []string) error {
	if err := expectArgs(args, 2); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return fail(errmsg.OpInvokeAction, e.ctl.InvokeAction(id, args[1]))
}

func runClose(_ context.Context, e *env, args []string) error {
	if err := expectArgs(args, 1); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return fail(errmsg.OpClose, e.ntf.Close(id))
}

func runListActive(_ context.Context, e *env, args []string) error {
	if err := expectArgs(args, 0); err != nil {
		return err
	}
	views, err := e.ctl.ListActive()
	if err != nil {
		return fail(errmsg.OpListActive, err)
	}
	printViews(e.out, views, e.now())
	return nil
}

func runListHistory(_ context.Context, e *env, args []string) error {
	if err := expectArgs(args, 0); err != nil {
		return err
	}
	views, err := e.ctl.ListHistory()
	if err != nil {
		return fail(errmsg.OpListHistory, err)
	}
	printViews(e.out, views, e.now())
	return nil
}

func runState(_ context.Context, e *env, args []string) error {
	if err := expectArgs(args, 0); err != nil {
		return err
	}
	s, err := e.ctl.GetState()
	if err != nil {
		return fail(errmsg.OpState, err)
	}
	fmt.Fprintln(e.out, formatState(s))
	return nil
}

func runInfo(_ context.Context, e *env, args []string) error {
	if err := expectArgs(args, 0); err != nil {
		return err
	}
	info, err := e.ntf.ServerInformation()
	if err != nil {
		return fail(errmsg.OpServerInfo, err)
	}
	caps, err := e.ntf.Capabilities()
	if err != nil {
		return fail(errmsg.OpCapabilities, err)
	}
	fmt.Fprintf(e.out, "%s %s (%s), spec %s\n", info.Name, info.Version, info.Vendor, info.SpecVersion)
	fmt.Fprintf(e.out, "capabilities: %s\n", strings.Join(caps, ", "))
	return nil
}

// parseSend builds a notification from the send command line.
func parseSend(args []string) (notify.Notification, error) {
	fs := pflag.NewFlagSet("send", pflag.ContinueOnError)
	app := fs.StringP("app", "a", "noticectl", "application name")
	urgency := fs.StringP("urgency", "u", "normal", "low, normal or critical")
	timeout := fs.Int32P("timeout", "t", -1, "expiry in milliseconds, -1 server default, 0 never")
	replaces := fs.Uint32P("replaces", "r", 0, "id of the notification to replace")
	icon := fs.StringP("icon", "i", "", "icon name or path")
	category := fs.StringP("category", "c", "", "notification category")
	image := fs.String("image", "", "image path")
	soundName := fs.String("sound-name", "", "themed sound name")
	soundFile := fs.String("sound-file", "", "sound file path")
	silent := fs.Bool("silent", false, "ask the daemon not to play a sound")
	transient := fs.Bool("transient", false, "do not keep in history")
	resident := fs.Bool("resident", false, "keep after an action is invoked")
	actions := fs.StringArrayP("action", "A", nil, "action as key=label (repeatable)")
	if err := fs.Parse(args); err != nil {
		return notify.Notification{}, err
	}

	rest := fs.Args()
	if len(rest) < 1 || len(rest) > 2 {
		return notify.Notification{}, fmt.Errorf("expected <summary> [body]")
	}
	u, err := parseUrgency(*urgency)
	if err != nil {
		return notify.Notification{}, err
	}

	n := notify.Notification{
		AppName:       *app,
		Title:         rest[0],
		Icon:          *icon,
		Timeout:       *timeout,
		ReplacesID:    *replaces,
		Urgency:       u,
		Category:      *category,
		ImagePath:     *image,
		SoundName:     *soundName,
		SoundFile:     *soundFile,
		SuppressSound: *silent,
		Transient:     *transient,
		Resident:      *resident,
	}
	if len(rest) == 2 {
		n.Body = rest[1]
	}
	for _, a := range *actions {
		key, label, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return notify.Notification{}, fmt.Errorf("invalid action %q, want key=label", a)
		}
		n.Actions = append(n.Actions, key, label)
	}
	return n, nil
}

func parseUrgency(s string) (notify.Urgency, error) {
	switch strings.ToLower(s) {
	case "low", "0":
		return notify.UrgencyLow, nil
	case "normal", "1":
		return notify.UrgencyNormal, nil
	case "critical", "2":
		return notify.UrgencyCritical, nil
	default:
		return 0, fmt.Errorf("unknown urgency %q", s)
	}
}

func runSend(_ context.Context, e *env, args []string) error {
	n, err := parseSend(args)
	if err != nil {
		return fail(errmsg.OpParseArgs, err)
	}
	id, err := e.ntf.Notify(n)
	if err != nil {
		return fail(errmsg.OpNotify, err)
	}
	fmt.Fprintln(e.out, id)
	return nil
}

// runWatch subscribes first, then reseeds from GetState and ListActive, so
// nothing emitted in between is lost.
func runWatch(ctx context.Context, e *env, args []string) error {
	if err := expectArgs(args, 0); err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, err := e.ctl.Subscribe(ctx)
	if err != nil {
		return fail(errmsg.OpSubscribe, err)
	}

	s, err := e.ctl.GetState()
	if err != nil {
		return fail(errmsg.OpState, err)
	}
	fmt.Fprintln(e.out, formatState(s))
	views, err := e.ctl.ListActive()
	if err != nil {
		return fail(errmsg.OpListActive, err)
	}
	printViews(e.out, views, e.now())

	for ev := range events {
		fmt.Fprintln(e.out, formatEvent(ev, e.now()))
	}
	return nil
}
