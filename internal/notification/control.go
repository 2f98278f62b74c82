package notification

// Bus addresses of the two interfaces served by the daemon.
const (
	NotificationsName      = "org.freedesktop.Notifications"
	NotificationsPath      = "/org/freedesktop/Notifications"
	NotificationsInterface = "org.freedesktop.Notifications"

	ControlName      = "org.noticed.Control"
	ControlPath      = "/org/noticed/Control"
	ControlInterface = "org.noticed.Control"
)

// Signal names as they appear on the bus. The first two belong to the
// standard interface; NotificationClosed is emitted on both.
const (
	SignalNotificationClosed = "NotificationClosed"
	SignalActionInvoked      = "ActionInvoked"
	SignalAdded              = "NotificationAdded"
	SignalUpdated            = "NotificationUpdated"
	SignalStateChanged       = "StateChanged"
	SignalPanelRequested     = "PanelRequested"
)

// ControlState is broadcast to front-ends after every visible change.
type ControlState struct {
	DndEnabled   bool
	HistoryCount uint32
}

// PanelAction is the visibility change requested from the panel.
type PanelAction uint32

const (
	PanelOpen   PanelAction = 0
	PanelClose  PanelAction = 1
	PanelToggle PanelAction = 2
)

func (a PanelAction) String() string {
	switch a {
	case PanelOpen:
		return "open"
	case PanelClose:
		return "close"
	case PanelToggle:
		return "toggle"
	default:
		return "unknown"
	}
}

// PanelDebugLevel is the diagnostic verbosity requested for the panel.
type PanelDebugLevel byte

const (
	DebugOff PanelDebugLevel = iota
	DebugCritical
	DebugWarn
	DebugInfo
	DebugVerbose
)

var debugLevelNames = map[string]PanelDebugLevel{
	"off":      DebugOff,
	"critical": DebugCritical,
	"warn":     DebugWarn,
	"info":     DebugInfo,
	"verbose":  DebugVerbose,
}

// ParseDebugLevel parses a level name such as "warn".
func ParseDebugLevel(s string) (PanelDebugLevel, bool) {
	l, ok := debugLevelNames[s]
	return l, ok
}

func (l PanelDebugLevel) String() string {
	for name, level := range debugLevelNames {
		if level == l {
			return name
		}
	}
	return "unknown"
}

// Allows reports whether messages at level should be shown under l.
func (l PanelDebugLevel) Allows(level PanelDebugLevel) bool {
	return l != DebugOff && l >= level
}

// PanelRequest is the payload of the PanelRequested signal.
type PanelRequest struct {
	Action PanelAction
	Debug  PanelDebugLevel
}

func OpenRequest() PanelRequest {
	return PanelRequest{Action: PanelOpen}
}

func OpenDebugRequest(level PanelDebugLevel) PanelRequest {
	return PanelRequest{Action: PanelOpen, Debug: level}
}

func CloseRequest() PanelRequest {
	return PanelRequest{Action: PanelClose}
}

func ToggleRequest() PanelRequest {
	return PanelRequest{Action: PanelToggle}
}
