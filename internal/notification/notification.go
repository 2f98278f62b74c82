// Package notification defines the notification record, its wire views and
// the hint parsing shared by the daemon and its clients.
package notification

import "time"

// UnknownApp replaces an empty app_name on incoming notifications.
const UnknownApp = "Unknown"

// Urgency represents notification priority levels per freedesktop spec.
type Urgency byte

const (
	Low      Urgency = 0
	Normal   Urgency = 1
	Critical Urgency = 2
)

// UrgencyFromLevel maps a numeric level to an Urgency. Unknown levels are Normal.
func UrgencyFromLevel(level uint32) Urgency {
	switch level {
	case 0:
		return Low
	case 2:
		return Critical
	default:
		return Normal
	}
}

func (u Urgency) String() string {
	switch u {
	case Low:
		return "low"
	case Critical:
		return "critical"
	default:
		return "normal"
	}
}

// CloseReason is the reason code carried by NotificationClosed signals.
type CloseReason uint32

const (
	Expired         CloseReason = 1
	DismissedByUser CloseReason = 2
	ClosedByCall    CloseReason = 3
	Undefined       CloseReason = 4
)

func (r CloseReason) String() string {
	switch r {
	case Expired:
		return "expired"
	case DismissedByUser:
		return "dismissed"
	case ClosedByCall:
		return "closed-by-call"
	case Undefined:
		return "undefined"
	default:
		return "unknown"
	}
}

// Action is a key/label pair offered by a notification.
type Action struct {
	Key   string
	Label string
}

// ParseActions pairs the flat action list of a Notify call.
// A trailing key without a label is dropped.
func ParseActions(raw []string) []Action {
	actions := make([]Action, 0, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		actions = append(actions, Action{Key: raw[i], Label: raw[i+1]})
	}
	return actions
}

// Request holds the raw arguments of a Notify call.
type Request struct {
	AppName       string
	ReplacesID    uint32
	AppIcon       string
	Summary       string
	Body          string
	Actions       []string
	Hints         Hints
	ExpireTimeout int32
}

// Notification is the record kept by the store.
type Notification struct {
	ID       uint32
	AppName  string
	AppIcon  string
	Summary  string
	Body     string
	Actions  []Action
	Hints    Hints
	Urgency  Urgency
	Category string // empty when the sender set none

	Transient bool
	Resident  bool
	Image     Image

	// ExpireTimeout is in milliseconds: 0 never expires, negative uses the default.
	ExpireTimeout int32
	ReceivedAt    time.Time

	// Set by rules after the notification is built.
	SuppressPopup bool
	SuppressSound bool
}

// Build normalizes a raw Notify call into a Notification with no ID.
func Build(req Request, now time.Time) *Notification {
	hints := req.Hints
	if hints == nil {
		hints = Hints{}
	}

	category, _ := hints.String(HintCategory)
	transient, _ := hints.Bool(HintTransient)
	resident, _ := hints.Bool(HintResident)

	appName := req.AppName
	if appName == "" {
		appName = UnknownApp
	}

	return &Notification{
		AppName:       appName,
		AppIcon:       req.AppIcon,
		Summary:       req.Summary,
		Body:          req.Body,
		Actions:       ParseActions(req.Actions),
		Hints:         hints,
		Urgency:       UrgencyFromHint(hints),
		Category:      category,
		Transient:     transient,
		Resident:      resident,
		Image:         ImageFromHints(req.AppName, req.AppIcon, hints),
		ExpireTimeout: req.ExpireTimeout,
		ReceivedAt:    now,
	}
}

// View is the wire representation sent to front-ends.
// Its D-Bus signature is (ussa(ss)ybbx(b(iiibiiay)ss)).
type View struct {
	ID               uint32
	AppName          string
	Summary          string
	Body             string
	Actions          []Action
	Urgency          Urgency
	Transient        bool
	Resident         bool
	ReceivedAtUnixMs int64
	Image            Image
}

// View returns the full view, including raw image pixels.
func (n *Notification) View() View {
	return n.view(n.Image)
}

// ListView returns the view used by ListActive and ListHistory.
func (n *Notification) ListView() View {
	return n.view(n.Image.ForListing())
}

func (n *Notification) view(img Image) View {
	actions := n.Actions
	if actions == nil {
		actions = []Action{}
	}
	return View{
		ID:               n.ID,
		AppName:          n.AppName,
		Summary:          n.Summary,
		Body:             n.Body,
		Actions:          actions,
		Urgency:          n.Urgency,
		Transient:        n.Transient,
		Resident:         n.Resident,
		ReceivedAtUnixMs: n.ReceivedAt.UnixMilli(),
		Image:            img,
	}
}

// ToHistory returns the copy kept in history: hints cleared, image trimmed.
func (n *Notification) ToHistory() *Notification {
	h := *n
	h.Hints = Hints{}
	h.Image = n.Image.ForHistory()
	return &h
}

// ReceivedAt converts the wire timestamp back to a time.
func (v View) ReceivedAt() time.Time {
	return time.UnixMilli(v.ReceivedAtUnixMs)
}
