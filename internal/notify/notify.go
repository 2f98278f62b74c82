// Package notify is a client for the freedesktop notifications interface.
package notify

import (
	"github.com/godbus/dbus/v5"

	"github.com/llehouerou/noticed/internal/notification"
)

// Urgency represents notification priority levels per freedesktop spec.
type Urgency byte

const (
	UrgencyLow      Urgency = 0
	UrgencyNormal   Urgency = 1
	UrgencyCritical Urgency = 2
)

// Notification contains data for a desktop notification.
type Notification struct {
	AppName    string
	Title      string   // Summary text (required)
	Body       string   // Body text (optional, supports basic markup)
	Icon       string   // Path to image file or icon name (optional)
	Actions    []string // alternating key, label
	Timeout    int32    // ms, -1 = server default, 0 = never expire
	ReplacesID uint32   // 0 = new notification, >0 = replace existing
	Urgency    Urgency  // Low, Normal, Critical

	Category      string
	DesktopEntry  string
	ImagePath     string
	SoundName     string
	SoundFile     string
	SuppressSound bool
	Transient     bool
	Resident      bool
}

// ServerInfo is the reply of GetServerInformation.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// Notifier sends desktop notifications.
type Notifier interface {
	// Notify sends a notification and returns its ID.
	Notify(n Notification) (uint32, error)
	// Close closes a notification by ID.
	Close(id uint32) error
	Capabilities() ([]string, error)
	ServerInformation() (ServerInfo, error)
}

// hints builds the hint dictionary for n. Unset optional hints are omitted.
func hints(n Notification) map[string]dbus.Variant {
	h := map[string]dbus.Variant{
		notification.HintUrgency: dbus.MakeVariant(byte(n.Urgency)),
	}
	set := func(key, value string) {
		if value != "" {
			h[key] = dbus.MakeVariant(value)
		}
	}
	set(notification.HintCategory, n.Category)
	set(notification.HintDesktopEntry, n.DesktopEntry)
	set(notification.HintImagePath, n.ImagePath)
	set(notification.HintSoundName, n.SoundName)
	set(notification.HintSoundFile, n.SoundFile)

	flag := func(key string, value bool) {
		if value {
			h[key] = dbus.MakeVariant(true)
		}
	}
	flag(notification.HintSuppressSound, n.SuppressSound)
	flag(notification.HintTransient, n.Transient)
	flag(notification.HintResident, n.Resident)
	return h
}

func actions(n Notification) []string {
	if n.Actions == nil {
		return []string{}
	}
	return n.Actions
}
