package notification

import "github.com/godbus/dbus/v5"

// Standard and vendor hint keys read by the daemon.
const (
	HintUrgency       = "urgency"
	HintCategory      = "category"
	HintTransient     = "transient"
	HintResident      = "resident"
	HintDesktopEntry  = "desktop-entry"
	HintImageData     = "image-data"
	HintImageDataOld  = "image_data"
	HintIconData      = "icon_data"
	HintImagePath     = "image-path"
	HintImagePathOld  = "image_path"
	HintSoundFile     = "sound-file"
	HintSoundName     = "sound-name"
	HintSuppressSound = "suppress-sound"
)

// Hints is the loosely typed hint map of a Notify call.
// Accessors never panic: a missing key or a type mismatch reports false.
type Hints map[string]dbus.Variant

// Has reports whether key is present.
func (h Hints) Has(key string) bool {
	_, ok := h[key]
	return ok
}

// String returns a string hint.
func (h Hints) String(key string) (string, bool) {
	v, ok := h[key]
	if !ok {
		return "", false
	}
	s, ok := v.Value().(string)
	return s, ok
}

// Bool returns a boolean hint.
func (h Hints) Bool(key string) (bool, bool) {
	v, ok := h[key]
	if !ok {
		return false, false
	}
	b, ok := v.Value().(bool)
	return b, ok
}

// Uint32 returns a non-negative integer hint of any width as uint32.
func (h Hints) Uint32(key string) (uint32, bool) {
	v, ok := h[key]
	if !ok {
		return 0, false
	}
	switch n := v.Value().(type) {
	case byte:
		return uint32(n), true
	case uint16:
		return uint32(n), true
	case uint32:
		return n, true
	case uint64:
		if n > uint64(^uint32(0)) {
			return 0, false
		}
		return uint32(n), true
	case int16:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	case int32:
		if n < 0 {
			return 0, false
		}
		return uint32(n), true
	case int64:
		if n < 0 || n > int64(^uint32(0)) {
			return 0, false
		}
		return uint32(n), true
	default:
		return 0, false
	}
}

// Int32 returns a signed integer hint.
func (h Hints) Int32(key string) (int32, bool) {
	v, ok := h[key]
	if !ok {
		return 0, false
	}
	switch n := v.Value().(type) {
	case int32:
		return n, true
	case int16:
		return int32(n), true
	case byte:
		return int32(n), true
	default:
		return 0, false
	}
}

// UrgencyFromHint reads the urgency hint; absent or malformed means Normal.
func UrgencyFromHint(h Hints) Urgency {
	level, ok := h.Uint32(HintUrgency)
	if !ok {
		return Normal
	}
	return UrgencyFromLevel(level)
}
