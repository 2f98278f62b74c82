package notification

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
)

func TestUrgencyFromHint(t *testing.T) {
	tests := []struct {
		name  string
		hints Hints
		want  Urgency
	}{
		{"absent", Hints{}, Normal},
		{"byte low", Hints{HintUrgency: dbus.MakeVariant(byte(0))}, Low},
		{"byte critical", Hints{HintUrgency: dbus.MakeVariant(byte(2))}, Critical},
		{"uint32 critical", Hints{HintUrgency: dbus.MakeVariant(uint32(2))}, Critical},
		{"int32 low", Hints{HintUrgency: dbus.MakeVariant(int32(0))}, Low},
		{"out of range", Hints{HintUrgency: dbus.MakeVariant(byte(7))}, Normal},
		{"negative", Hints{HintUrgency: dbus.MakeVariant(int32(-1))}, Normal},
		{"string", Hints{HintUrgency: dbus.MakeVariant("critical")}, Normal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, UrgencyFromHint(tt.hints))
		})
	}
}

func TestHintAccessorsFailSoft(t *testing.T) {
	h := Hints{
		"s": dbus.MakeVariant("text"),
		"b": dbus.MakeVariant(true),
		"i": dbus.MakeVariant(int32(-5)),
		"u": dbus.MakeVariant(uint64(1 << 40)),
	}

	s, ok := h.String("s")
	assert.True(t, ok)
	assert.Equal(t, "text", s)

	_, ok = h.String("b")
	assert.False(t, ok)

	b, ok := h.Bool("b")
	assert.True(t, ok)
	assert.True(t, b)

	_, ok = h.Bool("missing")
	assert.False(t, ok)

	i, ok := h.Int32("i")
	assert.True(t, ok)
	assert.Equal(t, int32(-5), i)

	_, ok = h.Uint32("i")
	assert.False(t, ok, "negative values are not unsigned")

	_, ok = h.Uint32("u")
	assert.False(t, ok, "values wider than 32 bits are rejected")

	assert.True(t, h.Has("s"))
	assert.False(t, h.Has("x"))

	var empty Hints
	_, ok = empty.String("s")
	assert.False(t, ok)
}
