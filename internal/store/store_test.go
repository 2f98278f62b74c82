package store

import (
	"math"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/noticed/internal/notification"
)

var epoch = time.Unix(1_700_000_000, 0)

func defaultSettings() Settings {
	return Settings{
		MaxActive:      500,
		MaxHistory:     200,
		DefaultTimeout: 5 * time.Second,
	}
}

func newNote(app, summary string) *notification.Notification {
	return notification.Build(notification.Request{
		AppName:       app,
		Summary:       summary,
		ExpireTimeout: -1,
	}, epoch)
}

func withImage(n *notification.Notification) *notification.Notification {
	n.Image.HasImageData = true
	n.Image.ImageData = notification.ImageData{Width: 1, Height: 1, Channels: 4, BitsPerSample: 8, Data: []byte{1, 2, 3, 4}}
	return n
}

func TestInsert_IDsAreUnique(t *testing.T) {
	s := New(defaultSettings())

	seen := make(map[uint32]bool)
	for i := range 300 {
		out := s.Insert(newNote("app", "n"), 0, epoch)
		require.NotZero(t, out.Notification.ID)
		assert.False(t, seen[out.Notification.ID], "id %d reused at insert %d", out.Notification.ID, i)
		seen[out.Notification.ID] = true
		if i%3 == 0 {
			s.Close(out.Notification.ID)
		}
	}
}

func TestInsert_ReplacementIdentity(t *testing.T) {
	s := New(defaultSettings())

	first := s.Insert(newNote("app", "v1"), 0, epoch)
	id := first.Notification.ID

	t.Run("active id is replaced", func(t *testing.T) {
		out := s.Insert(newNote("app", "v2"), id, epoch)
		assert.True(t, out.Replaced)
		assert.Equal(t, id, out.Notification.ID)
		assert.Equal(t, 1, s.ActiveLen())
	})

	t.Run("history id is replaced back into active", func(t *testing.T) {
		_, ok := s.Close(id)
		require.True(t, ok)
		require.Equal(t, 1, s.HistoryLen())

		out := s.Insert(newNote("app", "v3"), id, epoch)
		assert.True(t, out.Replaced)
		assert.Equal(t, id, out.Notification.ID)
		assert.Equal(t, 0, s.HistoryLen())
		assert.Equal(t, 1, s.ActiveLen())
	})

	t.Run("unknown id gets a fresh id", func(t *testing.T) {
		out := s.Insert(newNote("app", "other"), 9999, epoch)
		assert.False(t, out.Replaced)
		assert.NotEqual(t, uint32(9999), out.Notification.ID)
		assert.NotEqual(t, id, out.Notification.ID)
	})
}

func TestInsert_ActiveBoundEvictsOldestInserted(t *testing.T) {
	settings := defaultSettings()
	settings.MaxActive = 3
	s := New(settings)

	var ids []uint32
	for range 3 {
		ids = append(ids, s.Insert(newNote("app", "n"), 0, epoch).Notification.ID)
	}

	// A replacement is re-inserted as the newest entry.
	s.Insert(newNote("app", "updated"), ids[1], epoch)

	out := s.Insert(newNote("app", "overflow"), 0, epoch)
	assert.Equal(t, []uint32{ids[0]}, out.Evicted)
	assert.Equal(t, 3, s.ActiveLen())

	out = s.Insert(newNote("app", "overflow 2"), 0, epoch)
	assert.Equal(t, []uint32{ids[2]}, out.Evicted)
	assert.LessOrEqual(t, s.ActiveLen(), 3)

	_, hasDeadline := s.ExpirationFor(ids[0])
	assert.False(t, hasDeadline, "evicted notifications lose their expiration")
}

func TestInsert_UnboundedWhenMaxActiveZero(t *testing.T) {
	settings := defaultSettings()
	settings.MaxActive = 0
	s := New(settings)

	for range 1000 {
		out := s.Insert(newNote("app", "n"), 0, epoch)
		assert.Empty(t, out.Evicted)
	}
	assert.Equal(t, 1000, s.ActiveLen())
}

func TestDismissVersusClose(t *testing.T) {
	t.Run("dismiss leaves no history", func(t *testing.T) {
		s := New(defaultSettings())
		id := s.Insert(withImage(newNote("app", "x")), 0, epoch).Notification.ID

		out := s.Dismiss(id)
		assert.Equal(t, DismissOutcome{RemovedActive: true, RemovedHistory: false}, out)
		assert.Equal(t, 0, s.HistoryLen())
		assert.Equal(t, 0, s.ActiveLen())
	})

	t.Run("close archives with pixels cleared", func(t *testing.T) {
		s := New(defaultSettings())
		id := s.Insert(withImage(newNote("app", "x")), 0, epoch).Notification.ID

		closed, ok := s.Close(id)
		require.True(t, ok)
		assert.Equal(t, id, closed.ID)

		history := s.ListHistory()
		require.Len(t, history, 1)
		assert.False(t, history[0].Image.HasImageData)
		assert.Empty(t, history[0].Image.ImageData.Data)

		h, ok := s.Get(id)
		require.True(t, ok)
		assert.Empty(t, h.Hints)
		assert.Empty(t, h.Image.ImageData.Data)
	})

	t.Run("dismiss history only", func(t *testing.T) {
		s := New(defaultSettings())
		id := s.Insert(newNote("app", "x"), 0, epoch).Notification.ID
		s.Close(id)

		out := s.Dismiss(id)
		assert.Equal(t, DismissOutcome{RemovedActive: false, RemovedHistory: true}, out)
		assert.True(t, out.RemovedAny())
	})

	t.Run("no-ops", func(t *testing.T) {
		s := New(defaultSettings())
		_, ok := s.Close(42)
		assert.False(t, ok)
		assert.False(t, s.Dismiss(42).RemovedAny())
		assert.Equal(t, 0, s.HistoryLen())
	})
}

func TestClose_TransientSkipsHistory(t *testing.T) {
	s := New(defaultSettings())
	n := newNote("app", "x")
	n.Transient = true
	id := s.Insert(n, 0, epoch).Notification.ID

	_, ok := s.Close(id)
	assert.True(t, ok)
	assert.Equal(t, 0, s.HistoryLen())

	settings := defaultSettings()
	settings.TransientToHistory = true
	s = New(settings)
	id = s.Insert(n, 0, epoch).Notification.ID
	s.Close(id)
	assert.Equal(t, 1, s.HistoryLen())
}

func TestHistory_FIFOBound(t *testing.T) {
	settings := defaultSettings()
	settings.MaxHistory = 2
	s := New(settings)

	var ids []uint32
	for range 3 {
		id := s.Insert(newNote("app", "x"), 0, epoch).Notification.ID
		ids = append(ids, id)
		s.Close(id)
	}

	history := s.ListHistory()
	require.Len(t, history, 2)
	assert.Equal(t, ids[2], history[0].ID, "newest first")
	assert.Equal(t, ids[1], history[1].ID)
}

func TestDNDGating(t *testing.T) {
	tests := []struct {
		name      string
		dnd       bool
		urgency   byte
		silent    bool
		wantPopup bool
		wantSound bool
	}{
		{"normal without dnd", false, 1, false, true, true},
		{"normal with dnd", true, 1, false, false, false},
		{"critical with dnd", true, 2, false, true, true},
		{"low with dnd", true, 0, false, false, false},
		{"critical silenced by rule", true, 2, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			settings := defaultSettings()
			settings.DndDefault = tt.dnd
			if tt.silent {
				silent := true
				settings.Rules = []Rule{{Silent: &silent}}
			}
			s := New(settings)

			n := notification.Build(notification.Request{
				AppName: "app",
				Hints:   notification.Hints{notification.HintUrgency: dbus.MakeVariant(tt.urgency)},
			}, epoch)
			out := s.Insert(n, 0, epoch)

			assert.Equal(t, tt.wantPopup, out.ShowPopup)
			assert.Equal(t, tt.wantSound, out.AllowSound)
		})
	}
}

func TestEndToEndEviction(t *testing.T) {
	settings := defaultSettings()
	settings.MaxActive = 1
	s := New(settings)

	first := s.Insert(withImage(newNote("X", "a")), 0, epoch)
	require.Equal(t, notification.Normal, first.Notification.Urgency)

	second := s.Insert(newNote("Y", "b"), 0, epoch)

	assert.Equal(t, []uint32{first.Notification.ID}, second.Evicted)

	active := s.ListActive()
	require.Len(t, active, 1)
	assert.Equal(t, "Y", active[0].AppName)

	history := s.ListHistory()
	require.Len(t, history, 1)
	assert.Equal(t, "X", history[0].AppName)
	assert.False(t, history[0].Image.HasImageData)
	assert.Empty(t, history[0].Image.ImageData.Data)
}

func TestAllocator(t *testing.T) {
	t.Run("skips ids in use", func(t *testing.T) {
		s := New(defaultSettings())
		a := s.Insert(newNote("app", "a"), 0, epoch).Notification.ID
		s.nextID = a
		b := s.Insert(newNote("app", "b"), 0, epoch).Notification.ID
		assert.NotEqual(t, a, b)
	})

	t.Run("wraps through one, never zero", func(t *testing.T) {
		s := New(defaultSettings())
		s.nextID = math.MaxUint32
		a := s.Insert(newNote("app", "a"), 0, epoch).Notification.ID
		b := s.Insert(newNote("app", "b"), 0, epoch).Notification.ID
		assert.Equal(t, uint32(math.MaxUint32), a)
		assert.Equal(t, uint32(1), b)
	})

	t.Run("zero floors to one", func(t *testing.T) {
		s := New(defaultSettings())
		s.nextID = 0
		assert.Equal(t, uint32(1), s.Insert(newNote("app", "a"), 0, epoch).Notification.ID)
	})
}

func TestExpirations(t *testing.T) {
	s := New(defaultSettings())
	out := s.Insert(newNote("app", "x"), 0, epoch)
	id := out.Notification.ID

	require.True(t, out.HasDeadline)
	assert.Equal(t, epoch.Add(5*time.Second), out.Deadline)

	d, ok := s.ExpirationFor(id)
	require.True(t, ok)
	assert.True(t, d.Equal(out.Deadline))

	later := epoch.Add(time.Minute)
	s.SetExpiration(id, later, true)

	stale := s.ExpireIfCurrent(id, out.Deadline)
	assert.False(t, stale.Closed, "superseded deadline must not close")
	require.True(t, stale.HasDeadline)
	assert.True(t, stale.Deadline.Equal(later))
	assert.Equal(t, 1, s.ActiveLen())

	current := s.ExpireIfCurrent(id, later)
	assert.True(t, current.Closed)
	assert.Equal(t, id, current.Notification.ID)
	assert.False(t, current.HasDeadline)
	assert.Equal(t, 0, s.ActiveLen())

	gone := s.ExpireIfCurrent(id, later)
	assert.False(t, gone.Closed)
	assert.False(t, gone.HasDeadline)

	_, ok = s.ExpirationFor(id)
	assert.False(t, ok)

	s.SetExpiration(id, later, false)
	_, ok = s.ExpirationFor(id)
	assert.False(t, ok)
}

func TestResolveTimeout(t *testing.T) {
	critical := 30 * time.Second
	zero := time.Duration(0)

	tests := []struct {
		name     string
		timeout  int32
		urgency  notification.Urgency
		resident bool
		critical *time.Duration
		want     time.Duration
		wantOK   bool
	}{
		{"zero never expires", 0, notification.Normal, false, nil, 0, false},
		{"resident never expires", 1000, notification.Normal, true, nil, 0, false},
		{"explicit timeout", 1500, notification.Normal, false, nil, 1500 * time.Millisecond, true},
		{"default timeout", -1, notification.Normal, false, nil, 5 * time.Second, true},
		{"critical without default", -1, notification.Critical, false, nil, 0, false},
		{"critical with default", -1, notification.Critical, false, &critical, critical, true},
		{"critical default of zero", -1, notification.Critical, false, &zero, 0, false},
		{"explicit critical timeout", 700, notification.Critical, false, nil, 700 * time.Millisecond, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &notification.Notification{ExpireTimeout: tt.timeout, Urgency: tt.urgency, Resident: tt.resident}
			got, ok := ResolveTimeout(n, 5*time.Second, tt.critical)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDrainAndClear(t *testing.T) {
	s := New(defaultSettings())
	a := s.Insert(newNote("app", "a"), 0, epoch).Notification.ID
	b := s.Insert(newNote("app", "b"), 0, epoch).Notification.ID
	c := s.Insert(newNote("app", "c"), 0, epoch).Notification.ID
	s.Close(a)

	ids := s.ClearAll()
	assert.Equal(t, []uint32{c, b}, ids)
	assert.Equal(t, 0, s.ActiveLen())
	assert.Equal(t, 0, s.HistoryLen())
	_, ok := s.ExpirationFor(b)
	assert.False(t, ok)

	s.Insert(newNote("app", "d"), 0, epoch)
	assert.Len(t, s.DrainActive(), 1)
	s.ClearHistory()
	assert.Equal(t, notification.ControlState{}, s.State())
}

func TestStateAndDND(t *testing.T) {
	settings := defaultSettings()
	settings.DndDefault = true
	s := New(settings)
	assert.True(t, s.DND())

	s.SetDND(false)
	id := s.Insert(newNote("app", "a"), 0, epoch).Notification.ID
	s.Close(id)

	assert.Equal(t, notification.ControlState{DndEnabled: false, HistoryCount: 1}, s.State())
}

func TestListActiveNewestFirstWithoutPixels(t *testing.T) {
	s := New(defaultSettings())
	a := s.Insert(withImage(newNote("app", "a")), 0, epoch).Notification.ID
	b := s.Insert(newNote("app", "b"), 0, epoch).Notification.ID

	views := s.ListActive()
	require.Len(t, views, 2)
	assert.Equal(t, b, views[0].ID)
	assert.Equal(t, a, views[1].ID)
	assert.False(t, views[1].Image.HasImageData)
}

func TestInsert_DoesNotMutateCandidate(t *testing.T) {
	silent := true
	settings := defaultSettings()
	settings.Rules = []Rule{{Silent: &silent}}
	s := New(settings)

	n := newNote("app", "x")
	out := s.Insert(n, 0, epoch)

	assert.True(t, out.Notification.SuppressSound)
	assert.False(t, n.SuppressSound)
	assert.Zero(t, n.ID)
}
