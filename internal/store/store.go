// Package store holds the in-memory notification state: active and history
// partitions, id allocation, rules, eviction and the authoritative
// expiration deadlines.
package store

import (
	"sync"
	"time"

	"github.com/llehouerou/noticed/internal/notification"
)

// Settings configures a Store.
type Settings struct {
	MaxActive          int // 0 means unbounded
	MaxHistory         int
	TransientToHistory bool
	DndDefault         bool
	Rules              []Rule

	DefaultTimeout time.Duration
	// CriticalTimeout applies to critical notifications asking for the
	// default timeout. Nil means they never expire.
	CriticalTimeout *time.Duration
}

// InsertOutcome describes the effect of an Insert.
type InsertOutcome struct {
	Notification *notification.Notification
	Replaced     bool
	ShowPopup    bool
	AllowSound   bool
	Evicted      []uint32

	// Deadline is the expiration recorded for the notification, if any.
	Deadline    time.Time
	HasDeadline bool
}

// DismissOutcome tells which partitions a Dismiss removed from.
type DismissOutcome struct {
	RemovedActive  bool
	RemovedHistory bool
}

// ExpireOutcome describes the effect of an ExpireIfCurrent. When the given
// deadline was stale, Deadline holds the one the store tracks instead.
type ExpireOutcome struct {
	Notification *notification.Notification
	Closed       bool

	Deadline    time.Time
	HasDeadline bool
}

// RemovedAny reports whether the dismiss changed anything.
func (o DismissOutcome) RemovedAny() bool {
	return o.RemovedActive || o.RemovedHistory
}

// Store is safe for concurrent use. Every method holds one exclusive lock
// for its whole duration and never fails.
type Store struct {
	mu          sync.Mutex
	settings    Settings
	nextID      uint32
	active      *orderedMap
	history     *orderedMap
	expirations map[uint32]time.Time
	dnd         bool
}

// New creates an empty store.
func New(settings Settings) *Store {
	return &Store{
		settings:    settings,
		nextID:      1,
		active:      newOrderedMap(),
		history:     newOrderedMap(),
		expirations: make(map[uint32]time.Time),
		dnd:         settings.DndDefault,
	}
}

// Insert stores candidate, replacing replacesID when it is known, and
// records its expiration deadline relative to now.
func (s *Store) Insert(candidate *notification.Notification, replacesID uint32, now time.Time) InsertOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := *candidate
	applyRules(s.settings.Rules, &n)

	replaced := replacesID != 0 && (s.active.has(replacesID) || s.history.has(replacesID))
	if replaced {
		n.ID = replacesID
	} else {
		n.ID = s.allocateID()
	}

	s.active.remove(n.ID)
	s.history.remove(n.ID)
	delete(s.expirations, n.ID)

	stored := &n
	s.active.push(stored)
	evicted := s.enforceActiveLimit()

	out := InsertOutcome{
		Notification: stored,
		Replaced:     replaced,
		ShowPopup:    s.eligible(stored, stored.SuppressPopup),
		AllowSound:   s.eligible(stored, stored.SuppressSound),
		Evicted:      evicted,
	}
	// An insert that evicted itself has nothing left to expire.
	if s.active.has(stored.ID) {
		out.Deadline, out.HasDeadline = s.resolveDeadline(stored, now)
		if out.HasDeadline {
			s.expirations[stored.ID] = out.Deadline
		}
	}
	return out
}

// Close moves id from active to history. It reports false when id was not active.
func (s *Store) Close(id uint32) (*notification.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked(id)
}

func (s *Store) closeLocked(id uint32) (*notification.Notification, bool) {
	n, ok := s.active.remove(id)
	delete(s.expirations, id)
	if !ok {
		return nil, false
	}
	s.pushHistory(n)
	return n, true
}

// Dismiss deletes id from both partitions without archiving it.
func (s *Store) Dismiss(id uint32) DismissOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, removedActive := s.active.remove(id)
	if removedActive {
		delete(s.expirations, id)
	}
	_, removedHistory := s.history.remove(id)
	return DismissOutcome{RemovedActive: removedActive, RemovedHistory: removedHistory}
}

// DrainActive empties the active partition and all expirations.
// The drained ids are returned newest first.
func (s *Store) DrainActive() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drainActiveLocked()
}

func (s *Store) drainActiveLocked() []uint32 {
	ids := make([]uint32, 0, s.active.len())
	s.active.newestFirst(func(n *notification.Notification) {
		ids = append(ids, n.ID)
	})
	s.active.clear()
	clear(s.expirations)
	return ids
}

// ClearHistory drops every history entry.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history.clear()
}

// ClearAll drains active and clears history under one lock.
func (s *Store) ClearAll() []uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.drainActiveLocked()
	s.history.clear()
	return ids
}

// SetExpiration records or clears the deadline of id.
func (s *Store) SetExpiration(id uint32, deadline time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok {
		s.expirations[id] = deadline
	} else {
		delete(s.expirations, id)
	}
}

// ExpirationFor returns the current deadline of id.
func (s *Store) ExpirationFor(id uint32) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.expirations[id]
	return d, ok
}

// ExpireIfCurrent closes id only when deadline is still the one tracked for
// it. Otherwise the outcome carries the deadline still pending, if any.
func (s *Store) ExpireIfCurrent(id uint32, deadline time.Time) ExpireOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.expirations[id]
	if !ok {
		return ExpireOutcome{}
	}
	if !current.Equal(deadline) {
		return ExpireOutcome{Deadline: current, HasDeadline: true}
	}
	n, closed := s.closeLocked(id)
	return ExpireOutcome{Notification: n, Closed: closed}
}

// ListActive returns list views of active notifications, newest first.
func (s *Store) ListActive() []notification.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listViews(s.active)
}

// ListHistory returns list views of history notifications, newest first.
func (s *Store) ListHistory() []notification.View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return listViews(s.history)
}

func listViews(m *orderedMap) []notification.View {
	views := make([]notification.View, 0, m.len())
	m.newestFirst(func(n *notification.Notification) {
		views = append(views, n.ListView())
	})
	return views
}

// Get returns the notification stored under id in either partition.
func (s *Store) Get(id uint32) (*notification.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.active.get(id); ok {
		return n, true
	}
	return s.history.get(id)
}

// State returns the control state broadcast to front-ends.
func (s *Store) State() notification.ControlState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return notification.ControlState{
		DndEnabled:   s.dnd,
		HistoryCount: uint32(s.history.len()),
	}
}

// ActiveLen returns the number of active notifications.
func (s *Store) ActiveLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.len()
}

// HistoryLen returns the number of history entries.
func (s *Store) HistoryLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.history.len()
}

// DND reports whether do-not-disturb is on.
func (s *Store) DND() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dnd
}

// SetDND turns do-not-disturb on or off.
func (s *Store) SetDND(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dnd = enabled
}

// allocateID probes forward from nextID for an id unused in both
// partitions, wrapping through 1. Zero is never returned.
func (s *Store) allocateID() uint32 {
	start := max(s.nextID, 1)
	candidate := start
	for {
		if !s.active.has(candidate) && !s.history.has(candidate) {
			s.nextID = candidate + 1
			if s.nextID == 0 {
				s.nextID = 1
			}
			return candidate
		}
		candidate++
		if candidate == 0 {
			candidate = 1
		}
		if candidate == start {
			return candidate
		}
	}
}

// enforceActiveLimit evicts the oldest inserted active entries into history
// until the bound holds.
func (s *Store) enforceActiveLimit() []uint32 {
	if s.settings.MaxActive <= 0 {
		return nil
	}
	var evicted []uint32
	for s.active.len() > s.settings.MaxActive {
		n, ok := s.active.popOldest()
		if !ok {
			break
		}
		delete(s.expirations, n.ID)
		s.pushHistory(n)
		evicted = append(evicted, n.ID)
	}
	return evicted
}

func (s *Store) pushHistory(n *notification.Notification) {
	if n.Transient && !s.settings.TransientToHistory {
		return
	}
	s.history.push(n.ToHistory())
	for s.history.len() > s.settings.MaxHistory {
		s.history.popOldest()
	}
}

// eligible applies DND gating to a popup or sound decision.
func (s *Store) eligible(n *notification.Notification, suppressed bool) bool {
	if suppressed {
		return false
	}
	if s.dnd {
		return n.Urgency == notification.Critical
	}
	return true
}

func (s *Store) resolveDeadline(n *notification.Notification, now time.Time) (time.Time, bool) {
	timeout, ok := ResolveTimeout(n, s.settings.DefaultTimeout, s.settings.CriticalTimeout)
	if !ok {
		return time.Time{}, false
	}
	return now.Add(timeout), true
}

// ResolveTimeout returns how long n stays active. A zero expire timeout or a
// resident notification never expires; a negative one uses the defaults.
func ResolveTimeout(n *notification.Notification, def time.Duration, critical *time.Duration) (time.Duration, bool) {
	if n.ExpireTimeout == 0 || n.Resident {
		return 0, false
	}

	var timeout time.Duration
	switch {
	case n.ExpireTimeout > 0:
		timeout = time.Duration(n.ExpireTimeout) * time.Millisecond
	case n.Urgency == notification.Critical:
		if critical == nil {
			return 0, false
		}
		timeout = *critical
	default:
		timeout = def
	}

	if timeout <= 0 {
		return 0, false
	}
	return timeout, true
}
