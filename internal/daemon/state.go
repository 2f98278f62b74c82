// Package daemon coordinates store mutations with the signals of the
// standard notification interface and the private control interface.
//
// Every operation mutates the store under its lock, releases it, then
// emits its whole signal sequence while holding the emission mutex, so
// the sequence of one call is never interleaved with another call's.
package daemon

import (
	"context"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/llehouerou/noticed/internal/expire"
	"github.com/llehouerou/noticed/internal/logging"
	"github.com/llehouerou/noticed/internal/metrics"
	"github.com/llehouerou/noticed/internal/notification"
	"github.com/llehouerou/noticed/internal/sound"
	"github.com/llehouerou/noticed/internal/store"
)

// Server identity reported by GetServerInformation.
const (
	ServerName   = "noticed"
	ServerVendor = "llehouerou"
	SpecVersion  = "1.2"
)

// Options wires the collaborators of State.
type Options struct {
	Store   *store.Store
	Emitter Emitter
	Sound   *sound.Player // nil disables sound
	Metrics *metrics.Metrics
	Logger  *zap.Logger
	Version string
	Now     func() time.Time
}

// State is shared by every bus handler.
type State struct {
	store     *store.Store
	emitter   Emitter
	sound     *sound.Player
	metrics   *metrics.Metrics
	logger    *zap.Logger
	version   string
	now       func() time.Time
	scheduler *expire.Scheduler

	// schedMu keeps scheduler commands in store mutation order.
	schedMu sync.Mutex
	emitMu  sync.Mutex
}

// New builds the coordinator and its expiration scheduler. RunScheduler
// must be started for timeouts to fire.
func New(opts Options) *State {
	s := &State{
		store:   opts.Store,
		emitter: opts.Emitter,
		sound:   opts.Sound,
		metrics: opts.Metrics,
		logger:  opts.Logger,
		version: opts.Version,
		now:     opts.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.scheduler = expire.New(s, s.logger.Named("expire"))
	s.metrics.SetDND(s.store.DND())
	return s
}

// RunScheduler runs the expiration task until ctx is cancelled.
func (s *State) RunScheduler(ctx context.Context) {
	s.scheduler.Run(ctx)
}

// emission collects the outcome of one call's signal sequence. Failures
// are logged and counted; the remaining signals are still sent.
type emission struct {
	s   *State
	err error
}

func (e *emission) record(signal string, err error) {
	if err == nil {
		return
	}
	e.s.logger.Warn("signal emission failed", zap.String("signal", signal), zap.Error(err))
	e.s.metrics.RecordEmitError(signal)
	e.err = multierr.Append(e.err, err)
}

// closed announces a removal on the control interface, and on the
// standard interface when publishers knew about it.
func (e *emission) closed(id uint32, reason notification.CloseReason, standard bool) {
	if standard {
		e.record(notification.SignalNotificationClosed, e.s.emitter.NotificationClosed(id, reason))
	}
	e.record(notification.SignalNotificationClosed, e.s.emitter.ControlClosed(id, reason))
	e.s.metrics.RecordClosed(reason)
}

func (e *emission) stateChanged() {
	st := e.s.store.State()
	e.s.metrics.SetSizes(e.s.store.ActiveLen(), int(st.HistoryCount))
	e.record(notification.SignalStateChanged, e.s.emitter.StateChanged(st))
}

func (s *State) emit(fn func(e *emission)) error {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	e := &emission{s: s}
	fn(e)
	return e.err
}

// Notify stores a new or replacing notification and announces it.
func (s *State) Notify(req notification.Request) (uint32, error) {
	now := s.now()
	s.schedMu.Lock()
	out := s.store.Insert(notification.Build(req, now), req.ReplacesID, now)
	n := out.Notification
	s.scheduler.Update(n.ID, out.Deadline, out.HasDeadline)
	for _, id := range out.Evicted {
		s.scheduler.Cancel(id)
	}
	s.schedMu.Unlock()

	s.logger.Debug("notification received",
		zap.Uint32("id", n.ID),
		zap.String("app", n.AppName),
		logging.SnippetField("summary", n.Summary),
		zap.Uint32("replaces_id", req.ReplacesID),
		zap.Bool("replaced", out.Replaced),
		zap.Int32("expire_timeout", req.ExpireTimeout),
		zap.Int("evicted", len(out.Evicted)),
	)
	s.metrics.RecordReceived(n.Urgency, out.Replaced)
	s.metrics.RecordEvicted(len(out.Evicted))
	s.metrics.RecordSound(string(s.sound.Play(n.Hints, out.AllowSound)))

	err := s.emit(func(e *emission) {
		if out.Replaced {
			e.record(notification.SignalUpdated, s.emitter.ControlUpdated(n.View(), out.ShowPopup))
		} else {
			e.record(notification.SignalAdded, s.emitter.ControlAdded(n.View(), out.ShowPopup))
		}
		for _, id := range out.Evicted {
			e.closed(id, notification.Undefined, true)
		}
		e.stateChanged()
	})
	return n.ID, err
}

// CloseNotification archives an active notification. Unknown ids are a
// no-op and emit nothing.
func (s *State) CloseNotification(id uint32, reason notification.CloseReason) error {
	s.schedMu.Lock()
	_, ok := s.store.Close(id)
	if ok {
		s.scheduler.Cancel(id)
	}
	s.schedMu.Unlock()
	if !ok {
		s.logger.Debug("close ignored, not active", zap.Uint32("id", id))
		return nil
	}
	s.logger.Debug("notification closed", zap.Uint32("id", id), zap.Stringer("reason", reason))
	return s.emit(func(e *emission) {
		e.closed(id, reason, true)
		e.stateChanged()
	})
}

// Expire is called by the scheduler when deadline elapses for id. A stale
// deadline yields the one the store still tracks.
func (s *State) Expire(id uint32, deadline time.Time) (time.Time, bool) {
	out := s.store.ExpireIfCurrent(id, deadline)
	if !out.Closed {
		s.logger.Debug("stale expiration skipped", zap.Uint32("id", id))
		return out.Deadline, out.HasDeadline
	}
	s.logger.Debug("notification expired", zap.Uint32("id", id))
	// Errors are already logged and counted.
	_ = s.emit(func(e *emission) {
		e.closed(id, notification.Expired, true)
		e.stateChanged()
	})
	return time.Time{}, false
}

// Dismiss deletes id from the panel. The standard interface only hears
// about it when the notification was still active.
func (s *State) Dismiss(id uint32) error {
	s.schedMu.Lock()
	out := s.store.Dismiss(id)
	if out.RemovedActive {
		s.scheduler.Cancel(id)
	}
	s.schedMu.Unlock()
	if !out.RemovedAny() {
		return nil
	}
	s.logger.Debug("notification dismissed",
		zap.Uint32("id", id),
		zap.Bool("active", out.RemovedActive),
		zap.Bool("history", out.RemovedHistory),
	)
	return s.emit(func(e *emission) {
		e.closed(id, notification.DismissedByUser, out.RemovedActive)
		e.stateChanged()
	})
}

// ClearAll drops every active and history entry in one step.
func (s *State) ClearAll() error {
	s.schedMu.Lock()
	ids := s.store.ClearAll()
	for _, id := range ids {
		s.scheduler.Cancel(id)
	}
	s.schedMu.Unlock()
	s.logger.Debug("cleared all notifications", zap.Int("active", len(ids)))
	return s.emit(func(e *emission) {
		for _, id := range ids {
			e.closed(id, notification.DismissedByUser, true)
		}
		e.stateChanged()
	})
}

// SetDND toggles do-not-disturb.
func (s *State) SetDND(enabled bool) error {
	s.store.SetDND(enabled)
	s.metrics.SetDND(enabled)
	s.logger.Info("do-not-disturb changed", zap.Bool("enabled", enabled))
	return s.emit(func(e *emission) {
		e.stateChanged()
	})
}

// InvokeAction relays a front-end action click to the publisher.
func (s *State) InvokeAction(id uint32, key string) error {
	s.logger.Debug("action invoked", zap.Uint32("id", id), zap.String("key", key))
	return s.emit(func(e *emission) {
		e.record(notification.SignalActionInvoked, s.emitter.ActionInvoked(id, key))
	})
}

// RequestPanel relays a panel visibility request to front-ends.
func (s *State) RequestPanel(req notification.PanelRequest) error {
	s.logger.Debug("panel requested",
		zap.Stringer("action", req.Action), zap.Stringer("debug", req.Debug))
	return s.emit(func(e *emission) {
		e.record(notification.SignalPanelRequested, s.emitter.PanelRequested(req))
	})
}

func (s *State) GetState() notification.ControlState {
	return s.store.State()
}

func (s *State) ListActive() []notification.View {
	return s.store.ListActive()
}

func (s *State) ListHistory() []notification.View {
	return s.store.ListHistory()
}

// Capabilities lists the optional protocol features supported.
func (s *State) Capabilities() []string {
	caps := []string{"actions", "body", "body-markup", "icon-static"}
	if s.sound.Supports() {
		caps = append(caps, "sound")
	}
	return caps
}

// ServerInformation returns name, vendor, version and protocol version.
func (s *State) ServerInformation() (name, vendor, version, spec string) {
	return ServerName, ServerVendor, s.version, SpecVersion
}

// Snapshot is served on /debug/state.
type Snapshot struct {
	DndEnabled    bool   `json:"dnd_enabled"`
	Active        int    `json:"active"`
	History       int    `json:"history"`
	SchedulerHeap int    `json:"scheduler_heap"`
	SchedulerLive int    `json:"scheduler_live"`
	Version       string `json:"version"`
}

// Snapshot reports sizes for debugging. It needs the scheduler running.
func (s *State) Snapshot() Snapshot {
	st := s.scheduler.Stats()
	return Snapshot{
		DndEnabled:    s.store.DND(),
		Active:        s.store.ActiveLen(),
		History:       s.store.HistoryLen(),
		SchedulerHeap: st.HeapLen,
		SchedulerLive: st.Live,
		Version:       s.version,
	}
}
