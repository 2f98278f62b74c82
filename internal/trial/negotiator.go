// Package trial temporarily takes the notifications bus name over from a
// running daemon and gives it back on shutdown.
package trial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llehouerou/noticed/internal/busname"
	"github.com/llehouerou/noticed/internal/notification"
)

var (
	ErrUnknownOwner   = errors.New("current owner is not a known notification daemon")
	ErrDeclined       = errors.New("trial cancelled")
	ErrReleaseTimeout = errors.New("notification name was not released in time")
	ErrUnitInactive   = errors.New("systemd restore requested but unit is not active")
	ErrNotOwner       = errors.New("notification name is still owned by another daemon")
)

// Strategy selects how the competing daemon is stopped and restored.
type Strategy string

const (
	StrategyAuto    Strategy = "auto"
	StrategyNone    Strategy = "none"
	StrategySystemd Strategy = "systemd"
	StrategyProcess Strategy = "process"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch st := Strategy(strings.ToLower(strings.TrimSpace(s))); st {
	case StrategyAuto, StrategyNone, StrategySystemd, StrategyProcess:
		return st, nil
	default:
		return "", fmt.Errorf("unknown restore strategy %q", s)
	}
}

// KnownDaemon is a competitor we know how to stop and restart.
type KnownDaemon struct {
	Name string
	Unit string
}

// DefaultKnown lists the daemons recognized out of the box.
var DefaultKnown = []KnownDaemon{
	{Name: "mako", Unit: "mako.service"},
	{Name: "dunst", Unit: "dunst.service"},
	{Name: "swaync", Unit: "swaync.service"},
	{Name: "notify-osd", Unit: "notify-osd.service"},
}

// OwnerInfo describes the current owner of the notifications name.
// PID is 0 and Comm empty when they could not be resolved.
type OwnerInfo struct {
	UniqueName string
	PID        uint32
	Comm       string
	Args       []string
}

// DetectedDaemon is the status of one known daemon at startup.
type DetectedDaemon struct {
	Name       string
	Unit       string
	UnitActive bool
	PIDs       []int
	IsOwner    bool
}

// RestoreKind is how the stopped daemon is brought back.
type RestoreKind int

const (
	RestoreUnit RestoreKind = iota + 1
	RestoreCommand
)

// RestoreAction is recorded when the competitor is stopped.
type RestoreAction struct {
	Kind    RestoreKind
	Unit    string
	Program string
	Args    []string
}

// Session is the outcome of Prepare, consumed by Restore.
type Session struct {
	ID       string
	Owner    *OwnerInfo
	Detected []DetectedDaemon
	Restore  *RestoreAction
}

// Options configures a Negotiator.
type Options struct {
	Strategy    Strategy
	SkipConfirm bool
	// WaitTimeout bounds the wait for the competitor to release the name.
	WaitTimeout time.Duration
	// RestoreWait bounds the wait for someone to own the name again.
	RestoreWait time.Duration
	Known       []KnownDaemon
}

// Negotiator runs the trial takeover state machine.
type Negotiator struct {
	bus     busname.Bus
	sys     System
	opts    Options
	confirm func() (bool, error)
	out     io.Writer
	logger  *zap.Logger
}

// New builds a Negotiator. confirm is asked before stopping anything
// unless SkipConfirm is set; out receives the detection report.
func New(bus busname.Bus, sys System, opts Options, confirm func() (bool, error), out io.Writer, logger *zap.Logger) *Negotiator {
	if opts.Strategy == "" {
		opts.Strategy = StrategyAuto
	}
	if len(opts.Known) == 0 {
		opts.Known = DefaultKnown
	}
	if out == nil {
		out = io.Discard
	}
	return &Negotiator{bus: bus, sys: sys, opts: opts, confirm: confirm, out: out, logger: logger}
}

// Prepare detects the current owner, stops it, and waits until the name
// is free. With no owner it returns an empty session.
func (n *Negotiator) Prepare(ctx context.Context) (*Session, error) {
	sess := &Session{ID: uuid.NewString()}
	log := n.logger.With(zap.String("trial", sess.ID))
	log.Debug("trial detection started")

	owner, err := n.detectOwner(ctx)
	if err != nil {
		return nil, err
	}
	if owner == nil {
		log.Debug("no current notification owner")
		return sess, nil
	}
	sess.Owner = owner
	log.Debug("current owner detected",
		zap.String("unique_name", owner.UniqueName),
		zap.Uint32("pid", owner.PID),
		zap.String("comm", owner.Comm),
	)

	sess.Detected = n.detectKnown(ctx, owner)
	writeDetected(n.out, sess.Detected, owner)

	known, err := n.classify(owner)
	if err != nil {
		return nil, err
	}

	if !n.opts.SkipConfirm {
		ok, err := n.confirm()
		if err != nil {
			return nil, fmt.Errorf("trial prompt: %w", err)
		}
		if !ok {
			return nil, ErrDeclined
		}
	}

	restore, err := n.stop(ctx, owner, known, log)
	if err != nil {
		return nil, err
	}

	released, err := busname.WaitForOwnerState(ctx, n.bus, notification.NotificationsName, false, n.opts.WaitTimeout)
	if err != nil {
		return nil, fmt.Errorf("wait for release: %w", err)
	}
	if !released {
		return nil, ErrReleaseTimeout
	}

	sess.Restore = restore
	log.Debug("trial preparation complete")
	return sess, nil
}

// Acquire takes the notifications name, allowing a later takeover, and
// checks that we really own it.
func (n *Negotiator) Acquire(ctx context.Context) error {
	flags := dbus.NameFlagAllowReplacement | dbus.NameFlagReplaceExisting
	reply, err := n.bus.RequestName(notification.NotificationsName, flags)
	if err != nil {
		return fmt.Errorf("request %s: %w", notification.NotificationsName, err)
	}
	n.logger.Info("requested notification name", zap.String("reply", busname.ReplyString(reply)))
	if reply != dbus.RequestNameReplyPrimaryOwner && reply != dbus.RequestNameReplyAlreadyOwner {
		return fmt.Errorf("%s: %w", notification.NotificationsName, busname.ErrNameTaken)
	}
	if !busname.LogCurrentOwner(n.bus, notification.NotificationsName, n.logger) {
		return ErrNotOwner
	}
	return nil
}

// Restore releases the name, runs the recorded restore action and waits
// for someone to own the name again. Failures are logged only.
func (n *Negotiator) Restore(ctx context.Context, sess *Session) {
	log := n.logger
	if sess != nil {
		log = log.With(zap.String("trial", sess.ID))
	}

	if err := n.bus.ReleaseName(notification.NotificationsName); err != nil {
		log.Error("failed to release notification name", zap.Error(err))
	}
	if sess == nil || sess.Restore == nil {
		return
	}

	if err := n.runRestore(ctx, sess.Restore, log); err != nil {
		log.Error("failed to restore previous notification daemon", zap.Error(err))
	}

	ok, err := busname.WaitForOwnerState(ctx, n.bus, notification.NotificationsName, true, n.opts.RestoreWait)
	switch {
	case err != nil:
		log.Warn("waiting for re-acquisition failed", zap.Error(err))
	case !ok:
		log.Info("no daemon re-acquired after release")
	default:
		log.Info("previous notification daemon restored")
	}
}

func (n *Negotiator) detectOwner(ctx context.Context) (*OwnerInfo, error) {
	has, err := n.bus.NameHasOwner(notification.NotificationsName)
	if err != nil {
		return nil, fmt.Errorf("query owner: %w", err)
	}
	if !has {
		return nil, nil
	}
	unique, err := n.bus.GetNameOwner(notification.NotificationsName)
	if err != nil {
		// Released between the two calls.
		return nil, nil
	}

	info := &OwnerInfo{UniqueName: unique}
	pid, err := n.bus.ConnectionPID(unique)
	if err != nil {
		n.logger.Debug("owner pid unavailable", zap.Error(err))
		return info, nil
	}
	info.PID = pid
	info.Comm, _ = n.sys.ReadComm(ctx, pid)
	info.Args, _ = n.sys.ReadArgs(ctx, pid)
	return info, nil
}

func (n *Negotiator) detectKnown(ctx context.Context, owner *OwnerInfo) []DetectedDaemon {
	out := make([]DetectedDaemon, 0, len(n.opts.Known))
	for _, k := range n.opts.Known {
		out = append(out, DetectedDaemon{
			Name:       k.Name,
			Unit:       k.Unit,
			UnitActive: n.sys.UnitActive(ctx, k.Unit),
			PIDs:       n.sys.PgrepExact(ctx, k.Name),
			IsOwner:    owner.Comm != "" && owner.Comm == k.Name,
		})
	}
	return out
}

func (n *Negotiator) classify(owner *OwnerInfo) (KnownDaemon, error) {
	if owner.Comm == "" || owner.PID == 0 {
		return KnownDaemon{}, fmt.Errorf("owner %s: command or pid unavailable: %w", owner.UniqueName, ErrUnknownOwner)
	}
	i := slices.IndexFunc(n.opts.Known, func(k KnownDaemon) bool { return k.Name == owner.Comm })
	if i < 0 {
		return KnownDaemon{}, fmt.Errorf("owner %q: %w", owner.Comm, ErrUnknownOwner)
	}
	return n.opts.Known[i], nil
}

func (n *Negotiator) stop(ctx context.Context, owner *OwnerInfo, known KnownDaemon, log *zap.Logger) (*RestoreAction, error) {
	log.Info("stopping current notification daemon",
		zap.String("name", known.Name),
		zap.Uint32("pid", owner.PID),
		zap.String("strategy", string(n.opts.Strategy)),
	)

	byUnit := func() (*RestoreAction, error) {
		if err := n.sys.StopUnit(ctx, known.Unit); err != nil {
			return nil, fmt.Errorf("stop %s: %w", known.Unit, err)
		}
		return &RestoreAction{Kind: RestoreUnit, Unit: known.Unit}, nil
	}
	byProcess := func() (*RestoreAction, error) {
		if err := n.sys.Terminate(owner.PID); err != nil {
			return nil, fmt.Errorf("stop pid %d: %w", owner.PID, err)
		}
		program, args := restartCommand(owner)
		return &RestoreAction{Kind: RestoreCommand, Program: program, Args: args}, nil
	}

	switch n.opts.Strategy {
	case StrategyNone:
		if err := n.sys.Terminate(owner.PID); err != nil {
			return nil, fmt.Errorf("stop pid %d: %w", owner.PID, err)
		}
		return nil, nil
	case StrategySystemd:
		if !n.sys.UnitActive(ctx, known.Unit) {
			return nil, fmt.Errorf("%s: %w", known.Unit, ErrUnitInactive)
		}
		return byUnit()
	case StrategyProcess:
		return byProcess()
	default:
		if n.sys.UnitActive(ctx, known.Unit) {
			return byUnit()
		}
		return byProcess()
	}
}

func (n *Negotiator) runRestore(ctx context.Context, a *RestoreAction, log *zap.Logger) error {
	switch a.Kind {
	case RestoreUnit:
		log.Info("restarting notification daemon unit", zap.String("unit", a.Unit))
		return n.sys.StartUnit(ctx, a.Unit)
	case RestoreCommand:
		log.Info("restarting notification daemon process", zap.String("program", a.Program))
		return n.sys.Spawn(a.Program, a.Args)
	default:
		return fmt.Errorf("unknown restore kind %d", a.Kind)
	}
}

// restartCommand reuses the owner's argv, falling back to its comm.
func restartCommand(owner *OwnerInfo) (string, []string) {
	if len(owner.Args) > 0 {
		return owner.Args[0], slices.Clone(owner.Args[1:])
	}
	return owner.Comm, nil
}

func writeDetected(w io.Writer, daemons []DetectedDaemon, owner *OwnerInfo) {
	fmt.Fprintln(w, "Detected notification daemons:")
	ownerListed := false
	for _, d := range daemons {
		var status []string
		if d.IsOwner {
			ownerListed = true
			status = append(status, "dbus-owner")
		}
		if d.UnitActive {
			status = append(status, "systemd-active")
		}
		if len(d.PIDs) > 0 {
			pids := make([]string, len(d.PIDs))
			for i, p := range d.PIDs {
				pids[i] = fmt.Sprint(p)
			}
			status = append(status, "pid "+strings.Join(pids, ", "))
		}
		if len(status) == 0 {
			status = append(status, "not running")
		}
		fmt.Fprintf(w, "- %s: %s\n", d.Name, strings.Join(status, ", "))
	}
	if !ownerListed && owner != nil {
		name := owner.Comm
		if name == "" {
			name = "unknown"
		}
		pid := "unknown"
		if owner.PID != 0 {
			pid = fmt.Sprint(owner.PID)
		}
		fmt.Fprintf(w, "- %s: dbus-owner, pid %s\n", name, pid)
	}
}
