// Package expire closes notifications when their timeout elapses.
//
// The Scheduler owns a min-heap of deadlines and a side map holding the
// latest deadline per id. Both live inside the Run goroutine and are only
// reachable through commands. Rescheduling or cancelling leaves stale heap
// entries in place; they are skipped when popped and dropped by compaction.
package expire

import (
	"container/heap"
	"context"
	"time"

	"go.uber.org/zap"
)

const (
	commandBuffer = 256
	// minCompactThreshold is the heap size below which stale entries are kept.
	minCompactThreshold = 128
)

// Target closes an expired notification. It must only close id if the
// store still tracks deadline for it, and must not call back into the
// Scheduler. When deadline is stale but id still has one, Target returns
// it with pending set so the scheduler can re-arm it.
type Target interface {
	Expire(id uint32, deadline time.Time) (next time.Time, pending bool)
}

// Stats is a snapshot of the scheduler's internal sizes.
type Stats struct {
	HeapLen int
	Live    int
}

type commandKind int

const (
	cmdSchedule commandKind = iota
	cmdCancel
	cmdStats
)

type command struct {
	kind     commandKind
	id       uint32
	deadline time.Time
	reply    chan Stats
}

// Scheduler is the handle used by request handlers.
type Scheduler struct {
	target Target
	logger *zap.Logger
	cmds   chan command
	done   chan struct{}
}

// New creates a scheduler. Run must be started for commands to take effect.
func New(target Target, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		target: target,
		logger: logger,
		cmds:   make(chan command, commandBuffer),
		done:   make(chan struct{}),
	}
}

// Schedule sets the deadline of id, superseding any earlier one.
func (s *Scheduler) Schedule(id uint32, deadline time.Time) {
	s.send(command{kind: cmdSchedule, id: id, deadline: deadline})
}

// Cancel forgets the deadline of id.
func (s *Scheduler) Cancel(id uint32) {
	s.send(command{kind: cmdCancel, id: id})
}

// Update schedules id when ok is true and cancels it otherwise.
func (s *Scheduler) Update(id uint32, deadline time.Time, ok bool) {
	if ok {
		s.Schedule(id, deadline)
	} else {
		s.Cancel(id)
	}
}

// Stats asks the running task for its sizes. It returns zero Stats once
// Run has stopped.
func (s *Scheduler) Stats() Stats {
	reply := make(chan Stats, 1)
	if !s.send(command{kind: cmdStats, reply: reply}) {
		return Stats{}
	}
	select {
	case st := <-reply:
		return st
	case <-s.done:
		return Stats{}
	}
}

func (s *Scheduler) send(cmd command) bool {
	select {
	case s.cmds <- cmd:
		return true
	case <-s.done:
		return false
	}
}

// Run processes commands and fires deadlines until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)

	var h deadlineHeap
	scheduled := make(map[uint32]time.Time)

	for {
		if h.Len() == 0 {
			select {
			case <-ctx.Done():
				return
			case cmd := <-s.cmds:
				s.apply(cmd, &h, scheduled)
				compact(&h, scheduled)
			}
			continue
		}

		timer := time.NewTimer(time.Until(h.peek().deadline))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case cmd := <-s.cmds:
			timer.Stop()
			s.apply(cmd, &h, scheduled)
		case <-timer.C:
			s.fire(&h, scheduled)
		}
		compact(&h, scheduled)
	}
}

func (s *Scheduler) apply(cmd command, h *deadlineHeap, scheduled map[uint32]time.Time) {
	switch cmd.kind {
	case cmdSchedule:
		scheduled[cmd.id] = cmd.deadline
		heap.Push(h, entry{id: cmd.id, deadline: cmd.deadline})
	case cmdCancel:
		delete(scheduled, cmd.id)
	case cmdStats:
		cmd.reply <- Stats{HeapLen: h.Len(), Live: len(scheduled)}
	}
}

// fire pops every due entry and hands current ones to the target.
func (s *Scheduler) fire(h *deadlineHeap, scheduled map[uint32]time.Time) {
	now := time.Now()
	for h.Len() > 0 && !h.peek().deadline.After(now) {
		e := heap.Pop(h).(entry)
		current, ok := scheduled[e.id]
		if !ok || !current.Equal(e.deadline) {
			continue
		}
		delete(scheduled, e.id)
		s.logger.Debug("notification deadline reached", zap.Uint32("id", e.id))
		next, pending := s.target.Expire(e.id, e.deadline)
		if !pending || next.Equal(e.deadline) {
			continue
		}
		// Schedule commands for one id can arrive out of order.
		s.logger.Debug("notification deadline re-armed", zap.Uint32("id", e.id), zap.Time("deadline", next))
		scheduled[e.id] = next
		heap.Push(h, entry{id: e.id, deadline: next})
	}
}

// compact drops stale heap entries once they outnumber live ones.
func compact(h *deadlineHeap, scheduled map[uint32]time.Time) {
	live := len(scheduled)
	if live == 0 {
		*h = (*h)[:0]
		return
	}
	if h.Len() <= max(live*4, minCompactThreshold) {
		return
	}
	rebuilt := make(deadlineHeap, 0, live)
	for id, deadline := range scheduled {
		rebuilt = append(rebuilt, entry{id: id, deadline: deadline})
	}
	heap.Init(&rebuilt)
	*h = rebuilt
}
