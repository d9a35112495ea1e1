// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package sched implements a goroutine-based task scheduler for the futex package.
//
// Every Task is driven by its own goroutine. Blocking parks the goroutine on
// the task's resume token; unblocking hands the token over. A token, which
// arrives before the task parks, is kept, so the next park returns at once.
package sched

import (
	"sync/atomic"
	"time"

	"github.com/llxisdsh/pb"

	"github.com/nxgtw/go-futex"
)

// all implementations must satisfy futex collaborator interfaces.
var (
	_ futex.Scheduler  = (*Scheduler)(nil)
	_ futex.Interrupts = (*Scheduler)(nil)
	_ futex.Target     = (*Task)(nil)
)

// Scheduler keeps a table of live tasks and implements blocking primitives for them.
type Scheduler struct {
	lastID   atomic.Int64
	tasks    pb.MapOf[int64, *Task]
	irqDepth atomic.Int64
}

// New creates a new scheduler.
func New() *Scheduler {
	return &Scheduler{}
}

// Lookup returns a live task by its id.
func (s *Scheduler) Lookup(id int64) (*Task, bool) {
	return s.tasks.Load(id)
}

// Tasks returns the number of live tasks.
func (s *Scheduler) Tasks() int {
	return s.tasks.Size()
}

// Exit removes the task from the scheduler and cancels its alarm.
// The task gets a pending signal, and a blocked task is resumed, so its wait ends.
// Exited tasks never block again.
func (s *Scheduler) Exit(t *Task) {
	s.tasks.Delete(t.id)
	t.cancelAlarm()
	t.exited.Store(true)
	t.resume()
}

// BlockCurrent implements futex.Scheduler.
func (s *Scheduler) BlockCurrent(ft futex.Task, enqueue func()) {
	t, live := s.task(ft)
	if !live {
		enqueue()
		return
	}
	t.park(enqueue)
}

// SleepUntil implements futex.Scheduler.
func (s *Scheduler) SleepUntil(ft futex.Task, deadline time.Time, enqueue func()) {
	t, live := s.task(ft)
	if !live {
		enqueue()
		return
	}
	t.armAlarm(deadline)
	t.park(enqueue)
}

// Unblock implements futex.Scheduler. Unblocking an exited task does nothing.
func (s *Scheduler) Unblock(ft futex.Task) {
	if t, live := s.task(ft); live {
		t.resume()
	}
}

// CancelAlarm implements futex.Scheduler.
func (s *Scheduler) CancelAlarm(ft futex.Task) {
	t, _ := s.task(ft)
	t.cancelAlarm()
}

// AlarmPending implements futex.Scheduler.
func (s *Scheduler) AlarmPending(ft futex.Task) bool {
	t, _ := s.task(ft)
	return t.alarmIsPending()
}

// Now implements futex.Scheduler.
func (s *Scheduler) Now() time.Time {
	return time.Now()
}

// Disable implements futex.Interrupts.
// Goroutines can't be pinned, so the scheduler only tracks the nesting depth.
func (s *Scheduler) Disable() {
	s.irqDepth.Add(1)
}

// Enable implements futex.Interrupts.
func (s *Scheduler) Enable() {
	if s.irqDepth.Add(-1) < 0 {
		panic("sched: unbalanced interrupts enable")
	}
}

// IrqDepth returns the number of outstanding Disable calls.
func (s *Scheduler) IrqDepth() int64 {
	return s.irqDepth.Load()
}

// task returns the task behind ft, and whether it is still in the task table.
func (s *Scheduler) task(ft futex.Task) (*Task, bool) {
	t, ok := ft.(*Task)
	if !ok {
		panic("sched: foreign task")
	}
	live, ok := s.tasks.Load(t.id)
	return t, ok && live == t
}
