// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sched

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/nxgtw/go-futex"
	"github.com/nxgtw/go-futex/mem"
)

// Task is a schedulable entity running in an address space.
// Its methods, except for Signal, Kick and Blocked, must be called from the goroutine driving the task.
type Task struct {
	id      int64
	as      *mem.AddressSpace
	token   chan struct{}
	blocked atomic.Bool
	exited  atomic.Bool
	signals atomic.Uint32

	mu           sync.Mutex
	alarm        *time.Timer
	alarmGen     uint64
	alarmPending bool
}

// NewTask creates a task in the given address space.
func (s *Scheduler) NewTask(as *mem.AddressSpace) *Task {
	t := &Task{
		id:    s.lastID.Add(1),
		as:    as,
		token: make(chan struct{}, 1),
	}
	s.tasks.Store(t.id, t)
	return t
}

// TaskID implements futex.Task.
func (t *Task) TaskID() int64 {
	return t.id
}

// Task implements futex.Process.
func (t *Task) Task() futex.Task {
	return t
}

// AddressSpaceID implements futex.Process.
func (t *Task) AddressSpaceID() uintptr {
	return t.as.ID()
}

// HasPendingSignal implements futex.Process. An exited task always has one.
func (t *Task) HasPendingSignal() bool {
	return t.signals.Load() != 0 || t.exited.Load()
}

// EnsureResident implements futex.Memory.
func (t *Task) EnsureResident(addr uintptr) error {
	return t.as.EnsureResident(addr)
}

// LoadUint32 implements futex.Memory.
func (t *Task) LoadUint32(addr uintptr) (uint32, error) {
	return t.as.ReadUint32(addr)
}

// Memory returns task's address space.
func (t *Task) Memory() *mem.AddressSpace {
	return t.as
}

// Signal marks a signal pending. It does not resume a blocked task.
func (t *Task) Signal() {
	t.signals.Add(1)
}

// ClearSignals discards pending signals.
func (t *Task) ClearSignals() {
	t.signals.Store(0)
}

// Kick resumes the task without any reason, causing a spurious wakeup.
func (t *Task) Kick() {
	t.resume()
}

// Blocked returns true, if the task is parked.
func (t *Task) Blocked() bool {
	return t.blocked.Load()
}

func (t *Task) park(enqueue func()) {
	t.blocked.Store(true)
	enqueue()
	<-t.token
	t.blocked.Store(false)
}

func (t *Task) resume() {
	select {
	case t.token <- struct{}{}:
	default:
	}
}

func (t *Task) armAlarm(deadline time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopAlarmLocked()
	gen := t.alarmGen
	t.alarmPending = true
	t.alarm = time.AfterFunc(time.Until(deadline), func() {
		t.mu.Lock()
		fired := t.alarmGen == gen && t.alarmPending
		if fired {
			t.alarmPending = false
		}
		t.mu.Unlock()
		if fired {
			t.resume()
		}
	})
}

func (t *Task) cancelAlarm() {
	t.mu.Lock()
	t.stopAlarmLocked()
	t.mu.Unlock()
}

// stopAlarmLocked stops the timer and invalidates its callback, if it is already running.
func (t *Task) stopAlarmLocked() {
	if t.alarm != nil {
		t.alarm.Stop()
		t.alarm = nil
	}
	t.alarmGen++
	t.alarmPending = false
}

func (t *Task) alarmIsPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alarmPending
}
