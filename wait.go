// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Wait blocks the calling task while the futex word at addr holds val.
//	flags - FUTEX_PRIVATE_FLAG or 0.
//	timeout - relative timeout. 0 means wait forever.
//	bitset - waiter's bitset for bitset wakes. 0 means BitsetMatchAny.
// It returns nil after a wake or a requeue followed by a wake, or one of
// ErrBadAddress, ErrWouldBlock, ErrTimeout, ErrInterrupted.
func (m *Manager) Wait(t Target, addr uintptr, flags, val uint32, timeout time.Duration, bitset uint32) error {
	var deadline time.Time
	if timeout > 0 {
		deadline = m.sched.Now().Add(timeout)
	}
	return m.WaitUntil(t, addr, flags, val, deadline, bitset)
}

// WaitUntil is like Wait, but takes an absolute deadline. Zero deadline means wait forever.
func (m *Manager) WaitUntil(t Target, addr uintptr, flags, val uint32, deadline time.Time, bitset uint32) error {
	m.log.Debug("futex wait",
		zap.Uintptr("addr", addr),
		zap.Uint32("flags", flags),
		zap.Uint32("val", val),
		zap.Time("deadline", deadline))
	task := t.Task()
	hasDeadline := !deadline.IsZero()
	if hasDeadline {
		defer m.sched.CancelAlarm(task)
	}
	for {
		retry, err := m.waitOnce(t, task, addr, flags, val, deadline, bitset)
		if !retry {
			return err
		}
		if hasDeadline {
			m.sched.CancelAlarm(task)
		}
	}
}

// waitOnce performs one check-enqueue-sleep round.
// It returns retry=true after a spurious wakeup.
func (m *Manager) waitOnce(t Target, task Task, addr uintptr, flags, val uint32, deadline time.Time, bitset uint32) (bool, error) {
	key := ResolveKey(t, addr, flags)
	// fault the page in before taking the lock, as it may block.
	if err := t.EnsureResident(addr); err != nil {
		return false, errors.Wrapf(ErrBadAddress, "futex word at %#x: %v", addr, err)
	}
	b := m.table.bucketFor(key)
	b.mu.Lock()
	// the value is read with the bucket locked, so a waker, which changes the word
	// and then takes the lock, either sees us queued, or we see the new value.
	cur, err := t.LoadUint32(addr)
	if err != nil {
		b.mu.Unlock()
		return false, errors.Wrapf(ErrBadAddress, "futex word at %#x: %v", addr, err)
	}
	if cur != val {
		b.mu.Unlock()
		return false, errors.Wrapf(ErrWouldBlock, "futex word at %#x is %d, expected %d", addr, cur, val)
	}
	w := newWaiter(task, key, bitset)
	enqueue := func() {
		b.enqueue(w)
		b.mu.Unlock()
	}
	hasDeadline := !deadline.IsZero()
	if hasDeadline {
		m.sched.SleepUntil(task, deadline, enqueue)
	} else {
		m.sched.BlockCurrent(task, enqueue)
	}

	// we might have been requeued, so look for the waiter wherever it is now.
	b = w.lockBucket()
	if b == nil {
		// someone has dequeued us, it's a real wakeup.
		return false, nil
	}
	b.dequeue(w)
	b.mu.Unlock()
	if hasDeadline && !m.sched.AlarmPending(task) {
		return false, errors.Wrapf(ErrTimeout, "futex word at %#x", addr)
	}
	if t.HasPendingSignal() {
		return false, errors.Wrapf(ErrInterrupted, "futex word at %#x", addr)
	}
	m.log.Debug("futex spurious wakeup", zap.Uintptr("addr", addr), zap.Stringer("key", key))
	return true, nil
}
