// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"time"

	"github.com/nxgtw/go-futex"
	"github.com/pkg/errors"
)

// Cond is a futex-based condition variable.
// Its state is a sequence number, which is incremented on each signal.
// Broadcast moves waiters to the mutex word instead of waking all of them,
// so they acquire the mutex one by one.
type Cond struct {
	L *Mutex
	w word
}

// NewCond returns a condition variable, which uses the word at addr.
// The word and the mutex must be both private or both shared.
func NewCond(l *Mutex, addr uintptr) *Cond {
	return &Cond{L: l, w: word{m: l.w.m, addr: addr, flags: l.w.flags}}
}

// Init resets the sequence number.
func (c *Cond) Init(cl Caller) error {
	if err := cl.EnsureResident(c.w.addr); err != nil {
		return errors.Wrapf(futex.ErrBadAddress, "cond at %#x: %v", c.w.addr, err)
	}
	cl.Memory().StoreUint32(c.w.addr, 0)
	return nil
}

// Signal wakes one waiter, if there is any.
func (c *Cond) Signal(cl Caller) {
	cl.Memory().AddUint32(c.w.addr, 1)
	c.w.wake(cl, 1)
}

// Broadcast wakes one waiter and moves all others to the mutex.
func (c *Cond) Broadcast(cl Caller) {
	as := cl.Memory()
	as.AddUint32(c.w.addr, 1)
	for {
		seq := as.LoadUint32(c.w.addr)
		_, err := c.w.m.Requeue(cl, c.w.addr, c.w.flags, c.L.w.addr, c.L.w.flags, 1, futex.WakeAll, &seq, false)
		if err == nil {
			return
		}
		// a concurrent signal changed the sequence.
		if !futex.IsWouldBlock(err) {
			panic(err)
		}
	}
}

// Wait unlocks c.L, waits for a signal, and locks c.L again.
// As with any condition variable, a wakeup may be spurious.
func (c *Cond) Wait(cl Caller) {
	if _, err := c.doWait(cl, time.Time{}); err != nil {
		panic(err)
	}
}

// WaitTimeout is like Wait, but it waits for not more than timeout.
// It returns false, if the timeout expired.
func (c *Cond) WaitTimeout(cl Caller, timeout time.Duration) bool {
	signaled, err := c.doWait(cl, deadlineFor(timeout))
	if err != nil {
		panic(err)
	}
	return signaled
}

func (c *Cond) doWait(cl Caller, deadline time.Time) (bool, error) {
	seq := cl.Memory().LoadUint32(c.w.addr)
	c.L.Unlock(cl)
	signaled := true
	if err := c.w.wait(cl, seq, deadline); err != nil {
		if !futex.IsTimeout(err) {
			return false, err
		}
		signaled = false
	}
	// we may have been moved to the mutex word, so lock it marking it contended.
	if err := c.L.lockContended(cl, time.Time{}); err != nil {
		return false, err
	}
	return signaled, nil
}
