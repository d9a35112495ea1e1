// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"time"

	"github.com/nxgtw/go-futex"
	"github.com/pkg/errors"
)

const (
	cMutexSpinCount         = 100
	cMutexUnlocked          = uint32(0)
	cMutexLockedNoWaiters   = uint32(1)
	cMutexLockedHaveWaiters = uint32(2)
)

// Mutex is a lightweight mutex operating on a uint32 memory cell.
// It tries to minimize amount of futex calls needed to do locking.
// The cell must be mapped in the address space of every caller.
type Mutex struct {
	w word
}

// NewMutex returns a mutex, which uses the word at addr.
//	private - if true, the mutex can be used only by tasks of one address space.
func NewMutex(m *futex.Manager, addr uintptr, private bool) *Mutex {
	return &Mutex{w: newWord(m, addr, private)}
}

// Init writes initial value into mutex's memory location.
func (mu *Mutex) Init(c Caller) error {
	if err := c.EnsureResident(mu.w.addr); err != nil {
		return errors.Wrapf(futex.ErrBadAddress, "mutex at %#x: %v", mu.w.addr, err)
	}
	c.Memory().StoreUint32(mu.w.addr, cMutexUnlocked)
	return nil
}

// Addr returns the address of the mutex word.
func (mu *Mutex) Addr() uintptr {
	return mu.w.addr
}

// Lock locks the mutex. It panics on an error.
func (mu *Mutex) Lock(c Caller) {
	if err := mu.doLock(c, time.Time{}); err != nil {
		panic(err)
	}
}

// TryLock makes one attempt to lock the mutex. It returns true on success.
func (mu *Mutex) TryLock(c Caller) bool {
	return c.Memory().CompareAndSwapUint32(mu.w.addr, cMutexUnlocked, cMutexLockedNoWaiters)
}

// LockTimeout tries to lock the mutex, waiting for not more than timeout.
// It returns false, if the timeout expired.
func (mu *Mutex) LockTimeout(c Caller, timeout time.Duration) bool {
	err := mu.doLock(c, deadlineFor(timeout))
	if err == nil {
		return true
	}
	if futex.IsTimeout(err) {
		return false
	}
	panic(err)
}

func (mu *Mutex) doLock(c Caller, deadline time.Time) error {
	as := c.Memory()
	for i := 0; i < cMutexSpinCount; i++ {
		if as.CompareAndSwapUint32(mu.w.addr, cMutexUnlocked, cMutexLockedNoWaiters) {
			return nil
		}
	}
	old := as.LoadUint32(mu.w.addr)
	if old != cMutexLockedHaveWaiters {
		old = as.SwapUint32(mu.w.addr, cMutexLockedHaveWaiters)
	}
	if old == cMutexUnlocked {
		return nil
	}
	return mu.lockContended(c, deadline)
}

// lockContended acquires the mutex marking it as having waiters.
// tasks, which were moved to the mutex word by Cond.Broadcast, lock it this way,
// so that the unlock wakes the next of them.
func (mu *Mutex) lockContended(c Caller, deadline time.Time) error {
	as := c.Memory()
	for as.SwapUint32(mu.w.addr, cMutexLockedHaveWaiters) != cMutexUnlocked {
		if err := mu.w.wait(c, cMutexLockedHaveWaiters, deadline); err != nil {
			return err
		}
	}
	return nil
}

// Unlock releases the mutex. It panics, if the mutex is not locked.
func (mu *Mutex) Unlock(c Caller) {
	as := c.Memory()
	if old := as.LoadUint32(mu.w.addr); old == cMutexLockedHaveWaiters {
		as.StoreUint32(mu.w.addr, cMutexUnlocked)
	} else {
		if old == cMutexUnlocked {
			panic("unlock of unlocked mutex")
		}
		if as.SwapUint32(mu.w.addr, cMutexUnlocked) == cMutexLockedNoWaiters {
			return
		}
	}
	// if someone takes the mutex while we spin, the wake becomes the duty of the new owner.
	for i := 0; i < cMutexSpinCount; i++ {
		if as.LoadUint32(mu.w.addr) != cMutexUnlocked {
			if as.CompareAndSwapUint32(mu.w.addr, cMutexLockedNoWaiters, cMutexLockedHaveWaiters) {
				return
			}
		}
	}
	mu.w.wake(c, 1)
}
