// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package sync implements synchronization primitives on top of futex words.
// The primitives keep their state in a task's address space, so that
// tasks of one process, or tasks sharing a mapping, can use them together.
package sync

import (
	"time"

	"github.com/nxgtw/go-futex"
	"github.com/nxgtw/go-futex/mem"
)

// Caller is a task, which uses a primitive.
type Caller interface {
	futex.Target
	// Memory returns the address space of the task.
	Memory() *mem.AddressSpace
}

// word is a futex word in user memory.
type word struct {
	m     *futex.Manager
	addr  uintptr
	flags uint32
}

func newWord(m *futex.Manager, addr uintptr, private bool) word {
	var flags uint32
	if private {
		flags = futex.FUTEX_PRIVATE_FLAG
	}
	return word{m: m, addr: addr, flags: flags}
}

// wait sleeps while the word holds value.
// a changed value or a signal are not errors: the caller rechecks its state anyway.
func (w word) wait(c Caller, value uint32, deadline time.Time) error {
	err := w.m.WaitUntil(c, w.addr, w.flags, value, deadline, futex.BitsetMatchAny)
	if futex.IsWouldBlock(err) || futex.IsInterrupted(err) {
		return nil
	}
	return err
}

func (w word) wake(c Caller, count int) int {
	return w.m.Wake(c, w.addr, w.flags, count, futex.BitsetMatchAny)
}

func (w word) key(c Caller) futex.Key {
	return futex.ResolveKey(c, w.addr, w.flags)
}

// deadlineFor converts a timeout into a deadline. Negative timeout means no deadline.
func deadlineFor(timeout time.Duration) time.Time {
	if timeout < 0 {
		return time.Time{}
	}
	return time.Now().Add(timeout)
}
