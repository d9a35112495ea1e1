// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package spin implements busy-wait locks used to guard futex hash buckets.
package spin

import (
	"runtime"
	"sync"
	"sync/atomic"
)

var (
	_ sync.Locker = (*Mutex)(nil)
	_ sync.Locker = (*NoIrqMutex)(nil)
)

const (
	cSpinUnlocked = 0
	cSpinLocked   = 1
)

// Mutex is a synchronization object which performs busy wait loop.
// It is not reentrant.
type Mutex struct {
	value uint32
}

// Lock locks the mutex waiting in a busy loop if needed.
func (spin *Mutex) Lock() {
	for !spin.TryLock() {
		runtime.Gosched()
	}
}

// Unlock releases the mutex.
func (spin *Mutex) Unlock() {
	if atomic.SwapUint32(&spin.value, cSpinUnlocked) != cSpinLocked {
		panic("spin: unlock of unlocked mutex")
	}
}

// TryLock makes one attempt to lock the mutex. It return true on succeess and false otherwise.
func (spin *Mutex) TryLock() bool {
	return atomic.CompareAndSwapUint32(&spin.value, cSpinUnlocked, cSpinLocked)
}

// Interrupts suppresses preemption/interrupt delivery for the current holder.
// Disable and Enable calls nest.
type Interrupts interface {
	Disable()
	Enable()
}

// NoIrqMutex is a spin mutex, whose holder runs with interrupts disabled.
// Interrupts are disabled before the lock is taken and enabled after it is released.
type NoIrqMutex struct {
	Mutex
	irq Interrupts
}

// Init sets interrupts controller for the mutex. It must be called before the first Lock.
// nil irq means no interrupts suppression.
func (m *NoIrqMutex) Init(irq Interrupts) {
	m.irq = irq
}

// Lock disables interrupts and locks the mutex.
func (m *NoIrqMutex) Lock() {
	if m.irq != nil {
		m.irq.Disable()
	}
	m.Mutex.Lock()
}

// Unlock releases the mutex and restores interrupts.
func (m *NoIrqMutex) Unlock() {
	m.Mutex.Unlock()
	if m.irq != nil {
		m.irq.Enable()
	}
}
