// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import "sync/atomic"

// Waiter is a queue entry of a task blocked on a futex.
//
// It is shared by the waiting task and by the bucket it sits in.
// Whoever removes it from the bucket first claims the wakeup.
type Waiter struct {
	// next and prev link the waiter into the bucket's queue.
	// protected by the bucket lock.
	next, prev *Waiter

	// bucket is the bucket the waiter is queued in, or nil, if it was dequeued.
	// written with the bucket lock held.
	bucket atomic.Pointer[bucket]

	// key may be rewritten by requeue. protected by the bucket lock.
	key Key

	bitset uint32
	task   Task
}

func newWaiter(task Task, key Key, bitset uint32) *Waiter {
	return &Waiter{task: task, key: key, bitset: normBitset(bitset)}
}

// Task returns the task, which is blocked on the waiter.
func (w *Waiter) Task() Task {
	return w.task
}

func (w *Waiter) matches(key Key, bitset uint32) bool {
	return w.key == key && w.bitset&bitset != 0
}

// queued returns true, if the waiter is still in some bucket.
func (w *Waiter) queued() bool {
	return w.bucket.Load() != nil
}

// lockBucket locks the bucket w is queued in and returns it.
// It returns nil, if w is not queued anymore.
// The bucket may change while we are taking the lock, so recheck it after locking.
func (w *Waiter) lockBucket() *bucket {
	for {
		b := w.bucket.Load()
		if b == nil {
			return nil
		}
		b.mu.Lock()
		if b == w.bucket.Load() {
			return b
		}
		b.mu.Unlock()
	}
}

// waiterList is an intrusive FIFO of waiters.
type waiterList struct {
	head, tail *Waiter
	len        int
}

func (l *waiterList) pushBack(w *Waiter) {
	w.next = nil
	w.prev = l.tail
	if l.tail == nil {
		l.head = w
	} else {
		l.tail.next = w
	}
	l.tail = w
	l.len++
}

func (l *waiterList) remove(w *Waiter) {
	if w.prev == nil {
		l.head = w.next
	} else {
		w.prev.next = w.next
	}
	if w.next == nil {
		l.tail = w.prev
	} else {
		w.next.prev = w.prev
	}
	w.next, w.prev = nil, nil
	l.len--
}

func (l *waiterList) front() *Waiter {
	return l.head
}
