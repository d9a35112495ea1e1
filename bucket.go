// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import (
	"golang.org/x/sys/cpu"

	"github.com/nxgtw/go-futex/internal/spin"
)

// bucket is a wait queue of futexes, whose keys hash to the same value.
// Waiters for different keys may share a bucket, so every scan must compare keys.
type bucket struct {
	mu      spin.NoIrqMutex
	waiters waiterList
	_       cpu.CacheLinePad
}

// enqueue appends w to the tail of the queue. b.mu must be held.
func (b *bucket) enqueue(w *Waiter) {
	b.waiters.pushBack(w)
	w.bucket.Store(b)
}

// dequeue removes w from the queue. b.mu must be held, and w must be queued in b.
func (b *bucket) dequeue(w *Waiter) {
	b.waiters.remove(w)
	w.bucket.Store(nil)
}

// wakeLocked wakes up to n waiters matching key and bitset in FIFO order.
// b.mu must be held.
func (b *bucket) wakeLocked(s Scheduler, key Key, bitset uint32, n int) int {
	done := 0
	for w := b.waiters.front(); w != nil && done < n; {
		next := w.next
		if w.matches(key, bitset) {
			b.dequeue(w)
			s.Unblock(w.task)
			done++
		}
		w = next
	}
	return done
}

// requeueLocked wakes up to nWake waiters matching from, and moves up to nRequeue
// following ones to the tail of 'to' with their key set to newKey.
// Both b.mu and to.mu must be held; to may be equal to b.
func (b *bucket) requeueLocked(s Scheduler, to *bucket, from, newKey Key, nWake, nRequeue int) (woken, requeued int) {
	var moved waiterList
	for w := b.waiters.front(); w != nil && (woken < nWake || requeued < nRequeue); {
		next := w.next
		if w.key == from {
			b.dequeue(w)
			if woken < nWake {
				s.Unblock(w.task)
				woken++
			} else {
				w.key = newKey
				moved.pushBack(w)
				requeued++
			}
		}
		w = next
	}
	for w := moved.front(); w != nil; {
		next := w.next
		moved.remove(w)
		to.enqueue(w)
		w = next
	}
	return woken, requeued
}

// bucketTable is a fixed-size array of buckets. It never changes after creation.
type bucketTable struct {
	buckets []bucket
}

func newBucketTable(size int, irq spin.Interrupts) *bucketTable {
	t := &bucketTable{buckets: make([]bucket, size)}
	for i := range t.buckets {
		t.buckets[i].mu.Init(irq)
	}
	return t
}

func (t *bucketTable) size() int {
	return len(t.buckets)
}

func (t *bucketTable) bucketFor(k Key) *bucket {
	return &t.buckets[k.Hash(len(t.buckets))]
}

// lockBefore defines the global lock order of (bucket index, key) pairs:
// by increasing index, then by key.
func lockBefore(i1 int, k1 Key, i2 int, k2 Key) bool {
	if i1 != i2 {
		return i1 < i2
	}
	return k1.Less(k2)
}

// lockBuckets locks buckets for both keys in the global lock order.
// If both keys map to the same bucket, it is locked once and returned twice.
func (t *bucketTable) lockBuckets(k1, k2 Key) (*bucket, *bucket) {
	i1, i2 := k1.Hash(len(t.buckets)), k2.Hash(len(t.buckets))
	b1, b2 := &t.buckets[i1], &t.buckets[i2]
	switch {
	case b1 == b2:
		b1.mu.Lock()
	case lockBefore(i1, k1, i2, k2):
		b1.mu.Lock()
		b2.mu.Lock()
	default:
		b2.mu.Lock()
		b1.mu.Lock()
	}
	return b1, b2
}

func unlockBuckets(b1, b2 *bucket) {
	b1.mu.Unlock()
	if b1 != b2 {
		b2.mu.Unlock()
	}
}
