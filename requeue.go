// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Requeue wakes up to nWake tasks waiting on addr1, and moves up to nRequeue
// of the following waiters to the futex at addr2, preserving their order.
// Waiters are moved, not woken: they will be released by a wake on addr2.
//	cmp - if not nil, the word at addr1 must hold *cmp, otherwise ErrWouldBlock is returned.
//	requeuePI - priority inheritance is not implemented, the value is ignored.
// It returns the total number of woken and requeued tasks.
// Without cmp Requeue never fails.
func (m *Manager) Requeue(t Target, addr1 uintptr, flags1 uint32, addr2 uintptr, flags2 uint32,
	nWake, nRequeue int, cmp *uint32, requeuePI bool) (int, error) {
	key1 := ResolveKey(t, addr1, flags1)
	key2 := ResolveKey(t, addr2, flags2)
	if cmp != nil {
		if err := t.EnsureResident(addr1); err != nil {
			return 0, errors.Wrapf(ErrBadAddress, "futex word at %#x: %v", addr1, err)
		}
	}
	// requeue holds two bucket locks. they are always taken in the order of bucket
	// index and key, so concurrent requeues with swapped addresses can't deadlock.
	b1, b2 := m.table.lockBuckets(key1, key2)
	if cmp != nil {
		cur, err := t.LoadUint32(addr1)
		if err != nil {
			unlockBuckets(b1, b2)
			return 0, errors.Wrapf(ErrBadAddress, "futex word at %#x: %v", addr1, err)
		}
		if cur != *cmp {
			unlockBuckets(b1, b2)
			return 0, errors.Wrapf(ErrWouldBlock, "futex word at %#x is %d, expected %d", addr1, cur, *cmp)
		}
	}
	woken, requeued := b1.requeueLocked(m.sched, b2, key1, key2, nWake, nRequeue)
	unlockBuckets(b1, b2)
	m.log.Debug("futex requeue",
		zap.Stringer("from", key1),
		zap.Stringer("to", key2),
		zap.Int("woken", woken),
		zap.Int("requeued", requeued),
		zap.Bool("pi", requeuePI))
	return woken + requeued, nil
}
