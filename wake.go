// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import "go.uber.org/zap"

// Wake wakes up to n tasks waiting on the futex at addr, oldest first.
// Only waiters, whose bitset intersects bitset, are considered. 0 bitset means BitsetMatchAny.
// It returns the number of woken tasks.
func (m *Manager) Wake(t Process, addr uintptr, flags uint32, n int, bitset uint32) int {
	key := ResolveKey(t, addr, flags)
	b := m.table.bucketFor(key)
	b.mu.Lock()
	woken := b.wakeLocked(m.sched, key, normBitset(bitset), n)
	b.mu.Unlock()
	m.log.Debug("futex wake",
		zap.Uintptr("addr", addr),
		zap.Stringer("key", key),
		zap.Int("n", n),
		zap.Int("woken", woken))
	return woken
}
