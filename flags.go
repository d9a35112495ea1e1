// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import "math"

// Futex commands, from <linux/futex.h>.
const (
	FUTEX_WAIT            = 0
	FUTEX_WAKE            = 1
	FUTEX_FD              = 2
	FUTEX_REQUEUE         = 3
	FUTEX_CMP_REQUEUE     = 4
	FUTEX_WAKE_OP         = 5
	FUTEX_LOCK_PI         = 6
	FUTEX_UNLOCK_PI       = 7
	FUTEX_TRYLOCK_PI      = 8
	FUTEX_WAIT_BITSET     = 9
	FUTEX_WAKE_BITSET     = 10
	FUTEX_WAIT_REQUEUE_PI = 11
	FUTEX_CMP_REQUEUE_PI  = 12

	FUTEX_PRIVATE_FLAG   = 128
	FUTEX_CLOCK_REALTIME = 256

	cFutexCmdMask = ^uint32(FUTEX_PRIVATE_FLAG | FUTEX_CLOCK_REALTIME)
)

// BitsetMatchAny has all bits set. A waiter with this bitset is matched by any wake.
const BitsetMatchAny = math.MaxUint32

// WakeAll can be passed as a count to wake or requeue every matching waiter.
const WakeAll = math.MaxInt32

// Key kinds, stored in the two low bits of Key.Offset.
const (
	KeyPrivate    = 0
	KeySharedFile = 1
	KeySharedAnon = 2

	cKeyKindMask = 3
)

// Cmd returns futex command from the op value, stripping modifier flags.
func Cmd(op uint32) uint32 {
	return op & cFutexCmdMask
}

// IsPrivate returns true, if flags request a process-private futex.
func IsPrivate(flags uint32) bool {
	return flags&FUTEX_PRIVATE_FLAG != 0
}

func normBitset(bitset uint32) uint32 {
	if bitset == 0 {
		return BitsetMatchAny
	}
	return bitset
}
