// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// SyscallArgs are decoded arguments of the futex(2) system call.
type SyscallArgs struct {
	Addr uintptr
	// Op is a futex command optionally combined with FUTEX_PRIVATE_FLAG and FUTEX_CLOCK_REALTIME.
	Op  uint32
	Val uint32
	// Timeout is a relative timeout for FUTEX_WAIT. 0 means no timeout.
	Timeout time.Duration
	// Deadline is an absolute timeout for FUTEX_WAIT_BITSET. Zero means no timeout.
	Deadline time.Time
	// Val2 is the number of waiters to requeue for the requeue commands.
	Val2  uint32
	Addr2 uintptr
	// Val3 is the compare value for FUTEX_CMP_REQUEUE, or a bitset for the bitset commands.
	Val3 uint32
}

// Syscall executes a futex command. It returns the command result and an errno.
func (m *Manager) Syscall(t Target, a SyscallArgs) (uintptr, unix.Errno) {
	flags := a.Op & FUTEX_PRIVATE_FLAG
	switch Cmd(a.Op) {
	case FUTEX_WAIT:
		return 0, Errno(m.Wait(t, a.Addr, flags, a.Val, a.Timeout, BitsetMatchAny))
	case FUTEX_WAIT_BITSET:
		if a.Val3 == 0 {
			return 0, Errno(ErrInvalidArgument)
		}
		return 0, Errno(m.WaitUntil(t, a.Addr, flags, a.Val, a.Deadline, a.Val3))
	case FUTEX_WAKE:
		return uintptr(m.Wake(t, a.Addr, flags, countArg(a.Val), BitsetMatchAny)), 0
	case FUTEX_WAKE_BITSET:
		if a.Val3 == 0 {
			return 0, Errno(ErrInvalidArgument)
		}
		return uintptr(m.Wake(t, a.Addr, flags, countArg(a.Val), a.Val3)), 0
	case FUTEX_REQUEUE:
		n, err := m.Requeue(t, a.Addr, flags, a.Addr2, flags, countArg(a.Val), countArg(a.Val2), nil, false)
		return uintptr(n), Errno(err)
	case FUTEX_CMP_REQUEUE:
		cmp := a.Val3
		n, err := m.Requeue(t, a.Addr, flags, a.Addr2, flags, countArg(a.Val), countArg(a.Val2), &cmp, false)
		return uintptr(n), Errno(err)
	default:
		// FUTEX_FD, FUTEX_WAKE_OP and priority inheritance commands.
		return 0, Errno(errors.Wrapf(ErrNotSupported, "futex op %d", Cmd(a.Op)))
	}
}

// Errno converts an error returned by a futex operation to errno.
func Errno(err error) unix.Errno {
	if err == nil {
		return 0
	}
	switch errors.Cause(err) {
	case ErrBadAddress:
		return unix.EFAULT
	case ErrWouldBlock:
		return unix.EAGAIN
	case ErrTimeout:
		return unix.ETIMEDOUT
	case ErrInterrupted:
		return unix.EINTR
	case ErrNotSupported:
		return unix.ENOSYS
	default:
		return unix.EINVAL
	}
}

// countArg converts a waiter count from its register value.
// Linux treats it as a signed int, negative values wake nobody.
func countArg(v uint32) int {
	n := int(int32(v))
	if n < 0 {
		return 0
	}
	return n
}
