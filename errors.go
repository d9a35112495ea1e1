// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import (
	"github.com/pkg/errors"
)

var (
	// ErrBadAddress is returned, when the futex word cannot be made resident.
	ErrBadAddress = errors.New("futex: bad address")
	// ErrWouldBlock is returned, when the futex word does not hold the expected value.
	ErrWouldBlock = errors.New("futex: value mismatch")
	// ErrTimeout is returned, when the wait deadline expired.
	ErrTimeout = errors.New("futex: timed out")
	// ErrInterrupted is returned, when a signal became pending while waiting.
	ErrInterrupted = errors.New("futex: interrupted")
	// ErrNotSupported is returned for futex commands, which are not implemented.
	ErrNotSupported = errors.New("futex: operation not supported")
	// ErrInvalidArgument is returned for malformed syscall arguments.
	ErrInvalidArgument = errors.New("futex: invalid argument")

	// ErrInvalidHashSize is returned by Config.Validate for non-positive table sizes.
	ErrInvalidHashSize = errors.New("futex: hash size must be positive")
	// ErrAlreadyInitialized is returned by the second call to Init.
	ErrAlreadyInitialized = errors.New("futex: already initialized")
	// ErrNotInitialized is the panic value of Default, when Init was not called.
	ErrNotInitialized = errors.New("futex: not initialized")
)

// IsBadAddress returns true, if err was caused by an unreadable futex word.
func IsBadAddress(err error) bool {
	return errors.Cause(err) == ErrBadAddress
}

// IsWouldBlock returns true, if err was caused by a value mismatch.
func IsWouldBlock(err error) bool {
	return errors.Cause(err) == ErrWouldBlock
}

// IsTimeout returns true, if err was caused by an expired deadline.
func IsTimeout(err error) bool {
	return errors.Cause(err) == ErrTimeout
}

// IsInterrupted returns true, if err was caused by a pending signal.
func IsInterrupted(err error) bool {
	return errors.Cause(err) == ErrInterrupted
}
