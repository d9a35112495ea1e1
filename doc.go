// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package futex implements the kernel side of fast userspace mutexes.
//
// A futex is a 32-bit word in user memory. The uncontended path never enters
// this package; contended waiters block on a wait queue keyed by the word's
// identity and are released by wake or moved by requeue.
// It provides:
//	Key resolution for private mappings
//	a fixed-size table of independently locked wait queues
//	Wait, Wake and Requeue operations
//	a linux syscall entry point, which maps results to errno values
//
// The package does not own the scheduler, the memory subsystem or the process
// subsystem. They are supplied by the caller through the Scheduler, Memory and
// Process interfaces. Packages mem and sched provide goroutine-based
// implementations of them.
//
// Shared (file-backed) mappings are keyed as private ones. Two processes
// waiting on the same shared page through different address spaces do not see
// each other.
package futex
