// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import (
	"sync"
	"time"

	"github.com/llxisdsh/pb"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultHashSize is the number of buckets in the futex table.
const DefaultHashSize = 256

// Task is an opaque handle of a schedulable task.
type Task interface {
	TaskID() int64
}

// Memory gives access to the futex word in user memory.
type Memory interface {
	// EnsureResident makes the page at addr present. It may block on a page fault.
	EnsureResident(addr uintptr) error
	// LoadUint32 reads the word at addr. It is called with a bucket lock held,
	// so it must not block. It fails, if the page went away after EnsureResident.
	LoadUint32(addr uintptr) (uint32, error)
}

// Process describes the calling task and its process.
type Process interface {
	Task() Task
	// AddressSpaceID returns the identity of the task's address space.
	AddressSpaceID() uintptr
	HasPendingSignal() bool
}

// Target is the caller of a futex operation.
type Target interface {
	Process
	Memory
}

// Scheduler blocks and unblocks tasks.
//
// Block operations call enqueue before the task is suspended. enqueue publishes
// the task in a wait queue and releases the bucket lock, so after it returns
// the task may be unblocked at any moment. An Unblock, which comes before the
// task is suspended, must not be lost.
type Scheduler interface {
	// BlockCurrent suspends t until it is unblocked.
	BlockCurrent(t Task, enqueue func())
	// SleepUntil suspends t until it is unblocked or the deadline passes.
	SleepUntil(t Task, deadline time.Time, enqueue func())
	Unblock(t Task)
	// CancelAlarm cancels the deadline registered by SleepUntil.
	CancelAlarm(t Task)
	// AlarmPending returns true, if t has a deadline, which has not fired yet.
	AlarmPending(t Task) bool
	Now() time.Time
}

// Interrupts suppresses interrupts and preemption while bucket locks are held.
type Interrupts interface {
	Disable()
	Enable()
}

// Config holds futex manager parameters.
type Config struct {
	// HashSize is the number of hash buckets.
	HashSize int
	// Logger receives debug records of futex operations. nil discards them.
	Logger *zap.Logger
	// Interrupts is disabled while a bucket lock is held. nil means no-op.
	Interrupts Interrupts
}

// DefaultConfig returns a config with DefaultHashSize buckets.
func DefaultConfig() Config {
	return Config{HashSize: DefaultHashSize}
}

// Validate checks config values.
func (c Config) Validate() error {
	if c.HashSize <= 0 {
		return errors.Wrapf(ErrInvalidHashSize, "got %d", c.HashSize)
	}
	return nil
}

// Manager owns the futex hash table and implements futex operations on it.
// It is safe for concurrent use.
type Manager struct {
	table  *bucketTable
	sched  Scheduler
	log    *zap.Logger
	robust pb.MapOf[int64, RobustList]
}

// NewManager creates a new futex manager.
func NewManager(s Scheduler, cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errors.New("futex: nil scheduler")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		table: newBucketTable(cfg.HashSize, cfg.Interrupts),
		sched: s,
		log:   log,
	}, nil
}

// HashSize returns the number of buckets.
func (m *Manager) HashSize() int {
	return m.table.size()
}

// Queued returns the number of waiters queued on the key.
func (m *Manager) Queued(k Key) int {
	b := m.table.bucketFor(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	var count int
	for w := b.waiters.front(); w != nil; w = w.next {
		if w.key == k {
			count++
		}
	}
	return count
}

// QueuedTasks returns tasks waiting on the key in queue order.
func (m *Manager) QueuedTasks(k Key) []Task {
	b := m.table.bucketFor(k)
	b.mu.Lock()
	defer b.mu.Unlock()
	var result []Task
	for w := b.waiters.front(); w != nil; w = w.next {
		if w.key == k {
			result = append(result, w.task)
		}
	}
	return result
}

var (
	defaultMu  sync.Mutex
	defaultMgr *Manager
)

// Init creates the process-wide futex manager. It must be called exactly once
// before Default is used.
func Init(s Scheduler, cfg Config) error {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultMgr != nil {
		return ErrAlreadyInitialized
	}
	m, err := NewManager(s, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to init futex manager")
	}
	m.log.Info("futex initialized", zap.Int("buckets", cfg.HashSize))
	defaultMgr = m
	return nil
}

// Default returns the manager created by Init. It panics, if Init was not called.
func Default() *Manager {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultMgr == nil {
		panic(ErrNotInitialized)
	}
	return defaultMgr
}
