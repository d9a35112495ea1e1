// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nxgtw/go-futex"
	"github.com/nxgtw/go-futex/mem"
	"github.com/nxgtw/go-futex/sched"
)

const (
	testRegion = uintptr(0x10000)
	testAddr   = testRegion + 0x40
	testAddr2  = testRegion + 0x1080
	badAddr    = uintptr(0x900000)

	eventually = 2 * time.Second
	tick       = time.Millisecond
)

type testEnv struct {
	t  *testing.T
	s  *sched.Scheduler
	m  *futex.Manager
	as *mem.AddressSpace

	// observer resolves keys and wakes waiters on behalf of the test.
	observer *sched.Task
}

func newTestEnv(t *testing.T) *testEnv {
	as := mem.NewAddressSpace()
	require.NoError(t, as.Map(testRegion, 4*mem.PageSize))
	s := sched.New()
	m, err := futex.NewManager(s, futex.Config{HashSize: futex.DefaultHashSize, Interrupts: s})
	require.NoError(t, err)
	env := &testEnv{t: t, s: s, m: m, as: as}
	env.observer = env.task()
	t.Cleanup(func() {
		assert.Equal(t, int64(0), s.IrqDepth(), "bucket locks left interrupts disabled")
	})
	return env
}

func (e *testEnv) task() *sched.Task {
	return e.s.NewTask(e.as)
}

func (e *testEnv) key(addr uintptr) futex.Key {
	return futex.ResolveKey(e.observer, addr, futex.FUTEX_PRIVATE_FLAG)
}

func (e *testEnv) queued(addr uintptr) int {
	return e.m.Queued(e.key(addr))
}

func (e *testEnv) queuedIDs(addr uintptr) []int64 {
	var result []int64
	for _, t := range e.m.QueuedTasks(e.key(addr)) {
		result = append(result, t.TaskID())
	}
	return result
}

// waitQueued blocks until exactly n waiters are queued on addr.
func (e *testEnv) waitQueued(addr uintptr, n int) {
	require.Eventually(e.t, func() bool { return e.queued(addr) == n }, eventually, tick)
}

// startWaiter runs a wait on behalf of task in a new goroutine and waits until it is queued.
func (e *testEnv) startWaiter(task *sched.Task, addr uintptr, val uint32, timeout time.Duration) <-chan error {
	before := e.queued(addr)
	result := make(chan error, 1)
	go func() {
		result <- e.m.Wait(task, addr, futex.FUTEX_PRIVATE_FLAG, val, timeout, futex.BitsetMatchAny)
	}()
	e.waitQueued(addr, before+1)
	return result
}

func (e *testEnv) wake(addr uintptr, n int) int {
	return e.m.Wake(e.observer, addr, futex.FUTEX_PRIVATE_FLAG, n, futex.BitsetMatchAny)
}

func receive(t *testing.T, ch <-chan error) error {
	select {
	case err := <-ch:
		return err
	case <-time.After(eventually):
		require.FailNow(t, "waiter did not return")
		return nil
	}
}

func assertBlocked(t *testing.T, ch <-chan error) {
	select {
	case err := <-ch:
		assert.Failf(t, "waiter returned", "err=%v", err)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestConfigValidate(t *testing.T) {
	a := assert.New(t)
	a.NoError(futex.DefaultConfig().Validate())
	a.Equal(futex.DefaultHashSize, futex.DefaultConfig().HashSize)
	err := futex.Config{}.Validate()
	a.Error(err)
	a.Contains(err.Error(), futex.ErrInvalidHashSize.Error())
	_, err = futex.NewManager(sched.New(), futex.Config{HashSize: -1})
	a.Error(err)
	_, err = futex.NewManager(nil, futex.DefaultConfig())
	a.Error(err)
}

func TestNewManager(t *testing.T) {
	m, err := futex.NewManager(sched.New(), futex.Config{HashSize: 16})
	require.NoError(t, err)
	assert.Equal(t, 16, m.HashSize())
}

func TestManagerLogging(t *testing.T) {
	a := assert.New(t)
	core, logs := observer.New(zapcore.DebugLevel)
	as := mem.NewAddressSpace()
	require.NoError(t, as.Map(testRegion, mem.PageSize))
	s := sched.New()
	m, err := futex.NewManager(s, futex.Config{HashSize: futex.DefaultHashSize, Logger: zap.New(core)})
	require.NoError(t, err)
	task := s.NewTask(as)

	a.True(futex.IsWouldBlock(m.Wait(task, testAddr, futex.FUTEX_PRIVATE_FLAG, 1, 0, futex.BitsetMatchAny)))
	a.Equal(0, m.Wake(task, testAddr, futex.FUTEX_PRIVATE_FLAG, 1, futex.BitsetMatchAny))
	_, err = m.Requeue(task, testAddr, futex.FUTEX_PRIVATE_FLAG, testAddr2, futex.FUTEX_PRIVATE_FLAG, 1, 1, nil, false)
	a.NoError(err)

	wait := logs.FilterMessage("futex wait").All()
	if a.Len(wait, 1) {
		a.Equal(uint64(testAddr), wait[0].ContextMap()["addr"])
	}
	wake := logs.FilterMessage("futex wake").All()
	if a.Len(wake, 1) {
		fields := wake[0].ContextMap()
		a.Equal(int64(0), fields["woken"])
		a.Equal(futex.ResolveKey(task, testAddr, futex.FUTEX_PRIVATE_FLAG).String(), fields["key"])
	}
	a.Equal(1, logs.FilterMessage("futex requeue").Len())
}

func TestInitDefault(t *testing.T) {
	a := assert.New(t)
	a.PanicsWithValue(futex.ErrNotInitialized, func() { futex.Default() })
	s := sched.New()
	require.NoError(t, futex.Init(s, futex.DefaultConfig()))
	a.Equal(futex.ErrAlreadyInitialized, futex.Init(s, futex.DefaultConfig()))
	m := futex.Default()
	a.NotNil(m)
	a.Equal(futex.DefaultHashSize, m.HashSize())
	a.Equal(m, futex.Default())
}

func TestRobustList(t *testing.T) {
	a := assert.New(t)
	env := newTestEnv(t)
	task := env.task()
	a.Equal(futex.RobustList{}, env.m.RobustList(task))
	env.m.SetRobustList(task, 0x10100, 24)
	a.Equal(futex.RobustList{Head: 0x10100, Len: 24}, env.m.RobustList(task))
	a.Equal(futex.RobustList{}, env.m.RobustList(env.task()))
	env.m.ForgetTask(task)
	a.Equal(futex.RobustList{}, env.m.RobustList(task))
}
