// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"testing"

	"github.com/nxgtw/go-futex"
	"github.com/nxgtw/go-futex/mem"
	"github.com/nxgtw/go-futex/sched"

	"github.com/stretchr/testify/require"
)

const (
	testRegion  = uintptr(0x40000)
	testMutAddr = testRegion
	testCondSeq = testRegion + 64
	testCounter = testRegion + 128
)

type testEnv struct {
	s  *sched.Scheduler
	m  *futex.Manager
	as *mem.AddressSpace
}

func newTestEnv(t *testing.T) *testEnv {
	as := mem.NewAddressSpace()
	require.NoError(t, as.Map(testRegion, mem.PageSize))
	s := sched.New()
	cfg := futex.DefaultConfig()
	cfg.Interrupts = s
	m, err := futex.NewManager(s, cfg)
	require.NoError(t, err)
	return &testEnv{s: s, m: m, as: as}
}

func (e *testEnv) task() *sched.Task {
	return e.s.NewTask(e.as)
}

func (e *testEnv) mutex(t *testing.T) *Mutex {
	mu := NewMutex(e.m, testMutAddr, true)
	require.NoError(t, mu.Init(e.task()))
	return mu
}

func (e *testEnv) cond(t *testing.T) *Cond {
	c := NewCond(e.mutex(t), testCondSeq)
	require.NoError(t, c.Init(e.task()))
	return c
}

func (e *testEnv) queued(c Caller, addr uintptr) int {
	return e.m.Queued(futex.ResolveKey(c, addr, futex.FUTEX_PRIVATE_FLAG))
}
