// Copyright 2016 Aleksandr Demakin. All rights reserved.

package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestCondWait(t *testing.T) {
	e := newTestEnv(t)
	cond := e.cond(t)
	waiter, signaler := e.task(), e.task()
	cond.L.Lock(waiter)
	endCh := make(chan struct{})
	go func() {
		time.Sleep(time.Millisecond * 50)
		cond.L.Lock(signaler)
		cond.Signal(signaler)
		cond.L.Unlock(signaler)
		endCh <- struct{}{}
	}()
	cond.Wait(waiter)
	cond.L.Unlock(waiter)
	<-endCh
}

func TestCondWaitTimeout(t *testing.T) {
	a := assert.New(t)
	e := newTestEnv(t)
	cond := e.cond(t)
	c := e.task()
	cond.L.Lock(c)
	timeout := time.Millisecond * 50
	before := time.Now()
	a.False(cond.WaitTimeout(c, timeout))
	a.True(time.Since(before) >= timeout)
	// the mutex is held again.
	a.False(cond.L.TryLock(e.task()))
	cond.L.Unlock(c)
}

func TestCondSignalNoWaiters(t *testing.T) {
	e := newTestEnv(t)
	cond := e.cond(t)
	c := e.task()
	cond.Signal(c)
	cond.Broadcast(c)
	assert.Equal(t, uint32(2), e.as.LoadUint32(testCondSeq))
}

func TestCondBroadcastRequeues(t *testing.T) {
	const waiters = 4
	a := assert.New(t)
	e := newTestEnv(t)
	cond := e.cond(t)
	owner := e.task()
	var g errgroup.Group
	for i := 0; i < waiters; i++ {
		c := e.task()
		g.Go(func() error {
			cond.L.Lock(c)
			cond.Wait(c)
			v := e.as.LoadUint32(testCounter)
			e.as.StoreUint32(testCounter, v+1)
			cond.L.Unlock(c)
			return nil
		})
	}
	require.Eventually(t, func() bool {
		return e.queued(owner, testCondSeq) == waiters
	}, time.Second, time.Millisecond)
	cond.L.Lock(owner)
	cond.Broadcast(owner)
	a.Equal(0, e.queued(owner, testCondSeq))
	// one waiter is woken, the others are moved to the mutex.
	// the woken one blocks on the mutex too, as it is held.
	require.Eventually(t, func() bool {
		return e.queued(owner, testMutAddr) == waiters
	}, time.Second, time.Millisecond)
	a.Equal(uint32(0), e.as.LoadUint32(testCounter))
	cond.L.Unlock(owner)
	require.NoError(t, g.Wait())
	a.Equal(uint32(waiters), e.as.LoadUint32(testCounter))
	a.Equal(0, e.queued(owner, testMutAddr))
	a.Equal(cMutexUnlocked, e.as.LoadUint32(testMutAddr))
}
