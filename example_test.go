// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex_test

import (
	"fmt"

	"github.com/nxgtw/go-futex"
	"github.com/nxgtw/go-futex/mem"
	"github.com/nxgtw/go-futex/sched"
)

func ExampleManager() {
	const addr = 0x10000
	as := mem.NewAddressSpace()
	if err := as.Map(addr, mem.PageSize); err != nil {
		panic(err)
	}
	s := sched.New()
	m, err := futex.NewManager(s, futex.DefaultConfig())
	if err != nil {
		panic(err)
	}
	waiter, waker := s.NewTask(as), s.NewTask(as)
	done := make(chan error)
	go func() {
		// sleep while the word is 0.
		done <- m.Wait(waiter, addr, futex.FUTEX_PRIVATE_FLAG, 0, 0, futex.BitsetMatchAny)
	}()
	// an unlucky waker may come before the waiter is queued. in this case
	// the waiter sees the new value and does not sleep.
	as.StoreUint32(addr, 1)
	m.Wake(waker, addr, futex.FUTEX_PRIVATE_FLAG, 1, futex.BitsetMatchAny)
	err = <-done
	fmt.Println(err == nil || futex.IsWouldBlock(err))
	// Output: true
}
