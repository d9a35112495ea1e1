// Copyright 2016 Aleksandr Demakin. All rights reserved.

// Package mem implements a simulated user address space for futex tests and tools.
//
// Memory is mapped in page-aligned regions. Pages inside a region are allocated
// lazily, on the first access or by EnsureResident, the way an anonymous
// mapping is populated on page faults. Accessing an address outside of any
// region is a fault.
//
// The page table is a pb.MapOf, whose lookups use plain loads on purpose.
// The race detector reports them (loadPointerNoMB under AddressSpace.fault)
// in concurrent tests of this package and of package futex. These reports
// come from pb internals, not from futex state.
package mem

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/llxisdsh/pb"
	"github.com/pkg/errors"
)

// PageSize is the size of a page.
const PageSize = 4096

const (
	cPageMask    = PageSize - 1
	cWordsInPage = PageSize / 4
)

var (
	// ErrFault is returned for accesses to unmapped memory.
	ErrFault = errors.New("mem: address is not mapped")
	// ErrBadRange is returned for unaligned or empty regions.
	ErrBadRange = errors.New("mem: invalid region")
	// ErrOverlap is returned, when a new region overlaps an existing one.
	ErrOverlap = errors.New("mem: region overlaps an existing mapping")
)

var lastSpaceID uintptr

type page struct {
	words [cWordsInPage]uint32
}

type region struct {
	start, end uintptr
}

// AddressSpace is a set of mapped regions and their resident pages.
// It is safe for concurrent use.
type AddressSpace struct {
	id      uintptr
	mu      sync.RWMutex
	regions []region // sorted by start, never overlap
	pages   pb.MapOf[uintptr, *page]
	faults  atomic.Int64
}

// NewAddressSpace creates an empty address space with a unique identity.
// Identities are consecutive, so equal addresses in different spaces hash to different buckets.
func NewAddressSpace() *AddressSpace {
	return &AddressSpace{id: atomic.AddUintptr(&lastSpaceID, 1)}
}

// ID returns the identity of the address space.
func (as *AddressSpace) ID() uintptr {
	return as.id
}

// Map adds a region of length bytes at start. No pages are allocated.
func (as *AddressSpace) Map(start uintptr, length int) error {
	if start&cPageMask != 0 || length <= 0 || length&cPageMask != 0 {
		return errors.Wrapf(ErrBadRange, "start=%#x, length=%d", start, length)
	}
	r := region{start: start, end: start + uintptr(length)}
	as.mu.Lock()
	defer as.mu.Unlock()
	idx := sort.Search(len(as.regions), func(i int) bool {
		return as.regions[i].start >= r.start
	})
	if idx > 0 && as.regions[idx-1].end > r.start {
		return errors.Wrapf(ErrOverlap, "start=%#x, length=%d", start, length)
	}
	if idx < len(as.regions) && as.regions[idx].start < r.end {
		return errors.Wrapf(ErrOverlap, "start=%#x, length=%d", start, length)
	}
	as.regions = append(as.regions, region{})
	copy(as.regions[idx+1:], as.regions[idx:])
	as.regions[idx] = r
	return nil
}

// Unmap removes the region, which starts at start, and frees its pages.
func (as *AddressSpace) Unmap(start uintptr) error {
	as.mu.Lock()
	defer as.mu.Unlock()
	for i, r := range as.regions {
		if r.start != start {
			continue
		}
		as.regions = append(as.regions[:i], as.regions[i+1:]...)
		for p := r.start; p < r.end; p += PageSize {
			as.pages.Delete(p)
		}
		return nil
	}
	return errors.Wrapf(ErrFault, "no region at %#x", start)
}

func (as *AddressSpace) mapped(addr uintptr) bool {
	as.mu.RLock()
	defer as.mu.RUnlock()
	idx := sort.Search(len(as.regions), func(i int) bool {
		return as.regions[i].end > addr
	})
	return idx < len(as.regions) && as.regions[idx].start <= addr
}

// EnsureResident makes the page containing addr resident, allocating it if needed.
func (as *AddressSpace) EnsureResident(addr uintptr) error {
	_, err := as.fault(addr)
	return err
}

// Resident returns true, if the page containing addr has been allocated.
func (as *AddressSpace) Resident(addr uintptr) bool {
	_, ok := as.pages.Load(addr &^ cPageMask)
	return ok
}

// Faults returns the number of pages allocated on demand.
func (as *AddressSpace) Faults() int64 {
	return as.faults.Load()
}

func (as *AddressSpace) fault(addr uintptr) (*page, error) {
	base := addr &^ cPageMask
	if p, ok := as.pages.Load(base); ok {
		return p, nil
	}
	if !as.mapped(addr) {
		return nil, errors.Wrapf(ErrFault, "address %#x", addr)
	}
	p, loaded := as.pages.LoadOrStore(base, &page{})
	if !loaded {
		as.faults.Add(1)
	}
	return p, nil
}

// word returns a pointer to the 32-bit word at addr. It panics on a fault,
// like a user access to unmapped memory.
func (as *AddressSpace) word(addr uintptr) *uint32 {
	p, err := as.fault(addr)
	if err != nil {
		panic(err)
	}
	return &p.words[(addr&cPageMask)/4]
}

// LoadUint32 atomically loads the word at addr.
func (as *AddressSpace) LoadUint32(addr uintptr) uint32 {
	return atomic.LoadUint32(as.word(addr))
}

// ReadUint32 is like LoadUint32, but returns ErrFault instead of panicking,
// if addr is not mapped. The region may be unmapped concurrently, so a
// successful EnsureResident does not guarantee that a later read succeeds.
func (as *AddressSpace) ReadUint32(addr uintptr) (uint32, error) {
	p, err := as.fault(addr)
	if err != nil {
		return 0, err
	}
	return atomic.LoadUint32(&p.words[(addr&cPageMask)/4]), nil
}

// StoreUint32 atomically stores val into the word at addr.
func (as *AddressSpace) StoreUint32(addr uintptr, val uint32) {
	atomic.StoreUint32(as.word(addr), val)
}

// SwapUint32 atomically stores new into the word at addr and returns the previous value.
func (as *AddressSpace) SwapUint32(addr uintptr, new uint32) uint32 {
	return atomic.SwapUint32(as.word(addr), new)
}

// CompareAndSwapUint32 executes the compare-and-swap operation for the word at addr.
func (as *AddressSpace) CompareAndSwapUint32(addr uintptr, old, new uint32) bool {
	return atomic.CompareAndSwapUint32(as.word(addr), old, new)
}

// AddUint32 atomically adds delta to the word at addr and returns the new value.
func (as *AddressSpace) AddUint32(addr uintptr, delta uint32) uint32 {
	return atomic.AddUint32(as.word(addr), delta)
}
