// Copyright 2016 Aleksandr Demakin. All rights reserved.

package futex

import "fmt"

const (
	cPageSize = 4096
	cPageMask = cPageSize - 1
)

// Key identifies a futex. Waiters are matched on equal keys.
//
// For private mappings the key is (address space, page base, offset in page).
// Shared mappings would use (backing object, page index, offset); this is not
// implemented, and shared futexes get private keys.
type Key struct {
	// Mapping is the identity of the address space for private mappings,
	// or of the backing object for shared ones.
	Mapping uintptr
	// Word is the page-aligned base of the futex word.
	Word uintptr
	// Offset is the offset of the word inside the page. It is aligned to 4 bytes,
	// two low bits hold the key kind:
	//	00 - private futex.
	//	01 - shared futex mapped on a file.
	//	10 - shared futex on an anonymous mapping.
	Offset uint32
}

// ResolveKey computes a key for a futex at addr in the address space of the calling process.
// It never fails: a bad address is detected when the futex word is read.
func ResolveKey(p Process, addr uintptr, flags uint32) Key {
	// TODO: key shared mappings (flags without FUTEX_PRIVATE_FLAG) by the
	// backing object and page index. Until then every futex is private.
	return Key{
		Mapping: p.AddressSpaceID(),
		Word:    addr &^ cPageMask,
		Offset:  uint32(addr&cPageMask)&^cKeyKindMask | KeyPrivate,
	}
}

// Kind returns one of KeyPrivate, KeySharedFile, KeySharedAnon.
func (k Key) Kind() uint32 {
	return k.Offset & cKeyKindMask
}

// Addr returns the address of the futex word for private keys.
func (k Key) Addr() uintptr {
	return k.Word + uintptr(k.Offset&^cKeyKindMask)
}

// Hash returns bucket index for the key in a table of the given size.
func (k Key) Hash(size int) int {
	return int((k.Mapping + uintptr(k.Offset) + k.Word) % uintptr(size))
}

// Less defines a total order over keys. Bucket locks are ordered by it
// after the bucket index.
func (k Key) Less(other Key) bool {
	if k.Mapping != other.Mapping {
		return k.Mapping < other.Mapping
	}
	if k.Word != other.Word {
		return k.Word < other.Word
	}
	return k.Offset < other.Offset
}

func (k Key) String() string {
	return fmt.Sprintf("{%#x %#x %#x}", k.Mapping, k.Word, k.Offset)
}
