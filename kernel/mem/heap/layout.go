// Package heap implements the kernel heap allocators.
//
// Two strategies are available: a FixedSizeBlockAllocator that serves small
// requests from segregated free lists and falls back to a first-fit
// LinkedListHeap, and a BumpAllocator that only reclaims memory once every
// allocation has been released. Exactly one of them backs the process-wide
// heap; the bumpheap build tag selects the BumpAllocator.
package heap

import (
	"unsafe"

	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
)

var errBadAlignment = &kernel.Error{Module: "heap", Message: "layout alignment is not a power of two"}

// Layout describes the size and alignment of a block of memory.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// NewLayout returns a Layout for size bytes aligned to align. An alignment
// that is not a power of two halts the kernel.
func NewLayout(size, align uintptr) Layout {
	if align == 0 || align&(align-1) != 0 {
		kfmt.Panic(errBadAlignment)
	}
	return Layout{Size: size, Align: align}
}

// LayoutOf returns the layout of a value of type T.
func LayoutOf[T any]() Layout {
	var v T
	return Layout{Size: unsafe.Sizeof(v), Align: unsafe.Alignof(v)}
}

// ArrayLayout returns the layout of n consecutive values of type T.
func ArrayLayout[T any](n uintptr) Layout {
	l := LayoutOf[T]()
	l.Size *= n
	return l
}

// Allocator is implemented by the heap strategies. Alloc returns 0 when the
// request cannot be satisfied. Dealloc must be called with the layout that was
// passed to Alloc.
type Allocator interface {
	Init(start, size uintptr)
	Alloc(layout Layout) uintptr
	Dealloc(ptr uintptr, layout Layout)
}

// alignUp rounds addr up to align and reports false on overflow.
func alignUp(addr, align uintptr) (uintptr, bool) {
	aligned := (addr + align - 1) &^ (align - 1)
	return aligned, aligned >= addr
}
