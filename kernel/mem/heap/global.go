package heap

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
	"github.com/hf-ikea/popcorn/kernel/sync"
)

// Compile-time checks that both strategies implement Allocator.
var (
	_ Allocator = (*FixedSizeBlockAllocator)(nil)
	_ Allocator = (*BumpAllocator)(nil)
)

var (
	// globalHeap is the process-wide heap. Every access goes through its
	// lock.
	globalHeap sync.Locked[kernelHeap]

	errAlreadyInitialized = &kernel.Error{Module: "heap", Message: "heap already initialized"}
)

type kernelHeap struct {
	alloc       globalAllocator
	initialized bool
}

// Init sets up the kernel heap over [start, start+size), which must already
// be mapped. Calling Init more than once halts the kernel.
func Init(start, size uintptr) {
	globalHeap.With(func(h *kernelHeap) {
		if h.initialized {
			kfmt.Panic(errAlreadyInitialized)
			return
		}

		h.alloc.Init(start, size)
		h.initialized = true
	})
}

// Alloc returns the address of a block from the kernel heap that fits layout
// or 0 if the heap is exhausted or not yet initialized.
func Alloc(layout Layout) uintptr {
	var ptr uintptr
	globalHeap.With(func(h *kernelHeap) {
		if h.initialized {
			ptr = h.alloc.Alloc(layout)
		}
	})
	return ptr
}

// Dealloc returns a block obtained from Alloc with the same layout to the
// kernel heap.
func Dealloc(ptr uintptr, layout Layout) {
	globalHeap.With(func(h *kernelHeap) {
		h.alloc.Dealloc(ptr, layout)
	})
}
