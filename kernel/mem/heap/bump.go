package heap

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
)

var errUnbalancedDealloc = &kernel.Error{Module: "heap", Message: "bump allocator released more blocks than it handed out"}

// BumpAllocator hands out memory by advancing a single pointer. It counts
// live allocations and rewinds to the start of the heap once the count drops
// to zero; individual blocks are never reused while any allocation is live.
type BumpAllocator struct {
	heapStart   uintptr
	heapEnd     uintptr
	next        uintptr
	allocations uint64
}

// Init resets the allocator to hand out memory from [start, start+size).
func (b *BumpAllocator) Init(start, size uintptr) {
	b.heapStart = start
	b.heapEnd = start + size
	b.next = start
	b.allocations = 0
}

// Alloc returns the address of a block that fits layout or 0 if the heap is
// exhausted.
func (b *BumpAllocator) Alloc(layout Layout) uintptr {
	align := layout.Align
	if align == 0 {
		align = 1
	}

	allocStart, ok := alignUp(b.next, align)
	if !ok {
		return 0
	}

	allocEnd := allocStart + layout.Size
	if allocEnd < allocStart || allocEnd > b.heapEnd {
		return 0
	}

	b.next = allocEnd
	b.allocations++
	return allocStart
}

// Dealloc records the release of a block. The layout is not used.
func (b *BumpAllocator) Dealloc(_ uintptr, _ Layout) {
	if b.allocations == 0 {
		kfmt.Panic(errUnbalancedDealloc)
		return
	}

	if b.allocations--; b.allocations == 0 {
		b.next = b.heapStart
	}
}

// Next returns the address the next allocation starts from.
func (b *BumpAllocator) Next() uintptr { return b.next }

// Allocations returns the number of live allocations.
func (b *BumpAllocator) Allocations() uint64 { return b.allocations }
