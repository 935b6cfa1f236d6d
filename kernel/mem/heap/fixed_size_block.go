package heap

import "unsafe"

// blockSizes lists the block size classes served from free lists. Every size
// is a power of two so it also serves as the block alignment.
var blockSizes = [...]uintptr{8, 16, 32, 64, 256, 512, 1024, 2048}

// BlockSizes returns a copy of the block size classes.
func BlockSizes() []uintptr {
	sizes := blockSizes
	return sizes[:]
}

// FixedSizeBlockAllocator serves requests of up to 2048 bytes from one free
// list per size class. A class with an empty list takes a single block from
// the fallback heap; larger requests go straight to the fallback heap.
//
// Freed blocks are pushed onto their class list without any validation: the
// layout passed to Dealloc must match the one passed to Alloc. Blocks never
// move from a class list back to the fallback heap.
type FixedSizeBlockAllocator struct {
	// listHeads holds the address of the first free block of each class.
	// The first word of every free block points to the next one.
	listHeads [len(blockSizes)]uintptr
	fallback  LinkedListHeap
}

// Init hands the region [start, start+size) to the fallback heap.
func (a *FixedSizeBlockAllocator) Init(start, size uintptr) {
	a.listHeads = [len(blockSizes)]uintptr{}
	a.fallback.Init(start, size)
}

// listIndex returns the index of the smallest class that can hold layout or
// false if the request is too large for any class.
func listIndex(layout Layout) (int, bool) {
	required := layout.Size
	if layout.Align > required {
		required = layout.Align
	}

	for index, size := range blockSizes {
		if size >= required {
			return index, true
		}
	}
	return 0, false
}

// Alloc returns the address of a block that fits layout or 0 if the heap is
// exhausted.
func (a *FixedSizeBlockAllocator) Alloc(layout Layout) uintptr {
	index, ok := listIndex(layout)
	if !ok {
		return a.fallback.AllocateFirstFit(layout)
	}

	if head := a.listHeads[index]; head != 0 {
		a.listHeads[index] = *(*uintptr)(unsafe.Pointer(head))
		return head
	}

	size := blockSizes[index]
	return a.fallback.AllocateFirstFit(Layout{Size: size, Align: size})
}

// Dealloc releases a block returned by Alloc for the same layout.
func (a *FixedSizeBlockAllocator) Dealloc(ptr uintptr, layout Layout) {
	index, ok := listIndex(layout)
	if !ok {
		a.fallback.Deallocate(ptr, layout)
		return
	}

	*(*uintptr)(unsafe.Pointer(ptr)) = a.listHeads[index]
	a.listHeads[index] = ptr
}

// FreeBlocks returns the number of blocks in the free list of the class at
// index.
func (a *FixedSizeBlockAllocator) FreeBlocks(index int) int {
	var count int
	for addr := a.listHeads[index]; addr != 0; addr = *(*uintptr)(unsafe.Pointer(addr)) {
		count++
	}
	return count
}

// Fallback exposes the heap used for refills and large requests.
func (a *FixedSizeBlockAllocator) Fallback() *LinkedListHeap {
	return &a.fallback
}
