package heap

import "unsafe"

const (
	// wordSize is the granularity of all fallback heap sizes and the
	// minimum alignment it hands out.
	wordSize = unsafe.Sizeof(uintptr(0))

	// minHoleSize is the smallest free region that can hold hole metadata.
	minHoleSize = unsafe.Sizeof(hole{})
)

// hole is the header stored at the start of every free region.
type hole struct {
	size uintptr
	next uintptr
}

func holeAt(addr uintptr) *hole {
	return (*hole)(unsafe.Pointer(addr))
}

// LinkedListHeap is a first-fit allocator that keeps its free regions
// ("holes") in a singly linked list sorted by address. The list lives inside
// the free memory itself. Freed blocks are merged with adjacent holes.
type LinkedListHeap struct {
	bottom uintptr
	size   uintptr

	// head is a sentinel; head.next is the address of the first hole.
	head hole
}

// Init hands the region [start, start+size) to the heap.
func (h *LinkedListHeap) Init(start, size uintptr) {
	h.head = hole{}

	bottom, ok := alignUp(start, wordSize)
	if !ok || size < bottom-start {
		h.bottom, h.size = start, 0
		return
	}
	size = (size - (bottom - start)) &^ (wordSize - 1)

	h.bottom, h.size = bottom, size
	if size < minHoleSize {
		return
	}

	*holeAt(bottom) = hole{size: size}
	h.head.next = bottom
}

// Bottom returns the lowest address managed by the heap.
func (h *LinkedListHeap) Bottom() uintptr { return h.bottom }

// Size returns the number of bytes managed by the heap.
func (h *LinkedListHeap) Size() uintptr { return h.size }

// Free returns the number of bytes in the hole list.
func (h *LinkedListHeap) Free() uintptr {
	var free uintptr
	for addr := h.head.next; addr != 0; addr = holeAt(addr).next {
		free += holeAt(addr).size
	}
	return free
}

// Holes returns the number of free regions.
func (h *LinkedListHeap) Holes() int {
	var count int
	for addr := h.head.next; addr != 0; addr = holeAt(addr).next {
		count++
	}
	return count
}

// blockSize returns the number of bytes reserved for a layout.
func blockSize(layout Layout) (uintptr, bool) {
	size := layout.Size
	if size < minHoleSize {
		size = minHoleSize
	}
	return alignUp(size, wordSize)
}

// AllocateFirstFit carves the first hole that can fit layout. It returns 0
// if no hole is large enough.
func (h *LinkedListHeap) AllocateFirstFit(layout Layout) uintptr {
	size, ok := blockSize(layout)
	if !ok {
		return 0
	}
	align := layout.Align
	if align < wordSize {
		align = wordSize
	}

	for prev := &h.head; prev.next != 0; prev = holeAt(prev.next) {
		addr := prev.next
		cur := holeAt(addr)
		holeEnd := addr + cur.size

		start, ok := alignUp(addr, align)
		if !ok {
			continue
		}
		// The space in front of the block must be able to hold a hole.
		if start != addr && start-addr < minHoleSize {
			if start, ok = alignUp(addr+minHoleSize, align); !ok {
				continue
			}
		}

		end := start + size
		if end < start || end > holeEnd {
			continue
		}

		backPad := holeEnd - end
		if backPad != 0 && backPad < minHoleSize {
			continue
		}

		next := cur.next
		if backPad != 0 {
			*holeAt(end) = hole{size: backPad, next: next}
			next = end
		}

		if start != addr {
			cur.size = start - addr
			cur.next = next
		} else {
			prev.next = next
		}

		return start
	}

	return 0
}

// Deallocate returns a block obtained from AllocateFirstFit with the same
// layout to the hole list, merging it with the holes next to it.
func (h *LinkedListHeap) Deallocate(ptr uintptr, layout Layout) {
	size, _ := blockSize(layout)

	var (
		prev     = &h.head
		prevAddr uintptr
	)
	for prev.next != 0 && prev.next < ptr {
		prevAddr = prev.next
		prev = holeAt(prevAddr)
	}

	freed := hole{size: size, next: prev.next}
	if next := prev.next; next != 0 && ptr+size == next {
		freed.size += holeAt(next).size
		freed.next = holeAt(next).next
	}

	if prevAddr != 0 && prevAddr+prev.size == ptr {
		prev.size += freed.size
		prev.next = freed.next
		return
	}

	*holeAt(ptr) = freed
	prev.next = ptr
}
