package heap

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
	"github.com/hf-ikea/popcorn/kernel/mem"
	"github.com/hf-ikea/popcorn/kernel/mem/pmm"
	"github.com/hf-ikea/popcorn/kernel/mem/vmm"
)

const (
	// HeapStart is the virtual address of the kernel heap.
	HeapStart = 0x4444_4444_0000

	// HeapSize is the size of the kernel heap.
	HeapSize = 100 * mem.Kb
)

// InitHeap backs the kernel heap range with frames from frames, maps it
// writable in the tables rooted at top and initializes the kernel heap over
// it. It returns pmm.ErrOutOfMemory if physical memory runs out while mapping.
func InitHeap(top *vmm.PageTable, frames pmm.FrameAllocator[mem.Size4KiB]) *kernel.Error {
	pages := vmm.PageRange[mem.Size4KiB](mem.NewVirtAddr(HeapStart), HeapSize)
	if err := vmm.MapRange(top, pages, vmm.FlagPresent|vmm.FlagRW, frames); err != nil {
		return err
	}

	Init(HeapStart, uintptr(HeapSize))
	kfmt.Printf("[heap] mapped %d pages at 0x%x; strategy: %s\n", pages.Len(), uint64(HeapStart), Strategy)
	return nil
}
