// Package allocator provides the physical frame allocators used while the
// kernel boots.
package allocator

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/hal/multiboot"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
	"github.com/hf-ikea/popcorn/kernel/mem"
	"github.com/hf-ikea/popcorn/kernel/mem/pmm"
)

var errRegionOverrun = &kernel.Error{Module: "frame_alloc", Message: "allocation cursor is past the end of the current memory region"}

// BumpFrameAllocator implements a rudimentary physical memory allocator which
// is used to bootstrap the kernel.
//
// The allocator uses the memory region information provided by the
// bootloader to detect free memory blocks and returns the next available free
// frame. Its state is a cursor made of the index of the region being consumed
// and the next free address. The cursor only moves forward: regions that are
// skipped or exhausted are never revisited.
//
// It is not possible to free allocated frames. Frames used for page tables
// are taken from the same pool and stay allocated for the lifetime of the
// kernel.
type BumpFrameAllocator struct {
	regions []multiboot.MemoryMapEntry

	// curRegion is the index of the region frames are handed out from.
	curRegion int

	// nextAddr is the address of the next frame to hand out.
	nextAddr uint64

	// allocCount tracks the total number of allocated frames.
	allocCount uint64
}

// NewBumpFrameAllocator returns an allocator that hands out the usable frames
// in regions. The regions are expected to be sorted by address and must not
// be handed to any other allocator.
func NewBumpFrameAllocator(regions []multiboot.MemoryMapEntry) *BumpFrameAllocator {
	return &BumpFrameAllocator{regions: regions}
}

// AllocFrame scans the memory regions starting at the cursor and reserves the
// next available frame.
//
// AllocFrame returns pmm.ErrOutOfMemory if no more memory can be allocated.
// Finding the cursor past the end of the region it points into means the
// region list is not sorted and halts the kernel.
func (alloc *BumpFrameAllocator) AllocFrame() (pmm.Frame[mem.Size4KiB], *kernel.Error) {
	pageSize := uint64(mem.PageSize)

	for ; alloc.curRegion < len(alloc.regions); alloc.curRegion++ {
		region := &alloc.regions[alloc.curRegion]

		if alloc.nextAddr > region.End() {
			kfmt.Panic(errRegionOverrun)
		}

		if !region.Usable() {
			continue
		}

		// Reported addresses may not be page-aligned; round up to get
		// the first frame of the region.
		regionStart := (region.PhysAddress + pageSize - 1) &^ (pageSize - 1)
		if regionStart < region.PhysAddress {
			continue
		}
		if alloc.nextAddr < regionStart {
			alloc.nextAddr = regionStart
		}

		// Move on once the next frame does not fit entirely.
		if region.End()-alloc.nextAddr < pageSize {
			continue
		}

		frame := pmm.FrameContaining[mem.Size4KiB](mem.NewPhysAddr(alloc.nextAddr))
		alloc.nextAddr += pageSize
		alloc.allocCount++
		return frame, nil
	}

	return pmm.Frame[mem.Size4KiB]{}, pmm.ErrOutOfMemory
}

// AllocCount returns the number of frames handed out so far.
func (alloc *BumpFrameAllocator) AllocCount() uint64 {
	return alloc.allocCount
}

// PrintMemoryMap prints out the system's memory map along with the amount of
// memory available for allocation.
func (alloc *BumpFrameAllocator) PrintMemoryMap() {
	kfmt.Printf("[frame_alloc] system memory map:\n")
	var totalFree mem.Size
	for i := range alloc.regions {
		region := &alloc.regions[i]
		kfmt.Printf("\t[0x%10x - 0x%10x], size: %10d, type: %s\n", region.PhysAddress, region.End(), region.Length, region.Type.String())

		if region.Usable() {
			totalFree += mem.Size(region.Length)
		}
	}
	kfmt.Printf("[frame_alloc] free memory: %dKb\n", uint64(totalFree/mem.Kb))
}
