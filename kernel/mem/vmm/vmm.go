// Package vmm manages the 4-level page tables of the x86-64 MMU.
//
// Page tables are accessed through a fixed virtual mapping of all physical
// memory: physical address p is readable at virtual address offset+p, where
// the offset is supplied by the bootloader via Init.
package vmm

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/cpu"
	"github.com/hf-ikea/popcorn/kernel/mem"
)

var (
	// physMemOffset is the virtual address where physical memory is
	// mapped. It is set once by Init.
	physMemOffset uint64

	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	activePDTFn     = cpu.ActivePDT
	flushTLBEntryFn = cpu.FlushTLBEntry

	// ErrInvalidMapping is returned when trying to lookup a virtual memory address that is not yet mapped.
	ErrInvalidMapping = &kernel.Error{Module: "vmm", Message: "virtual address does not point to a mapped physical page"}

	errNoHugePageSupport = &kernel.Error{Module: "vmm", Message: "huge pages are not supported"}
)

// Init records the virtual address at which the bootloader mapped all of
// physical memory.
func Init(offset uint64) {
	physMemOffset = offset
}

// SetTLBFlushFn replaces the function invoked after a page mapping changes and
// returns the previous one. Hosted tools that build page tables in ordinary
// process memory install a function that does not touch the MMU.
func SetTLBFlushFn(fn func(virtAddr uintptr)) func(virtAddr uintptr) {
	prev := flushTLBEntryFn
	flushTLBEntryFn = fn
	return prev
}

// PhysMemOffset returns the offset passed to Init.
func PhysMemOffset() uint64 {
	return physMemOffset
}

// PhysToVirt returns the virtual address through which the physical address
// addr can be accessed.
func PhysToVirt(addr mem.PhysAddr) mem.VirtAddr {
	return mem.NewVirtAddr(physMemOffset + addr.Uint64())
}

// ActiveTable returns the top-level page table currently loaded in CR3.
func ActiveTable() *PageTable {
	// CR3 keeps cache control flags next to the table address.
	pdt := mem.PhysAddr(uint64(activePDTFn()) & ptePhysPageMask)
	return (*PageTable)(PhysToVirt(pdt).Pointer())
}
