package vmm

import (
	"github.com/hf-ikea/popcorn/kernel/mem"
	"github.com/hf-ikea/popcorn/kernel/mem/pmm"
)

const (
	// ptePhysPageMask is a mask that allows us to extract the physical memory
	// address pointed to by a page table entry. For this particular architecture,
	// bits 12-51 contain the physical memory address.
	ptePhysPageMask = uint64(0x000ffffffffff000)
)

// PageTableEntry describes a page table entry. These entries encode a physical
// frame address and a set of flags. An all-zero entry is unused; any entry in
// use has at least FlagPresent set.
type PageTableEntry uint64

// IsUnused returns true if the entry is all zeroes.
func (pte PageTableEntry) IsUnused() bool {
	return pte == 0
}

// SetUnused clears the entry.
func (pte *PageTableEntry) SetUnused() {
	*pte = 0
}

// Address returns the physical address encoded in the entry.
func (pte PageTableEntry) Address() mem.PhysAddr {
	return mem.PhysAddr(uint64(pte) & ptePhysPageMask)
}

// SetAddress replaces the entry contents with the frame-aligned part of addr
// combined with flags.
func (pte *PageTableEntry) SetAddress(addr mem.PhysAddr, flags PageTableEntryFlag) {
	*pte = PageTableEntry((addr.Uint64() & ptePhysPageMask) | (uint64(flags) &^ ptePhysPageMask))
}

// Flags returns every bit of the entry outside the address field, including
// bits that have no named flag.
func (pte PageTableEntry) Flags() PageTableEntryFlag {
	return PageTableEntryFlag(uint64(pte) &^ ptePhysPageMask)
}

// SetFlags replaces the entry flags while keeping its address.
func (pte *PageTableEntry) SetFlags(flags PageTableEntryFlag) {
	*pte = PageTableEntry((uint64(*pte) & ptePhysPageMask) | (uint64(flags) &^ ptePhysPageMask))
}

// HasFlags returns true if this entry has all the input flags set.
func (pte PageTableEntry) HasFlags(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) == uint64(flags)
}

// HasAnyFlag returns true if this entry has at least one of the input flags set.
func (pte PageTableEntry) HasAnyFlag(flags PageTableEntryFlag) bool {
	return (uint64(pte) & uint64(flags)) != 0
}

// AddFlags sets the input list of flags to the page table entry.
func (pte *PageTableEntry) AddFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uint64(*pte) | (uint64(flags) &^ ptePhysPageMask))
}

// ClearFlags unsets the input list of flags from the page table entry.
func (pte *PageTableEntry) ClearFlags(flags PageTableEntryFlag) {
	*pte = (PageTableEntry)(uint64(*pte) &^ (uint64(flags) &^ ptePhysPageMask))
}

// Frame returns the physical page frame that this page table entry points to.
func (pte PageTableEntry) Frame() pmm.Frame[mem.Size4KiB] {
	return pmm.FrameContaining[mem.Size4KiB](pte.Address())
}

// SetFrame updates the page table entry to point the the given physical frame
// with the given flags.
func (pte *PageTableEntry) SetFrame(frame pmm.Frame[mem.Size4KiB], flags PageTableEntryFlag) {
	pte.SetAddress(frame.Address(), flags)
}

// Table returns the page table that this entry points to. It returns false if
// the entry is not present. The caller must ensure that the entry does not
// map a huge page.
func (pte PageTableEntry) Table() (*PageTable, bool) {
	if !pte.HasFlags(FlagPresent) {
		return nil, false
	}

	return (*PageTable)(PhysToVirt(pte.Address()).Pointer()), true
}
