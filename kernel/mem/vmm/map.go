package vmm

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
	"github.com/hf-ikea/popcorn/kernel/mem"
	"github.com/hf-ikea/popcorn/kernel/mem/pmm"
)

const (
	// parentFlagMask selects the leaf flags that intermediate tables must
	// also carry for the leaf permissions to take effect.
	parentFlagMask = FlagPresent | FlagRW | FlagUserAccessible
)

var (
	errPageAlreadyMapped = &kernel.Error{Module: "vmm", Message: "page is already mapped"}
	errTableNotPresent   = &kernel.Error{Module: "vmm", Message: "intermediate page table entry is in use but not present"}
)

// MapTo4KiB establishes a mapping between a virtual page and a physical memory
// frame using the page tables rooted at top. Missing intermediate tables are
// allocated from frames, installed with parentFlags and zeroed; existing
// intermediate entries gain any parentFlags they do not already have. Table
// frames are never returned to the allocator.
//
// MapTo4KiB returns pmm.ErrOutOfMemory if a table could not be allocated.
// Mapping a page that is already mapped, or under an intermediate entry that
// is in use but not present or that maps a huge page, halts the kernel.
func MapTo4KiB(top *PageTable, page Page[mem.Size4KiB], frame pmm.Frame[mem.Size4KiB], flags, parentFlags PageTableEntryFlag, frames pmm.FrameAllocator[mem.Size4KiB]) *kernel.Error {
	var err *kernel.Error

	walk(top, page.Address(), func(pteLevel uint8, pte *PageTableEntry) bool {
		// If we reached the last level all we need to do is to map the
		// frame in place and flag it as present and flush its TLB entry
		if pteLevel == mem.PageLevels-1 {
			if !pte.IsUnused() {
				kfmt.Panic(errPageAlreadyMapped)
				err = errPageAlreadyMapped
				return false
			}

			pte.SetFrame(frame, FlagPresent|flags)
			flushTLBEntryFn(uintptr(page.Address()))
			return true
		}

		err = createNextTable(pte, parentFlags, frames)
		return err == nil
	})

	return err
}

// createNextTable makes sure that the intermediate entry pte points to a page
// table with at least parentFlags set.
func createNextTable(pte *PageTableEntry, parentFlags PageTableEntryFlag, frames pmm.FrameAllocator[mem.Size4KiB]) *kernel.Error {
	if pte.IsUnused() {
		tableFrame, err := frames.AllocFrame()
		if err != nil {
			return err
		}

		pte.SetFrame(tableFrame, FlagPresent|parentFlags)

		// The next table becomes reachable but we need to make sure
		// that it is properly cleared
		table, _ := pte.Table()
		table.Zero()
		return nil
	}

	// The entry is checked before it is touched; a rejected entry keeps
	// its flags.
	switch {
	case !pte.HasFlags(FlagPresent):
		kfmt.Panic(errTableNotPresent)
		return errTableNotPresent
	case pte.HasFlags(FlagHugePage):
		kfmt.Panic(errNoHugePageSupport)
		return errNoHugePageSupport
	}

	pte.AddFlags(parentFlags)
	return nil
}

// Unmap removes a mapping previously installed via a call to MapTo4KiB and
// returns the frame it pointed to. Intermediate tables are left in place even
// when they become empty.
func Unmap(top *PageTable, page Page[mem.Size4KiB]) (pmm.Frame[mem.Size4KiB], *kernel.Error) {
	var (
		frame pmm.Frame[mem.Size4KiB]
		err   *kernel.Error
	)

	walk(top, page.Address(), func(pteLevel uint8, pte *PageTableEntry) bool {
		// Next table is not present; this is an invalid mapping
		if !pte.HasFlags(FlagPresent) {
			err = ErrInvalidMapping
			return false
		}

		if pteLevel < mem.PageLevels-1 {
			if pte.HasFlags(FlagHugePage) {
				kfmt.Panic(errNoHugePageSupport)
				err = errNoHugePageSupport
				return false
			}
			return true
		}

		frame = pte.Frame()
		pte.SetUnused()
		flushTLBEntryFn(uintptr(page.Address()))
		return true
	})

	return frame, err
}

// MapRange backs every page in pages with a freshly allocated frame. It stops
// at the first error, leaving the pages mapped so far in place.
func MapRange(top *PageTable, pages PageRangeInclusive[mem.Size4KiB], flags PageTableEntryFlag, frames pmm.FrameAllocator[mem.Size4KiB]) *kernel.Error {
	for page := range pages.All() {
		frame, err := frames.AllocFrame()
		if err != nil {
			return err
		}

		if err = MapTo4KiB(top, page, frame, flags, flags&parentFlagMask, frames); err != nil {
			return err
		}
	}

	return nil
}

// Mapper bundles a top-level page table with the frame allocator used to
// grow it.
type Mapper struct {
	top    *PageTable
	frames pmm.FrameAllocator[mem.Size4KiB]
}

// NewMapper returns a Mapper for the tables rooted at top.
func NewMapper(top *PageTable, frames pmm.FrameAllocator[mem.Size4KiB]) *Mapper {
	return &Mapper{top: top, frames: frames}
}

// Table returns the top-level table.
func (m *Mapper) Table() *PageTable {
	return m.top
}

// Map maps page to frame. Intermediate tables receive the access flags of
// the leaf.
func (m *Mapper) Map(page Page[mem.Size4KiB], frame pmm.Frame[mem.Size4KiB], flags PageTableEntryFlag) *kernel.Error {
	return MapTo4KiB(m.top, page, frame, flags, flags&parentFlagMask, m.frames)
}

// MapRange backs pages with freshly allocated frames.
func (m *Mapper) MapRange(pages PageRangeInclusive[mem.Size4KiB], flags PageTableEntryFlag) *kernel.Error {
	return MapRange(m.top, pages, flags, m.frames)
}

// Unmap removes the mapping for page.
func (m *Mapper) Unmap(page Page[mem.Size4KiB]) (pmm.Frame[mem.Size4KiB], *kernel.Error) {
	return Unmap(m.top, page)
}

// Translate returns the physical address virtAddr maps to.
func (m *Mapper) Translate(virtAddr mem.VirtAddr) (mem.PhysAddr, *kernel.Error) {
	return Translate(m.top, virtAddr)
}
