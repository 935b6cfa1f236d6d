package mem

import (
	"unsafe"

	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
)

const (
	// physAddrBits is the number of implemented physical address bits.
	physAddrBits = 52

	// virtAddrBits is the number of implemented virtual address bits for
	// 4-level paging. Bits above it must replicate bit virtAddrBits-1.
	virtAddrBits = 48
)

var (
	errPhysAddrOutOfRange   = &kernel.Error{Module: "mem", Message: "physical address has bits set above bit 51"}
	errVirtAddrNotCanonical = &kernel.Error{Module: "mem", Message: "virtual address is not canonical"}
	errAlignmentNotPow2     = &kernel.Error{Module: "mem", Message: "alignment is not a power of two"}
	errAlignUpOverflow      = &kernel.Error{Module: "mem", Message: "aligning address up overflows"}
)

// PhysAddr is a physical memory address whose top 12 bits are always zero.
type PhysAddr uint64

// TryNewPhysAddr returns addr as a PhysAddr or an error if any of its top 12
// bits are set.
func TryNewPhysAddr(addr uint64) (PhysAddr, *kernel.Error) {
	if addr>>physAddrBits != 0 {
		return 0, errPhysAddrOutOfRange
	}
	return PhysAddr(addr), nil
}

// NewPhysAddr returns addr as a PhysAddr. Passing an address with any of its
// top 12 bits set is a caller bug and halts the kernel.
func NewPhysAddr(addr uint64) PhysAddr {
	pa, err := TryNewPhysAddr(addr)
	if err != nil {
		kfmt.Panic(err)
	}
	return pa
}

// Uint64 returns the raw address.
func (a PhysAddr) Uint64() uint64 { return uint64(a) }

// Add returns a+n.
func (a PhysAddr) Add(n uint64) PhysAddr { return a + PhysAddr(n) }

// Sub returns a-n.
func (a PhysAddr) Sub(n uint64) PhysAddr { return a - PhysAddr(n) }

// AlignDown clears the address bits below align, which must be a power of 2.
func (a PhysAddr) AlignDown(align uint64) PhysAddr { return PhysAddr(alignDown(uint64(a), align)) }

// AlignUp rounds the address up to a multiple of align, which must be a power
// of 2.
func (a PhysAddr) AlignUp(align uint64) PhysAddr { return NewPhysAddr(alignUp(uint64(a), align)) }

// IsAligned returns true if the address is a multiple of align.
func (a PhysAddr) IsAligned(align uint64) bool { return alignDown(uint64(a), align) == uint64(a) }

// VirtAddr is a canonical virtual address: bits 48 to 63 are copies of bit 47.
type VirtAddr uint64

// TryNewVirtAddr returns addr as a VirtAddr or an error if it is not
// canonical.
func TryNewVirtAddr(addr uint64) (VirtAddr, *kernel.Error) {
	switch addr >> (virtAddrBits - 1) {
	case 0, 1<<(64-virtAddrBits+1) - 1:
		return VirtAddr(addr), nil
	default:
		return 0, errVirtAddrNotCanonical
	}
}

// NewVirtAddr returns addr as a VirtAddr. Passing a non-canonical address is a
// caller bug and halts the kernel.
func NewVirtAddr(addr uint64) VirtAddr {
	va, err := TryNewVirtAddr(addr)
	if err != nil {
		kfmt.Panic(err)
	}
	return va
}

// NewVirtAddrTruncate discards bits 48 to 63 of addr and replaces them with
// copies of bit 47, always yielding a canonical address.
func NewVirtAddrTruncate(addr uint64) VirtAddr {
	return VirtAddr(uint64(int64(addr<<(64-virtAddrBits)) >> (64 - virtAddrBits)))
}

// VirtAddrFromIndices assembles a canonical address from its page table
// indices and page offset. It is the inverse of the P4Index..P1Index and
// PageOffset accessors.
func VirtAddrFromIndices(p4, p3, p2, p1 PageTableIndex, offset PageOffset) VirtAddr {
	addr := uint64(p4)<<pageLevelShifts[0] |
		uint64(p3)<<pageLevelShifts[1] |
		uint64(p2)<<pageLevelShifts[2] |
		uint64(p1)<<pageLevelShifts[3] |
		uint64(offset)
	return NewVirtAddrTruncate(addr)
}

// Uint64 returns the raw address.
func (a VirtAddr) Uint64() uint64 { return uint64(a) }

// Pointer returns the address as an unsafe.Pointer so it can be dereferenced.
func (a VirtAddr) Pointer() unsafe.Pointer { return unsafe.Pointer(uintptr(a)) }

// Add returns a+n. The result must be canonical.
func (a VirtAddr) Add(n uint64) VirtAddr { return NewVirtAddr(uint64(a) + n) }

// Sub returns a-n. The result must be canonical.
func (a VirtAddr) Sub(n uint64) VirtAddr { return NewVirtAddr(uint64(a) - n) }

// AlignDown clears the address bits below align, which must be a power of 2.
// The result is sign-extended so it stays canonical.
func (a VirtAddr) AlignDown(align uint64) VirtAddr {
	return NewVirtAddrTruncate(alignDown(uint64(a), align))
}

// AlignUp rounds the address up to a multiple of align, which must be a power
// of 2. The result must be canonical.
func (a VirtAddr) AlignUp(align uint64) VirtAddr { return NewVirtAddr(alignUp(uint64(a), align)) }

// IsAligned returns true if the address is a multiple of align.
func (a VirtAddr) IsAligned(align uint64) bool { return alignDown(uint64(a), align) == uint64(a) }

// P4Index returns the index into the top-level page table.
func (a VirtAddr) P4Index() PageTableIndex { return a.LevelIndex(0) }

// P3Index returns the index into the level-3 page table.
func (a VirtAddr) P3Index() PageTableIndex { return a.LevelIndex(1) }

// P2Index returns the index into the level-2 page table.
func (a VirtAddr) P2Index() PageTableIndex { return a.LevelIndex(2) }

// P1Index returns the index into the leaf page table.
func (a VirtAddr) P1Index() PageTableIndex { return a.LevelIndex(3) }

// LevelIndex returns the table index for the given paging level where level 0
// is the top-level (P4) table and PageLevels-1 is the leaf (P1) table.
func (a VirtAddr) LevelIndex(level uint8) PageTableIndex {
	return PageTableIndex((uint64(a) >> pageLevelShifts[level]) & (EntriesPerTable - 1))
}

// PageOffset returns the offset of the address within its 4 KiB page.
func (a VirtAddr) PageOffset() PageOffset {
	return PageOffset(uint64(a) & uint64(PageSize-1))
}

func checkAlignment(align uint64) {
	if align == 0 || align&(align-1) != 0 {
		kfmt.Panic(errAlignmentNotPow2)
	}
}

func alignDown(addr, align uint64) uint64 {
	checkAlignment(align)
	return addr &^ (align - 1)
}

func alignUp(addr, align uint64) uint64 {
	checkAlignment(align)
	aligned := (addr + align - 1) &^ (align - 1)
	if aligned < addr {
		kfmt.Panic(errAlignUpOverflow)
	}
	return aligned
}
