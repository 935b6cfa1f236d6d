package mem

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
)

const (
	// PageLevels is the number of paging levels used by the MMU.
	PageLevels = 4

	// EntriesPerTable is the number of entries in a page table at any level.
	EntriesPerTable = 512
)

var (
	// pageLevelShifts defines the shift required to access each page table
	// component of a virtual address. Each level uses 9 bits.
	pageLevelShifts = [PageLevels]uint8{39, 30, 21, 12}

	errIndexOutOfRange  = &kernel.Error{Module: "mem", Message: "page table index out of range"}
	errOffsetOutOfRange = &kernel.Error{Module: "mem", Message: "page offset out of range"}
)

// PageTableIndex is a 9-bit index into a page table.
type PageTableIndex uint16

// NewPageTableIndex returns index as a PageTableIndex. Indices >= 512 halt the
// kernel.
func NewPageTableIndex(index uint16) PageTableIndex {
	if index >= EntriesPerTable {
		kfmt.Panic(errIndexOutOfRange)
	}
	return PageTableIndex(index)
}

// PageOffset is a 12-bit offset into a 4 KiB page.
type PageOffset uint16

// NewPageOffset returns offset as a PageOffset. Offsets >= 4096 halt the
// kernel.
func NewPageOffset(offset uint16) PageOffset {
	if Size(offset) >= PageSize {
		kfmt.Panic(errOffsetOutOfRange)
	}
	return PageOffset(offset)
}
