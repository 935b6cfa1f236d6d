package vmm

import (
	"unsafe"

	"github.com/hf-ikea/popcorn/kernel/mem"
)

// PageTable is a single level of the paging hierarchy. It occupies exactly
// one 4 KiB frame.
type PageTable [mem.EntriesPerTable]PageTableEntry

// Zero marks every entry of the table as unused.
func (t *PageTable) Zero() {
	mem.Memset(t.Address(), 0, mem.PageSize)
}

// Entry returns a pointer to the entry at index.
func (t *PageTable) Entry(index mem.PageTableIndex) *PageTableEntry {
	return &t[index]
}

// Address returns the virtual address of the table.
func (t *PageTable) Address() uintptr {
	return uintptr(unsafe.Pointer(t))
}
