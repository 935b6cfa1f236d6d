package vmm

import (
	"strconv"
	"strings"
)

// PageTableEntryFlag describes a flag that can be applied to a page table entry.
type PageTableEntryFlag uint64

const (
	// FlagPresent is set when the page is available in memory and not swapped out.
	FlagPresent PageTableEntryFlag = 1 << iota

	// FlagRW is set if the page can be written to.
	FlagRW

	// FlagUserAccessible is set if user-mode processes can access this page. If
	// not set only kernel code can access this page.
	FlagUserAccessible

	// FlagWriteThroughCaching implies write-through caching when set and write-back
	// caching if cleared.
	FlagWriteThroughCaching

	// FlagDoNotCache prevents this page from being cached if set.
	FlagDoNotCache

	// FlagAccessed is set by the CPU when this page is accessed.
	FlagAccessed

	// FlagDirty is set by the CPU when this page is modified.
	FlagDirty

	// FlagHugePage is set when using a large page (2M at level 2, 1G at
	// level 3). At the leaf level the same bit selects the memory type.
	FlagHugePage

	// FlagGlobal if set, prevents the TLB from flushing the cached memory address
	// for this page when the swapping page tables by updating the CR3 register.
	FlagGlobal

	// FlagNoExecute if set, indicates that a page contains non-executable code.
	FlagNoExecute = PageTableEntryFlag(1 << 63)
)

var flagNames = [...]struct {
	flag PageTableEntryFlag
	name string
}{
	{FlagPresent, "PRESENT"},
	{FlagRW, "RW"},
	{FlagUserAccessible, "USER"},
	{FlagWriteThroughCaching, "WRITE_THROUGH"},
	{FlagDoNotCache, "NO_CACHE"},
	{FlagAccessed, "ACCESSED"},
	{FlagDirty, "DIRTY"},
	{FlagHugePage, "HUGE"},
	{FlagGlobal, "GLOBAL"},
	{FlagNoExecute, "NX"},
}

// String renders the set flags separated by '|'. Bits without a name are
// rendered as a single hex value.
func (f PageTableEntryFlag) String() string {
	if f == 0 {
		return "-"
	}

	var sb strings.Builder
	rest := f
	for _, fn := range flagNames {
		if f&fn.flag == 0 {
			continue
		}
		if sb.Len() != 0 {
			sb.WriteByte('|')
		}
		sb.WriteString(fn.name)
		rest &^= fn.flag
	}

	if rest != 0 {
		if sb.Len() != 0 {
			sb.WriteByte('|')
		}
		sb.WriteString("0x")
		sb.WriteString(strconv.FormatUint(uint64(rest), 16))
	}

	return sb.String()
}
