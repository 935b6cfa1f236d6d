// Package mem defines the basic units the memory manager works with: byte
// sizes, page sizes and validated physical and virtual addresses.
package mem

// Size represents a memory block size in bytes.
type Size uint64

// Common memory block sizes.
const (
	Byte Size = 1
	Kb        = 1024 * Byte
	Mb        = 1024 * Kb
	Gb        = 1024 * Mb
)

const (
	// PointerShift is equal to log2(unsafe.Sizeof(uintptr)). The pointer
	// size for this architecture is defined as (1 << PointerShift).
	PointerShift = 3

	// PageShift is equal to log2(PageSize). Shifting a physical address
	// right by PageShift yields its frame number and vice-versa.
	PageShift = 12

	// PageSize defines the base page size in bytes.
	PageSize = Size(1 << PageShift)
)

// Pages returns the number of base pages required for storing this size.
func (s Size) Pages() uint64 {
	return uint64((s + PageSize - 1) >> PageShift)
}
