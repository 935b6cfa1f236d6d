package vmm

import (
	"iter"

	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/mem"
)

// upperHalfGap is the size of the non-canonical hole between the lower and
// the upper half of the address space.
const upperHalfGap = uint64(0xffff_0000_0000_0000)

var errPageNotAligned = &kernel.Error{Module: "vmm", Message: "page address is not aligned to the page size"}

// Page describes a virtual memory page of size S. Its start address is
// always a multiple of S.
type Page[S mem.PageSizer] struct {
	start mem.VirtAddr
}

// PageContaining returns the page that contains the given virtual address.
// Unaligned addresses are rounded down to the start of their page.
func PageContaining[S mem.PageSizer](virtAddr mem.VirtAddr) Page[S] {
	return Page[S]{start: virtAddr.AlignDown(uint64(mem.SizeOf[S]()))}
}

// PageFromStart returns the page starting at virtAddr or an error if
// virtAddr is not aligned to S.
func PageFromStart[S mem.PageSizer](virtAddr mem.VirtAddr) (Page[S], *kernel.Error) {
	if !virtAddr.IsAligned(uint64(mem.SizeOf[S]())) {
		return Page[S]{}, errPageNotAligned
	}
	return Page[S]{start: virtAddr}, nil
}

// Address returns the virtual address of the first byte in the page.
func (p Page[S]) Address() mem.VirtAddr {
	return p.start
}

// Size returns the page size in bytes.
func (p Page[S]) Size() mem.Size {
	return mem.SizeOf[S]()
}

// Next returns the page that immediately follows p. Stepping into the
// non-canonical part of the address space halts the kernel.
func (p Page[S]) Next() Page[S] {
	return Page[S]{start: p.start.Add(uint64(mem.SizeOf[S]()))}
}

// index maps the page address onto a contiguous 48-bit space so that the
// distance between two pages is well-defined across the canonical hole.
func (p Page[S]) index() uint64 {
	addr := p.start.Uint64()
	if addr >= upperHalfGap {
		addr -= upperHalfGap
	}
	return addr / uint64(mem.SizeOf[S]())
}

// PageRangeInclusive describes the pages from Start up to and including End.
type PageRangeInclusive[S mem.PageSizer] struct {
	Start, End Page[S]

	// empty marks a range that covers no pages even though Start and End
	// may be equal.
	empty bool
}

// PageRange returns the range of pages that cover size bytes starting at
// start. A zero size yields an empty range.
func PageRange[S mem.PageSizer](start mem.VirtAddr, size mem.Size) PageRangeInclusive[S] {
	if size == 0 {
		first := PageContaining[S](start)
		return PageRangeInclusive[S]{Start: first, End: first, empty: true}
	}

	return PageRangeInclusive[S]{
		Start: PageContaining[S](start),
		End:   PageContaining[S](start.Add(uint64(size) - 1)),
	}
}

// IsEmpty returns true if the range contains no pages.
func (r PageRangeInclusive[S]) IsEmpty() bool {
	return r.empty || r.Start.index() > r.End.index()
}

// Len returns the number of pages in the range.
func (r PageRangeInclusive[S]) Len() uint64 {
	if r.IsEmpty() {
		return 0
	}
	return r.End.index() - r.Start.index() + 1
}

// All returns an iterator over the pages in the range. Every call returns a
// new iterator that starts from the beginning of the range. Ranges that span
// the canonical hole skip over it, and a range ending at the last page of the
// address space terminates without overflowing.
func (r PageRangeInclusive[S]) All() iter.Seq[Page[S]] {
	return func(yield func(Page[S]) bool) {
		if r.IsEmpty() {
			return
		}

		size := uint64(mem.SizeOf[S]())
		for page := r.Start; ; {
			if !yield(page) || page == r.End {
				return
			}
			page = Page[S]{start: mem.NewVirtAddrTruncate(page.start.Uint64() + size)}
		}
	}
}
