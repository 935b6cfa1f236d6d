// Package pmm contains code that manages physical memory frame allocations.
package pmm

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/mem"
)

var (
	// ErrOutOfMemory is returned by frame allocators when physical memory
	// is exhausted. Callers decide whether this is tolerable.
	ErrOutOfMemory = &kernel.Error{Module: "pmm", Message: "out of memory"}

	errFrameNotAligned = &kernel.Error{Module: "pmm", Message: "frame address is not aligned to the frame size"}
)

// Frame describes a physical memory frame of size S. Its start address is
// always a multiple of S.
type Frame[S mem.PageSizer] struct {
	start mem.PhysAddr
}

// FrameContaining returns the frame that contains addr.
func FrameContaining[S mem.PageSizer](addr mem.PhysAddr) Frame[S] {
	return Frame[S]{start: addr.AlignDown(uint64(mem.SizeOf[S]()))}
}

// FrameFromStart returns the frame starting at addr or an error if addr is
// not aligned to S.
func FrameFromStart[S mem.PageSizer](addr mem.PhysAddr) (Frame[S], *kernel.Error) {
	if !addr.IsAligned(uint64(mem.SizeOf[S]())) {
		return Frame[S]{}, errFrameNotAligned
	}
	return Frame[S]{start: addr}, nil
}

// Address returns the physical address of the first byte in the frame.
func (f Frame[S]) Address() mem.PhysAddr {
	return f.start
}

// Size returns the frame size in bytes.
func (f Frame[S]) Size() mem.Size {
	return mem.SizeOf[S]()
}

// Number returns the index of the frame counting from physical address 0.
func (f Frame[S]) Number() uint64 {
	return f.start.Uint64() / uint64(mem.SizeOf[S]())
}

// Next returns the frame that immediately follows f.
func (f Frame[S]) Next() Frame[S] {
	return Frame[S]{start: f.start.Add(uint64(mem.SizeOf[S]()))}
}

// FrameAllocator is implemented by types that hand out physical frames.
// AllocFrame returns ErrOutOfMemory once no more frames are available.
type FrameAllocator[S mem.PageSizer] interface {
	AllocFrame() (Frame[S], *kernel.Error)
}

// FrameAllocatorFn adapts a plain function to the FrameAllocator interface.
type FrameAllocatorFn[S mem.PageSizer] func() (Frame[S], *kernel.Error)

// AllocFrame calls fn.
func (fn FrameAllocatorFn[S]) AllocFrame() (Frame[S], *kernel.Error) {
	return fn()
}
