package vmm

import (
	"testing"

	"github.com/hf-ikea/popcorn/internal/testutil"
	"github.com/hf-ikea/popcorn/kernel/hal/multiboot"
	"github.com/hf-ikea/popcorn/kernel/mem"
	"github.com/hf-ikea/popcorn/kernel/mem/pmm/allocator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testMemory is a set of page tables living in host memory. Physical
// addresses are identity mapped (offset 0) so the tables can be walked
// directly.
type testMemory struct {
	frames  *allocator.BumpFrameAllocator
	top     *PageTable
	flushed []uintptr
}

// newTestMemory maps frameCount frames, fills them with junk so tables that
// are not cleared stand out and allocates a zeroed top-level table from them.
func newTestMemory(t *testing.T, frameCount int) *testMemory {
	t.Helper()

	size := uintptr(frameCount) * uintptr(mem.PageSize)
	arena := testutil.NewArena(t, size)
	mem.Memset(arena.Base(), 0xAB, mem.Size(size))

	prevOffset := physMemOffset
	t.Cleanup(func() { physMemOffset = prevOffset })
	Init(0)

	tm := &testMemory{
		frames: allocator.NewBumpFrameAllocator([]multiboot.MemoryMapEntry{
			{PhysAddress: uint64(arena.Base()), Length: uint64(size), Type: multiboot.MemAvailable},
		}),
	}
	prevFlushFn := SetTLBFlushFn(func(virtAddr uintptr) { tm.flushed = append(tm.flushed, virtAddr) })
	t.Cleanup(func() { SetTLBFlushFn(prevFlushFn) })

	topFrame, err := tm.frames.AllocFrame()
	require.Nil(t, err)
	tm.top = (*PageTable)(PhysToVirt(topFrame.Address()).Pointer())
	tm.top.Zero()

	return tm
}

func TestPhysToVirt(t *testing.T) {
	defer Init(physMemOffset)

	Init(0xffff_8000_0000_0000)
	assert.Equal(t, uint64(0xffff_8000_0000_0000), PhysMemOffset())
	assert.Equal(t, mem.VirtAddr(0xffff_8000_0010_0000), PhysToVirt(0x10_0000))
}

func TestActiveTable(t *testing.T) {
	tm := newTestMemory(t, 1)

	defer func(origActivePDT func() uintptr) {
		activePDTFn = origActivePDT
	}(activePDTFn)

	// CR3 carries the write-through and cache-disable bits.
	activePDTFn = func() uintptr { return tm.top.Address() | 0x18 }

	assert.Equal(t, tm.top, ActiveTable())
}
