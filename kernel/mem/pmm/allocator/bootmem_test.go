package allocator

import (
	"bytes"
	"testing"
	"unsafe"

	"github.com/hf-ikea/popcorn/internal/testutil"
	"github.com/hf-ikea/popcorn/kernel/hal/multiboot"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
	"github.com/hf-ikea/popcorn/kernel/mem"
	"github.com/hf-ikea/popcorn/kernel/mem/pmm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBumpFrameAllocator(t *testing.T) {
	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(&multibootMemoryMap()[0])))

	// region 1 extents get rounded to [0, 9f000] and provides 159 frames [0 to 158]
	// region 2 uses the original extents [100000 - 7fe0000] and provides 32480 frames [256-32735]
	var totalFreeFrames uint64 = 159 + 32480

	var (
		alloc           = NewBumpFrameAllocator(multiboot.MemoryMap())
		allocFrameCount uint64
		lastFrame       uint64
	)
	for {
		frame, err := alloc.AllocFrame()
		if err != nil {
			if err == pmm.ErrOutOfMemory {
				break
			}
			t.Fatalf("[frame %d] unexpected allocator error: %v", allocFrameCount, err)
		}

		if allocFrameCount != 0 && frame.Number() <= lastFrame {
			t.Fatalf("[frame %d] expected frame number to be > %d; got %d", allocFrameCount, lastFrame, frame.Number())
		}
		if frame.Number() > 158 && frame.Number() < 256 {
			t.Fatalf("[frame %d] allocated frame %d outside of the available regions", allocFrameCount, frame.Number())
		}

		lastFrame = frame.Number()
		allocFrameCount++
	}

	if allocFrameCount != totalFreeFrames {
		t.Fatalf("expected allocator to allocate %d frames; allocated %d", totalFreeFrames, allocFrameCount)
	}
	if alloc.AllocCount() != totalFreeFrames {
		t.Fatalf("expected AllocCount() to return %d; got %d", totalFreeFrames, alloc.AllocCount())
	}
	if lastFrame != 32735 {
		t.Fatalf("expected last allocated frame to be 32735; got %d", lastFrame)
	}
}

func TestBumpFrameAllocatorSingleRegion(t *testing.T) {
	const frameCount = 16

	alloc := NewBumpFrameAllocator([]multiboot.MemoryMapEntry{
		{PhysAddress: 0x10_0000, Length: frameCount * uint64(mem.PageSize), Type: multiboot.MemAvailable},
	})

	var prev mem.PhysAddr
	for i := 0; i < frameCount; i++ {
		frame, err := alloc.AllocFrame()
		require.Nil(t, err, "[frame %d]", i)

		addr := frame.Address()
		assert.True(t, addr.IsAligned(uint64(mem.PageSize)), "[frame %d] not aligned", i)
		if i > 0 {
			assert.Equal(t, prev.Add(uint64(mem.PageSize)), addr, "[frame %d]", i)
		}
		prev = addr
	}

	// Exhaustion is sticky.
	for i := 0; i < 3; i++ {
		_, err := alloc.AllocFrame()
		assert.Equal(t, pmm.ErrOutOfMemory, err)
	}
	assert.Equal(t, uint64(frameCount), alloc.AllocCount())
}

func TestBumpFrameAllocatorRegionEdges(t *testing.T) {
	alloc := NewBumpFrameAllocator([]multiboot.MemoryMapEntry{
		// Smaller than a frame once the base is rounded up.
		{PhysAddress: 0x0800, Length: 0x1000, Type: multiboot.MemAvailable},
		{PhysAddress: 0x2000, Length: 0x4000, Type: multiboot.MemReserved},
		// Unaligned base and a partial trailing frame.
		{PhysAddress: 0x6010, Length: 0x37f0, Type: multiboot.MemAvailable},
		{PhysAddress: 0xa000, Length: 0x1000, Type: multiboot.MemNvs},
		{PhysAddress: 0x20000, Length: 0x1000, Type: multiboot.MemAvailable},
	})

	var got []mem.PhysAddr
	for {
		frame, err := alloc.AllocFrame()
		if err != nil {
			require.Equal(t, pmm.ErrOutOfMemory, err)
			break
		}
		got = append(got, frame.Address())
	}

	assert.Equal(t, []mem.PhysAddr{0x7000, 0x8000, 0x20000}, got)
}

func TestBumpFrameAllocatorEmptyMap(t *testing.T) {
	alloc := NewBumpFrameAllocator(nil)
	_, err := alloc.AllocFrame()
	assert.Equal(t, pmm.ErrOutOfMemory, err)
}

func TestBumpFrameAllocatorRegionOverrun(t *testing.T) {
	// Regions that are not sorted by address leave the cursor past the end
	// of the next region.
	alloc := NewBumpFrameAllocator([]multiboot.MemoryMapEntry{
		{PhysAddress: 0x10000, Length: 0x1000, Type: multiboot.MemAvailable},
		{PhysAddress: 0x1000, Length: 0x2000, Type: multiboot.MemAvailable},
	})

	_, err := alloc.AllocFrame()
	require.Nil(t, err)

	testutil.RequireHalt(t, errRegionOverrun, func() { _, _ = alloc.AllocFrame() })
}

func TestBumpFrameAllocatorHostMemory(t *testing.T) {
	arena := testutil.NewArena(t, 64*uintptr(mem.PageSize))
	alloc := NewBumpFrameAllocator(arena.MemoryMap(4 * uintptr(mem.PageSize)))

	frame, err := alloc.AllocFrame()
	require.Nil(t, err)
	assert.Equal(t, uint64(arena.Base()+4*uintptr(mem.PageSize)), frame.Address().Uint64())

	// Frames come from real memory so they can be written to.
	mem.Memset(uintptr(frame.Address()), 0xFF, mem.PageSize)
	assert.Equal(t, byte(0xFF), arena.Bytes()[4*mem.PageSize])
}

func TestPrintMemoryMap(t *testing.T) {
	multiboot.SetInfoPtr(uintptr(unsafe.Pointer(&multibootMemoryMap()[0])))

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	defer kfmt.SetOutputSink(nil)
	buf.Reset()

	NewBumpFrameAllocator(multiboot.MemoryMap()).PrintMemoryMap()

	exp := "[frame_alloc] system memory map:\n\t[0x0000000000 - 0x000009fc00], size:     654336, type: available\n\t[0x000009fc00 - 0x00000a0000], size:       1024, type: reserved\n\t[0x00000f0000 - 0x0000100000], size:      65536, type: reserved\n\t[0x0000100000 - 0x0007fe0000], size:  133038080, type: available\n\t[0x0007fe0000 - 0x0008000000], size:     131072, type: reserved\n\t[0x00fffc0000 - 0x0100000000], size:     262144, type: reserved\n[frame_alloc] free memory: 130559Kb\n"
	if got := buf.String(); got != exp {
		t.Fatalf("expected PrintMemoryMap to generate the following output:\n%q\ngot:\n%q", exp, got)
	}
}

// multibootMemoryMap returns an 8-byte aligned copy of the memory map dump.
func multibootMemoryMap() []byte {
	buf := make([]uint64, (len(multibootMemoryMapDump)+7)/8)
	data := unsafe.Slice((*byte)(unsafe.Pointer(&buf[0])), len(buf)*8)[:len(multibootMemoryMapDump)]
	copy(data, multibootMemoryMapDump)
	return data
}

var (
	// A dump of multiboot data when running under qemu containing only the
	// memory region tag.  The dump encodes the following available memory
	// regions:
	// [     0 -   9fc00] length:    654336
	// [100000 - 7fe0000] length: 133038080
	multibootMemoryMapDump = []byte{
		72, 5, 0, 0, 0, 0, 0, 0,
		6, 0, 0, 0, 160, 0, 0, 0, 24, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 252, 9, 0, 0, 0, 0, 0,
		1, 0, 0, 0, 0, 0, 0, 0, 0, 252, 9, 0, 0, 0, 0, 0,
		0, 4, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 15, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 16, 0, 0, 0, 0, 0,
		0, 0, 238, 7, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 254, 7, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0,
		2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 252, 255, 0, 0, 0, 0,
		0, 0, 4, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0,
		9, 0, 0, 0, 212, 3, 0, 0, 24, 0, 0, 0, 40, 0, 0, 0,
		21, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
		0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 27, 0, 0, 0,
		1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 16, 0, 0, 16, 0, 0,
		24, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	}
)
