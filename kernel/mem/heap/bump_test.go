package heap

import (
	"testing"

	"github.com/hf-ikea/popcorn/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBumpAllocatorReclaim(t *testing.T) {
	const heapStart = 0x10000

	var b BumpAllocator
	b.Init(heapStart, 4096)

	layout := Layout{Size: 24, Align: 8}
	ptrs := make([]uintptr, 10)
	for i := range ptrs {
		ptrs[i] = b.Alloc(layout)
		require.Equal(t, uintptr(heapStart+24*i), ptrs[i])
	}
	cursor := b.Next()
	assert.Equal(t, uintptr(heapStart+240), cursor)

	// Release all but one, in no particular order.
	for _, i := range []int{3, 0, 9, 5, 1, 8, 2, 7, 6} {
		b.Dealloc(ptrs[i], layout)
		assert.Equal(t, cursor, b.Next(), "cursor must not move while allocations are live")
	}
	assert.Equal(t, uint64(1), b.Allocations())

	b.Dealloc(ptrs[4], layout)
	assert.Equal(t, uintptr(heapStart), b.Next())
	assert.Zero(t, b.Allocations())
}

func TestBumpAllocatorAlignment(t *testing.T) {
	var b BumpAllocator
	b.Init(0x1001, 0x2000)

	assert.Equal(t, uintptr(0x1001), b.Alloc(Layout{Size: 3, Align: 1}))
	assert.Equal(t, uintptr(0x1008), b.Alloc(Layout{Size: 8, Align: 8}))
	assert.Equal(t, uintptr(0x2000), b.Alloc(Layout{Size: 1, Align: 0x1000}))
	assert.Equal(t, uintptr(0x2001), b.Alloc(Layout{Size: 0, Align: 0}))
}

func TestBumpAllocatorExhaustion(t *testing.T) {
	var b BumpAllocator
	b.Init(0x1000, 64)

	require.NotZero(t, b.Alloc(Layout{Size: 60, Align: 1}))
	assert.Zero(t, b.Alloc(Layout{Size: 8, Align: 8}), "aligning up passes the end of the heap")
	assert.Equal(t, uintptr(0x1040), b.Alloc(Layout{Size: 0, Align: 64}))
	assert.Equal(t, uint64(2), b.Allocations())

	b.Init(^uintptr(0)-16, 16)
	assert.Zero(t, b.Alloc(Layout{Size: 8, Align: 64}), "aligning up overflows")
	assert.Zero(t, b.Alloc(Layout{Size: 32, Align: 1}), "end overflows")
	assert.Zero(t, b.Allocations())
}

func TestBumpAllocatorUnbalancedDealloc(t *testing.T) {
	var b BumpAllocator
	b.Init(0x1000, 64)

	testutil.RequireHalt(t, errUnbalancedDealloc, func() { b.Dealloc(0x1000, Layout{Size: 8, Align: 8}) })
}
