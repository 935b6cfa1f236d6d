package mem

import (
	"testing"

	"github.com/hf-ikea/popcorn/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhysAddr(t *testing.T) {
	specs := []struct {
		in    uint64
		valid bool
	}{
		{0, true},
		{0x1000, true},
		{0x000f_ffff_ffff_ffff, true},
		{0x0010_0000_0000_0000, false},
		{0xffff_ffff_ffff_ffff, false},
	}

	for specIndex, spec := range specs {
		pa, err := TryNewPhysAddr(spec.in)
		if !spec.valid {
			assert.Equal(t, errPhysAddrOutOfRange, err, "[spec %d]", specIndex)
			continue
		}

		require.Nil(t, err, "[spec %d]", specIndex)
		assert.Equal(t, spec.in, pa.Uint64(), "[spec %d] round-trip", specIndex)
		assert.Equal(t, pa, NewPhysAddr(spec.in), "[spec %d]", specIndex)
	}

	testutil.RequireHalt(t, errPhysAddrOutOfRange, func() { NewPhysAddr(1 << 52) })
}

func TestPhysAddrAlignment(t *testing.T) {
	pa := NewPhysAddr(0x1234)

	assert.Equal(t, PhysAddr(0x1000), pa.AlignDown(0x1000))
	assert.Equal(t, PhysAddr(0x2000), pa.AlignUp(0x1000))
	assert.Equal(t, PhysAddr(0x1000), PhysAddr(0x1000).AlignUp(0x1000))
	assert.False(t, pa.IsAligned(8))
	assert.True(t, pa.IsAligned(4))
	assert.Equal(t, PhysAddr(0x2234), pa.Add(0x1000))
	assert.Equal(t, PhysAddr(0x0234), pa.Sub(0x1000))

	testutil.RequireHalt(t, errAlignmentNotPow2, func() { pa.AlignDown(3) })
	testutil.RequireHalt(t, errAlignmentNotPow2, func() { pa.AlignUp(0) })
}

func TestVirtAddr(t *testing.T) {
	specs := []struct {
		in    uint64
		valid bool
	}{
		{0, true},
		{0x0000_7fff_ffff_ffff, true},
		{0xffff_8000_0000_0000, true},
		{0xffff_ffff_ffff_ffff, true},
		{0x0000_8000_0000_0000, false},
		{0xffff_7fff_ffff_ffff, false},
		{0x0001_0000_0000_0000, false},
		{0x8000_0000_0000_0000, false},
	}

	for specIndex, spec := range specs {
		va, err := TryNewVirtAddr(spec.in)
		if !spec.valid {
			assert.Equal(t, errVirtAddrNotCanonical, err, "[spec %d]", specIndex)
			continue
		}

		require.Nil(t, err, "[spec %d]", specIndex)
		assert.Equal(t, spec.in, va.Uint64(), "[spec %d] round-trip", specIndex)
	}

	testutil.RequireHalt(t, errVirtAddrNotCanonical, func() { NewVirtAddr(0x0000_8000_0000_0000) })
}

func TestVirtAddrTruncate(t *testing.T) {
	specs := []struct {
		in, exp uint64
	}{
		{0x0000_7fff_ffff_ffff, 0x0000_7fff_ffff_ffff},
		{0x0000_8000_0000_0000, 0xffff_8000_0000_0000},
		{0x1234_0000_dead_beef, 0x0000_0000_dead_beef},
		{0x0000_ffff_ffff_f000, 0xffff_ffff_ffff_f000},
	}

	for specIndex, spec := range specs {
		assert.Equal(t, VirtAddr(spec.exp), NewVirtAddrTruncate(spec.in), "[spec %d]", specIndex)
	}
}

func TestVirtAddrArithmetic(t *testing.T) {
	va := NewVirtAddr(0x4444_4444_0010)

	assert.Equal(t, VirtAddr(0x4444_4444_0000), va.AlignDown(0x1000))
	assert.Equal(t, VirtAddr(0x4444_4444_1000), va.AlignUp(0x1000))
	assert.True(t, va.IsAligned(16))
	assert.False(t, va.IsAligned(32))
	assert.Equal(t, VirtAddr(0x4444_4444_0020), va.Add(0x10))
	assert.Equal(t, VirtAddr(0x4444_4444_0000), va.Sub(0x10))

	// Crossing into the non-canonical hole halts.
	top := NewVirtAddr(0x0000_7fff_ffff_f000)
	testutil.RequireHalt(t, errVirtAddrNotCanonical, func() { top.Add(0x1000) })

	// Aligning down the lowest upper-half address keeps it canonical.
	assert.Equal(t, VirtAddr(0xffff_8000_0000_0000), NewVirtAddr(0xffff_8000_0000_0123).AlignDown(0x1000))

	testutil.RequireHalt(t, errAlignUpOverflow, func() { NewVirtAddr(0xffff_ffff_ffff_f001).AlignUp(0x1000) })
}

func TestVirtAddrIndices(t *testing.T) {
	specs := []struct {
		addr           uint64
		p4, p3, p2, p1 PageTableIndex
		offset         PageOffset
	}{
		{0, 0, 0, 0, 0, 0},
		{0x0000_4444_4444_0000, 136, 273, 34, 64, 0},
		{0x0000_7fff_ffff_ffff, 255, 511, 511, 511, 4095},
		{0xffff_8000_0000_0000, 256, 0, 0, 0, 0},
		{0xffff_ffff_ffff_f123, 511, 511, 511, 511, 0x123},
	}

	for specIndex, spec := range specs {
		va := NewVirtAddr(spec.addr)

		assert.Equal(t, spec.p4, va.P4Index(), "[spec %d] p4", specIndex)
		assert.Equal(t, spec.p3, va.P3Index(), "[spec %d] p3", specIndex)
		assert.Equal(t, spec.p2, va.P2Index(), "[spec %d] p2", specIndex)
		assert.Equal(t, spec.p1, va.P1Index(), "[spec %d] p1", specIndex)
		assert.Equal(t, spec.offset, va.PageOffset(), "[spec %d] offset", specIndex)

		for level := uint8(0); level < PageLevels; level++ {
			exp := []PageTableIndex{spec.p4, spec.p3, spec.p2, spec.p1}[level]
			assert.Equal(t, exp, va.LevelIndex(level), "[spec %d] level %d", specIndex, level)
		}

		assert.Equal(t, va, VirtAddrFromIndices(spec.p4, spec.p3, spec.p2, spec.p1, spec.offset), "[spec %d] recompose", specIndex)
	}
}

func TestVirtAddrIndicesRecompose(t *testing.T) {
	// Walk a sparse grid of index combinations in both halves of the address
	// space and check that every decomposition recombines to the same address.
	for p4 := uint16(0); p4 < EntriesPerTable; p4 += 73 {
		for p3 := uint16(0); p3 < EntriesPerTable; p3 += 127 {
			for p1 := uint16(1); p1 < EntriesPerTable; p1 += 255 {
				va := VirtAddrFromIndices(
					NewPageTableIndex(p4),
					NewPageTableIndex(p3),
					NewPageTableIndex(p3^p1),
					NewPageTableIndex(p1),
					NewPageOffset(p1*7),
				)

				_, err := TryNewVirtAddr(va.Uint64())
				require.Nil(t, err)
				require.Equal(t, PageTableIndex(p4), va.P4Index())
				require.Equal(t, PageTableIndex(p3), va.P3Index())
				require.Equal(t, PageTableIndex(p3^p1), va.P2Index())
				require.Equal(t, PageTableIndex(p1), va.P1Index())
				require.Equal(t, PageOffset(p1*7), va.PageOffset())
			}
		}
	}
}

func TestIndexConstructors(t *testing.T) {
	assert.Equal(t, PageTableIndex(511), NewPageTableIndex(511))
	assert.Equal(t, PageOffset(4095), NewPageOffset(4095))

	testutil.RequireHalt(t, errIndexOutOfRange, func() { NewPageTableIndex(512) })
	testutil.RequireHalt(t, errOffsetOutOfRange, func() { NewPageOffset(4096) })
}
