//go:build unix

// Package hostmem provides page-aligned anonymous memory mappings that stand
// in for physical memory when the memory manager runs as an ordinary process.
// With a physical-memory offset of zero, the addresses of an Arena can be used
// both as "physical" frame addresses and as dereferenceable pointers.
package hostmem

import (
	"fmt"
	"unsafe"

	"github.com/hf-ikea/popcorn/kernel/hal/multiboot"
	"golang.org/x/sys/unix"
)

// Arena is an anonymous read-write memory mapping.
type Arena struct {
	mem   []byte
	unmap func() error
}

// New maps an anonymous region of at least size bytes. The size is rounded up
// to the host page size.
func New(size uintptr) (*Arena, error) {
	size = roundToHostPage(size)

	b, err := unix.Mmap(-1, 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, fmt.Errorf("hostmem: mmap %d bytes: %w", size, err)
	}

	a := &Arena{mem: b}
	a.unmap = func() error { return unix.Munmap(a.mem) }
	return a, nil
}

// Base returns the address of the first byte in the arena.
func (a *Arena) Base() uintptr {
	return uintptr(unsafe.Pointer(&a.mem[0]))
}

// Size returns the arena size in bytes.
func (a *Arena) Size() uintptr {
	return uintptr(len(a.mem))
}

// End returns the address one past the last byte of the arena.
func (a *Arena) End() uintptr {
	return a.Base() + a.Size()
}

// Contains returns true if addr falls inside the arena.
func (a *Arena) Contains(addr uintptr) bool {
	return addr >= a.Base() && addr < a.End()
}

// Bytes exposes the arena contents.
func (a *Arena) Bytes() []byte {
	return a.mem
}

// MemoryMap describes the arena the way a bootloader would: the first
// reserved bytes are reported as reserved and the remainder as available.
func (a *Arena) MemoryMap(reserved uintptr) []multiboot.MemoryMapEntry {
	if reserved > a.Size() {
		reserved = a.Size()
	}

	var entries []multiboot.MemoryMapEntry
	if reserved != 0 {
		entries = append(entries, multiboot.MemoryMapEntry{
			PhysAddress: uint64(a.Base()),
			Length:      uint64(reserved),
			Type:        multiboot.MemReserved,
		})
	}
	if reserved != a.Size() {
		entries = append(entries, multiboot.MemoryMapEntry{
			PhysAddress: uint64(a.Base() + reserved),
			Length:      uint64(a.Size() - reserved),
			Type:        multiboot.MemAvailable,
		})
	}
	return entries
}

// Close unmaps the arena. The arena must not be used afterwards.
func (a *Arena) Close() error {
	if a.mem == nil {
		return nil
	}

	err := a.unmap()
	a.mem = nil
	if err != nil {
		return fmt.Errorf("hostmem: munmap: %w", err)
	}
	return nil
}

func roundToHostPage(size uintptr) uintptr {
	pageSize := uintptr(unix.Getpagesize())
	if size == 0 {
		size = 1
	}
	return (size + pageSize - 1) &^ (pageSize - 1)
}
