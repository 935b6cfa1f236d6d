package hostmem

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// NewAt maps an anonymous region of at least size bytes at exactly addr. It
// fails instead of replacing an existing mapping, which lets a hosted heap
// live at the same virtual address the kernel uses.
func NewAt(addr, size uintptr) (*Arena, error) {
	size = roundToHostPage(size)

	p, _, errno := unix.Syscall6(
		unix.SYS_MMAP,
		addr,
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_FIXED_NOREPLACE,
		^uintptr(0), // fd -1
		0,
	)
	if errno != 0 {
		return nil, fmt.Errorf("hostmem: mmap %d bytes at 0x%x: %w", size, addr, errno)
	}

	unmap := func() error {
		if _, _, errno := unix.Syscall(unix.SYS_MUNMAP, p, size, 0); errno != 0 {
			return errno
		}
		return nil
	}

	// Kernels predating MAP_FIXED_NOREPLACE treat the address as a hint.
	if p != addr {
		_ = unmap()
		return nil, fmt.Errorf("hostmem: mmap at 0x%x returned 0x%x", addr, p)
	}

	return &Arena{
		mem:   unsafe.Slice((*byte)(unsafe.Pointer(p)), size),
		unmap: unmap,
	}, nil
}
