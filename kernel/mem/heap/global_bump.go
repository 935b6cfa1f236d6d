//go:build bumpheap

package heap

// Strategy names the allocator backing the kernel heap.
const Strategy = "bump"

type globalAllocator = BumpAllocator
