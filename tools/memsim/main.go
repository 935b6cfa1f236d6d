// Command memsim runs the kernel memory manager against simulated physical
// memory on the host. Physical memory is an anonymous mapping that is also
// addressed directly, so page tables and heaps can be inspected without
// booting the kernel.
package main

func main() {
	execute()
}
