package kmain

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/cpu"
	"github.com/hf-ikea/popcorn/kernel/hal/multiboot"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
	"github.com/hf-ikea/popcorn/kernel/mem/heap"
	"github.com/hf-ikea/popcorn/kernel/mem/pmm/allocator"
	"github.com/hf-ikea/popcorn/kernel/mem/vmm"
)

var (
	// the following functions are mocked by tests and are automatically
	// inlined by the compiler.
	activeTableFn       = vmm.ActiveTable
	interruptsEnabledFn = cpu.InterruptsEnabled
	disableInterruptsFn = cpu.DisableInterrupts
	enableInterruptsFn  = cpu.EnableInterrupts

	errKmainReturned = &kernel.Error{Module: "kmain", Message: "Kmain returned"}
)

// Kmain is the only Go symbol that is visible (exported) from the rt0 initialization
// code. This function is invoked by the rt0 assembly code after setting up the GDT
// and setting up a a minimal g0 struct that allows Go code using the 4K stack
// allocated by the assembly code.
//
// The rt0 code passes the address of the multiboot info payload provided by the
// bootloader as well as the virtual address at which the bootloader mapped all
// of physical memory.
//
// Kmain is not expected to return. If it does, the rt0 code will halt the CPU.
//
//go:noinline
func Kmain(multibootInfoPtr, physMemOffset uintptr) {
	multiboot.SetInfoPtr(multibootInfoPtr)
	kfmt.SetInterruptHooks(interruptsEnabledFn, disableInterruptsFn, enableInterruptsFn)

	vmm.Init(uint64(physMemOffset))

	frames := allocator.NewBumpFrameAllocator(multiboot.MemoryMap())
	frames.PrintMemoryMap()

	if err := heap.InitHeap(activeTableFn(), frames); err != nil {
		kfmt.Panic(err)
	}

	// Use kfmt.Panic instead of panic to prevent the compiler from
	// treating kfmt.Panic as dead-code and eliminating it.
	kfmt.Panic(errKmainReturned)
}
