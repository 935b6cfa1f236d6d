package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"unsafe"

	"github.com/hf-ikea/popcorn/internal/hostmem"
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
	"github.com/hf-ikea/popcorn/kernel/mem"
	"github.com/hf-ikea/popcorn/kernel/mem/pmm/allocator"
	"github.com/hf-ikea/popcorn/kernel/mem/vmm"
)

var (
	// errKernelHalted is returned when kernel code reaches kfmt.Panic.
	errKernelHalted = errors.New("kernel halted")

	// closeArenaFn is mocked by tests.
	closeArenaFn = (*hostmem.Arena).Close
)

// kernelHalt is raised in place of halting the CPU.
type kernelHalt struct{}

// runKernel runs fn with kernel output routed to stdout and the kernel halt
// hook turned into an error. Page tables built while fn runs live in host
// memory, so physical addresses are used as-is and TLB flushes are skipped.
func runKernel(fn func() error) (err error) {
	var sink io.Writer = io.Discard
	if !quiet {
		sink = &kfmt.PrefixWriter{Sink: os.Stdout, Prefix: []byte("kernel: ")}
	}
	kfmt.SetOutputSink(sink)
	defer kfmt.SetOutputSink(nil)

	defer kfmt.SetHaltFn(kfmt.SetHaltFn(func() { panic(kernelHalt{}) }))
	defer vmm.SetTLBFlushFn(vmm.SetTLBFlushFn(func(uintptr) {}))

	prevOffset := vmm.PhysMemOffset()
	defer vmm.Init(prevOffset)
	vmm.Init(0)

	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(kernelHalt); !ok {
				panic(r)
			}
			err = errKernelHalted
		}
	}()

	return fn()
}

// physMemory is simulated physical memory with a frame allocator over its
// usable part and an empty top-level page table.
type physMemory struct {
	arena  *hostmem.Arena
	frames *allocator.BumpFrameAllocator
	top    *vmm.PageTable
}

// newPhysMemory maps size bytes of host memory, of which the first reserved
// bytes are reported as reserved.
func newPhysMemory(size, reserved uint64) (*physMemory, error) {
	if size < uint64(mem.PageSize) {
		return nil, fmt.Errorf("physical memory must hold at least one %d byte frame", uint64(mem.PageSize))
	}

	arena, err := hostmem.New(uintptr(size))
	if err != nil {
		return nil, fmt.Errorf("failed to allocate simulated physical memory: %w", err)
	}

	pm := &physMemory{
		arena:  arena,
		frames: allocator.NewBumpFrameAllocator(arena.MemoryMap(uintptr(reserved))),
	}

	topFrame, kErr := pm.frames.AllocFrame()
	if kErr != nil {
		_ = arena.Close()
		return nil, fmt.Errorf("failed to allocate top-level page table: %w", kernelError(kErr))
	}
	pm.top = (*vmm.PageTable)(vmm.PhysToVirt(topFrame.Address()).Pointer())
	pm.top.Zero()

	printVerbose("physical memory: [0x%x - 0x%x), top-level table at 0x%x\n",
		arena.Base(), arena.End(), uintptr(unsafe.Pointer(pm.top)))

	return pm, nil
}

// releaseArena unmaps arena and joins a failure into *err.
func releaseArena(arena *hostmem.Arena, what string, err *error) {
	if closeErr := closeArenaFn(arena); closeErr != nil {
		*err = errors.Join(*err, fmt.Errorf("failed to release %s: %w", what, closeErr))
	}
}

// release unmaps simulated physical memory and joins a failure into *err.
func (pm *physMemory) release(err *error) {
	releaseArena(pm.arena, "physical memory", err)
}

// kernelError converts a kernel error into a Go error.
func kernelError(err *kernel.Error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s", err.Module, err.Message)
}
