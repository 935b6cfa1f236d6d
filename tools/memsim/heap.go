package main

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/hf-ikea/popcorn/internal/hostmem"
	"github.com/hf-ikea/popcorn/kernel/mem/heap"
	"github.com/spf13/cobra"
)

var (
	heapSize     uint64
	heapStrategy string

	errScenarioFailed = errors.New("scenario failed")
)

// scenarios maps scenario names to their implementation.
var scenarios = map[string]func(heap.Allocator, uintptr) (ScenarioResult, error){
	"boxes":      runBoxes,
	"long-lived": runLongLived,
	"vec":        runVec,
}

func init() {
	cmd := newHeapCmd()
	cmd.Flags().Uint64Var(&heapSize, "heap-size", uint64(heap.HeapSize), "Size of the heap in bytes")
	cmd.Flags().StringVar(&heapStrategy, "strategy", "fixed-size-block", "Heap strategy: fixed-size-block or bump")
	rootCmd.AddCommand(cmd)
}

func newHeapCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "heap <scenario>",
		Short: "Run an allocation scenario against a heap strategy",
		Long: `The heap command runs an allocation scenario against one of the kernel
heap strategies on a host-backed heap. Available scenarios:

  boxes       allocate and release one word heap-size times
  long-lived  like boxes, with one allocation kept alive throughout
  vec         grow a vector of 4096 words by doubling its capacity

Example:
  memsim heap boxes
  memsim heap long-lived --strategy bump
  memsim heap vec --heap-size 65536`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenario, ok := scenarios[args[0]]
			if !ok {
				return fmt.Errorf("unknown scenario %q", args[0])
			}

			alloc, err := newAllocator(heapStrategy)
			if err != nil {
				return err
			}

			return runKernel(func() error { return runHeap(args[0], scenario, alloc) })
		},
	}
	return cmd
}

func newAllocator(strategy string) (heap.Allocator, error) {
	switch strategy {
	case "fixed-size-block":
		return &heap.FixedSizeBlockAllocator{}, nil
	case "bump":
		return &heap.BumpAllocator{}, nil
	default:
		return nil, fmt.Errorf("unknown heap strategy %q", strategy)
	}
}

// ScenarioResult summarizes a scenario run.
type ScenarioResult struct {
	Allocations uint64
	Failed      bool
	FailedAt    uint64
}

func runHeap(name string, scenario func(heap.Allocator, uintptr) (ScenarioResult, error), alloc heap.Allocator) (err error) {
	arena, err := hostmem.New(uintptr(heapSize))
	if err != nil {
		return fmt.Errorf("failed to allocate heap memory: %w", err)
	}
	defer releaseArena(arena, "heap memory", &err)

	alloc.Init(arena.Base(), uintptr(heapSize))

	res, err := scenario(alloc, uintptr(heapSize))
	if err != nil {
		return err
	}

	printInfo("%s/%s: %d allocations\n", heapStrategy, name, res.Allocations)
	if fsb, ok := alloc.(*heap.FixedSizeBlockAllocator); ok {
		for i, size := range heap.BlockSizes() {
			if n := fsb.FreeBlocks(i); n != 0 {
				printVerbose("  %4d byte blocks: %d free\n", size, n)
			}
		}
		printVerbose("  fallback: %d bytes free in %d holes\n", fsb.Fallback().Free(), fsb.Fallback().Holes())
	}

	if res.Failed {
		return fmt.Errorf("%w: heap exhausted after %d allocations", errScenarioFailed, res.FailedAt)
	}
	return nil
}

// runBoxes allocates, checks and releases a single word n times.
func runBoxes(alloc heap.Allocator, n uintptr) (ScenarioResult, error) {
	var res ScenarioResult
	layout := heap.LayoutOf[uintptr]()

	for i := uintptr(0); i < n; i++ {
		box := alloc.Alloc(layout)
		if box == 0 {
			res.Failed, res.FailedAt = true, res.Allocations
			return res, nil
		}
		res.Allocations++

		*(*uintptr)(unsafe.Pointer(box)) = i
		if got := *(*uintptr)(unsafe.Pointer(box)); got != i {
			return res, fmt.Errorf("box %d holds %d", i, got)
		}
		alloc.Dealloc(box, layout)
	}

	return res, nil
}

// runLongLived behaves like runBoxes while one allocation stays live.
func runLongLived(alloc heap.Allocator, n uintptr) (ScenarioResult, error) {
	layout := heap.LayoutOf[uintptr]()
	longLived := alloc.Alloc(layout)
	if longLived == 0 {
		return ScenarioResult{Failed: true}, nil
	}
	*(*uintptr)(unsafe.Pointer(longLived)) = 1

	res, err := runBoxes(alloc, n)
	if err != nil || res.Failed {
		return res, err
	}

	if got := *(*uintptr)(unsafe.Pointer(longLived)); got != 1 {
		return res, fmt.Errorf("long-lived box holds %d", got)
	}
	alloc.Dealloc(longLived, layout)
	res.Allocations++
	return res, nil
}

// runVec pushes 0..4095 onto a vector that doubles its capacity when full
// and checks the sum of its elements.
func runVec(alloc heap.Allocator, _ uintptr) (ScenarioResult, error) {
	const count = 4096

	var (
		res           ScenarioResult
		vec, capacity uintptr
	)

	for length := uintptr(0); length < count; length++ {
		if length == capacity {
			newCapacity := max(4, capacity*2)
			newVec := alloc.Alloc(heap.ArrayLayout[uint64](newCapacity))
			if newVec == 0 {
				res.Failed, res.FailedAt = true, res.Allocations
				return res, nil
			}
			res.Allocations++

			if vec != 0 {
				copy(
					unsafe.Slice((*uint64)(unsafe.Pointer(newVec)), newCapacity),
					unsafe.Slice((*uint64)(unsafe.Pointer(vec)), length),
				)
				alloc.Dealloc(vec, heap.ArrayLayout[uint64](capacity))
			}
			vec, capacity = newVec, newCapacity
		}

		*(*uint64)(unsafe.Pointer(vec + length*8)) = uint64(length)
	}

	var sum uint64
	for _, v := range unsafe.Slice((*uint64)(unsafe.Pointer(vec)), count) {
		sum += v
	}
	alloc.Dealloc(vec, heap.ArrayLayout[uint64](capacity))

	if exp := uint64((count - 1) * count / 2); sum != exp {
		return res, fmt.Errorf("vector sum is %d; expected %d", sum, exp)
	}
	return res, nil
}
