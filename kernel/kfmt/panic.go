package kfmt

import (
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/cpu"
)

var (
	// cpuHaltFn is invoked once the panic banner has been printed. It is
	// replaced by hosted tools and tests via SetHaltFn.
	cpuHaltFn = cpu.Halt

	errRuntimePanic = &kernel.Error{Module: "rt", Message: "unknown cause"}
)

// SetHaltFn replaces the function Panic calls after printing its banner and
// returns the previous one. In the kernel this is cpu.Halt; hosted code swaps
// in a function that raises a Go panic so the failure can be observed.
//
//	defer kfmt.SetHaltFn(kfmt.SetHaltFn(func() { panic("halted") }))
func SetHaltFn(fn func()) func() {
	prev := cpuHaltFn
	cpuHaltFn = fn
	return prev
}

// Panic outputs the supplied error (if not nil) and halts the CPU. It is the
// kernel's fatal error path: invalid input, protocol violations and bookkeeping
// corruption all end up here. Calls to Panic never return in the kernel.
func Panic(e interface{}) {
	var err *kernel.Error

	switch t := e.(type) {
	case *kernel.Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	Printf("\n-----------------------------------\n")
	if err != nil {
		Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	Printf("*** kernel panic: system halted ***")
	Printf("\n-----------------------------------\n")

	cpuHaltFn()
}
