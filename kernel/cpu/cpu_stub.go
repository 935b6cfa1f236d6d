//go:build !amd64

// Package cpu exposes the handful of privileged instructions the memory
// manager depends on. Only amd64 is supported; on other architectures the
// package builds so hosted tools and tests compile, but every primitive halts
// the calling goroutine with a panic.
package cpu

const errUnsupported = "cpu: privileged instructions are only implemented for amd64"

// EnableInterrupts enables interrupt handling.
func EnableInterrupts() { panic(errUnsupported) }

// DisableInterrupts disables interrupt handling.
func DisableInterrupts() { panic(errUnsupported) }

// InterruptsEnabled reports whether interrupt handling is enabled.
func InterruptsEnabled() bool { panic(errUnsupported) }

// Halt stops instruction execution.
func Halt() { panic(errUnsupported) }

// FlushTLBEntry invalidates the cached translation for virtAddr.
func FlushTLBEntry(virtAddr uintptr) { panic(errUnsupported) }

// ActivePDT returns the physical address of the active top-level page table.
func ActivePDT() uintptr { panic(errUnsupported) }
