// Package cpu exposes the handful of privileged instructions the memory
// manager depends on. Everything above this package is architecture neutral.
package cpu

// EnableInterrupts enables interrupt handling.
func EnableInterrupts()

// DisableInterrupts disables interrupt handling.
func DisableInterrupts()

// InterruptsEnabled reports whether the interrupt flag (IF) is set.
func InterruptsEnabled() bool

// Halt disables interrupts and stops instruction execution. It never returns.
func Halt()

// FlushTLBEntry invalidates the cached translation for the page that contains
// virtAddr. No other TLB entries are affected.
func FlushTLBEntry(virtAddr uintptr)

// ActivePDT returns the raw contents of the register that holds the physical
// address of the active top-level page table (CR3).
func ActivePDT() uintptr
