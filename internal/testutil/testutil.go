// Package testutil holds helpers shared by the kernel package tests.
package testutil

import (
	"bytes"
	"strings"
	"testing"

	"github.com/hf-ikea/popcorn/internal/hostmem"
	"github.com/hf-ikea/popcorn/kernel"
	"github.com/hf-ikea/popcorn/kernel/kfmt"
	"github.com/stretchr/testify/require"
)

// haltSignal is raised in place of halting the CPU.
type haltSignal struct{}

// ExpectHalt runs fn with the kernel halt hook replaced by a Go panic and
// returns the output printed by kfmt while fn ran. The test fails if fn
// returns without reaching kfmt.Panic.
func ExpectHalt(t testing.TB, fn func()) string {
	t.Helper()

	var buf bytes.Buffer
	kfmt.SetOutputSink(&buf)
	defer kfmt.SetOutputSink(nil)
	defer kfmt.SetHaltFn(kfmt.SetHaltFn(func() { panic(haltSignal{}) }))

	halted := func() (halted bool) {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(haltSignal); !ok {
					panic(r)
				}
				halted = true
			}
		}()
		fn()
		return false
	}()

	require.True(t, halted, "expected the kernel to halt")
	return buf.String()
}

// RequireHalt behaves like ExpectHalt and additionally checks that the halt was
// caused by expErr.
func RequireHalt(t testing.TB, expErr *kernel.Error, fn func()) {
	t.Helper()

	out := ExpectHalt(t, fn)
	exp := "[" + expErr.Module + "] unrecoverable error: " + expErr.Message
	require.True(t, strings.Contains(out, exp), "expected halt output to contain %q; got %q", exp, out)
}

// NewArena maps size bytes of host memory that is released when the test
// ends.
func NewArena(t testing.TB, size uintptr) *hostmem.Arena {
	t.Helper()

	a, err := hostmem.New(size)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, a.Close()) })
	return a
}
