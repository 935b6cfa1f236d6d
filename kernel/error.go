package kernel

// Error describes an error raised by kernel code. Kernel errors are declared
// as package-level *Error values so they can be reported (and compared by
// identity) without going through the Go allocator, which may not be
// available when they are raised.
type Error struct {
	// Module names the subsystem that raised the error.
	Module string

	// Message is a human readable description of the failure.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
