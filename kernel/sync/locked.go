package sync

// Locked wraps a value of type T so that it can only be reached while holding
// a spinlock. The zero value is an unlocked wrapper around T's zero value,
// which lets process-wide singletons be declared as plain package variables.
type Locked[T any] struct {
	lock  Spinlock
	inner T
}

// NewLocked returns a Locked wrapper around inner.
func NewLocked[T any](inner T) *Locked[T] {
	return &Locked[T]{inner: inner}
}

// Lock acquires the lock and returns a pointer to the guarded value. The
// pointer must not be used after the matching call to Unlock.
func (l *Locked[T]) Lock() *T {
	l.lock.Acquire()
	return &l.inner
}

// Unlock releases a lock previously obtained via Lock.
func (l *Locked[T]) Unlock() {
	l.lock.Release()
}

// With runs fn while holding the lock. The lock is released when fn returns,
// including when fn panics.
func (l *Locked[T]) With(fn func(inner *T)) {
	l.lock.Acquire()
	defer l.lock.Release()
	fn(&l.inner)
}
