package mem

// Size4KiB tags pages and frames that are 4 KiB in size.
type Size4KiB struct{}

// Size2MiB tags pages and frames that are 2 MiB in size.
type Size2MiB struct{}

// Size1GiB tags pages and frames that are 1 GiB in size.
type Size1GiB struct{}

// Bytes returns the page size.
func (Size4KiB) Bytes() Size { return PageSize }

// Bytes returns the page size.
func (Size2MiB) Bytes() Size { return 2 * Mb }

// Bytes returns the page size.
func (Size1GiB) Bytes() Size { return Gb }

func (Size4KiB) String() string { return "4KiB" }
func (Size2MiB) String() string { return "2MiB" }
func (Size1GiB) String() string { return "1GiB" }

// PageSizer is satisfied by the three page sizes supported by the MMU. It is
// used as a type constraint so that pages and frames of different sizes cannot
// be mixed up.
type PageSizer interface {
	Size4KiB | Size2MiB | Size1GiB

	Bytes() Size
	String() string
}

// SizeOf returns the size in bytes of page size S.
func SizeOf[S PageSizer]() Size {
	var s S
	return s.Bytes()
}
