// Package kfmt implements the kernel's formatted output and the fatal error
// path. Nothing in this package allocates, so it can be used before the heap
// has been initialized.
package kfmt

import "io"

// maxBufSize defines the buffer size for formatting numbers.
const maxBufSize = 32

var (
	errMissingArg   = []byte("(MISSING)")
	errWrongArgType = []byte("%!(WRONGTYPE)")
	errNoVerb       = []byte("%!(NOVERB)")
	errExtraArg     = []byte("%!(EXTRA)")
	trueValue       = []byte("true")
	falseValue      = []byte("false")

	digits = "0123456789abcdef"

	numFmtBuf  [maxBufSize]byte
	singleByte [1]byte

	// earlyPrintBuffer captures Printf output until an output sink is
	// attached via SetOutputSink.
	earlyPrintBuffer ringBuffer

	// outputSink receives Printf output. A nil sink redirects output to
	// earlyPrintBuffer.
	outputSink io.Writer

	// Interrupts are suspended while Printf runs so that an interrupt
	// handler that prints cannot deadlock on a lock held by the code it
	// interrupted. The hooks are nil until kmain installs the CPU
	// primitives.
	interruptsEnabledFn func() bool
	disableInterruptsFn func()
	enableInterruptsFn  func()
)

// SetOutputSink sets the target for calls to Printf to w and copies any output
// accumulated in the early print buffer to it.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		_, _ = io.Copy(w, &earlyPrintBuffer)
	}
}

// SetInterruptHooks registers the functions Printf uses to query, suspend and
// resume interrupt delivery. Passing nil for all of them disables the
// behavior.
func SetInterruptHooks(enabled func() bool, disable, enable func()) {
	interruptsEnabledFn, disableInterruptsFn, enableInterruptsFn = enabled, disable, enable
}

// Printf provides a minimal Printf implementation that does not allocate. It
// supports the following subset of formatting verbs:
//
//	%s  string or []byte
//	%d  base 10 integer
//	%o  base 8 integer
//	%x  base 16 integer, lower-case
//	%t  bool
//	%%  a literal percent sign
//
// An optional decimal width may precede the verb. Strings and base-10
// integers are left-padded with spaces; base-8 and base-16 integers are
// left-padded with zeroes. Only built-in integer types are recognized, so
// named types such as mem.PhysAddr must be converted before being passed in.
func Printf(format string, args ...interface{}) {
	// Interrupts are only re-enabled if they were enabled on entry.
	if interruptsEnabledFn != nil && interruptsEnabledFn() {
		disableInterruptsFn()
		defer enableInterruptsFn()
	}

	Fprintf(outputSink, format, args...)
}

// Fprintf behaves exactly like Printf but it writes the formatted output to
// the specified io.Writer. Interrupt delivery is left untouched.
func Fprintf(w io.Writer, format string, args ...interface{}) {
	var nextArg int

	for i := 0; i < len(format); i++ {
		if format[i] != '%' {
			writeByte(w, format[i])
			continue
		}

		width := 0
		for i++; i < len(format) && format[i] >= '0' && format[i] <= '9'; i++ {
			width = width*10 + int(format[i]-'0')
		}

		if i == len(format) {
			doWrite(w, errNoVerb)
			break
		}

		verb := format[i]
		switch verb {
		case '%':
			writeByte(w, '%')
			continue
		case 'd', 'o', 'x', 's', 't':
		default:
			doWrite(w, errNoVerb)
			continue
		}

		if nextArg >= len(args) {
			doWrite(w, errMissingArg)
			continue
		}

		switch verb {
		case 'd':
			fmtInt(w, args[nextArg], 10, width)
		case 'o':
			fmtInt(w, args[nextArg], 8, width)
		case 'x':
			fmtInt(w, args[nextArg], 16, width)
		case 's':
			fmtString(w, args[nextArg], width)
		case 't':
			fmtBool(w, args[nextArg])
		}
		nextArg++
	}

	for ; nextArg < len(args); nextArg++ {
		doWrite(w, errExtraArg)
	}
}

func fmtBool(w io.Writer, v interface{}) {
	b, ok := v.(bool)
	switch {
	case !ok:
		doWrite(w, errWrongArgType)
	case b:
		doWrite(w, trueValue)
	default:
		doWrite(w, falseValue)
	}
}

func fmtString(w io.Writer, v interface{}, width int) {
	switch s := v.(type) {
	case string:
		fmtRepeat(w, ' ', width-len(s))
		// Slicing a string into []byte would allocate.
		for i := 0; i < len(s); i++ {
			writeByte(w, s[i])
		}
	case []byte:
		fmtRepeat(w, ' ', width-len(s))
		doWrite(w, s)
	default:
		doWrite(w, errWrongArgType)
	}
}

func fmtRepeat(w io.Writer, ch byte, count int) {
	for ; count > 0; count-- {
		writeByte(w, ch)
	}
}

// fmtInt renders v in the requested base into the tail of numFmtBuf and writes
// it out. All built-in signed and unsigned integer types are supported.
func fmtInt(w io.Writer, v interface{}, base uint64, width int) {
	var (
		uval uint64
		neg  bool
	)

	switch n := v.(type) {
	case uint8:
		uval = uint64(n)
	case uint16:
		uval = uint64(n)
	case uint32:
		uval = uint64(n)
	case uint64:
		uval = n
	case uint:
		uval = uint64(n)
	case uintptr:
		uval = uint64(n)
	case int8:
		uval, neg = signed(int64(n))
	case int16:
		uval, neg = signed(int64(n))
	case int32:
		uval, neg = signed(int64(n))
	case int64:
		uval, neg = signed(n)
	case int:
		uval, neg = signed(int64(n))
	default:
		doWrite(w, errWrongArgType)
		return
	}

	if width > maxBufSize-2 {
		width = maxBufSize - 2
	}

	padCh := byte('0')
	if base == 10 {
		padCh = ' '
	}

	pos := maxBufSize
	for {
		pos--
		numFmtBuf[pos] = digits[uval%base]
		if uval /= base; uval == 0 {
			break
		}
	}

	// Space padding goes in front of the sign; zero padding goes after it.
	if neg && padCh == ' ' {
		pos--
		numFmtBuf[pos] = '-'
	}

	minLen := width
	if neg && padCh == '0' {
		minLen--
	}
	for maxBufSize-pos < minLen {
		pos--
		numFmtBuf[pos] = padCh
	}

	if neg && padCh == '0' {
		pos--
		numFmtBuf[pos] = '-'
	}

	doWrite(w, numFmtBuf[pos:])
}

func signed(v int64) (uint64, bool) {
	if v < 0 {
		return uint64(-v), true
	}
	return uint64(v), false
}

func writeByte(w io.Writer, b byte) {
	singleByte[0] = b
	doWrite(w, singleByte[:])
}

func doWrite(w io.Writer, p []byte) {
	if w != nil {
		_, _ = w.Write(p)
		return
	}
	_, _ = earlyPrintBuffer.Write(p)
}
