package kfmt

import (
	"bytes"
	"testing"
)

func TestPrefixWriter(t *testing.T) {
	specs := []struct {
		writes    []string
		expOutput string
	}{
		{nil, ""},
		{[]string{"line"}, "[kern] line"},
		{[]string{"line\n"}, "[kern] line\n"},
		{[]string{"one\ntwo\n"}, "[kern] one\n[kern] two\n"},
		{[]string{"par", "tial\n", "next"}, "[kern] partial\n[kern] next"},
		{[]string{"\n\n"}, "[kern] \n[kern] \n"},
	}

	for specIndex, spec := range specs {
		var buf bytes.Buffer
		w := &PrefixWriter{Sink: &buf, Prefix: []byte("[kern] ")}

		for _, s := range spec.writes {
			n, err := w.Write([]byte(s))
			if err != nil {
				t.Fatalf("[spec %d] unexpected error: %v", specIndex, err)
			}
			if n != len(s) {
				t.Errorf("[spec %d] expected Write to report %d bytes; got %d", specIndex, len(s), n)
			}
		}

		if got := buf.String(); got != spec.expOutput {
			t.Errorf("[spec %d] expected output %q; got %q", specIndex, spec.expOutput, got)
		}
	}
}
