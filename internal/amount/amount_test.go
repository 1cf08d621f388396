package amount

import "testing"

func TestParseMagnitudeSuffixes(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"10L", 1_000_000},
		{"10l", 1_000_000},
		{"10 lakh", 1_000_000},
		{"10 Lakhs", 1_000_000},
		{"10 lac", 1_000_000},
		{"1000000", 1_000_000},
		{"10,00,000", 1_000_000},
		{"1Cr", 10_000_000},
		{"1 crore", 10_000_000},
		{"2.5 crores", 25_000_000},
		{"1.5L", 150_000},
	}
	for _, tc := range cases {
		got, ok := Parse(tc.in)
		if !ok {
			t.Errorf("Parse(%q) not recognized as amount", tc.in)
			continue
		}
		if got != tc.want {
			t.Errorf("Parse(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseEquivalentRepresentations(t *testing.T) {
	// "10L", "10 lakh" and "1000000" must agree; "1Cr" is 10x that.
	base, ok := Parse("1000000")
	if !ok {
		t.Fatal("Parse(1000000) failed")
	}
	for _, in := range []string{"10L", "10 lakh"} {
		v, ok := Parse(in)
		if !ok || v != base {
			t.Errorf("Parse(%q) = (%v, %v), want (%v, true)", in, v, ok, base)
		}
	}
	cr, ok := Parse("1Cr")
	if !ok || cr != base*10 {
		t.Errorf("Parse(1Cr) = (%v, %v), want (%v, true)", cr, ok, base*10)
	}
}

func TestParsePlainDecimals(t *testing.T) {
	if v, ok := Parse("₹ 5,000"); !ok || v != 5000 {
		t.Errorf("Parse(₹ 5,000) = (%v, %v), want (5000, true)", v, ok)
	}
	if v, ok := Parse("12.5"); !ok || v != 12.5 {
		t.Errorf("Parse(12.5) = (%v, %v), want (12.5, true)", v, ok)
	}
}

func TestParseRejections(t *testing.T) {
	for _, in := range []string{"", "abc", "0", "-5", "lakh", "   ", "..."} {
		if v, ok := Parse(in); ok {
			t.Errorf("Parse(%q) = (%v, true), want not-an-amount", in, v)
		}
	}
}
