package expr

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		field string
		op    Op
		value string
	}{
		{"budget >= 10L", "budget", OpGte, "10L"},
		{"budget>=10L", "budget", OpGte, "10L"},
		{"name == 'Vishal'", "name", OpEq, "Vishal"},
		{`city != "Mumbai"`, "city", OpNe, "Mumbai"},
		{"requirement contains villa", "requirement", OpContains, "villa"},
		{"timeline < 6", "timeline", OpLt, "6"},
		{"score > 5", "score", OpGt, "5"},
		{"score <= 5", "score", OpLte, "5"},
	}
	for _, tc := range cases {
		e, err := Parse(tc.in)
		if err != nil {
			t.Errorf("Parse(%q) error: %v", tc.in, err)
			continue
		}
		if e.Field != tc.field || e.Op != tc.op || e.Value != tc.value {
			t.Errorf("Parse(%q) = {%s %s %s}, want {%s %s %s}",
				tc.in, e.Field, e.Op, e.Value, tc.field, tc.op, tc.value)
		}
	}
}

func TestParseRejectsNonGrammar(t *testing.T) {
	for _, in := range []string{
		"",
		"budget",
		"budget >=",
		"budget >= 10L && city == Pune",
		"1budget >= 10L",
	} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) succeeded, want error", in)
		}
	}
}

func TestEvalMissingFieldIsFalse(t *testing.T) {
	data := map[string]string{"present": ""}
	for _, in := range []string{"absent != x", "absent == x", "present != x", "present contains x"} {
		e, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", in, err)
		}
		if e.Eval(data) {
			t.Errorf("%q evaluated true against missing/empty field", in)
		}
	}
}

func TestEvalContains(t *testing.T) {
	data := map[string]string{"requirement": "A 3BHK Villa in Pune"}
	e, _ := Parse("requirement contains villa")
	if !e.Eval(data) {
		t.Error("contains should be case-insensitive")
	}
	e, _ = Parse("requirement contains apartment")
	if e.Eval(data) {
		t.Error("contains matched absent substring")
	}
}

func TestEvalNumericComparison(t *testing.T) {
	data := map[string]string{"budget": "12L"}
	cases := []struct {
		in   string
		want bool
	}{
		{"budget >= 10L", true},
		{"budget >= 1200000", true},
		{"budget > 12L", false},
		{"budget <= 1Cr", true},
		{"budget == 1200000", true},
		{"budget != 1200000", false},
		{"budget < 5L", false},
	}
	for _, tc := range cases {
		e, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}
		if got := e.Eval(data); got != tc.want {
			t.Errorf("%q = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEvalStringFallback(t *testing.T) {
	data := map[string]string{"city": "Pune", "answer": "Yes"}

	e, _ := Parse("city == PUNE")
	if !e.Eval(data) {
		t.Error("string equality should ignore case")
	}
	e, _ = Parse("answer != no")
	if !e.Eval(data) {
		t.Error("string inequality failed")
	}
	// Ordering falls back to lexicographic comparison on non-numeric data.
	e, _ = Parse("city > abc")
	if !e.Eval(data) {
		t.Error("lexicographic > failed")
	}
}
