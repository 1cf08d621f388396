package util

import (
	"strings"
	"testing"
)

func TestParseBoolEnv(t *testing.T) {
	cases := []struct {
		value string
		def   bool
		want  bool
	}{
		{"true", false, true},
		{"1", false, true},
		{"YES", false, true},
		{"on", false, true},
		{"false", true, false},
		{"0", true, false},
		{"No", true, false},
		{"off", true, false},
		{"", true, true},
		{"", false, false},
		{"maybe", true, true},
	}
	for _, tc := range cases {
		t.Setenv("WAFLOW_TEST_BOOL", tc.value)
		if got := ParseBoolEnv("WAFLOW_TEST_BOOL", tc.def); got != tc.want {
			t.Errorf("ParseBoolEnv(%q, %v) = %v, want %v", tc.value, tc.def, got, tc.want)
		}
	}
}

func TestGenerateRandomID(t *testing.T) {
	id := GenerateRandomID("step-", 8)
	if !strings.HasPrefix(id, "step-") || len(id) != len("step-")+8 {
		t.Errorf("GenerateRandomID = %q", id)
	}
	for _, r := range strings.TrimPrefix(id, "step-") {
		if !strings.ContainsRune("0123456789abcdef", r) {
			t.Errorf("non-hex character %q in %q", r, id)
		}
	}

	if GenerateRandomHex(0) != "" || GenerateRandomHex(-3) != "" {
		t.Error("non-positive lengths should yield an empty string")
	}

	// Collisions across a handful of draws would indicate a broken generator.
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		v := GenerateRandomHex(16)
		if seen[v] {
			t.Fatalf("duplicate random hex %q", v)
		}
		seen[v] = true
	}
}
