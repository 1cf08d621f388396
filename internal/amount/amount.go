// Package amount normalizes human-entered numeric strings into comparable
// numbers, including the South-Asian lakh (1,00,000) and crore (1,00,00,000)
// magnitude suffixes commonly used in budget answers.
package amount

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	// Lakh is the multiplier for the "lakh"/"L" suffix.
	Lakh = 100_000
	// Crore is the multiplier for the "crore"/"Cr" suffix.
	Crore = 10_000_000
)

// suffixed matches a numeric prefix followed by a recognized magnitude suffix.
var suffixed = regexp.MustCompile(`^([0-9]*\.?[0-9]+)(l|lac|lakh|lakhs|cr|crore|crores)$`)

// nonNumeric strips everything but digits and dots for the plain-decimal fallback.
var nonNumeric = regexp.MustCompile(`[^0-9.]`)

// Parse interprets a raw human-entered string as a monetary amount.
// It returns the parsed value and true, or 0 and false when the input is
// not an amount. Zero and negative values are not amounts; callers must
// treat "not an amount" as distinct from zero.
func Parse(raw string) (float64, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	// Thousands separators and internal whitespace carry no meaning.
	s = strings.ReplaceAll(s, ",", "")
	s = strings.Join(strings.Fields(s), "")

	// Negative amounts are never valid; reject before the non-numeric strip
	// below would silently drop the sign.
	if strings.HasPrefix(s, "-") {
		return 0, false
	}

	if m := suffixed.FindStringSubmatch(s); m != nil {
		n, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return 0, false
		}
		switch m[2] {
		case "l", "lac", "lakh", "lakhs":
			n *= Lakh
		case "cr", "crore", "crores":
			n *= Crore
		}
		return accept(n)
	}

	// Fallback: treat as plain decimal, ignoring currency symbols and the like.
	stripped := nonNumeric.ReplaceAllString(s, "")
	if stripped == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(stripped, 64)
	if err != nil {
		return 0, false
	}
	return accept(n)
}

func accept(n float64) (float64, bool) {
	if math.IsNaN(n) || math.IsInf(n, 0) || n <= 0 {
		return 0, false
	}
	return n, true
}
