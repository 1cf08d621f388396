// Package expr parses and evaluates the single-comparison condition
// expressions used by flow condition steps.
//
// The grammar is one comparison of the form "<field> <op> <value>" where op
// is one of ==, !=, >=, <=, >, < or contains, and value is a bare token or
// a single- or double-quoted string literal. There are no boolean
// connectives and no nesting.
package expr

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sendloop/waflow/internal/amount"
)

// Op is a comparison operator recognized by the expression grammar.
type Op string

const (
	OpEq       Op = "=="
	OpNe       Op = "!="
	OpGte      Op = ">="
	OpLte      Op = "<="
	OpGt       Op = ">"
	OpLt       Op = "<"
	OpContains Op = "contains"
)

// pattern matches "<field> <op> <value>". Multi-character operators are
// listed before their single-character prefixes so ">=" wins over ">".
// The value is a quoted string literal or a single bare token; anything
// else (boolean connectives, nesting) fails to parse.
var pattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*(==|!=|>=|<=|>|<|contains)\s*('[^']*'|"[^"]*"|\S+)\s*$`)

// Expression is one parsed comparison against a conversation's collected data.
type Expression struct {
	Field string
	Op    Op
	Value string // literal with surrounding quotes stripped
}

// Parse parses an expression string. It returns an error when the text does
// not match the single-comparison grammar.
func Parse(s string) (*Expression, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return nil, fmt.Errorf("expression %q does not match <field> <op> <value>", s)
	}
	return &Expression{
		Field: m[1],
		Op:    Op(m[2]),
		Value: unquote(m[3]),
	}, nil
}

// unquote strips one matching pair of single or double quotes.
func unquote(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// Eval evaluates the expression against the collected field values.
//
// A missing or empty field never satisfies any comparator, including !=.
// For the six ordering operators, both sides are compared numerically when
// both parse as amounts; otherwise a case-insensitive lexicographic
// comparison is used so the operators still work on free-text fields.
func (e *Expression) Eval(data map[string]string) bool {
	actual, ok := data[e.Field]
	if !ok || actual == "" {
		return false
	}

	if e.Op == OpContains {
		return strings.Contains(strings.ToLower(actual), strings.ToLower(e.Value))
	}

	if av, aok := amount.Parse(actual); aok {
		if ev, eok := amount.Parse(e.Value); eok {
			return compareFloats(av, ev, e.Op)
		}
	}
	return compareStrings(strings.ToLower(actual), strings.ToLower(e.Value), e.Op)
}

func compareFloats(a, b float64, op Op) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	}
	return false
}

func compareStrings(a, b string, op Op) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGte:
		return a >= b
	case OpLte:
		return a <= b
	case OpGt:
		return a > b
	case OpLt:
		return a < b
	}
	return false
}
