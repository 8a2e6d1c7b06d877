// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"sort"
	"strings"
	"testing"
)

type testSchemas map[string]map[string]int

func (s testSchemas) Arity(theory, table string) (int, bool) {
	arity, ok := s[theory][table]
	return arity, ok
}

func (s testSchemas) Tables(theory string) []string {
	var tables []string
	for table := range s[theory] {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

func (s testSchemas) HasTheory(theory string) bool {
	_, ok := s[theory]
	return ok
}

func TestReorderForSafety(t *testing.T) {
	tests := []struct {
		note     string
		input    string
		expected string
	}{
		{
			note:     "already safe",
			input:    "p(x) :- q(x), not r(x)",
			expected: "p(x) :- q(x), not r(x)",
		},
		{
			note:     "negation moved after binder",
			input:    "p(x) :- not r(x), q(x)",
			expected: "p(x) :- q(x), not r(x)",
		},
		{
			note:     "multiple negations keep order",
			input:    "p(x) :- not r(x), not s(y), q(x), t(y)",
			expected: "p(x) :- q(x), t(y), not r(x), not s(y)",
		},
		{
			note:     "ground negation stays",
			input:    "p :- not q(1), r(2)",
			expected: "p :- not q(1), r(2)",
		},
	}

	for _, tc := range tests {
		result, err := ReorderForSafety(MustParseRule(tc.input))
		if err != nil {
			t.Errorf("%v: unexpected error: %v", tc.note, err)
			continue
		}
		if result.String() != tc.expected {
			t.Errorf("%v: expected %v but got: %v", tc.note, tc.expected, result)
		}
	}
}

func TestReorderForSafetyImpossible(t *testing.T) {
	_, err := ReorderForSafety(MustParseRule("p(x) :- not q(x)"))
	if err == nil {
		t.Fatalf("Expected reorder to fail")
	}
	if !IsError(SafetyErr, err) {
		t.Fatalf("Expected SafetyErr but got: %v", err)
	}
}

func TestReorderForSafetyAtom(t *testing.T) {
	atom := MustParseLiteral("p(1)")
	result, err := ReorderForSafety(atom)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result != Formula(atom) {
		t.Fatalf("Expected atom to pass through unchanged")
	}
}

func TestRuleErrorsSafety(t *testing.T) {
	tests := []struct {
		note     string
		input    string
		expected string
	}{
		{
			note:     "unsafe head variable",
			input:    "p(x, y) :- q(x)",
			expected: "head variable y",
		},
		{
			note:     "unsafe negated variable",
			input:    "p(x) :- q(x), not r(x, z)",
			expected: "variable z of negated literal",
		},
		{
			note:     "modal in body",
			input:    "p(x) :- q(x), insert[r(x)]",
			expected: "modal operator not permitted in rule body",
		},
		{
			note:     "modal head",
			input:    "insert[p(x)] :- q(x)",
			expected: "modal operator not permitted in rule head",
		},
		{
			note:     "qualified head",
			input:    "nova:p(x) :- q(x)",
			expected: "rule head must not reference another policy",
		},
	}

	for _, tc := range tests {
		errs := RuleErrors(MustParseRule(tc.input), nil, "alpha")
		if len(errs) == 0 {
			t.Errorf("%v: expected errors", tc.note)
			continue
		}
		if !strings.Contains(errs.Error(), tc.expected) {
			t.Errorf("%v: expected %q in %v", tc.note, tc.expected, errs)
		}
	}
}

func TestRuleErrorsSafeRule(t *testing.T) {
	if errs := RuleErrors(MustParseRule("p(x) :- q(x), not r(x)"), nil, "alpha"); len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}
}

func TestRuleHeadHasNoTheoryPermit(t *testing.T) {
	rule := MustParseRule("insert[nova:p(x)] :- q(x)")
	if errs := RuleHeadHasNoTheory(rule, nil); len(errs) == 0 {
		t.Fatalf("Expected error without permit")
	}
	permit := func(lit *Literal) bool { return lit.IsUpdate() }
	if errs := RuleHeadHasNoTheory(rule, permit); len(errs) != 0 {
		t.Fatalf("Unexpected errors with permit: %v", errs)
	}
}

func TestLiteralSchemaConsistency(t *testing.T) {
	schemas := testSchemas{
		"alpha": {"p": 1, "q": 1},
		"nova":  {"servers": 2, "flavors": 1},
	}

	tests := []struct {
		note     string
		input    string
		expected string
	}{
		{
			note:     "known table ok",
			input:    "p(x) :- nova:servers(x, y), q(x)",
			expected: "",
		},
		{
			note:     "wrong arity",
			input:    "p(x) :- nova:servers(x), q(x)",
			expected: "table nova:servers takes 2 argument(s)",
		},
		{
			note:     "unknown table with suggestion",
			input:    "p(x) :- nova:serverz(x, y), q(x)",
			expected: "table nova:serverz undefined, did you mean nova:servers?",
		},
		{
			note:     "unknown policy",
			input:    "p(x) :- neutron:ports(x), q(x)",
			expected: "policy neutron does not exist",
		},
		{
			note:     "own tables defined by use",
			input:    "w(x) :- q(x)",
			expected: "",
		},
	}

	for _, tc := range tests {
		errs := RuleErrors(MustParseRule(tc.input), schemas, "alpha")
		if tc.expected == "" {
			if len(errs) != 0 {
				t.Errorf("%v: unexpected errors: %v", tc.note, errs)
			}
			continue
		}
		if len(errs) == 0 || !strings.Contains(errs.Error(), tc.expected) {
			t.Errorf("%v: expected %q in %v", tc.note, tc.expected, errs)
		}
	}
}

func TestFactErrors(t *testing.T) {
	if errs := FactErrors(MustParseLiteral("p(1)"), nil, "alpha"); len(errs) != 0 {
		t.Fatalf("Unexpected errors: %v", errs)
	}

	errs := FactErrors(MustParseLiteral("p(x)"), nil, "alpha")
	if len(errs) != 1 {
		t.Fatalf("Expected 1 error but got: %v", errs)
	}
	if !strings.Contains(errs[0].Message, "not ground") {
		t.Fatalf("Expected ground error but got: %v", errs[0])
	}

	schemas := testSchemas{"alpha": {"p": 2}}
	errs = FactErrors(MustParseLiteral("p(1)"), schemas, "alpha")
	if len(errs) != 1 || !strings.Contains(errs[0].Message, "takes 2 argument(s)") {
		t.Fatalf("Expected arity error but got: %v", errs)
	}
}
