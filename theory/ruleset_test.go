// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package theory

import (
	"reflect"
	"testing"

	"github.com/stratalog/stratalog/ast"
)

func TestRuleSetAddDiscard(t *testing.T) {
	rs := NewRuleSet()
	rule := ast.MustParseRule("p(x) :- q(x)")

	if !rs.AddRule("p", rule) {
		t.Fatalf("Expected AddRule to change the set")
	}
	if rs.AddRule("p", ast.MustParseRule("p(x) :- q(x)")) {
		t.Fatalf("Expected structurally equal duplicate to be a no-op")
	}
	if rs.Len() != 1 {
		t.Fatalf("Expected 1 rule but got: %d", rs.Len())
	}

	if !rs.DiscardRule("p", ast.MustParseRule("p(x) :- q(x)")) {
		t.Fatalf("Expected DiscardRule to change the set")
	}
	if rs.DiscardRule("p", rule) {
		t.Fatalf("Expected discard of absent rule to be a no-op")
	}
}

func TestRuleSetTablesNeverEmpty(t *testing.T) {
	rs := NewRuleSet()
	rs.AddRule("p", ast.MustParseRule("p(1)"))
	rs.AddRule("q", ast.MustParseRule("q(1)"))

	rs.DiscardRule("p", ast.MustParseRule("p(1)"))

	if exp := []string{"q"}; !reflect.DeepEqual(rs.Tables(), exp) {
		t.Fatalf("Expected tables %v but got: %v", exp, rs.Tables())
	}

	rs.ClearTable("q")
	if len(rs.Tables()) != 0 {
		t.Fatalf("Expected no tables but got: %v", rs.Tables())
	}
}

func TestRuleSetMatchLiteralFilter(t *testing.T) {
	rs := NewRuleSet()
	rs.AddRule("p", ast.MustParseRule(`p(1, x) :- q(x)`))
	rs.AddRule("p", ast.MustParseRule(`p(2, x) :- r(x)`))
	rs.AddRule("p", ast.MustParseRule(`p(y, x) :- s(y, x)`))

	rules := rs.Rules("p", ast.MustParseLiteral("p(1, z)"))
	if len(rules) != 2 {
		t.Fatalf("Expected 2 candidate rules but got: %v", rules)
	}
	for _, rule := range rules {
		if rule.String() == `p(2, x) :- r(x)` {
			t.Fatalf("Did not expect rule with incompatible constant: %v", rule)
		}
	}

	// variable-only match literal does not filter
	if rules := rs.Rules("p", ast.MustParseLiteral("p(a, b)")); len(rules) != 3 {
		t.Fatalf("Expected all 3 rules but got: %v", rules)
	}

	if rules := rs.Rules("missing", nil); rules != nil {
		t.Fatalf("Expected nil for unknown table but got: %v", rules)
	}
}

func TestRuleSetContains(t *testing.T) {
	rs := NewRuleSet()
	rs.AddRule("p", ast.MustParseRule("p(x) :- q(x)"))

	if !rs.Contains("p", ast.MustParseRule("p(x) :- q(x)")) {
		t.Fatalf("Expected Contains to use structural equality")
	}
	if rs.Contains("p", ast.MustParseRule("p(x) :- r(x)")) {
		t.Fatalf("Did not expect different rule to be contained")
	}
	if rs.Contains("q", ast.MustParseRule("p(x) :- q(x)")) {
		t.Fatalf("Did not expect rule under a different table")
	}
}
