// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package topdown

import (
	"context"
	"reflect"
	"testing"

	"github.com/stratalog/stratalog/ast"
	"github.com/stratalog/stratalog/theory"
)

func testTheory(t *testing.T, module string) *theory.Theory {
	t.Helper()
	th := theory.NewNonrecursiveTheory("test")
	if _, err := th.Define(ast.MustParseModule(module)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return th
}

func assertSelect(t *testing.T, e *Evaluator, query string, exp []string) {
	t.Helper()
	answers, err := e.Select(context.Background(), ast.MustParseLiteral(query))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	result := make([]string, len(answers))
	for i, answer := range answers {
		result[i] = answer.String()
	}
	if !reflect.DeepEqual(result, exp) {
		t.Fatalf("Expected %v but got: %v", exp, result)
	}
}

func TestEvalFacts(t *testing.T) {
	th := testTheory(t, `
		p(1)
		p(2)
		q(3)
	`)
	e := New(th)

	assertSelect(t, e, "p(x)", []string{"p(1)", "p(2)"})
	assertSelect(t, e, "p(1)", []string{"p(1)"})
	assertSelect(t, e, "p(9)", []string{})
	assertSelect(t, e, "missing(x)", []string{})
}

func TestEvalRuleChaining(t *testing.T) {
	th := testTheory(t, `
		parent("alice", "bob")
		parent("bob", "carol")
		grandparent(x, z) :- parent(x, y), parent(y, z)
	`)
	e := New(th)

	assertSelect(t, e, "grandparent(x, y)", []string{`grandparent("alice", "carol")`})
}

func TestEvalConjunction(t *testing.T) {
	th := testTheory(t, `
		server("web")
		server("db")
		healthy("db")
	`)
	e := New(th)

	results, err := e.Query(context.Background(), ast.MustParseModule("x(y) :- server(y), healthy(y)")[0].Body)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 result but got: %v", results)
	}
	if term := results[0][ast.Var("y")]; term.String() != `"db"` {
		t.Fatalf("Expected y bound to \"db\" but got: %v", term)
	}
}

func TestEvalNegationAsFailure(t *testing.T) {
	th := testTheory(t, `
		server("web")
		server("db")
		healthy("db")
		error(x) :- server(x), not healthy(x)
	`)
	e := New(th)

	assertSelect(t, e, "error(x)", []string{`error("web")`})
}

func TestEvalNegatedGoalNotGround(t *testing.T) {
	th := testTheory(t, `p(1)`)
	e := New(th)

	_, err := e.Query(context.Background(), []*ast.Literal{ast.MustParseLiteral("not p(x)")})
	if err == nil {
		t.Fatalf("Expected error for non-ground negated goal")
	}
	if !ast.IsError(ast.SafetyErr, err) {
		t.Fatalf("Expected SafetyErr but got: %v", err)
	}
}

func TestEvalDepthGuard(t *testing.T) {
	// recursion is rejected by the runtime before evaluation; the
	// guard protects direct, uncertified use
	th := theory.NewUnsafeTheory("test")
	if _, err := th.Insert(ast.MustParseRule("p(x) :- p(x)")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	e := New(th, WithMaxDepth(32))

	_, err := e.Select(context.Background(), ast.MustParseLiteral("p(1)"))
	if err == nil {
		t.Fatalf("Expected depth guard error")
	}
	if !ast.IsError(ast.RecursionErr, err) {
		t.Fatalf("Expected RecursionErr but got: %v", err)
	}
}

func TestEvalStandardizeApart(t *testing.T) {
	// both rules use variable x; a shared namespace would corrupt
	// bindings across applications
	th := testTheory(t, `
		p(x) :- q(x)
		q(x) :- r(x)
		r(1)
		r(2)
	`)
	e := New(th)

	assertSelect(t, e, "p(x)", []string{"p(1)", "p(2)"})
}

func TestEvalAnswerCache(t *testing.T) {
	th := testTheory(t, `p(1)`)
	e := New(th)

	assertSelect(t, e, "p(x)", []string{"p(1)"})
	assertSelect(t, e, "p(x)", []string{"p(1)"})

	// mutation advances the generation and drops cached answers
	if _, err := th.Insert(ast.MustParseLiteral("p(2)")); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	assertSelect(t, e, "p(x)", []string{"p(1)", "p(2)"})
}

func TestEvalCancellation(t *testing.T) {
	th := testTheory(t, `p(1)`)
	e := New(th)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Query(ctx, []*ast.Literal{ast.MustParseLiteral("p(x)")}); err == nil {
		t.Fatalf("Expected context error")
	}
}

func TestEvalArityMismatchFailsUnification(t *testing.T) {
	th := testTheory(t, `p(1, 2)`)
	e := New(th)

	assertSelect(t, e, "p(x)", []string{})
}
