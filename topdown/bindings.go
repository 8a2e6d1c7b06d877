// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package topdown

import (
	"strconv"

	"github.com/stratalog/stratalog/ast"
)

// bindings maps variables to the terms they are bound to. Bound terms
// may themselves be variables; Resolve chases the chain to a constant
// or an unbound variable.
type bindings map[ast.Var]*ast.Term

func newBindings() bindings {
	return bindings{}
}

// Copy returns an independent copy. The evaluator copies before each
// unification attempt so that backtracking never observes bindings
// from a failed branch.
func (b bindings) Copy() bindings {
	cpy := make(bindings, len(b))
	for v, t := range b {
		cpy[v] = t
	}
	return cpy
}

// Resolve chases term through the bindings until a constant or an
// unbound variable is reached.
func (b bindings) Resolve(term *ast.Term) *ast.Term {
	for {
		v, ok := term.Value.(ast.Var)
		if !ok {
			return term
		}
		next, bound := b[v]
		if !bound {
			return term
		}
		term = next
	}
}

// Unify attempts to bind the arguments of a and b to each other. The
// receiver is mutated; callers pass a copy when failure must not leak.
func (b bindings) Unify(a, other *ast.Literal) bool {
	if len(a.Args) != len(other.Args) {
		return false
	}
	for i := range a.Args {
		if !b.unifyTerms(a.Args[i], other.Args[i]) {
			return false
		}
	}
	return true
}

func (b bindings) unifyTerms(x, y *ast.Term) bool {
	x, y = b.Resolve(x), b.Resolve(y)
	if xv, ok := x.Value.(ast.Var); ok {
		if yv, ok := y.Value.(ast.Var); ok && xv == yv {
			return true
		}
		b[xv] = y
		return true
	}
	if yv, ok := y.Value.(ast.Var); ok {
		b[yv] = x
		return true
	}
	return x.Value.Equal(y.Value)
}

// Plug returns lit with every argument resolved through the bindings.
func (b bindings) Plug(lit *ast.Literal) *ast.Literal {
	cpy := lit.Copy()
	for i, arg := range cpy.Args {
		cpy.Args[i] = b.Resolve(arg)
	}
	return cpy
}

// Rename rewrites rule with fresh variables so that distinct rule
// applications never collide (standardize apart). The fresh names use
// a '#' suffix, which the parser cannot produce.
func rename(rule *ast.Rule, counter *int) *ast.Rule {
	*counter++
	suffix := "#" + strconv.Itoa(*counter)
	cpy := rule.Copy()
	renameLiteral(cpy.Head, suffix)
	for _, lit := range cpy.Body {
		renameLiteral(lit, suffix)
	}
	return cpy
}

func renameLiteral(lit *ast.Literal, suffix string) {
	for i, arg := range lit.Args {
		if v, ok := arg.Value.(ast.Var); ok {
			lit.Args[i] = ast.VarTerm(string(v) + suffix)
		}
	}
}
