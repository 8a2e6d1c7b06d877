// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"strings"

	"github.com/stratalog/stratalog/internal/levenshtein"
)

// maxTableSuggestionDistance is the levenshtein distance below which an
// unknown-table error suggests a defined table instead.
const maxTableSuggestionDistance = 3

// Schemas reports the tables defined across sibling theories and their
// arities. Implemented by the runtime's policy registry; validation
// treats a nil Schemas as "no cross-theory information available" and
// skips the corresponding checks.
type Schemas interface {
	// Arity returns the argument count of table in theory, inferred
	// from the stored rules.
	Arity(theory, table string) (int, bool)

	// Tables returns the tables defined in theory.
	Tables(theory string) []string

	// HasTheory returns true if a theory with the given name exists.
	HasTheory(theory string) bool
}

// ReorderForSafety rewrites the rule body so that every variable of a
// negated literal is bound by an earlier positive literal. Literals
// keep their relative order wherever the ordering is already safe.
// Returns a SafetyErr if no safe ordering exists; facts and bare atoms
// are returned unchanged.
func ReorderForSafety(formula Formula) (Formula, error) {
	rule, ok := formula.(*Rule)
	if !ok || rule.IsFact() {
		return formula, nil
	}

	bound := NewVarSet()
	remaining := make([]*Literal, len(rule.Body))
	copy(remaining, rule.Body)
	reordered := make([]*Literal, 0, len(rule.Body))

	for len(remaining) > 0 {
		var deferred []*Literal
		for _, lit := range remaining {
			if lit.Negated && len(lit.Vars(nil).Diff(bound)) > 0 {
				deferred = append(deferred, lit)
				continue
			}
			bound.Update(lit.Vars(nil))
			reordered = append(reordered, lit)
		}
		if len(deferred) == len(remaining) {
			return nil, NewError(SafetyErr, rule.Location, "could not reorder rule %v for safety", rule)
		}
		remaining = deferred
	}

	for i := range reordered {
		if reordered[i] != rule.Body[i] {
			cpy := *rule
			cpy.Body = reordered
			return &cpy, nil
		}
	}
	return rule, nil
}

// FactErrors returns the structural errors that would result from
// storing atom as a fact: the atom must be ground and must agree with
// the sibling-theory schemas. theory names the theory the fact is
// destined for.
func FactErrors(atom *Literal, schemas Schemas, theory string) Errors {
	var errs Errors
	if !atom.IsGround() {
		errs = append(errs, NewError(TypeErr, atom.Location, "fact is not ground: %v", atom))
	}
	errs = append(errs, literalSchemaConsistency(atom, schemas, theory)...)
	return errs
}

// RuleErrors returns the structural errors that would result from
// storing rule: schema consistency of every literal, head safety,
// negation safety, and head/body modal placement.
func RuleErrors(rule *Rule, schemas Schemas, theory string) Errors {
	var errs Errors
	errs = append(errs, RuleHeadHasNoTheory(rule, nil)...)
	if rule.Head.Modal != "" {
		errs = append(errs, NewError(TypeErr, rule.Head.Location, "modal operator not permitted in rule head: %v", rule.Head))
	}
	errs = append(errs, literalSchemaConsistency(rule.Head, schemas, theory)...)
	for _, lit := range rule.Body {
		if lit.Modal != "" {
			errs = append(errs, NewError(TypeErr, lit.Location, "modal operator not permitted in rule body: %v", lit))
		}
		errs = append(errs, literalSchemaConsistency(lit, schemas, theory)...)
	}
	errs = append(errs, ruleHeadSafety(rule)...)
	errs = append(errs, RuleNegationSafety(rule)...)
	return errs
}

// RuleHeadHasNoTheory returns an error if the rule head references
// another policy. permitHead, if non-nil, admits specific heads;
// action theories pass (*Literal).IsUpdate to allow heads such as
// insert[p(x)].
func RuleHeadHasNoTheory(rule *Rule, permitHead func(*Literal) bool) Errors {
	if rule.Head.Theory == "" {
		return nil
	}
	if permitHead != nil && permitHead(rule.Head) {
		return nil
	}
	return Errors{NewError(TypeErr, rule.Head.Location, "rule head must not reference another policy: %v", rule.Head)}
}

// RuleNegationSafety returns an error for every variable of a negated
// body literal that does not appear in a positive body literal.
func RuleNegationSafety(rule *Rule) Errors {
	positive := NewVarSet()
	for _, lit := range rule.Body {
		if !lit.Negated {
			positive.Update(lit.Vars(nil))
		}
	}

	var errs Errors
	for _, lit := range rule.Body {
		if !lit.Negated {
			continue
		}
		for _, v := range lit.Vars(nil).Diff(positive).Sorted() {
			errs = append(errs, NewError(SafetyErr, lit.Location, "variable %v of negated literal %v does not appear in a positive literal", v, lit))
		}
	}
	return errs
}

func ruleHeadSafety(rule *Rule) Errors {
	positive := NewVarSet()
	for _, lit := range rule.Body {
		if !lit.Negated {
			positive.Update(lit.Vars(nil))
		}
	}

	var errs Errors
	for _, v := range rule.Head.Vars(nil).Diff(positive).Sorted() {
		errs = append(errs, NewError(SafetyErr, rule.Head.Location, "head variable %v does not appear in a positive literal in the body", v))
	}
	return errs
}

// literalSchemaConsistency checks a literal's table reference against
// the sibling-theory schemas. Tables in the literal's own theory are
// defined by use and never produce unknown-table errors, but a stored
// arity must agree.
func literalSchemaConsistency(lit *Literal, schemas Schemas, theory string) Errors {
	if schemas == nil {
		return nil
	}

	owner := lit.Theory
	if owner == "" {
		owner = theory
	}

	if !schemas.HasTheory(owner) {
		if lit.Theory != "" && lit.Theory != theory {
			return Errors{NewError(TypeErr, lit.Location, "policy %v does not exist", lit.Theory)}
		}
		return nil
	}

	arity, known := schemas.Arity(owner, lit.Table)
	if !known {
		if lit.Theory == "" || lit.Theory == theory {
			return nil
		}
		msg := "table " + lit.TableName() + " undefined"
		if closest := levenshtein.Closest(maxTableSuggestionDistance, lit.Table, schemas.Tables(owner)); len(closest) > 0 {
			if len(closest) == 1 {
				msg += ", did you mean " + owner + ":" + closest[0] + "?"
			} else {
				msg += ", did you mean one of " + owner + ":" + strings.Join(closest, ", "+owner+":") + "?"
			}
		}
		return Errors{NewError(TypeErr, lit.Location, "%s", msg)}
	}

	if len(lit.Args) != arity {
		return Errors{NewError(TypeErr, lit.Location, "table %v takes %d argument(s) but %v has %d", lit.TableName(), arity, lit, len(lit.Args))}
	}
	return nil
}
