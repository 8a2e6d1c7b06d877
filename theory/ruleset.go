// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package theory implements the transactional rule store at the core
// of the policy engine: a table-indexed set of rules and facts with
// insert/delete changesets, validation, and the lookup contract
// consumed by the top-down evaluator.
package theory

import (
	"sort"

	"github.com/stratalog/stratalog/ast"
	"github.com/stratalog/stratalog/util"
)

// RuleSet indexes rules by the table their head references. Rules are
// deduplicated by structural equality; a rule is a member of exactly
// one table's set.
type RuleSet struct {
	rules map[string]*util.OrderedSet[string, *ast.Rule]
}

// NewRuleSet returns an empty RuleSet.
func NewRuleSet() *RuleSet {
	return &RuleSet{rules: map[string]*util.OrderedSet[string, *ast.Rule]{}}
}

func ruleKey(rule *ast.Rule) string {
	return rule.String()
}

// AddRule inserts rule under table. The return value indicates
// whether the set changed; inserting a structurally equal duplicate
// is a no-op.
func (rs *RuleSet) AddRule(table string, rule *ast.Rule) bool {
	set, ok := rs.rules[table]
	if !ok {
		set = util.NewOrderedSet[string, *ast.Rule](ruleKey)
		rs.rules[table] = set
	}
	return set.Add(rule)
}

// DiscardRule removes rule from table. The return value indicates
// whether the set changed; discarding an absent rule is a no-op.
func (rs *RuleSet) DiscardRule(table string, rule *ast.Rule) bool {
	set, ok := rs.rules[table]
	if !ok {
		return false
	}
	if !set.Discard(rule) {
		return false
	}
	if set.Len() == 0 {
		delete(rs.rules, table)
	}
	return true
}

// ClearTable removes every rule whose head is table.
func (rs *RuleSet) ClearTable(table string) {
	delete(rs.rules, table)
}

// Clear removes every rule.
func (rs *RuleSet) Clear() {
	rs.rules = map[string]*util.OrderedSet[string, *ast.Rule]{}
}

// Contains returns true if a rule structurally equal to rule is
// stored under table.
func (rs *RuleSet) Contains(table string, rule *ast.Rule) bool {
	set, ok := rs.rules[table]
	return ok && set.Contains(rule)
}

// HasTable returns true if at least one rule is stored under table.
func (rs *RuleSet) HasTable(table string) bool {
	_, ok := rs.rules[table]
	return ok
}

// Rules returns the rules stored under table in insertion order,
// filtered to those whose head could possibly match matchLiteral.
// The filter is a conservative prefilter on ground arguments; arity
// agreement is the matcher's concern and is not enforced here. A nil
// matchLiteral returns every rule of the table.
func (rs *RuleSet) Rules(table string, matchLiteral *ast.Literal) []*ast.Rule {
	set, ok := rs.rules[table]
	if !ok {
		return nil
	}
	if matchLiteral == nil || !hasGroundArg(matchLiteral) {
		return set.Slice()
	}
	var result []*ast.Rule
	set.Iter(func(rule *ast.Rule) bool {
		if headCouldMatch(rule.Head, matchLiteral) {
			result = append(result, rule)
		}
		return false
	})
	return result
}

// Tables returns the tables with at least one stored rule, sorted.
func (rs *RuleSet) Tables() []string {
	tables := make([]string, 0, len(rs.rules))
	for table := range rs.rules {
		tables = append(tables, table)
	}
	sort.Strings(tables)
	return tables
}

// Len returns the total number of stored rules.
func (rs *RuleSet) Len() int {
	n := 0
	for _, set := range rs.rules {
		n += set.Len()
	}
	return n
}

func hasGroundArg(lit *ast.Literal) bool {
	for _, arg := range lit.Args {
		if arg.IsGround() {
			return true
		}
	}
	return false
}

// headCouldMatch returns false only when unification is impossible:
// some argument position holds distinct constants in both literals.
func headCouldMatch(head, match *ast.Literal) bool {
	n := len(head.Args)
	if len(match.Args) < n {
		n = len(match.Args)
	}
	for i := 0; i < n; i++ {
		h, m := head.Args[i], match.Args[i]
		if h.IsGround() && m.IsGround() && !h.Equal(m) {
			return false
		}
	}
	return true
}
