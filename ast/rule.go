// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package ast

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Modal operation names permitted on literals. Modal literals appear as
// heads in action policies (e.g. insert[p(x)] :- q(x)) and as action
// invocations.
const (
	ModalInsert  = "insert"
	ModalDelete  = "delete"
	ModalExecute = "execute"
)

// Formula is implemented by the top level sentence types: *Literal
// (an atom) and *Rule.
type Formula interface {
	fmt.Stringer

	// Loc returns the source location of the sentence.
	Loc() *Location

	formulaNode()
}

// Literal represents a possibly negated atom: a table reference plus an
// ordered argument list. Theory qualifies the table with the policy that
// defines it; Modal wraps the atom in an operation (insert, delete,
// execute).
type Literal struct {
	Negated  bool      `json:"negated,omitempty"`
	Modal    string    `json:"modal,omitempty"`
	Theory   string    `json:"theory,omitempty"`
	Table    string    `json:"table"`
	Args     []*Term   `json:"args,omitempty"`
	Location *Location `json:"-"`
}

// Atom returns a new positive, unqualified literal for table with the
// given argument terms.
func Atom(table string, args ...*Term) *Literal {
	return &Literal{Table: table, Args: args}
}

func (lit *Literal) formulaNode() {}

// Loc returns the source location of the literal.
func (lit *Literal) Loc() *Location {
	return lit.Location
}

// TableName returns the table reference including the theory qualifier
// if one is present, e.g. "nova:servers".
func (lit *Literal) TableName() string {
	if lit.Theory != "" {
		return lit.Theory + ":" + lit.Table
	}
	return lit.Table
}

// IsUpdate returns true if the literal's modal is a state mutation
// (insert or delete).
func (lit *Literal) IsUpdate() bool {
	return lit.Modal == ModalInsert || lit.Modal == ModalDelete
}

// IsGround returns true if no argument is a variable.
func (lit *Literal) IsGround() bool {
	for _, arg := range lit.Args {
		if !arg.IsGround() {
			return false
		}
	}
	return true
}

// Equal returns true if this literal equals the other literal
// structurally. Locations are ignored.
func (lit *Literal) Equal(other *Literal) bool {
	if lit.Negated != other.Negated || lit.Modal != other.Modal ||
		lit.Theory != other.Theory || lit.Table != other.Table ||
		len(lit.Args) != len(other.Args) {
		return false
	}
	for i := range lit.Args {
		if !lit.Args[i].Equal(other.Args[i]) {
			return false
		}
	}
	return true
}

// Hash returns the hash code of the literal.
func (lit *Literal) Hash() int {
	return int(xxhash.Sum64String(lit.String()))
}

// Complement returns a copy of this literal with the negation flipped.
func (lit *Literal) Complement() *Literal {
	cpy := lit.Copy()
	cpy.Negated = !lit.Negated
	return cpy
}

// Copy returns a deep copy of the literal.
func (lit *Literal) Copy() *Literal {
	cpy := *lit
	cpy.Args = make([]*Term, len(lit.Args))
	for i := range lit.Args {
		cpy.Args[i] = lit.Args[i].Copy()
	}
	return &cpy
}

// Vars adds the variables appearing in the literal's arguments to vs
// and returns it. Pass nil to allocate.
func (lit *Literal) Vars(vs VarSet) VarSet {
	if vs == nil {
		vs = NewVarSet()
	}
	for _, arg := range lit.Args {
		if v, ok := arg.Value.(Var); ok {
			vs.Add(v)
		}
	}
	return vs
}

func (lit *Literal) String() string {
	var buf strings.Builder
	if lit.Negated {
		buf.WriteString("not ")
	}
	if lit.Modal != "" {
		buf.WriteString(lit.Modal)
		buf.WriteString("[")
	}
	buf.WriteString(lit.TableName())
	if len(lit.Args) > 0 {
		buf.WriteString("(")
		for i, arg := range lit.Args {
			if i > 0 {
				buf.WriteString(", ")
			}
			buf.WriteString(arg.String())
		}
		buf.WriteString(")")
	}
	if lit.Modal != "" {
		buf.WriteString("]")
	}
	return buf.String()
}

// Rule represents a head literal, a body of literals, and source
// provenance. A rule with an empty body is a fact.
type Rule struct {
	Head     *Literal   `json:"head"`
	Body     []*Literal `json:"body,omitempty"`
	Location *Location  `json:"-"`
}

// NewRule returns a new Rule object.
func NewRule(head *Literal, body ...*Literal) *Rule {
	return &Rule{Head: head, Body: body}
}

// FactRule wraps a bare atom into a rule with an empty body.
func FactRule(atom *Literal) *Rule {
	return &Rule{Head: atom, Location: atom.Location}
}

func (rule *Rule) formulaNode() {}

// Loc returns the source location of the rule.
func (rule *Rule) Loc() *Location {
	return rule.Location
}

// IsFact returns true if the rule has an empty body.
func (rule *Rule) IsFact() bool {
	return len(rule.Body) == 0
}

// IsGround returns true if the head and every body literal is ground.
func (rule *Rule) IsGround() bool {
	if !rule.Head.IsGround() {
		return false
	}
	for _, lit := range rule.Body {
		if !lit.IsGround() {
			return false
		}
	}
	return true
}

// Equal returns true if this rule equals the other rule structurally.
// Locations are ignored.
func (rule *Rule) Equal(other *Rule) bool {
	if !rule.Head.Equal(other.Head) || len(rule.Body) != len(other.Body) {
		return false
	}
	for i := range rule.Body {
		if !rule.Body[i].Equal(other.Body[i]) {
			return false
		}
	}
	return true
}

// Hash returns the hash code of the rule.
func (rule *Rule) Hash() int {
	return int(xxhash.Sum64String(rule.String()))
}

// Copy returns a deep copy of the rule.
func (rule *Rule) Copy() *Rule {
	cpy := *rule
	cpy.Head = rule.Head.Copy()
	cpy.Body = make([]*Literal, len(rule.Body))
	for i := range rule.Body {
		cpy.Body[i] = rule.Body[i].Copy()
	}
	return &cpy
}

// Vars adds the variables appearing anywhere in the rule to vs and
// returns it. Pass nil to allocate.
func (rule *Rule) Vars(vs VarSet) VarSet {
	vs = rule.Head.Vars(vs)
	for _, lit := range rule.Body {
		vs = lit.Vars(vs)
	}
	return vs
}

func (rule *Rule) String() string {
	if rule.IsFact() {
		return rule.Head.String()
	}
	parts := make([]string, len(rule.Body))
	for i, lit := range rule.Body {
		parts[i] = lit.String()
	}
	return rule.Head.String() + " :- " + strings.Join(parts, ", ")
}

// Event represents a single requested mutation of a theory: the insert
// or delete of one sentence. Target optionally names the theory the
// mutation is destined for.
type Event struct {
	Formula Formula
	Insert  bool
	Target  string
}

// InsertEvent returns an insert Event for formula.
func InsertEvent(formula Formula) *Event {
	return &Event{Formula: formula, Insert: true}
}

// DeleteEvent returns a delete Event for formula.
func DeleteEvent(formula Formula) *Event {
	return &Event{Formula: formula, Insert: false}
}

func (event *Event) String() string {
	op := "delete"
	if event.Insert {
		op = "insert"
	}
	if event.Target != "" {
		return fmt.Sprintf("event(%v, %v, target=%v)", op, event.Formula, event.Target)
	}
	return fmt.Sprintf("event(%v, %v)", op, event.Formula)
}

// IsAtom returns true if the formula is a non-negated literal.
func IsAtom(formula Formula) bool {
	lit, ok := formula.(*Literal)
	return ok && !lit.Negated
}

// IsRule returns true if the formula is a rule.
func IsRule(formula Formula) bool {
	_, ok := formula.(*Rule)
	return ok
}

// IsDatalog returns true if the formula is a valid datalog sentence: a
// bare atom, or a rule whose head is not negated.
func IsDatalog(formula Formula) bool {
	switch f := formula.(type) {
	case *Literal:
		return !f.Negated
	case *Rule:
		return f.Head != nil && !f.Head.Negated
	default:
		return false
	}
}

// ToRule converts a formula into rule form: bare atoms become rules
// with empty bodies, rules pass through.
func ToRule(formula Formula) (*Rule, bool) {
	switch f := formula.(type) {
	case *Literal:
		if f.Negated {
			return nil, false
		}
		return FactRule(f), true
	case *Rule:
		return f, true
	default:
		return nil, false
	}
}
