// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package theory

import (
	"github.com/stratalog/stratalog/ast"
	"github.com/stratalog/stratalog/logging"
	"github.com/stratalog/stratalog/metrics"
)

// Kind tags a theory with the validation contract it applies.
type Kind string

const (
	// NonrecursiveKind theories apply full structural validation.
	NonrecursiveKind Kind = "nonrecursive"

	// ActionKind theories permit modal heads and skip negation-safety
	// checking.
	ActionKind Kind = "action"
)

// validator checks a changeset against a theory without mutating it.
type validator func(*Theory, []*ast.Event) ast.Errors

// Theory is a transactional, table-indexed store of rules and facts.
// The three variants (nonrecursive, action, unsafe) share the same
// mutation and lookup logic and differ only in how they validate a
// changeset.
//
// A theory is mutated by at most one logical caller at a time; it
// provides no internal locking.
type Theory struct {
	name       string
	abbr       string
	kind       Kind
	rules      *RuleSet
	schemas    ast.Schemas
	validate   validator
	logger     logging.Logger
	metrics    metrics.Metrics
	generation uint64
}

// Opt configures a Theory.
type Opt func(*Theory)

// WithSchemas sets the sibling-theory registry used for cross-theory
// validation.
func WithSchemas(schemas ast.Schemas) Opt {
	return func(t *Theory) {
		t.schemas = schemas
	}
}

// WithAbbreviation sets the short name used in log output.
func WithAbbreviation(abbr string) Opt {
	return func(t *Theory) {
		t.abbr = abbr
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Opt {
	return func(t *Theory) {
		t.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Metrics) Opt {
	return func(t *Theory) {
		t.metrics = m
	}
}

// NewNonrecursiveTheory returns an empty theory applying full
// structural validation: fact groundedness, arity agreement against
// sibling theories, head safety, and negation safety.
func NewNonrecursiveTheory(name string, opts ...Opt) *Theory {
	return newTheory(name, NonrecursiveKind, validateNonrecursive, opts)
}

// NewActionTheory returns an empty theory with relaxed validation:
// rule heads may carry a modal when the modal is an update (e.g.
// insert[p(x)]), and negation safety is not checked.
func NewActionTheory(name string, opts ...Opt) *Theory {
	return newTheory(name, ActionKind, validateAction, opts)
}

// NewUnsafeTheory returns a nonrecursive theory whose validation
// always reports no errors. Used for trusted bulk-loading paths.
func NewUnsafeTheory(name string, opts ...Opt) *Theory {
	return newTheory(name, NonrecursiveKind, validateNothing, opts)
}

func newTheory(name string, kind Kind, validate validator, opts []Opt) *Theory {
	t := &Theory{
		name:     name,
		kind:     kind,
		rules:    NewRuleSet(),
		validate: validate,
		logger:   logging.NewNoOpLogger(),
		metrics:  metrics.NoOp(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Name returns the theory's name.
func (t *Theory) Name() string {
	return t.name
}

// Abbreviation returns the theory's short name, falling back to the
// name.
func (t *Theory) Abbreviation() string {
	if t.abbr != "" {
		return t.abbr
	}
	return t.name
}

// Kind returns the theory's kind tag.
func (t *Theory) Kind() Kind {
	return t.kind
}

// Generation returns a counter incremented by every effective
// mutation. Callers caching derived results compare generations to
// detect staleness.
func (t *Theory) Generation() uint64 {
	return t.generation
}

// Update applies events in order and returns the subset that changed
// the theory. Rules are reordered for safety before application. An
// error aborts processing of the remaining events and is returned
// with the effective subset so far; events already applied remain
// applied. Callers needing all-or-nothing semantics must pre-validate
// with UpdateWouldCauseErrors.
func (t *Theory) Update(events []*ast.Event) ([]*ast.Event, error) {
	timer := t.metrics.Timer(metrics.TheoryUpdate)
	timer.Start()
	defer timer.Stop()

	var changes []*ast.Event
	for _, event := range events {
		formula, err := ast.ReorderForSafety(event.Formula)
		if err != nil {
			t.logger.Error("update aborted: %v", err)
			return changes, err
		}
		rule, ok := ast.ToRule(formula)
		if !ok {
			err := ast.NewError(ast.TypeErr, event.Formula.Loc(), "not a valid datalog sentence: %v", event.Formula)
			t.logger.Error("update aborted: %v", err)
			return changes, err
		}
		table := rule.Head.TableName()
		var changed bool
		if event.Insert {
			changed = t.rules.AddRule(table, rule)
		} else {
			changed = t.rules.DiscardRule(table, rule)
		}
		if changed {
			t.generation++
			changes = append(changes, event)
			t.logger.WithFields(map[string]interface{}{
				"theory": t.Abbreviation(),
				"table":  table,
			}).Debug("%v", event)
		}
	}
	return changes, nil
}

// Insert applies a single insert event. The return value indicates
// whether the theory changed.
func (t *Theory) Insert(formula ast.Formula) (bool, error) {
	changes, err := t.Update([]*ast.Event{ast.InsertEvent(formula)})
	return len(changes) > 0, err
}

// Delete applies a single delete event. The return value indicates
// whether the theory changed; deleting an absent sentence is a no-op.
func (t *Theory) Delete(formula ast.Formula) (bool, error) {
	changes, err := t.Update([]*ast.Event{ast.DeleteEvent(formula)})
	return len(changes) > 0, err
}

// UpdateWouldCauseErrors returns the errors that applying events
// would produce, without mutating the theory. Recursion safety is not
// checked here; that is the runtime's responsibility, using the
// dependency graph.
func (t *Theory) UpdateWouldCauseErrors(events []*ast.Event) ast.Errors {
	timer := t.metrics.Timer(metrics.TheoryValidate)
	timer.Start()
	defer timer.Stop()
	return t.validate(t, events)
}

// Define replaces the entire contents of the theory with rules.
func (t *Theory) Define(rules []*ast.Rule) ([]*ast.Event, error) {
	t.Empty()
	events := make([]*ast.Event, len(rules))
	for i, rule := range rules {
		events[i] = ast.InsertEvent(rule)
	}
	return t.Update(events)
}

// Empty deletes the contents of the theory.
func (t *Theory) Empty() {
	if t.rules.Len() > 0 {
		t.generation++
	}
	t.rules.Clear()
	t.logger.WithFields(map[string]interface{}{"theory": t.Abbreviation()}).Debug("emptied")
}

// EmptyTables clears the named tables. With invert set, every table
// except those named is cleared instead.
func (t *Theory) EmptyTables(tablenames []string, invert bool) {
	var toClear []string
	if invert {
		keep := make(map[string]struct{}, len(tablenames))
		for _, table := range tablenames {
			keep[table] = struct{}{}
		}
		for _, table := range t.rules.Tables() {
			if _, ok := keep[table]; !ok {
				toClear = append(toClear, table)
			}
		}
	} else {
		toClear = tablenames
	}
	for _, table := range toClear {
		if t.rules.HasTable(table) {
			t.generation++
		}
		t.rules.ClearTable(table)
	}
}

// InitializeTables replaces the contents of the named tables with
// facts: every named table is cleared, then each fact inserted. A
// fact for a table outside tablenames clears that table too, once,
// before its first fact lands. Used for snapshot-style bulk reload;
// facts are not validated.
func (t *Theory) InitializeTables(tablenames []string, facts []*ast.Literal) {
	timer := t.metrics.Timer(metrics.TheoryInitTables)
	timer.Start()
	defer timer.Stop()

	cleared := make(map[string]struct{}, len(tablenames))
	for _, table := range tablenames {
		t.rules.ClearTable(table)
		cleared[table] = struct{}{}
	}

	count := 0
	for _, fact := range facts {
		table := fact.TableName()
		if _, ok := cleared[table]; !ok {
			t.rules.ClearTable(table)
			cleared[table] = struct{}{}
		}
		t.rules.AddRule(table, ast.FactRule(fact))
		count++
	}
	t.generation++

	t.logger.WithFields(map[string]interface{}{
		"theory": t.Abbreviation(),
		"tables": len(cleared),
		"facts":  count,
	}).Info("initialized tables")
}

// Policy returns the stored rules excluding bare facts.
func (t *Theory) Policy() []*ast.Rule {
	var result []*ast.Rule
	for _, rule := range t.Content() {
		if !rule.IsFact() {
			result = append(result, rule)
		}
	}
	return result
}

// Content returns the stored rules, restricted to tablenames when
// given.
func (t *Theory) Content(tablenames ...string) []*ast.Rule {
	if len(tablenames) == 0 {
		tablenames = t.rules.Tables()
	}
	var result []*ast.Rule
	for _, table := range tablenames {
		result = append(result, t.rules.Rules(table, nil)...)
	}
	return result
}

// DefinedTables returns every table with at least one stored rule.
func (t *Theory) DefinedTables() []string {
	return t.rules.Tables()
}

// HeadIndex returns the rules pertinent for top-down evaluation when
// a literal referencing table is at the top of the goal stack,
// filtered by matchLiteral when given. Unknown tables yield an empty
// result, never an error.
func (t *Theory) HeadIndex(table string, matchLiteral *ast.Literal) []*ast.Rule {
	return t.rules.Rules(table, matchLiteral)
}

// Arity returns the argument count of table, inferred from one
// arbitrary stored rule. Uniform arity per table is assumed but not
// enforced; mixed-arity rules for one table go undetected here.
// Returns false if the table is undefined.
func (t *Theory) Arity(table string) (int, bool) {
	rules := t.rules.Rules(table, nil)
	if len(rules) == 0 {
		return 0, false
	}
	return len(rules[0].Head.Args), true
}

// ArityForTheory is like Arity but only considers rules whose head is
// qualified with the given theory name. Returns false if none match.
func (t *Theory) ArityForTheory(table, theory string) (int, bool) {
	for _, rule := range t.rules.Rules(table, nil) {
		if rule.Head.Theory == theory {
			return len(rule.Head.Args), true
		}
	}
	return 0, false
}

// Head returns the literal to unify a goal against.
func (t *Theory) Head(rule *ast.Rule) *ast.Literal {
	return rule.Head
}

// Body returns the literals to push onto the top-down evaluation
// stack.
func (t *Theory) Body(rule *ast.Rule) []*ast.Literal {
	return rule.Body
}

// Contains returns true if the theory stores a sentence structurally
// equal to formula. Bare atoms are compared as facts.
func (t *Theory) Contains(formula ast.Formula) bool {
	rule, ok := ast.ToRule(formula)
	if !ok {
		return false
	}
	return t.rules.Contains(rule.Head.TableName(), rule)
}

func validateNonrecursive(t *Theory, events []*ast.Event) ast.Errors {
	var errs ast.Errors
	for _, event := range events {
		if !ast.IsDatalog(event.Formula) {
			errs = append(errs, ast.NewError(ast.TypeErr, event.Formula.Loc(), "not a valid datalog sentence: %v", event.Formula))
			continue
		}
		if ast.IsAtom(event.Formula) {
			errs = append(errs, ast.FactErrors(event.Formula.(*ast.Literal), t.schemas, t.name)...)
		} else if ast.IsRule(event.Formula) {
			errs = append(errs, ast.RuleErrors(event.Formula.(*ast.Rule), t.schemas, t.name)...)
		}
	}
	return errs
}

// validateAction permits modal update heads and performs no
// negation-safety checking. The missing negation check is a known
// gap inherited from the original engine, not an oversight.
func validateAction(t *Theory, events []*ast.Event) ast.Errors {
	var errs ast.Errors
	for _, event := range events {
		if !ast.IsDatalog(event.Formula) {
			errs = append(errs, ast.NewError(ast.TypeErr, event.Formula.Loc(), "not a valid datalog sentence: %v", event.Formula))
			continue
		}
		if ast.IsAtom(event.Formula) {
			errs = append(errs, ast.FactErrors(event.Formula.(*ast.Literal), t.schemas, t.name)...)
		} else if ast.IsRule(event.Formula) {
			errs = append(errs, ast.RuleHeadHasNoTheory(event.Formula.(*ast.Rule), (*ast.Literal).IsUpdate)...)
		}
	}
	return errs
}

func validateNothing(*Theory, []*ast.Event) ast.Errors {
	return nil
}
