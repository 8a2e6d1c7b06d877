// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package runtime wires the rule theories, the dependency graph, and
// the evaluator into one engine: it routes changesets to named
// policies, maintains table-dependency edges from rule bodies, and
// certifies that the rule set is safely evaluable before answering
// queries.
package runtime

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stratalog/stratalog/ast"
	"github.com/stratalog/stratalog/graph"
	"github.com/stratalog/stratalog/logging"
	"github.com/stratalog/stratalog/metrics"
	"github.com/stratalog/stratalog/theory"
	"github.com/stratalog/stratalog/topdown"
)

// DefaultPolicy is the policy mutations and queries target when the
// caller does not name one.
const DefaultPolicy = "classify"

// ActionPolicy is the built-in action theory.
const ActionPolicy = "action"

// NegLabel marks dependency edges crossing a negation. Stratification
// must strictly increase across these edges.
const NegLabel = "neg"

// Params stores the configuration for an Engine instance.
type Params struct {
	Config  *Config
	Logger  logging.Logger
	Metrics metrics.Metrics

	// Paths are policy files loaded at startup, in addition to the
	// config file's.
	Paths []string
}

// Engine holds the named theories and the dependency graph derived
// from their rules.
//
// Engine is mutated by one logical caller at a time; it provides no
// internal locking.
type Engine struct {
	config     *Config
	logger     logging.Logger
	metrics    metrics.Metrics
	theories   map[string]*theory.Theory
	evaluators map[string]*topdown.Evaluator
	graph      *graph.BagGraph
	loaded     []string
	certified  bool
}

// NewEngine returns an Engine with the built-in classify and action
// policies.
func NewEngine(params Params) *Engine {
	if params.Config == nil {
		params.Config = &Config{}
	}
	if params.Logger == nil {
		params.Logger = logging.NewNoOpLogger()
	}
	if params.Metrics == nil {
		params.Metrics = metrics.New()
	}
	e := &Engine{
		config:     params.Config,
		logger:     params.Logger,
		metrics:    params.Metrics,
		theories:   map[string]*theory.Theory{},
		evaluators: map[string]*topdown.Evaluator{},
		graph:      graph.NewBag(),
	}
	e.theories[DefaultPolicy] = theory.NewNonrecursiveTheory(DefaultPolicy,
		theory.WithSchemas(e), theory.WithLogger(e.logger), theory.WithMetrics(e.metrics))
	e.theories[ActionPolicy] = theory.NewActionTheory(ActionPolicy,
		theory.WithSchemas(e), theory.WithLogger(e.logger), theory.WithMetrics(e.metrics))
	return e
}

// Init loads the policy paths given in the params and the config.
func (e *Engine) Init(params Params) error {
	paths := append(append([]string{}, e.config.Policies...), params.Paths...)
	if len(paths) == 0 {
		return nil
	}
	return e.LoadPaths(paths)
}

// DefaultPolicyName returns the policy unqualified operations target.
func (e *Engine) DefaultPolicyName() string {
	if e.config.DefaultPolicy != "" {
		return e.config.DefaultPolicy
	}
	return DefaultPolicy
}

// CreatePolicy adds an empty theory under name.
func (e *Engine) CreatePolicy(name string, kind theory.Kind) (*theory.Theory, error) {
	if _, ok := e.theories[name]; ok {
		return nil, fmt.Errorf("policy %v already exists", name)
	}
	var th *theory.Theory
	switch kind {
	case theory.ActionKind:
		th = theory.NewActionTheory(name, theory.WithSchemas(e), theory.WithLogger(e.logger), theory.WithMetrics(e.metrics))
	default:
		th = theory.NewNonrecursiveTheory(name, theory.WithSchemas(e), theory.WithLogger(e.logger), theory.WithMetrics(e.metrics))
	}
	e.theories[name] = th
	return th, nil
}

// DeletePolicy removes the named theory and withdraws its dependency
// edges.
func (e *Engine) DeletePolicy(name string) error {
	th, ok := e.theories[name]
	if !ok {
		return fmt.Errorf("policy %v does not exist", name)
	}
	for _, rule := range th.Content() {
		e.deleteRuleEdges(rule)
	}
	delete(e.theories, name)
	delete(e.evaluators, name)
	e.certified = false
	return nil
}

// Policy returns the named theory.
func (e *Engine) Policy(name string) (*theory.Theory, bool) {
	th, ok := e.theories[name]
	return th, ok
}

// Policies returns the policy names, sorted.
func (e *Engine) Policies() []string {
	names := make([]string, 0, len(e.theories))
	for name := range e.theories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Arity implements ast.Schemas over the policy registry.
func (e *Engine) Arity(policy, table string) (int, bool) {
	th, ok := e.theories[policy]
	if !ok {
		return 0, false
	}
	return th.Arity(table)
}

// Tables implements ast.Schemas over the policy registry.
func (e *Engine) Tables(policy string) []string {
	th, ok := e.theories[policy]
	if !ok {
		return nil
	}
	return th.DefinedTables()
}

// HasTheory implements ast.Schemas over the policy registry.
func (e *Engine) HasTheory(policy string) bool {
	_, ok := e.theories[policy]
	return ok
}

// Graph returns the table dependency graph.
func (e *Engine) Graph() *graph.BagGraph {
	return e.graph
}

// Insert parses input and applies it as an insert changeset to the
// named policy. Validation errors reject the whole changeset before
// any mutation.
func (e *Engine) Insert(input, policy string) (bool, error) {
	formula, err := ast.ParseStatement(input)
	if err != nil {
		return false, err
	}
	return e.InsertFormula(formula, policy)
}

// InsertFormula is Insert for an already-parsed sentence.
func (e *Engine) InsertFormula(formula ast.Formula, policy string) (bool, error) {
	return e.apply([]*ast.Event{ast.InsertEvent(formula)}, policy)
}

// Delete parses input and applies it as a delete changeset to the
// named policy.
func (e *Engine) Delete(input, policy string) (bool, error) {
	formula, err := ast.ParseStatement(input)
	if err != nil {
		return false, err
	}
	return e.DeleteFormula(formula, policy)
}

// DeleteFormula is Delete for an already-parsed sentence.
func (e *Engine) DeleteFormula(formula ast.Formula, policy string) (bool, error) {
	return e.apply([]*ast.Event{ast.DeleteEvent(formula)}, policy)
}

// Update validates and applies a changeset to the named policy,
// returning the effective subset. Unlike raw theory.Update, the
// changeset is pre-validated, so a validation failure mutates
// nothing.
func (e *Engine) Update(events []*ast.Event, policy string) ([]*ast.Event, error) {
	th, ok := e.theories[policy]
	if !ok {
		return nil, fmt.Errorf("policy %v does not exist", policy)
	}
	if errs := th.UpdateWouldCauseErrors(events); len(errs) > 0 {
		return nil, errs
	}
	changes, err := th.Update(events)
	e.applyGraphDeltas(changes)
	return changes, err
}

func (e *Engine) apply(events []*ast.Event, policy string) (bool, error) {
	changes, err := e.Update(events, policy)
	return len(changes) > 0, err
}

// Define replaces the entire contents of the named policy with rules
// and rebuilds its dependency edges.
func (e *Engine) Define(rules []*ast.Rule, policy string) error {
	th, ok := e.theories[policy]
	if !ok {
		return fmt.Errorf("policy %v does not exist", policy)
	}
	events := make([]*ast.Event, len(rules))
	for i, rule := range rules {
		events[i] = ast.InsertEvent(rule)
	}
	if errs := th.UpdateWouldCauseErrors(events); len(errs) > 0 {
		return errs
	}
	for _, rule := range th.Content() {
		e.deleteRuleEdges(rule)
	}
	defined, err := th.Define(rules)
	e.applyGraphDeltas(defined)
	return err
}

func (e *Engine) applyGraphDeltas(changes []*ast.Event) {
	for _, event := range changes {
		rule, ok := ast.ToRule(event.Formula)
		if !ok {
			continue
		}
		if event.Insert {
			e.insertRuleEdges(rule)
		} else {
			e.deleteRuleEdges(rule)
		}
	}
	if len(changes) > 0 {
		e.certified = false
	}
}

func (e *Engine) insertRuleEdges(rule *ast.Rule) {
	head := rule.Head.TableName()
	for _, lit := range rule.Body {
		e.graph.AddEdge(head, lit.TableName(), edgeLabel(lit))
	}
}

func (e *Engine) deleteRuleEdges(rule *ast.Rule) {
	head := rule.Head.TableName()
	for _, lit := range rule.Body {
		e.graph.DeleteEdge(head, lit.TableName(), edgeLabel(lit))
	}
}

func edgeLabel(lit *ast.Literal) string {
	if lit.Negated {
		return NegLabel
	}
	return ""
}

// Certify checks that the rule set is safely evaluable: no recursion
// through rule bodies and a valid stratification with respect to
// negation. The result is cached until the next effective mutation.
func (e *Engine) Certify() error {
	if e.certified {
		return nil
	}
	timer := e.metrics.Timer(metrics.GraphCertify)
	timer.Start()
	defer timer.Stop()

	if e.graph.HasCycle() {
		cycle := e.graph.Cycles()[0]
		return ast.NewError(ast.RecursionErr, nil, "rules are recursive: cycle through %v", strings.Join(cycle, " -> "))
	}
	if e.graph.Stratification(map[string]struct{}{NegLabel: {}}) == nil {
		return ast.NewError(ast.RecursionErr, nil, "rules cannot be stratified with respect to negation")
	}
	e.certified = true
	return nil
}

// Strata returns the stratum assignment of every table, nil when no
// valid assignment exists.
func (e *Engine) Strata() map[string]int {
	return e.graph.Stratification(map[string]struct{}{NegLabel: {}})
}

// Query evaluates a conjunctive query against the named policy after
// certifying the rule set. Each query is assigned a decision ID
// carried in the logs.
func (e *Engine) Query(ctx context.Context, query, policy string) ([]topdown.Result, error) {
	timer := e.metrics.Timer(metrics.QueryParse)
	timer.Start()
	goals, err := ast.ParseQuery(query)
	timer.Stop()
	if err != nil {
		return nil, err
	}
	if err := e.Certify(); err != nil {
		return nil, err
	}
	evaluator, err := e.evaluator(policy)
	if err != nil {
		return nil, err
	}

	decisionID := uuid.NewString()
	begin := time.Now()
	results, err := evaluator.Query(ctx, goals)
	e.logger.WithFields(map[string]interface{}{
		"decision_id": decisionID,
		"policy":      policy,
		"query":       query,
		"answers":     len(results),
		"latency_ns":  time.Since(begin).Nanoseconds(),
	}).Info("query evaluated")
	return results, err
}

// Select returns the ground atoms derivable for atom from the named
// policy, sorted.
func (e *Engine) Select(ctx context.Context, atom *ast.Literal, policy string) ([]*ast.Literal, error) {
	if err := e.Certify(); err != nil {
		return nil, err
	}
	evaluator, err := e.evaluator(policy)
	if err != nil {
		return nil, err
	}
	return evaluator.Select(ctx, atom)
}

func (e *Engine) evaluator(policy string) (*topdown.Evaluator, error) {
	if evaluator, ok := e.evaluators[policy]; ok {
		return evaluator, nil
	}
	th, ok := e.theories[policy]
	if !ok {
		return nil, fmt.Errorf("policy %v does not exist", policy)
	}
	evaluator := topdown.New(th, topdown.WithLogger(e.logger), topdown.WithMetrics(e.metrics))
	e.evaluators[policy] = evaluator
	return evaluator, nil
}

// LoadPaths parses each policy file and replaces the default policy's
// contents with the union of their rules. Directories are walked for
// .dlog files.
func (e *Engine) LoadPaths(paths []string) error {
	timer := e.metrics.Timer(metrics.LoadFiles)
	timer.Start()
	defer timer.Stop()

	files, err := expandPaths(paths)
	if err != nil {
		return err
	}

	var rules []*ast.Rule
	for _, file := range files {
		raw, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		parsed, err := ast.ParseModule(file, string(raw))
		if err != nil {
			return err
		}
		rules = append(rules, parsed...)
	}

	if err := e.Define(rules, e.DefaultPolicyName()); err != nil {
		return err
	}

	e.loaded = paths
	e.logger.WithFields(map[string]interface{}{
		"files": len(files),
		"rules": len(rules),
	}).Info("loaded policies")
	return nil
}

// Loaded returns the paths given to the last successful LoadPaths.
func (e *Engine) Loaded() []string {
	return e.loaded
}

func expandPaths(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if !info.IsDir() && filepath.Ext(p) == ".dlog" {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}
