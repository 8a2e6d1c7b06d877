// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package topdown implements backward-chaining query evaluation over
// the rule theory lookup contract.
package topdown

import (
	"context"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/stratalog/stratalog/ast"
	"github.com/stratalog/stratalog/logging"
	"github.com/stratalog/stratalog/metrics"
	"github.com/stratalog/stratalog/util"
)

// defaultMaxDepth bounds the evaluation stack. Theories queried
// through the runtime are certified non-recursive first; the bound is
// a guard for uncertified use, where recursion would otherwise not
// terminate.
const defaultMaxDepth = 512

// defaultCacheSize is the number of materialized answers retained.
const defaultCacheSize = 1024

// Theory is the lookup contract the evaluator consumes. Implemented
// by theory.Theory.
type Theory interface {
	HeadIndex(table string, matchLiteral *ast.Literal) []*ast.Rule
	Head(rule *ast.Rule) *ast.Literal
	Body(rule *ast.Rule) []*ast.Literal
	Arity(table string) (int, bool)
	Generation() uint64
}

// Result is one answer to a query: an assignment of ground terms to
// the query's variables.
type Result map[ast.Var]*ast.Term

func (r Result) String() string {
	keys := make([]string, 0, len(r))
	for v := range r {
		keys = append(keys, string(v))
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + " = " + r[ast.Var(k)].String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// Evaluator answers queries against one theory.
//
// Evaluator is not safe for concurrent use.
type Evaluator struct {
	theory   Theory
	maxDepth int
	logger   logging.Logger
	metrics  metrics.Metrics
	counter  int
	cache    *lru.Cache[string, []*ast.Literal]
	cacheGen uint64
}

// Opt configures an Evaluator.
type Opt func(*Evaluator)

// WithMaxDepth overrides the evaluation depth bound.
func WithMaxDepth(n int) Opt {
	return func(e *Evaluator) {
		e.maxDepth = n
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Opt {
	return func(e *Evaluator) {
		e.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m metrics.Metrics) Opt {
	return func(e *Evaluator) {
		e.metrics = m
	}
}

// New returns an Evaluator over theory.
func New(theory Theory, opts ...Opt) *Evaluator {
	e := &Evaluator{
		theory:   theory,
		maxDepth: defaultMaxDepth,
		logger:   logging.NewNoOpLogger(),
		metrics:  metrics.NoOp(),
	}
	for _, opt := range opts {
		opt(e)
	}
	cache, err := lru.New[string, []*ast.Literal](defaultCacheSize)
	if err != nil {
		panic(err)
	}
	e.cache = cache
	return e
}

// Query evaluates the conjunction of goals and returns one Result per
// answer, projected onto the variables appearing in the goals.
// Negated goals are evaluated by negation as failure and must be
// ground by the time they are reached.
func (e *Evaluator) Query(ctx context.Context, goals []*ast.Literal) ([]Result, error) {
	timer := e.metrics.Timer(metrics.QueryEval)
	timer.Start()
	defer timer.Stop()

	vars := ast.NewVarSet()
	for _, goal := range goals {
		vars.Update(goal.Vars(nil))
	}

	seen := util.NewOrderedSet[string, Result](func(r Result) string { return r.String() })
	err := e.eval(ctx, goals, newBindings(), 0, func(env bindings) error {
		result := make(Result, len(vars))
		for v := range vars {
			result[v] = env.Resolve(ast.VarTerm(string(v)))
		}
		seen.Add(result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return seen.Slice(), nil
}

// Select returns the ground atoms stored or derivable for atom,
// deduplicated and sorted. Answers for ground goal atoms are cached;
// the cache is dropped whenever the theory's generation moves.
func (e *Evaluator) Select(ctx context.Context, atom *ast.Literal) ([]*ast.Literal, error) {
	if gen := e.theory.Generation(); gen != e.cacheGen {
		e.cache.Purge()
		e.cacheGen = gen
	}

	key := atom.String()
	if answers, ok := e.cache.Get(key); ok {
		e.metrics.Counter(metrics.QueryCacheHit).Incr()
		return answers, nil
	}

	results, err := e.Query(ctx, []*ast.Literal{atom})
	if err != nil {
		return nil, err
	}

	answers := make([]*ast.Literal, 0, len(results))
	dedup := util.NewOrderedSet[string, *ast.Literal](func(lit *ast.Literal) string { return lit.String() })
	for _, result := range results {
		plugged := atom.Copy()
		for i, arg := range plugged.Args {
			if v, ok := arg.Value.(ast.Var); ok {
				plugged.Args[i] = result[v]
			}
		}
		if plugged.IsGround() {
			dedup.Add(plugged)
		}
	}
	answers = append(answers, dedup.Slice()...)
	sort.Slice(answers, func(i, j int) bool {
		return answers[i].String() < answers[j].String()
	})

	e.cache.Add(key, answers)
	return answers, nil
}

func (e *Evaluator) eval(ctx context.Context, goals []*ast.Literal, env bindings, depth int, iter func(bindings) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth > e.maxDepth {
		return ast.NewError(ast.RecursionErr, nil, "exceeded max evaluation depth (%d); rule set may be recursive", e.maxDepth)
	}
	if len(goals) == 0 {
		e.logger.Debug("eval(depth=%d): answer %v", depth, env)
		return iter(env)
	}

	goal, rest := goals[0], goals[1:]

	if goal.Negated {
		plugged := env.Plug(goal)
		e.logger.Debug("eval(depth=%d): not %v", depth, plugged)
		if !plugged.IsGround() {
			return ast.NewError(ast.SafetyErr, goal.Location, "negated literal is not ground: %v", plugged)
		}
		holds := false
		probe := func(bindings) error {
			holds = true
			return errStopEval
		}
		err := e.eval(ctx, []*ast.Literal{plugged.Complement()}, env.Copy(), depth+1, probe)
		if err != nil && err != errStopEval {
			return err
		}
		if holds {
			return nil
		}
		return e.eval(ctx, rest, env, depth, iter)
	}

	plugged := env.Plug(goal)
	e.logger.Debug("eval(depth=%d): %v", depth, plugged)
	for _, rule := range e.theory.HeadIndex(plugged.TableName(), plugged) {
		renamed := rename(rule, &e.counter)
		attempt := env.Copy()
		if !attempt.Unify(plugged, e.theory.Head(renamed)) {
			continue
		}
		subgoals := append(append([]*ast.Literal{}, e.theory.Body(renamed)...), rest...)
		if err := e.eval(ctx, subgoals, attempt, depth+1, iter); err != nil {
			return err
		}
	}
	return nil
}

// errStopEval aborts evaluation early once negation as failure has
// its witness.
var errStopEval = ast.NewError(ast.RecursionErr, nil, "eval stopped")
