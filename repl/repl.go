// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package repl implements the interactive shell.
package repl

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/peterh/liner"

	"github.com/stratalog/stratalog/ast"
	"github.com/stratalog/stratalog/internal/presentation"
	"github.com/stratalog/stratalog/logging"
	"github.com/stratalog/stratalog/runtime"
	"github.com/stratalog/stratalog/topdown"
)

// REPL represents an instance of the interactive shell.
type REPL struct {
	engine        *runtime.Engine
	output        io.Writer
	historyPath   string
	outputFormat  string
	banner        string
	currentPolicy string
	trace         bool
}

// New returns a new REPL object.
func New(engine *runtime.Engine, historyPath string, output io.Writer, outputFormat, banner string) *REPL {
	if outputFormat == "" {
		outputFormat = "pretty"
	}
	return &REPL{
		engine:        engine,
		output:        output,
		historyPath:   historyPath,
		outputFormat:  outputFormat,
		banner:        banner,
		currentPolicy: engine.DefaultPolicyName(),
	}
}

// Loop runs until the user enters "exit", Ctrl+C, Ctrl+D, or an
// unexpected error occurs.
func (r *REPL) Loop(ctx context.Context) {

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(r.complete)
	r.loadHistory(line)

	if len(r.banner) > 0 {
		fmt.Fprintln(r.output, r.banner)
	}

	for {
		input, err := line.Prompt(r.prompt())

		if err == liner.ErrPromptAborted || err == io.EOF {
			fmt.Fprintln(r.output, "Exiting")
			break
		}
		if err != nil {
			fmt.Fprintln(r.output, "error (fatal):", err)
			os.Exit(1)
		}

		if err := r.OneShot(ctx, input); err != nil {
			if err == errExit {
				break
			}
			fmt.Fprintln(r.output, "error:", err)
		}

		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
	}

	r.saveHistory(line)
}

var errExit = fmt.Errorf("exit")

// OneShot evaluates one line of input and prints the result. If an
// error occurs it is returned for the caller to display.
func (r *REPL) OneShot(ctx context.Context, input string) error {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}

	op, args, _ := strings.Cut(input, " ")
	switch op {
	case "help":
		return r.cmdHelp()
	case "exit", "quit":
		return errExit
	case "json", "pretty":
		r.outputFormat = op
		return nil
	case "trace":
		r.trace = !r.trace
		if r.trace {
			fmt.Fprintln(r.output, "trace on")
		} else {
			fmt.Fprintln(r.output, "trace off")
		}
		return nil
	case "policies":
		return r.cmdPolicies()
	case "policy":
		return r.cmdPolicy(strings.TrimSpace(args))
	case "tables":
		return r.cmdTables()
	case "dump":
		return r.cmdDump(strings.TrimSpace(args))
	case "strata":
		return r.cmdStrata()
	case "deps":
		return r.cmdDeps(strings.TrimSpace(args))
	case "delete":
		return r.cmdDelete(args)
	}

	if query, ok := strings.CutPrefix(input, "?-"); ok {
		return r.evalQuery(ctx, query)
	}
	return r.evalStatement(ctx, input)
}

// evalStatement inserts rules and ground atoms; anything else is
// treated as a query.
func (r *REPL) evalStatement(ctx context.Context, input string) error {
	formula, err := ast.ParseStatement(input)
	if err != nil {
		return err
	}
	if lit, ok := formula.(*ast.Literal); ok && (lit.Negated || !lit.IsGround()) {
		return r.evalQuery(ctx, input)
	}
	changed, err := r.engine.InsertFormula(formula, r.currentPolicy)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(r.output, "unchanged")
	}
	return nil
}

func (r *REPL) evalQuery(ctx context.Context, query string) error {
	var results []topdown.Result
	var err error
	if r.trace {
		results, err = r.evalTraced(ctx, query)
	} else {
		results, err = r.engine.Query(ctx, query, r.currentPolicy)
	}
	if err != nil {
		return err
	}
	output := presentation.Output{Results: results}
	if r.outputFormat == "json" {
		return presentation.JSON(r.output, output)
	}
	return presentation.Pretty(r.output, output)
}

// evalTraced evaluates with a fresh evaluator whose debug log goes to
// the shell, printing every goal as it is tried.
func (r *REPL) evalTraced(ctx context.Context, query string) ([]topdown.Result, error) {
	goals, err := ast.ParseQuery(query)
	if err != nil {
		return nil, err
	}
	if err := r.engine.Certify(); err != nil {
		return nil, err
	}
	th, ok := r.engine.Policy(r.currentPolicy)
	if !ok {
		return nil, fmt.Errorf("policy %v does not exist", r.currentPolicy)
	}
	logger := logging.New()
	logger.SetOutput(r.output)
	logger.SetLevel(logging.Debug)
	logger.SetFormatter(logging.GetFormatter("text"))
	return topdown.New(th, topdown.WithLogger(logger)).Query(ctx, goals)
}

func (r *REPL) cmdDelete(args string) error {
	changed, err := r.engine.Delete(args, r.currentPolicy)
	if err != nil {
		return err
	}
	if !changed {
		fmt.Fprintln(r.output, "unchanged")
	}
	return nil
}

func (r *REPL) cmdPolicies() error {
	for _, name := range r.engine.Policies() {
		marker := " "
		if name == r.currentPolicy {
			marker = "*"
		}
		th, _ := r.engine.Policy(name)
		fmt.Fprintf(r.output, "%s %s (%s)\n", marker, name, th.Kind())
	}
	return nil
}

func (r *REPL) cmdPolicy(name string) error {
	if name == "" {
		fmt.Fprintln(r.output, r.currentPolicy)
		return nil
	}
	if !r.engine.HasTheory(name) {
		return fmt.Errorf("policy %v does not exist", name)
	}
	r.currentPolicy = name
	return nil
}

func (r *REPL) cmdTables() error {
	th, _ := r.engine.Policy(r.currentPolicy)
	for _, table := range th.DefinedTables() {
		arity, _ := th.Arity(table)
		fmt.Fprintf(r.output, "%s/%d\n", table, arity)
	}
	return nil
}

func (r *REPL) cmdDump(policy string) error {
	if policy == "" {
		policy = r.currentPolicy
	}
	th, ok := r.engine.Policy(policy)
	if !ok {
		return fmt.Errorf("policy %v does not exist", policy)
	}
	for _, rule := range th.Content() {
		fmt.Fprintln(r.output, rule)
	}
	return nil
}

func (r *REPL) cmdStrata() error {
	strata := r.engine.Strata()
	if strata == nil {
		return fmt.Errorf("rules cannot be stratified with respect to negation")
	}
	tables := make([]string, 0, len(strata))
	for table := range strata {
		tables = append(tables, table)
	}
	sort.Slice(tables, func(i, j int) bool {
		if strata[tables[i]] != strata[tables[j]] {
			return strata[tables[i]] < strata[tables[j]]
		}
		return tables[i] < tables[j]
	})
	for _, table := range tables {
		fmt.Fprintf(r.output, "%d: %s\n", strata[table], table)
	}
	return nil
}

func (r *REPL) cmdDeps(table string) error {
	if table == "" {
		return fmt.Errorf("usage: deps <table>")
	}
	deps, ok := r.engine.Graph().Dependencies(table)
	if !ok {
		return fmt.Errorf("table %v has no dependencies", table)
	}
	sorted := make([]string, 0, len(deps))
	for dep := range deps {
		if dep != table {
			sorted = append(sorted, dep)
		}
	}
	sort.Strings(sorted)
	for _, dep := range sorted {
		fmt.Fprintln(r.output, dep)
	}
	return nil
}

func (r *REPL) cmdHelp() error {
	fmt.Fprintln(r.output, strings.TrimSpace(`
help              print this message
exit              exit the shell
json | pretty     switch the output format
trace             toggle query evaluation tracing
policies          list policies
policy [name]     show or switch the current policy
tables            list tables defined in the current policy
dump [policy]     print the rules of a policy
strata            print the stratum of every table
deps <table>      print the tables a table depends on
delete <sentence> retract a fact or rule

Any other input is parsed as datalog: facts and rules are inserted,
queries (goals with variables, or prefixed with ?-) are evaluated.
`))
	return nil
}

func (r *REPL) prompt() string {
	return r.currentPolicy + "> "
}

func (r *REPL) complete(prefix string) []string {
	completions := []string{
		"help", "exit", "json", "pretty", "trace", "policies",
		"policy", "tables", "dump", "strata", "deps", "delete",
	}
	for _, name := range r.engine.Policies() {
		th, _ := r.engine.Policy(name)
		completions = append(completions, th.DefinedTables()...)
	}
	var result []string
	for _, c := range completions {
		if strings.HasPrefix(c, prefix) {
			result = append(result, c)
		}
	}
	sort.Strings(result)
	return result
}

func (r *REPL) loadHistory(prompt *liner.State) {
	if f, err := os.Open(r.historyPath); err == nil {
		prompt.ReadHistory(f)
		f.Close()
	}
}

func (r *REPL) saveHistory(prompt *liner.State) {
	if r.historyPath == "" {
		return
	}
	if f, err := os.Create(r.historyPath); err == nil {
		prompt.WriteHistory(f)
		f.Close()
	}
}
