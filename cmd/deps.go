// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/stratalog/stratalog/cmd/formats"
	"github.com/stratalog/stratalog/cmd/internal/env"
	"github.com/stratalog/stratalog/runtime"
	"github.com/stratalog/stratalog/util"
)

type depsParams struct {
	configFile string
	format     *util.EnumFlag
	filter     string
	graph      bool
}

type depsReport struct {
	Strata map[string]int      `json:"strata"`
	Roots  []string            `json:"roots"`
	Cycles [][]string          `json:"cycles,omitempty"`
	Edges  map[string][]string `json:"edges"`
}

func init() {

	params := depsParams{
		format: formats.Flag(formats.Pretty, formats.JSON),
	}

	depsCommand := &cobra.Command{
		Use:   "deps [files...]",
		Short: "Analyze policy dependencies",
		Long: `Analyze the table dependency graph of the given policy files:
the stratum assigned to each table, the root tables nothing depends on,
and any dependency cycles. Tables can be restricted with a glob
pattern, e.g.

	stratalog deps --filter 'net*' policy.dlog`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.CheckEnvironmentVariables(cmd)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			return deps(os.Stdout, params, args)
		},
	}

	depsCommand.Flags().StringVarP(&params.configFile, "config-file", "c", "", "set path of configuration file")
	depsCommand.Flags().VarP(params.format, "format", "f", "set output format")
	depsCommand.Flags().StringVar(&params.filter, "filter", "", "limit report to tables matching a glob pattern")
	depsCommand.Flags().BoolVar(&params.graph, "graph", false, "print the raw dependency graph and exit")

	RootCommand.AddCommand(depsCommand)
}

func deps(w io.Writer, params depsParams, args []string) error {

	var match glob.Glob
	if params.filter != "" {
		var err error
		if match, err = glob.Compile(params.filter); err != nil {
			return fmt.Errorf("invalid filter: %w", err)
		}
	}

	config, err := runtime.LoadConfig(params.configFile)
	if err != nil {
		return err
	}

	engine := runtime.NewEngine(runtime.Params{Config: config})
	if err := engine.Init(runtime.Params{Paths: args}); err != nil {
		return err
	}

	g := engine.Graph()
	if params.graph {
		fmt.Fprint(w, g.String())
		return nil
	}

	report := depsReport{
		Strata: map[string]int{},
		Edges:  map[string][]string{},
	}
	keep := func(table string) bool {
		return match == nil || match.Match(table)
	}

	for table, stratum := range engine.Strata() {
		if keep(table) {
			report.Strata[table] = stratum
		}
	}
	for _, root := range g.Roots() {
		if keep(root) {
			report.Roots = append(report.Roots, root)
		}
	}
	sort.Strings(report.Roots)
	for _, cycle := range g.Cycles() {
		for _, table := range cycle {
			if keep(table) {
				report.Cycles = append(report.Cycles, cycle)
				break
			}
		}
	}
	for _, node := range g.Nodes() {
		if !keep(node) {
			continue
		}
		for _, edge := range g.Edges(node) {
			to := edge.To
			if edge.Label != "" {
				to = "not " + to
			}
			report.Edges[node] = append(report.Edges[node], to)
		}
		sort.Strings(report.Edges[node])
	}

	switch params.format.String() {
	case formats.JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return prettyDeps(w, report)
	}
}

func prettyDeps(w io.Writer, report depsReport) error {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Table", "Stratum", "Depends On"})
	table.SetAutoWrapText(false)

	tables := make([]string, 0, len(report.Strata))
	for name := range report.Strata {
		tables = append(tables, name)
	}
	sort.Strings(tables)

	for _, name := range tables {
		table.Append([]string{
			name,
			fmt.Sprintf("%d", report.Strata[name]),
			strings.Join(report.Edges[name], ", "),
		})
	}
	table.Render()

	if len(report.Cycles) > 0 {
		fmt.Fprintln(w)
		for _, cycle := range report.Cycles {
			fmt.Fprintf(w, "cycle: %v\n", strings.Join(cycle, " -> "))
		}
	}
	return nil
}
