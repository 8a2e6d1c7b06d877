// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package presentation prints query results for humans (pretty
// tables) and machines (JSON).
package presentation

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/olekukonko/tablewriter"

	"github.com/stratalog/stratalog/ast"
	"github.com/stratalog/stratalog/metrics"
	"github.com/stratalog/stratalog/topdown"
)

// Output contains the result of evaluation to be presented.
type Output struct {
	Results []topdown.Result
	Errors  []error
	Metrics metrics.Metrics
}

type jsonBinding map[string]string

type jsonOutput struct {
	Result  []jsonBinding          `json:"result"`
	Errors  []string               `json:"errors,omitempty"`
	Metrics map[string]interface{} `json:"metrics,omitempty"`
}

// JSON writes output as one JSON document.
func JSON(w io.Writer, output Output) error {
	doc := jsonOutput{Result: make([]jsonBinding, len(output.Results))}
	for i, result := range output.Results {
		binding := make(jsonBinding, len(result))
		for v, term := range result {
			binding[string(v)] = term.String()
		}
		doc.Result[i] = binding
	}
	for _, err := range output.Errors {
		doc.Errors = append(doc.Errors, err.Error())
	}
	if output.Metrics != nil {
		doc.Metrics = output.Metrics.All()
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(doc)
}

// Pretty writes output as a table of variable bindings, one column
// per variable, one row per answer.
func Pretty(w io.Writer, output Output) error {
	for _, err := range output.Errors {
		fmt.Fprintln(w, "error:", err)
	}
	if len(output.Results) == 0 {
		fmt.Fprintln(w, "false")
		return nil
	}

	vars := resultVars(output.Results)
	if len(vars) == 0 {
		// ground query: answers carry no bindings
		fmt.Fprintln(w, "true")
		return nil
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader(vars)
	table.SetAutoWrapText(false)
	for _, result := range output.Results {
		row := make([]string, len(vars))
		for i, v := range vars {
			if term, ok := result[ast.Var(v)]; ok {
				row[i] = term.String()
			}
		}
		table.Append(row)
	}
	table.Render()

	if output.Metrics != nil {
		printMetrics(w, output.Metrics)
	}
	return nil
}

func resultVars(results []topdown.Result) []string {
	set := map[string]struct{}{}
	for _, result := range results {
		for v := range result {
			set[string(v)] = struct{}{}
		}
	}
	vars := make([]string, 0, len(set))
	for v := range set {
		vars = append(vars, v)
	}
	sort.Strings(vars)
	return vars
}

func printMetrics(w io.Writer, m metrics.Metrics) {
	all := m.All()
	keys := make([]string, 0, len(all))
	for key := range all {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Metric", "Value"})
	for _, key := range keys {
		table.Append([]string{key, fmt.Sprintf("%v", all[key])})
	}
	table.Render()
}
