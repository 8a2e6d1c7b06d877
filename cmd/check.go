// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratalog/stratalog/ast"
	"github.com/stratalog/stratalog/cmd/internal/env"
	"github.com/stratalog/stratalog/runtime"
)

func init() {

	checkCommand := &cobra.Command{
		Use:   "check <file> [file...]",
		Short: "Check policy files for errors",
		Long: `Check that policy files parse, validate, and form a safely
evaluable (non-recursive, stratifiable) rule set. Errors are reported
with their source locations; the exit code is non-zero when any check
fails.`,
		Args: cobra.MinimumNArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.CheckEnvironmentVariables(cmd)
		},
		Run: func(_ *cobra.Command, args []string) {
			if !checkPaths(args) {
				os.Exit(1)
			}
		},
	}

	RootCommand.AddCommand(checkCommand)
}

func checkPaths(paths []string) bool {
	ok := true
	engine := runtime.NewEngine(runtime.Params{})
	policy := engine.DefaultPolicyName()

	var events []*ast.Event
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return false
		}
		rules, err := ast.ParseModule(path, string(raw))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			ok = false
			continue
		}
		for _, rule := range rules {
			events = append(events, ast.InsertEvent(rule))
		}
	}
	if !ok {
		return false
	}

	if _, err := engine.Update(events, policy); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}
	if err := engine.Certify(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return false
	}
	return true
}
