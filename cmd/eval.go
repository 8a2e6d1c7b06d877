// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratalog/stratalog/cmd/formats"
	"github.com/stratalog/stratalog/cmd/internal/env"
	"github.com/stratalog/stratalog/internal/presentation"
	"github.com/stratalog/stratalog/metrics"
	"github.com/stratalog/stratalog/util"
)

type evalParams struct {
	configFile string
	dataPaths  []string
	policy     string
	format     *util.EnumFlag
	metrics    bool
	logs       logParams
}

func init() {

	params := evalParams{
		format: formats.Flag(formats.Pretty, formats.JSON),
	}

	evalCommand := &cobra.Command{
		Use:   "eval <query>",
		Short: "Evaluate a query one-shot",
		Long: `Evaluate a query against a set of policy files and print the
answers. For example:

	stratalog eval -d policy.dlog 'error(x)'

The exit code is 1 when the query has no answers, 2 on error.`,
		Args: cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.CheckEnvironmentVariables(cmd)
		},
		Run: func(_ *cobra.Command, args []string) {
			answered, err := eval(os.Stdout, params, args[0])
			if err != nil {
				os.Exit(2)
			}
			if !answered {
				os.Exit(1)
			}
		},
	}

	evalCommand.Flags().StringVarP(&params.configFile, "config-file", "c", "", "set path of configuration file")
	evalCommand.Flags().StringSliceVarP(&params.dataPaths, "data", "d", nil, "set policy file(s) or directories to load")
	evalCommand.Flags().StringVar(&params.policy, "policy", "", "set the policy to query (default: the default policy)")
	evalCommand.Flags().VarP(params.format, "format", "f", "set output format")
	evalCommand.Flags().BoolVar(&params.metrics, "metrics", false, "report query performance metrics")
	params.logs.addFlags(evalCommand)

	RootCommand.AddCommand(evalCommand)
}

func eval(w io.Writer, params evalParams, query string) (bool, error) {

	m := metrics.New()
	engine, err := newEngine(params.configFile, params.logs, params.dataPaths, m)
	if err != nil {
		presentError(w, params, err, nil)
		return false, err
	}

	policy := params.policy
	if policy == "" {
		policy = engine.DefaultPolicyName()
	}

	results, err := engine.Query(context.Background(), query, policy)
	if err != nil {
		presentError(w, params, err, m)
		return false, err
	}

	output := presentation.Output{Results: results}
	if params.metrics {
		output.Metrics = m
	}
	if params.format.String() == formats.JSON {
		err = presentation.JSON(w, output)
	} else {
		err = presentation.Pretty(w, output)
	}
	return len(results) > 0, err
}

func presentError(w io.Writer, params evalParams, err error, m metrics.Metrics) {
	output := presentation.Output{Errors: []error{err}}
	if params.metrics && m != nil {
		output.Metrics = m
	}
	if params.format.String() == formats.JSON {
		presentation.JSON(w, output)
	} else {
		presentation.Pretty(w, output)
	}
}
