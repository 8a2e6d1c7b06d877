// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package cmd implements the stratalog command line interface.
package cmd

import (
	"os"
	"path"

	"github.com/spf13/cobra"

	"github.com/stratalog/stratalog/logging"
	"github.com/stratalog/stratalog/metrics"
	"github.com/stratalog/stratalog/runtime"
)

// RootCommand is the base CLI command that all subcommands are added to.
var RootCommand = &cobra.Command{
	Use:   path.Base(os.Args[0]),
	Short: "Stratalog",
	Long:  "A stratified-datalog policy engine.",
}

// logParams are the logging flags shared by the subcommands.
type logParams struct {
	level  string
	format string
}

func (p *logParams) addFlags(command *cobra.Command) {
	command.Flags().StringVar(&p.level, "log-level", "info", "set log level {debug,info,warn,error}")
	command.Flags().StringVar(&p.format, "log-format", "json", "set log format {text,json,json-pretty}")
}

func (p *logParams) newLogger() (logging.Logger, error) {
	level, err := logging.ParseLevel(p.level)
	if err != nil {
		return nil, err
	}
	logger := logging.New()
	logger.SetLevel(level)
	logger.SetFormatter(logging.GetFormatter(p.format))
	return logger, nil
}

// newEngine builds an engine from a config file path, logging flags,
// and policy paths given on the command line.
func newEngine(configFile string, logs logParams, paths []string, m metrics.Metrics) (*runtime.Engine, error) {
	config, err := runtime.LoadConfig(configFile)
	if err != nil {
		return nil, err
	}
	if config.Logging.Level != "" && (logs.level == "" || logs.level == "info") {
		logs.level = config.Logging.Level
	}
	if config.Logging.Format != "" && (logs.format == "" || logs.format == "json") {
		logs.format = config.Logging.Format
	}
	logger, err := logs.newLogger()
	if err != nil {
		return nil, err
	}
	engine := runtime.NewEngine(runtime.Params{
		Config:  config,
		Logger:  logger,
		Metrics: m,
	})
	if err := engine.Init(runtime.Params{Paths: paths}); err != nil {
		return nil, err
	}
	return engine, nil
}
