// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stratalog/stratalog/cmd/formats"
	"github.com/stratalog/stratalog/cmd/internal/env"
	"github.com/stratalog/stratalog/repl"
	"github.com/stratalog/stratalog/version"
)

func init() {

	var configFile string
	var logs logParams
	var history string
	var watch bool
	format := formats.Flag(formats.Pretty, formats.JSON)

	runCommand := &cobra.Command{
		Use:   "run [files...]",
		Short: "Start stratalog in interactive mode",
		Long: `Start an instance of stratalog and open an interactive shell.

The 'run' command loads the given policy files into the default policy
and starts the read-eval-print loop. With --watch, loaded files are
reloaded when they change on disk.`,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			return env.CheckEnvironmentVariables(cmd)
		},
		RunE: func(_ *cobra.Command, args []string) error {
			engine, err := newEngine(configFile, logs, args, nil)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if watch {
				if len(engine.Loaded()) == 0 {
					return fmt.Errorf("--watch requires at least one policy path")
				}
				go func() {
					if err := engine.Watch(ctx, nil); err != nil {
						fmt.Fprintln(os.Stderr, "watch error:", err)
					}
				}()
			}

			historyPath := history
			if historyPath == "" {
				if home, err := os.UserHomeDir(); err == nil {
					historyPath = home + "/.stratalog_history"
				}
			}

			banner := fmt.Sprintf("Stratalog %v (commit %v)\n\nRun 'help' to see a list of commands.", version.Version, version.Vcs)
			repl.New(engine, historyPath, os.Stdout, format.String(), banner).Loop(ctx)
			return nil
		},
	}

	runCommand.Flags().StringVarP(&configFile, "config-file", "c", "", "set path of configuration file")
	runCommand.Flags().StringVar(&history, "history", "", "set path of history file")
	runCommand.Flags().VarP(format, "format", "f", "set shell output format")
	runCommand.Flags().BoolVarP(&watch, "watch", "w", false, "watch policy files for changes")
	logs.addFlags(runCommand)

	RootCommand.AddCommand(runCommand)
}
