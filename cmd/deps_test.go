// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package cmd

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/stratalog/stratalog/cmd/formats"
)

func TestDepsReport(t *testing.T) {
	path := writePolicyFile(t, `
error(x) :- server(x), not healthy(x)
alarm(x) :- error(x)
`)

	params := depsParams{
		format: formats.Flag(formats.JSON, formats.Pretty),
	}

	var buf bytes.Buffer
	if err := deps(&buf, params, []string{path}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var report depsReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if report.Strata["error"] <= report.Strata["healthy"] {
		t.Fatalf("Expected error above healthy but got strata: %v", report.Strata)
	}
	if report.Strata["alarm"] < report.Strata["error"] {
		t.Fatalf("Expected alarm at or above error but got strata: %v", report.Strata)
	}
	exp := map[string][]string{
		"error": {"not healthy", "server"},
		"alarm": {"error"},
	}
	if diff := cmp.Diff(exp, report.Edges); diff != "" {
		t.Fatalf("Unexpected edges (-want, +got):\n%s", diff)
	}
	if len(report.Cycles) != 0 {
		t.Fatalf("Expected no cycles but got: %v", report.Cycles)
	}
}

func TestDepsFilter(t *testing.T) {
	path := writePolicyFile(t, `
error(x) :- server(x), not healthy(x)
alarm(x) :- error(x)
`)

	params := depsParams{
		format: formats.Flag(formats.JSON, formats.Pretty),
		filter: "*alarm",
	}

	var buf bytes.Buffer
	if err := deps(&buf, params, []string{path}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	var report depsReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(report.Strata) != 1 {
		t.Fatalf("Expected filter to keep only alarm but got: %v", report.Strata)
	}
	if _, ok := report.Strata["alarm"]; !ok {
		t.Fatalf("Expected alarm in report but got: %v", report.Strata)
	}
}

func TestDepsBadFilter(t *testing.T) {
	params := depsParams{
		format: formats.Flag(formats.Pretty, formats.JSON),
		filter: "[",
	}
	if err := deps(&bytes.Buffer{}, params, nil); err == nil {
		t.Fatalf("Expected invalid filter error but got success")
	}
}

func TestCheckPaths(t *testing.T) {
	good := writePolicyFile(t, `error(x) :- server(x), not healthy(x)`)
	if !checkPaths([]string{good}) {
		t.Fatalf("Expected check to pass for %v", good)
	}

	unsafe := writePolicyFile(t, `error(x) :- not healthy(x)`)
	if checkPaths([]string{unsafe}) {
		t.Fatalf("Expected check to fail for unsafe rule")
	}

	recursive := writePolicyFile(t, `p(x) :- q(x)
q(x) :- p(x)`)
	if checkPaths([]string{recursive}) {
		t.Fatalf("Expected check to fail for recursive rules")
	}
}
