// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package repl

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stratalog/stratalog/runtime"
)

func newTestREPL(buf *bytes.Buffer) *REPL {
	engine := runtime.NewEngine(runtime.Params{})
	return New(engine, "", buf, "pretty", "")
}

func oneShot(t *testing.T, r *REPL, input string) {
	t.Helper()
	if err := r.OneShot(context.Background(), input); err != nil {
		t.Fatalf("Unexpected error on %q: %v", input, err)
	}
}

func TestREPLInsertAndQuery(t *testing.T) {
	var buf bytes.Buffer
	r := newTestREPL(&buf)

	oneShot(t, r, `server("web")`)
	oneShot(t, r, `server("db")`)
	oneShot(t, r, `healthy("db")`)
	oneShot(t, r, `error(x) :- server(x), not healthy(x)`)

	buf.Reset()
	oneShot(t, r, "error(x)")

	if !strings.Contains(buf.String(), `"web"`) {
		t.Fatalf("Expected answer containing \"web\" but got: %v", buf.String())
	}
}

func TestREPLQueryPrefix(t *testing.T) {
	var buf bytes.Buffer
	r := newTestREPL(&buf)

	oneShot(t, r, "p(1)")
	buf.Reset()
	oneShot(t, r, "?- p(x)")

	if !strings.Contains(buf.String(), "1") {
		t.Fatalf("Expected answer containing 1 but got: %v", buf.String())
	}
}

func TestREPLGroundQueryTrueFalse(t *testing.T) {
	var buf bytes.Buffer
	r := newTestREPL(&buf)

	oneShot(t, r, "p(1)")

	buf.Reset()
	oneShot(t, r, "?- p(1)")
	if !strings.Contains(buf.String(), "true") {
		t.Fatalf("Expected true but got: %v", buf.String())
	}

	buf.Reset()
	oneShot(t, r, "?- p(2)")
	if !strings.Contains(buf.String(), "false") {
		t.Fatalf("Expected false but got: %v", buf.String())
	}
}

func TestREPLDelete(t *testing.T) {
	var buf bytes.Buffer
	r := newTestREPL(&buf)

	oneShot(t, r, "p(1)")
	oneShot(t, r, "delete p(1)")

	buf.Reset()
	oneShot(t, r, "?- p(1)")
	if !strings.Contains(buf.String(), "false") {
		t.Fatalf("Expected false after delete but got: %v", buf.String())
	}

	// deleting again reports no change
	buf.Reset()
	oneShot(t, r, "delete p(1)")
	if !strings.Contains(buf.String(), "unchanged") {
		t.Fatalf("Expected unchanged but got: %v", buf.String())
	}
}

func TestREPLJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	r := newTestREPL(&buf)

	oneShot(t, r, "p(1)")
	oneShot(t, r, "json")

	buf.Reset()
	oneShot(t, r, "p(x)")
	if !strings.Contains(buf.String(), `"result"`) {
		t.Fatalf("Expected JSON output but got: %v", buf.String())
	}
}

func TestREPLCommands(t *testing.T) {
	var buf bytes.Buffer
	r := newTestREPL(&buf)

	oneShot(t, r, "p(x) :- q(x), not s(x)")

	buf.Reset()
	oneShot(t, r, "tables")
	if !strings.Contains(buf.String(), "p/1") {
		t.Fatalf("Expected p/1 in tables but got: %v", buf.String())
	}

	buf.Reset()
	oneShot(t, r, "dump")
	if !strings.Contains(buf.String(), "p(x) :- q(x), not s(x)") {
		t.Fatalf("Expected rule in dump but got: %v", buf.String())
	}

	buf.Reset()
	oneShot(t, r, "strata")
	if !strings.Contains(buf.String(), "s") {
		t.Fatalf("Expected strata output but got: %v", buf.String())
	}

	buf.Reset()
	oneShot(t, r, "deps p")
	out := buf.String()
	if !strings.Contains(out, "q") || !strings.Contains(out, "s") {
		t.Fatalf("Expected q and s in deps but got: %v", out)
	}

	buf.Reset()
	oneShot(t, r, "policies")
	if !strings.Contains(buf.String(), "classify") || !strings.Contains(buf.String(), "action") {
		t.Fatalf("Expected built-in policies but got: %v", buf.String())
	}
}

func TestREPLSwitchPolicy(t *testing.T) {
	var buf bytes.Buffer
	r := newTestREPL(&buf)

	oneShot(t, r, "policy action")
	if r.currentPolicy != "action" {
		t.Fatalf("Expected current policy action but got: %v", r.currentPolicy)
	}
	if err := r.OneShot(context.Background(), "policy missing"); err == nil {
		t.Fatalf("Expected error for unknown policy")
	}
}

func TestREPLTrace(t *testing.T) {
	var buf bytes.Buffer
	r := newTestREPL(&buf)

	oneShot(t, r, `server("web")`)
	oneShot(t, r, `error(x) :- server(x), not healthy(x)`)

	buf.Reset()
	oneShot(t, r, "trace")
	if !strings.Contains(buf.String(), "trace on") {
		t.Fatalf("Expected trace on but got: %v", buf.String())
	}

	buf.Reset()
	oneShot(t, r, "?- error(x)")
	out := buf.String()
	if !strings.Contains(out, "eval(depth=0): error(x)") {
		t.Fatalf("Expected traced goal but got: %v", out)
	}
	if !strings.Contains(out, `"web"`) {
		t.Fatalf("Expected answer after trace but got: %v", out)
	}

	buf.Reset()
	oneShot(t, r, "trace")
	oneShot(t, r, "?- error(x)")
	if strings.Contains(buf.String(), "eval(depth=") {
		t.Fatalf("Expected no trace output but got: %v", buf.String())
	}
}

func TestREPLExit(t *testing.T) {
	var buf bytes.Buffer
	r := newTestREPL(&buf)

	if err := r.OneShot(context.Background(), "exit"); err != errExit {
		t.Fatalf("Expected exit sentinel but got: %v", err)
	}
}
