// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package graph

import (
	"reflect"
	"sort"
	"testing"
)

func TestGraphAddDelete(t *testing.T) {
	g := New()

	if !g.AddNode("a") {
		t.Fatalf("Expected AddNode(a) to change the graph")
	}
	if g.AddNode("a") {
		t.Fatalf("Expected duplicate AddNode(a) to be a no-op")
	}

	g.AddEdge("a", "b", "")
	g.AddEdge("b", "c", "neg")

	if !g.Has("c") {
		t.Fatalf("Expected AddEdge to add endpoint node c")
	}
	if !g.HasEdge("b", "c", "neg") {
		t.Fatalf("Expected edge b->c[neg] to be present")
	}
	if g.HasEdge("b", "c", "") {
		t.Fatalf("Did not expect unlabeled edge b->c")
	}

	if g.DeleteEdge("b", "c", "") {
		t.Fatalf("Expected delete with wrong label to be a no-op")
	}
	if !g.DeleteEdge("b", "c", "neg") {
		t.Fatalf("Expected DeleteEdge(b, c, neg) to change the graph")
	}
	if g.DeleteEdge("b", "c", "neg") {
		t.Fatalf("Expected second DeleteEdge to be a no-op")
	}

	if !g.DeleteNode("a") {
		t.Fatalf("Expected DeleteNode(a) to change the graph")
	}
	if g.HasEdge("a", "b", "") {
		t.Fatalf("Expected incident edge to be removed with node a")
	}
}

func TestGraphDeleteNodeIncoming(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "")
	g.AddEdge("c", "b", "x")

	g.DeleteNode("b")

	if g.HasEdge("a", "b", "") || g.HasEdge("c", "b", "x") {
		t.Fatalf("Expected incoming edges of b to be removed")
	}
	if !g.Has("a") || !g.Has("c") {
		t.Fatalf("Expected other nodes to survive")
	}
}

func TestGraphCycleDetection(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "")
	g.AddEdge("b", "c", "")
	g.AddEdge("c", "a", "")

	if !g.HasCycle() {
		t.Fatalf("Expected cycle in a->b->c->a")
	}

	cycles := g.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("Expected exactly one cycle but got: %v", cycles)
	}
	assertCycleEqual(t, cycles[0], []string{"a", "b", "c"})
}

func TestGraphNoCycle(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "")
	g.AddEdge("a", "c", "")
	g.AddEdge("b", "c", "")

	if g.HasCycle() {
		t.Fatalf("Did not expect a cycle in a DAG but got: %v", g.Cycles())
	}
}

func TestGraphSelfLoop(t *testing.T) {
	g := New()
	g.AddEdge("a", "a", "")

	if !g.HasCycle() {
		t.Fatalf("Expected self loop to be a cycle")
	}
	assertCycleEqual(t, g.Cycles()[0], []string{"a"})
}

func TestGraphCacheInvalidation(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "")
	g.AddEdge("b", "a", "")

	if !g.HasCycle() {
		t.Fatalf("Expected cycle before mutation")
	}

	g.DeleteEdge("b", "a", "")

	if g.HasCycle() {
		t.Fatalf("Expected mutation to invalidate cached cycles")
	}
}

func TestGraphIntervalNesting(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "")
	g.AddEdge("b", "c", "")
	g.AddEdge("a", "d", "")

	g.DepthFirstSearch()

	nodes := g.Nodes()
	for _, x := range nodes {
		xb, xe, _ := g.Interval(x)
		if xb >= xe {
			t.Fatalf("Expected begin < end for %v but got: [%d, %d]", x, xb, xe)
		}
		for _, y := range nodes {
			yb, ye, _ := g.Interval(y)
			nested := (xb <= yb && ye <= xe) || (yb <= xb && xe <= ye)
			disjoint := xe <= yb || ye <= xb
			if !nested && !disjoint {
				t.Fatalf("Expected intervals of %v and %v to nest or be disjoint", x, y)
			}
		}
	}

	ab, ae, ok := g.Interval("a")
	if !ok {
		t.Fatalf("Expected interval for a")
	}
	for _, reachable := range []string{"b", "c", "d"} {
		b, e, ok := g.Interval(reachable)
		if !ok {
			t.Fatalf("Expected interval for %v", reachable)
		}
		if !(ab <= b && b < e && e <= ae) {
			t.Fatalf("Expected interval of %v to nest inside a's but got: [%d, %d] vs [%d, %d]", reachable, b, e, ab, ae)
		}
	}
}

func TestGraphDependencies(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "")
	g.AddEdge("b", "c", "")
	g.AddEdge("d", "e", "")

	deps, ok := g.Dependencies("a")
	if !ok {
		t.Fatalf("Expected dependencies of a")
	}
	exp := map[string]struct{}{"a": {}, "b": {}, "c": {}}
	if !reflect.DeepEqual(deps, exp) {
		t.Fatalf("Expected %v but got: %v", exp, deps)
	}

	deps, ok = g.Dependencies("c")
	if !ok {
		t.Fatalf("Expected dependencies of c")
	}
	if exp := map[string]struct{}{"c": {}}; !reflect.DeepEqual(deps, exp) {
		t.Fatalf("Expected %v but got: %v", exp, deps)
	}

	if _, ok := g.Dependencies("zzz"); ok {
		t.Fatalf("Expected false for absent node")
	}
}

func TestGraphRoots(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "")
	g.AddEdge("b", "c", "")
	g.AddNode("d")

	roots := g.Roots()
	sort.Strings(roots)
	if exp := []string{"a", "d"}; !reflect.DeepEqual(roots, exp) {
		t.Fatalf("Expected roots %v but got: %v", exp, roots)
	}
}

func TestGraphStratification(t *testing.T) {
	g := New()
	g.AddEdge("q", "p", "")
	g.AddEdge("r", "q", "neg")
	g.AddEdge("s", "r", "")

	strata := g.Stratification(map[string]struct{}{"neg": {}})
	if strata == nil {
		t.Fatalf("Expected a stratification")
	}

	for _, node := range g.Nodes() {
		for _, edge := range g.Edges(node) {
			if strata[node] < strata[edge.To] {
				t.Fatalf("Expected stratum[%v] >= stratum[%v] but got: %v", node, edge.To, strata)
			}
			if edge.Label == "neg" && strata[node] < strata[edge.To]+1 {
				t.Fatalf("Expected stratifying edge %v->%v to increase stratum but got: %v", node, edge.To, strata)
			}
		}
	}
}

func TestGraphStratificationUnsatisfiable(t *testing.T) {
	g := New()
	g.AddEdge("p", "q", "neg")
	g.AddEdge("q", "p", "neg")

	if strata := g.Stratification(map[string]struct{}{"neg": {}}); strata != nil {
		t.Fatalf("Expected nil for a cycle through stratifying edges but got: %v", strata)
	}
}

func TestGraphStratificationPlainCycle(t *testing.T) {
	g := New()
	g.AddEdge("p", "q", "")
	g.AddEdge("q", "p", "")

	strata := g.Stratification(map[string]struct{}{"neg": {}})
	if strata == nil {
		t.Fatalf("Expected plain cycle to be stratifiable")
	}
	if strata["p"] != strata["q"] {
		t.Fatalf("Expected p and q in the same stratum but got: %v", strata)
	}
}

func TestGraphUnion(t *testing.T) {
	g1 := New()
	g1.AddEdge("a", "b", "")

	g2 := New()
	g2.AddEdge("b", "c", "neg")
	g2.AddNode("d")

	merged := g1.Union(g2)

	if !merged.HasEdge("a", "b", "") || !merged.HasEdge("b", "c", "neg") || !merged.Has("d") {
		t.Fatalf("Expected union to contain both graphs but got: %v", merged)
	}
	if g1.HasEdge("b", "c", "neg") {
		t.Fatalf("Expected operands to be unchanged")
	}
}

func TestGraphUnionWithEmptyKeepsCache(t *testing.T) {
	g := New()
	g.AddEdge("a", "b", "")
	g.DepthFirstSearch()

	g.UnionWith(New())

	if g.cycles == nil {
		t.Fatalf("Expected in-place union with empty graph to keep cached traversal")
	}
}

func assertCycleEqual(t *testing.T, cycle, exp []string) {
	t.Helper()
	if len(cycle) != len(exp) {
		t.Fatalf("Expected cycle %v but got: %v", exp, cycle)
	}
	offset := -1
	for i, node := range cycle {
		if node == exp[0] {
			offset = i
			break
		}
	}
	if offset == -1 {
		t.Fatalf("Expected cycle %v but got: %v", exp, cycle)
	}
	for i := range exp {
		if cycle[(offset+i)%len(cycle)] != exp[i] {
			t.Fatalf("Expected cycle %v (up to rotation) but got: %v", exp, cycle)
		}
	}
}
