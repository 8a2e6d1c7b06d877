// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package graph

import "testing"

func TestBagNodeRefcount(t *testing.T) {
	g := NewBag()

	g.AddNode("a")
	g.AddNode("a")

	if g.NodeCount("a") != 2 {
		t.Fatalf("Expected node count 2 but got: %d", g.NodeCount("a"))
	}

	g.DeleteNode("a")
	if !g.Has("a") {
		t.Fatalf("Expected node to survive first delete")
	}

	g.DeleteNode("a")
	if g.Has("a") {
		t.Fatalf("Expected node removal at zero count")
	}

	// absent delete is a silent no-op
	g.DeleteNode("a")
	if g.NodeCount("a") != 0 {
		t.Fatalf("Expected count to stay at zero but got: %d", g.NodeCount("a"))
	}
}

func TestBagEdgeRefcount(t *testing.T) {
	g := NewBag()

	g.AddEdge("a", "b", "lbl")
	g.AddEdge("a", "b", "lbl")

	if g.EdgeCount("a", "b", "lbl") != 2 {
		t.Fatalf("Expected edge count 2 but got: %d", g.EdgeCount("a", "b", "lbl"))
	}
	if g.NodeCount("a") != 2 || g.NodeCount("b") != 2 {
		t.Fatalf("Expected endpoint counts 2 but got: a=%d b=%d", g.NodeCount("a"), g.NodeCount("b"))
	}

	g.DeleteEdge("a", "b", "lbl")
	if !g.HasEdge("a", "b", "lbl") {
		t.Fatalf("Expected edge to survive first delete")
	}
	if g.EdgeCount("a", "b", "lbl") != 1 {
		t.Fatalf("Expected edge count 1 but got: %d", g.EdgeCount("a", "b", "lbl"))
	}

	g.DeleteEdge("a", "b", "lbl")
	if g.HasEdge("a", "b", "lbl") {
		t.Fatalf("Expected edge removal at zero count")
	}
	if g.Has("a") || g.Has("b") {
		t.Fatalf("Expected unreferenced endpoints to be removed")
	}
}

func TestBagEdgeLabelIdentity(t *testing.T) {
	g := NewBag()

	g.AddEdge("a", "b", "")
	g.AddEdge("a", "b", "neg")

	if g.DeleteEdge("a", "b", "other") {
		t.Fatalf("Expected delete with unknown label to be a no-op")
	}
	g.DeleteEdge("a", "b", "neg")

	if !g.HasEdge("a", "b", "") {
		t.Fatalf("Expected unlabeled edge to survive labeled delete")
	}
	if g.HasEdge("a", "b", "neg") {
		t.Fatalf("Expected labeled edge to be removed")
	}
}

func TestBagDeleteAbsentEdge(t *testing.T) {
	g := NewBag()
	g.AddNode("a")

	if g.DeleteEdge("a", "b", "") {
		t.Fatalf("Expected delete of absent edge to be a no-op")
	}
	if g.NodeCount("a") != 1 {
		t.Fatalf("Expected node count to be untouched but got: %d", g.NodeCount("a"))
	}
}

func TestBagSharedNodeAcrossEdges(t *testing.T) {
	g := NewBag()

	g.AddEdge("a", "b", "")
	g.AddEdge("b", "c", "")

	g.DeleteEdge("a", "b", "")

	if !g.Has("b") {
		t.Fatalf("Expected b to survive while referenced by b->c")
	}
	if g.Has("a") {
		t.Fatalf("Expected a to be removed with its only edge")
	}

	g.DeleteEdge("b", "c", "")
	if g.Has("b") || g.Has("c") {
		t.Fatalf("Expected all nodes removed once every edge is released")
	}
}

func TestBagQueriesSeeGraph(t *testing.T) {
	g := NewBag()
	g.AddEdge("a", "b", "neg")
	g.AddEdge("b", "a", "neg")

	if !g.HasCycle() {
		t.Fatalf("Expected cycle through bag edges")
	}
	if strata := g.Stratification(map[string]struct{}{"neg": {}}); strata != nil {
		t.Fatalf("Expected nil stratification but got: %v", strata)
	}

	g.DeleteEdge("b", "a", "neg")
	if g.HasCycle() {
		t.Fatalf("Expected cycle to disappear with the edge")
	}
}
