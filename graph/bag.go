// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

package graph

// bagEdge identifies an edge for reference counting. The label is part
// of edge identity.
type bagEdge struct {
	From  string
	To    string
	Label string
}

// BagGraph is a Graph with bag semantics for nodes and edges: each
// node and each (from, to, label) triple carries a reference count,
// incremented on insertion and decremented on deletion. The underlying
// graph entry is removed only when the count reaches zero. Deleting an
// absent node or edge is a silent no-op, so counts never go negative.
//
// Adding an edge also counts one reference against each endpoint node;
// deleting a present edge releases those references.
type BagGraph struct {
	*Graph
	nodeRefs map[string]int
	edgeRefs map[bagEdge]int
}

// NewBag returns an empty BagGraph.
func NewBag() *BagGraph {
	return &BagGraph{
		Graph:    New(),
		nodeRefs: map[string]int{},
		edgeRefs: map[bagEdge]int{},
	}
}

// AddNode adds one reference to node v, adding it to the graph on the
// first. The return value indicates whether the graph gained the node.
func (g *BagGraph) AddNode(v string) bool {
	g.nodeRefs[v]++
	return g.Graph.AddNode(v)
}

// DeleteNode releases one reference to node v, removing it from the
// graph (with its incident edges) when no references remain.
func (g *BagGraph) DeleteNode(v string) bool {
	count, ok := g.nodeRefs[v]
	if !ok {
		return false
	}
	if count > 1 {
		g.nodeRefs[v] = count - 1
		return false
	}
	delete(g.nodeRefs, v)
	return g.Graph.DeleteNode(v)
}

// AddEdge adds one reference to the edge from u to v with the given
// label, and one reference to each endpoint node.
func (g *BagGraph) AddEdge(u, v, label string) {
	g.AddNode(u)
	g.AddNode(v)
	g.edgeRefs[bagEdge{From: u, To: v, Label: label}]++
	g.Graph.AddEdge(u, v, label)
}

// DeleteEdge releases one reference to the edge from u to v with
// exactly the given label, removing it when no references remain.
// When the edge is present, one reference to each endpoint node is
// released as well. Deleting an absent edge is a no-op.
func (g *BagGraph) DeleteEdge(u, v, label string) bool {
	key := bagEdge{From: u, To: v, Label: label}
	count, ok := g.edgeRefs[key]
	if !ok {
		return false
	}
	g.DeleteNode(u)
	g.DeleteNode(v)
	if count > 1 {
		g.edgeRefs[key] = count - 1
		return false
	}
	delete(g.edgeRefs, key)
	return g.Graph.DeleteEdge(u, v, label)
}

// NodeCount returns the reference count of node v, zero if absent.
func (g *BagGraph) NodeCount(v string) int {
	return g.nodeRefs[v]
}

// EdgeCount returns the reference count of the edge from u to v with
// exactly the given label, zero if absent.
func (g *BagGraph) EdgeCount(u, v, label string) int {
	return g.edgeRefs[bagEdge{From: u, To: v, Label: label}]
}

// Len returns the total number of node and edge references held.
func (g *BagGraph) Len() int {
	n := 0
	for _, count := range g.nodeRefs {
		n += count
	}
	for _, count := range g.edgeRefs {
		n += count
	}
	return n
}
