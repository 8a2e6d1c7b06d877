// Copyright 2025 The Stratalog Authors.  All rights reserved.
// Use of this source code is governed by an Apache2
// license that can be found in the LICENSE file.

// Package graph provides the dependency analysis used to certify that
// a set of rules is safely evaluable: cycle detection over table
// dependencies and stratification with respect to negation.
package graph

import (
	"fmt"
	"strings"

	"github.com/stratalog/stratalog/util"
)

// Edge is an outgoing labeled edge. Edge identity is the structural
// (from, to, label) triple; the label participates in identity, so the
// same node pair may be connected once per label.
type Edge struct {
	To    string
	Label string
}

func (e Edge) String() string {
	if e.Label == "" {
		return e.To
	}
	return fmt.Sprintf("%v[%v]", e.To, e.Label)
}

// Graph is a directed, labeled multigraph over opaque node identifiers
// (table names in practice). Derived traversal state (discovery/finish
// timestamps and detected cycles) is cached and invalidated by every
// structural mutation, then recomputed lazily on the next query.
//
// Graph is not safe for concurrent use.
type Graph struct {
	nodes *util.OrderedSet[string, string]
	edges map[string]*util.OrderedSet[Edge, Edge]

	// cached traversal state, valid while cycles != nil
	begin    map[string]int
	end      map[string]int
	counter  int
	backpath map[string]string
	cycles   [][]string
	rooted   bool
	root     string
}

// New returns an empty Graph.
func New() *Graph {
	return &Graph{
		nodes: util.NewOrderedSet[string, string](nodeKey),
		edges: map[string]*util.OrderedSet[Edge, Edge]{},
	}
}

func nodeKey(v string) string { return v }
func edgeKey(e Edge) Edge     { return e }

func (g *Graph) invalidate() {
	g.begin = nil
	g.end = nil
	g.backpath = nil
	g.cycles = nil
	g.rooted = false
	g.root = ""
}

// AddNode adds node v. The return value indicates whether the graph
// changed.
func (g *Graph) AddNode(v string) bool {
	if !g.nodes.Add(v) {
		return false
	}
	g.invalidate()
	return true
}

// DeleteNode removes node v and every incident edge. Deleting an
// absent node is a no-op.
func (g *Graph) DeleteNode(v string) bool {
	if !g.nodes.Discard(v) {
		return false
	}
	delete(g.edges, v)
	for _, edges := range g.edges {
		for _, edge := range edges.Slice() {
			if edge.To == v {
				edges.Discard(edge)
			}
		}
	}
	g.invalidate()
	return true
}

// AddEdge adds an edge from u to v with the given label, adding both
// endpoint nodes if absent.
func (g *Graph) AddEdge(u, v, label string) {
	g.nodes.Add(u)
	g.nodes.Add(v)
	edges, ok := g.edges[u]
	if !ok {
		edges = util.NewOrderedSet[Edge, Edge](edgeKey)
		g.edges[u] = edges
	}
	edges.Add(Edge{To: v, Label: label})
	g.invalidate()
}

// DeleteEdge removes the edge from u to v with exactly the given
// label. Nodes are not removed. Deleting an absent edge is a no-op.
func (g *Graph) DeleteEdge(u, v, label string) bool {
	edges, ok := g.edges[u]
	if !ok {
		return false
	}
	if !edges.Discard(Edge{To: v, Label: label}) {
		return false
	}
	if edges.Len() == 0 {
		delete(g.edges, u)
	}
	g.invalidate()
	return true
}

// Has returns true if node v is in the graph.
func (g *Graph) Has(v string) bool {
	return g.nodes.Contains(v)
}

// HasEdge returns true if the edge from u to v with exactly the given
// label is in the graph.
func (g *Graph) HasEdge(u, v, label string) bool {
	edges, ok := g.edges[u]
	return ok && edges.Contains(Edge{To: v, Label: label})
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	return g.nodes.Slice()
}

// Edges returns the outgoing edges of u in insertion order.
func (g *Graph) Edges(u string) []Edge {
	if edges, ok := g.edges[u]; ok {
		return edges.Slice()
	}
	return nil
}

// Len returns the number of nodes plus the number of edges.
func (g *Graph) Len() int {
	n := g.nodes.Len()
	for _, edges := range g.edges {
		n += edges.Len()
	}
	return n
}

// DepthFirstSearch traverses the whole graph, assigning strictly
// increasing discovery and finish timestamps from one shared counter
// and recording every cycle encountered. The results are cached until
// the next mutation.
func (g *Graph) DepthFirstSearch() {
	g.reset()
	g.nodes.Iter(func(node string) bool {
		if _, ok := g.begin[node]; !ok {
			g.dfs(node)
		}
		return false
	})
}

// depthFirstSearchNode traverses only the subgraph reachable from
// node. The cached state afterwards covers that subgraph alone.
func (g *Graph) depthFirstSearchNode(node string) {
	g.reset()
	g.dfs(node)
	g.rooted = true
	g.root = node
}

func (g *Graph) reset() {
	g.begin = make(map[string]int, g.nodes.Len())
	g.end = make(map[string]int, g.nodes.Len())
	g.backpath = map[string]string{}
	g.counter = 0
	g.cycles = [][]string{}
	g.rooted = false
	g.root = ""
}

func (g *Graph) dfs(node string) {
	g.begin[node] = g.nextCounter()
	if edges, ok := g.edges[node]; ok {
		edges.Iter(func(edge Edge) bool {
			if _, discovered := g.begin[edge.To]; !discovered {
				g.backpath[edge.To] = node
				g.dfs(edge.To)
			} else if _, finished := g.end[edge.To]; !finished {
				g.cycles = append(g.cycles, g.constructCycle(node, edge.To))
			}
			return false
		})
	}
	g.end[node] = g.nextCounter()
}

// constructCycle returns the nodes of the cycle closed by the edge
// from u back to ancestor v, beginning at v.
func (g *Graph) constructCycle(u, v string) []string {
	path := []string{u}
	for current := u; current != v; {
		current = g.backpath[current]
		path = append(path, current)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

func (g *Graph) nextCounter() int {
	g.counter++
	return g.counter - 1
}

// ensureTraversal recomputes the global traversal if the cache is
// missing or only covers a rooted subgraph.
func (g *Graph) ensureTraversal() {
	if g.cycles == nil || g.rooted {
		g.DepthFirstSearch()
	}
}

// HasCycle returns true if the graph contains at least one cycle.
func (g *Graph) HasCycle() bool {
	g.ensureTraversal()
	return len(g.cycles) > 0
}

// Cycles returns the detected cycles. Each cycle is the sequence of
// distinct nodes along it, starting from the first node discovered.
func (g *Graph) Cycles() [][]string {
	g.ensureTraversal()
	return g.cycles
}

// Interval returns the discovery and finish timestamps assigned to
// node by the cached traversal, running one if needed.
func (g *Graph) Interval(node string) (begin, end int, ok bool) {
	g.ensureTraversal()
	if begin, ok = g.begin[node]; !ok {
		return 0, 0, false
	}
	return begin, g.end[node], true
}

// Dependencies returns every node reachable from node, including
// itself: all nodes whose traversal interval nests inside node's
// interval after a traversal rooted there. Returns false if node is
// absent.
func (g *Graph) Dependencies(node string) (map[string]struct{}, bool) {
	if !g.Has(node) {
		return nil, false
	}
	if g.cycles == nil || !g.rooted || g.root != node {
		g.depthFirstSearchNode(node)
	}
	begin := g.begin[node]
	end := g.end[node]
	deps := map[string]struct{}{}
	for n, b := range g.begin {
		if e, finished := g.end[n]; finished && begin <= b && e <= end {
			deps[n] = struct{}{}
		}
	}
	return deps, true
}

// Roots returns the nodes with no incoming edge, in insertion order.
func (g *Graph) Roots() []string {
	incoming := map[string]struct{}{}
	for _, edges := range g.edges {
		edges.Iter(func(edge Edge) bool {
			incoming[edge.To] = struct{}{}
			return false
		})
	}
	var roots []string
	g.nodes.Iter(func(node string) bool {
		if _, ok := incoming[node]; !ok {
			roots = append(roots, node)
		}
		return false
	})
	return roots
}

// Stratification assigns a positive stratum to every node such that
// for every edge (u -> v), stratum[u] >= stratum[v], strictly greater
// when the edge's label is in labels. Returns nil when no assignment
// exists, i.e. when some cycle passes through an edge with a label in
// labels. The fixpoint is bounded by the node count, so it always
// terminates.
func (g *Graph) Stratification(labels map[string]struct{}) map[string]int {
	stratum := make(map[string]int, g.nodes.Len())
	g.nodes.Iter(func(node string) bool {
		stratum[node] = 1
		return false
	})
	total := g.nodes.Len()
	for changed := true; changed; {
		changed = false
		diverged := false
		g.nodes.Iter(func(node string) bool {
			edges, ok := g.edges[node]
			if !ok {
				return false
			}
			return edges.Iter(func(edge Edge) bool {
				next := stratum[edge.To]
				if _, ok := labels[edge.Label]; ok {
					next++
				}
				if next > stratum[node] {
					stratum[node] = next
					changed = true
					if next > total {
						diverged = true
						return true
					}
				}
				return false
			})
		})
		if diverged {
			return nil
		}
	}
	return stratum
}

// Union returns a new graph containing the nodes and edges of both
// graphs.
func (g *Graph) Union(other *Graph) *Graph {
	result := New()
	result.UnionWith(g)
	result.UnionWith(other)
	return result
}

// UnionWith adds the nodes and edges of other to g. A union with an
// empty graph is a no-op and does not invalidate cached traversal
// state.
func (g *Graph) UnionWith(other *Graph) {
	if other.Len() == 0 {
		return
	}
	other.nodes.Iter(func(node string) bool {
		g.AddNode(node)
		return false
	})
	for from, edges := range other.edges {
		edges.Iter(func(edge Edge) bool {
			g.AddEdge(from, edge.To, edge.Label)
			return false
		})
	}
}

func (g *Graph) String() string {
	var buf strings.Builder
	buf.WriteString("{")
	first := true
	g.nodes.Iter(func(node string) bool {
		if !first {
			buf.WriteString(", ")
		}
		first = false
		buf.WriteString(node)
		buf.WriteString(": [")
		if edges, ok := g.edges[node]; ok {
			for i, edge := range edges.Slice() {
				if i > 0 {
					buf.WriteString(", ")
				}
				buf.WriteString(edge.String())
			}
		}
		buf.WriteString("]")
		return false
	})
	buf.WriteString("}")
	return buf.String()
}
