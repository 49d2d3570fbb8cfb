// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph builds the variable conflict (interference) graph.
//
// Architecture:
//
//	lifetimes ──► Build ──► *Graph ──┬──► chromosomes (decode)
//	                                 ├──► chromosome builder (degree split)
//	                                 ├──► evaluation matrix (crossover repair)
//	                                 └──► WriteDOT (visualization)
//
// The graph is immutable once built and is shared by pointer. Every reader
// sees the same canonical instance; nothing copies it.
package graph

import (
	"slices"

	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
)

// VarID aliases the lifetime variable identifier.
type VarID = lifetime.VarID

// -----------------------------------------------------------------------------
// Node
// -----------------------------------------------------------------------------

// Node is one vertex of the conflict graph.
type Node struct {
	// Degree is the number of adjacent vertices.
	Degree uint16

	adjacency map[VarID]struct{}
	neighbors []VarID
}

// IsAdjacent reports whether id conflicts with this node.
func (n *Node) IsAdjacent(id VarID) bool {
	_, ok := n.adjacency[id]
	return ok
}

// Neighbors returns the adjacent ids in ascending order.
//
// The returned slice is shared and must not be modified.
func (n *Node) Neighbors() []VarID {
	return n.neighbors
}

// -----------------------------------------------------------------------------
// Graph
// -----------------------------------------------------------------------------

// Graph is an undirected conflict graph keyed by variable id.
//
// Thread Safety: Immutable after Build; safe for concurrent reads.
type Graph struct {
	nodes map[VarID]*Node
	ids   []VarID
	index map[VarID]int
	edges int
}

// Edge is an unordered conflict between two variables, U < V.
type Edge struct {
	U VarID
	V VarID
}

// Build creates the conflict graph of the given lifetimes.
//
// Description:
//
//	Tests every unordered pair of distinct variables for overlap (O(V²)).
//	An overlapping pair is recorded on both endpoints, so adjacency is
//	symmetric regardless of how Overlaps is evaluated. Ids are visited in
//	ascending order to keep neighbor lists deterministic.
//
// Inputs:
//   - lifetimes: Variable id to lifetime mapping.
//
// Outputs:
//   - *Graph: The immutable conflict graph.
func Build(lifetimes map[VarID]lifetime.Lifetime) *Graph {
	ids := make([]VarID, 0, len(lifetimes))
	for id := range lifetimes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	g := &Graph{
		nodes: make(map[VarID]*Node, len(ids)),
		ids:   ids,
		index: make(map[VarID]int, len(ids)),
	}
	for i, id := range ids {
		g.nodes[id] = &Node{adjacency: make(map[VarID]struct{})}
		g.index[id] = i
	}

	for i, u := range ids {
		lu := lifetimes[u]
		for _, v := range ids[i+1:] {
			lv := lifetimes[v]
			if lu.Overlaps(lv) || lv.Overlaps(lu) {
				g.nodes[u].adjacency[v] = struct{}{}
				g.nodes[v].adjacency[u] = struct{}{}
				g.edges++
			}
		}
	}

	for _, id := range ids {
		n := g.nodes[id]
		n.Degree = uint16(len(n.adjacency))
		n.neighbors = make([]VarID, 0, len(n.adjacency))
		for adj := range n.adjacency {
			n.neighbors = append(n.neighbors, adj)
		}
		slices.Sort(n.neighbors)
	}

	return g
}

// FromTable builds the conflict graph of an accepted lifetime table.
func FromTable(t *lifetime.Table) *Graph {
	return Build(t.Lifetimes())
}

// Len returns the number of vertices.
func (g *Graph) Len() int {
	return len(g.ids)
}

// EdgeCount returns the number of undirected edges.
func (g *Graph) EdgeCount() int {
	return g.edges
}

// IDs returns the vertex ids in ascending order.
func (g *Graph) IDs() []VarID {
	return slices.Clone(g.ids)
}

// Node returns the vertex for id.
func (g *Graph) Node(id VarID) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Has reports whether id is a vertex.
func (g *Graph) Has(id VarID) bool {
	_, ok := g.nodes[id]
	return ok
}

// Degree returns the degree of id, or 0 if id is not a vertex.
func (g *Graph) Degree(id VarID) uint16 {
	if n, ok := g.nodes[id]; ok {
		return n.Degree
	}
	return 0
}

// Adjacent reports whether u and v conflict.
func (g *Graph) Adjacent(u, v VarID) bool {
	n, ok := g.nodes[u]
	return ok && n.IsAdjacent(v)
}

// Index returns the dense position of id in IDs().
func (g *Graph) Index(id VarID) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Edges returns every edge once, sorted by (U, V).
func (g *Graph) Edges() []Edge {
	edges := make([]Edge, 0, g.edges)
	for _, u := range g.ids {
		for _, v := range g.nodes[u].neighbors {
			if u < v {
				edges = append(edges, Edge{U: u, V: v})
			}
		}
	}
	return edges
}
