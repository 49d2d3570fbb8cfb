// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package genalg

import (
	"fmt"
	"slices"
	"strings"

	"github.com/AleutianAI/regalloc/services/regalloc/graph"
	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
)

// VarID aliases the lifetime variable identifier.
type VarID = lifetime.VarID

// Color is an abstract register index.
type Color uint16

// -----------------------------------------------------------------------------
// Decode
// -----------------------------------------------------------------------------

// Decode colors the graph by visiting vertices in gene order.
//
// Description:
//
//	A single frontier color starts at 0. For each vertex, if any neighbor
//	colored earlier in this pass holds the frontier, the frontier advances by
//	one. The vertex then takes the frontier. The frontier never decreases, so
//	a color left behind is never reused.
//
// Inputs:
//   - gene: Visitation order. Must be non-empty and contain only graph vertices.
//   - g: The conflict graph.
//
// Outputs:
//   - uint16: Number of colors used (frontier + 1).
//   - map[VarID]Color: The proper coloring.
//
// Panics on an empty gene or an id that is not a graph vertex.
func Decode(gene []VarID, g *graph.Graph) (uint16, map[VarID]Color) {
	if len(gene) == 0 {
		panic("genalg: decode of an empty gene")
	}

	coloring := make(map[VarID]Color, len(gene))
	var frontier Color

	for _, id := range gene {
		node, ok := g.Node(id)
		if !ok {
			panic(fmt.Sprintf("genalg: gene holds v%d which is not a graph vertex", id))
		}
		for _, adj := range node.Neighbors() {
			if c, colored := coloring[adj]; colored && c == frontier {
				frontier++
				break
			}
		}
		coloring[id] = frontier
	}

	return uint16(frontier) + 1, coloring
}

// -----------------------------------------------------------------------------
// Chromosome
// -----------------------------------------------------------------------------

type decodeState uint8

const (
	stateStale decodeState = iota
	stateDecoded
)

// Chromosome is an ordering of every graph vertex with a cached decode.
//
// Description:
//
//	The cache follows a two-state machine: stale holds only the gene, decoded
//	also holds phene and coloring. Any gene change moves it to stale; the next
//	Phene or Coloring call decodes and moves it back.
//
// Thread Safety: Not safe for concurrent use. Reads may fill the cache.
type Chromosome struct {
	gene  []VarID
	graph *graph.Graph

	state    decodeState
	phene    uint16
	coloring map[VarID]Color
}

// NewChromosome creates a chromosome from an explicit gene.
//
// Inputs:
//   - g: The shared conflict graph.
//   - gene: A permutation of g's vertices. Copied.
//
// Outputs:
//   - *Chromosome: Undecoded chromosome.
//   - error: ErrNotPermutation if gene is not a permutation of g's vertices.
func NewChromosome(g *graph.Graph, gene []VarID) (*Chromosome, error) {
	if err := checkPermutation(g, gene); err != nil {
		return nil, err
	}
	return &Chromosome{gene: slices.Clone(gene), graph: g}, nil
}

// Len returns the gene length.
func (c *Chromosome) Len() int {
	return len(c.gene)
}

// Gene returns a copy of the visitation order.
func (c *Chromosome) Gene() []VarID {
	return slices.Clone(c.gene)
}

// Graph returns the shared conflict graph.
func (c *Chromosome) Graph() *graph.Graph {
	return c.graph
}

// Decoded reports whether the cached decode is current.
func (c *Chromosome) Decoded() bool {
	return c.state == stateDecoded
}

// Phene returns the color count of the decoded gene. Lower is better.
func (c *Chromosome) Phene() uint16 {
	c.decode()
	return c.phene
}

// Coloring returns the decoded coloring.
//
// The map is shared with the cache and must not be modified.
func (c *Chromosome) Coloring() map[VarID]Color {
	c.decode()
	return c.coloring
}

// SwapGenes exchanges the genes at two loci and invalidates the cache.
//
// Panics if either locus is outside [0, Len()).
func (c *Chromosome) SwapGenes(a, b int) {
	if a < 0 || a >= len(c.gene) || b < 0 || b >= len(c.gene) {
		panic(fmt.Sprintf("genalg: locus out of bounds: swap(%d, %d) on length %d", a, b, len(c.gene)))
	}
	c.gene[a], c.gene[b] = c.gene[b], c.gene[a]
	c.invalidate()
}

// Clone returns an independent copy sharing the graph.
//
// The cached coloring map is shared; it is never mutated in place.
func (c *Chromosome) Clone() *Chromosome {
	return &Chromosome{
		gene:     slices.Clone(c.gene),
		graph:    c.graph,
		state:    c.state,
		phene:    c.phene,
		coloring: c.coloring,
	}
}

// Validate checks the permutation invariant and that the coloring is proper.
func (c *Chromosome) Validate() error {
	if err := checkPermutation(c.graph, c.gene); err != nil {
		return err
	}
	coloring := c.Coloring()
	for _, e := range c.graph.Edges() {
		if coloring[e.U] == coloring[e.V] {
			return fmt.Errorf("%w: v%d and v%d hold R%d", ErrImproperColoring, e.U, e.V, coloring[e.U])
		}
	}
	return nil
}

// String renders the gene and, when decoded, the phene.
func (c *Chromosome) String() string {
	var sb strings.Builder
	sb.WriteString("gene: [")
	for i, id := range c.gene {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "v%d", id)
	}
	sb.WriteByte(']')
	if c.state == stateDecoded {
		fmt.Fprintf(&sb, ", phene: %d", c.phene)
	}
	return sb.String()
}

func (c *Chromosome) decode() {
	if c.state == stateDecoded {
		return
	}
	c.phene, c.coloring = Decode(c.gene, c.graph)
	c.state = stateDecoded
}

func (c *Chromosome) invalidate() {
	c.state = stateStale
	c.phene = 0
	c.coloring = nil
}

func checkPermutation(g *graph.Graph, gene []VarID) error {
	if len(gene) != g.Len() {
		return fmt.Errorf("%w: length %d, graph has %d vertices", ErrNotPermutation, len(gene), g.Len())
	}
	seen := make(map[VarID]struct{}, len(gene))
	for _, id := range gene {
		if !g.Has(id) {
			return fmt.Errorf("%w: v%d is not a vertex", ErrNotPermutation, id)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: v%d appears twice", ErrNotPermutation, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
