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

	"github.com/AleutianAI/regalloc/services/regalloc/graph"
)

// EvalMatrix holds the crossover repair weight of every ordered vertex pair.
//
// Description:
//
//	w(a, b) = deg(a) + deg(b) + N/2 when a and b are adjacent, where N is the
//	vertex count (integer division). Lower weight means b is a better
//	successor of a during repair. The diagonal is zero and never consulted.
//
// Thread Safety: Immutable after construction; safe for concurrent reads.
type EvalMatrix struct {
	graph   *graph.Graph
	n       int
	weights []uint32
}

// NewEvalMatrix computes the repair weights for g.
func NewEvalMatrix(g *graph.Graph) *EvalMatrix {
	ids := g.IDs()
	n := len(ids)
	penalty := uint32(n / 2)

	m := &EvalMatrix{
		graph:   g,
		n:       n,
		weights: make([]uint32, n*n),
	}
	for i, a := range ids {
		da := uint32(g.Degree(a))
		for j, b := range ids {
			if i == j {
				continue
			}
			w := da + uint32(g.Degree(b))
			if g.Adjacent(a, b) {
				w += penalty
			}
			m.weights[i*n+j] = w
		}
	}
	return m
}

// Graph returns the graph the matrix was computed from.
func (m *EvalMatrix) Graph() *graph.Graph {
	return m.graph
}

// Weight returns w(a, b).
//
// Panics if either id is not a vertex of the matrix's graph.
func (m *EvalMatrix) Weight(a, b VarID) uint32 {
	i, ok := m.graph.Index(a)
	if !ok {
		panic(fmt.Sprintf("genalg: v%d is not in the evaluation matrix", a))
	}
	j, ok := m.graph.Index(b)
	if !ok {
		panic(fmt.Sprintf("genalg: v%d is not in the evaluation matrix", b))
	}
	return m.weights[i*m.n+j]
}
