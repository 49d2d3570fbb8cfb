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
	"math/rand/v2"
	"slices"

	"github.com/AleutianAI/regalloc/services/regalloc/graph"
)

// Builder produces degree-stratified random chromosomes.
//
// Description:
//
//	Vertices are split at the median degree, the element at index
//	min((n+1)/2, n-1) of the ascending degree list. Vertices below it form
//	the low block, the rest (ties with the median included) the high block.
//	Each chromosome shuffles both blocks independently and places the low
//	block first, so loosely constrained vertices are colored before the
//	heavily constrained ones.
//
// Thread Safety: Not safe for concurrent use (shares the run's random source).
type Builder struct {
	graph *graph.Graph
	low   []VarID
	high  []VarID
	rng   *rand.Rand
}

// NewBuilder partitions the graph vertices for random chromosome generation.
//
// Inputs:
//   - g: The shared conflict graph. Must have at least one vertex.
//   - rng: The run's random source.
//
// Outputs:
//   - *Builder: The builder.
//   - error: ErrEmptyGraph or ErrNilRandom.
func NewBuilder(g *graph.Graph, rng *rand.Rand) (*Builder, error) {
	if g == nil || g.Len() == 0 {
		return nil, ErrEmptyGraph
	}
	if rng == nil {
		return nil, ErrNilRandom
	}

	ids := g.IDs()
	degrees := make([]uint16, len(ids))
	for i, id := range ids {
		degrees[i] = g.Degree(id)
	}
	slices.Sort(degrees)
	n := len(degrees)
	median := degrees[min((n+1)/2, n-1)]

	b := &Builder{graph: g, rng: rng}
	for _, id := range ids {
		if g.Degree(id) < median {
			b.low = append(b.low, id)
		} else {
			b.high = append(b.high, id)
		}
	}
	return b, nil
}

// Graph returns the shared conflict graph.
func (b *Builder) Graph() *graph.Graph {
	return b.graph
}

// Low returns the ids of the low-degree block in ascending order.
func (b *Builder) Low() []VarID {
	return slices.Clone(b.low)
}

// High returns the ids of the high-degree block in ascending order.
func (b *Builder) High() []VarID {
	return slices.Clone(b.high)
}

// BuildRandom returns a freshly shuffled, decoded chromosome.
func (b *Builder) BuildRandom() *Chromosome {
	low := slices.Clone(b.low)
	high := slices.Clone(b.high)

	b.rng.Shuffle(len(low), func(i, j int) { low[i], low[j] = low[j], low[i] })
	b.rng.Shuffle(len(high), func(i, j int) { high[i], high[j] = high[j], high[i] })

	c := &Chromosome{
		gene:  append(low, high...),
		graph: b.graph,
	}
	c.decode()
	return c
}
