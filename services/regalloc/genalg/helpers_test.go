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
	"testing"

	"github.com/AleutianAI/regalloc/services/regalloc/graph"
	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
	"github.com/stretchr/testify/require"
)

// pathGraph is A(0,2) B(1,3) C(3,5) D(4,4) with A..D as ids 1..4.
func pathGraph() *graph.Graph {
	return graph.Build(map[VarID]lifetime.Lifetime{
		1: {ID: 1, Def: 0, Use: 2},
		2: {ID: 2, Def: 1, Use: 3},
		3: {ID: 3, Def: 3, Use: 5},
		4: {ID: 4, Def: 4, Use: 4},
	})
}

// randomGraph builds a graph over n variables with random short lifetimes.
func randomGraph(seed uint64, n int) *graph.Graph {
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
	lifetimes := make(map[VarID]lifetime.Lifetime, n)
	for i := range n {
		def := lifetime.Cycle(rng.IntN(60))
		use := def + lifetime.Cycle(rng.IntN(12))
		id := VarID(i + 1)
		lifetimes[id] = lifetime.Lifetime{ID: id, Def: def, Use: use}
	}
	return graph.Build(lifetimes)
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0))
}

func mustChromosome(t *testing.T, g *graph.Graph, gene ...VarID) *Chromosome {
	t.Helper()
	c, err := NewChromosome(g, gene)
	require.NoError(t, err)
	return c
}

// requireProper fails if c breaks the permutation or coloring invariants.
func requireProper(t *testing.T, c *Chromosome) {
	t.Helper()
	require.NoError(t, c.Validate(), c.String())
}
