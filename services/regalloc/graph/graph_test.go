// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"bytes"
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pathLifetimes is A(0,2) B(1,3) C(3,5) D(4,4): edges A-B, B-C, C-D.
func pathLifetimes() map[VarID]lifetime.Lifetime {
	return map[VarID]lifetime.Lifetime{
		1: {ID: 1, Def: 0, Use: 2},
		2: {ID: 2, Def: 1, Use: 3},
		3: {ID: 3, Def: 3, Use: 5},
		4: {ID: 4, Def: 4, Use: 4},
	}
}

func TestBuild_PathGraph(t *testing.T) {
	g := Build(pathLifetimes())

	assert.Equal(t, 4, g.Len())
	assert.Equal(t, 3, g.EdgeCount())
	assert.Equal(t, []VarID{1, 2, 3, 4}, g.IDs())
	assert.Equal(t, []Edge{{1, 2}, {2, 3}, {3, 4}}, g.Edges())

	assert.True(t, g.Adjacent(1, 2))
	assert.True(t, g.Adjacent(2, 1))
	assert.False(t, g.Adjacent(1, 3))
	assert.False(t, g.Adjacent(2, 4))
	assert.False(t, g.Adjacent(1, 99))

	assert.Equal(t, uint16(1), g.Degree(1))
	assert.Equal(t, uint16(2), g.Degree(2))
	assert.Equal(t, uint16(0), g.Degree(99))

	n, ok := g.Node(3)
	require.True(t, ok)
	assert.Equal(t, []VarID{2, 4}, n.Neighbors())

	idx, ok := g.Index(3)
	require.True(t, ok)
	assert.Equal(t, 2, idx)
	assert.True(t, g.Has(4))
	assert.False(t, g.Has(5))
}

func TestBuild_AdjacencyMatchesOverlap(t *testing.T) {
	rng := rand.New(rand.NewPCG(11, 17))
	lifetimes := make(map[VarID]lifetime.Lifetime)
	for id := VarID(0); id < 40; id++ {
		def := lifetime.Cycle(rng.IntN(50))
		use := def + lifetime.Cycle(rng.IntN(8))
		lt, err := lifetime.New(id, def, use)
		require.NoError(t, err)
		lifetimes[id] = lt
	}

	g := Build(lifetimes)
	for _, u := range g.IDs() {
		nu, _ := g.Node(u)
		assert.Equal(t, int(nu.Degree), len(nu.Neighbors()))
		for _, v := range g.IDs() {
			if u == v {
				assert.False(t, g.Adjacent(u, v), "no self loops")
				continue
			}
			want := lifetimes[u].Overlaps(lifetimes[v])
			assert.Equal(t, want, g.Adjacent(u, v))
			assert.Equal(t, g.Adjacent(u, v), g.Adjacent(v, u))
		}
	}
}

func TestBuild_Empty(t *testing.T) {
	g := Build(nil)
	assert.Equal(t, 0, g.Len())
	assert.Empty(t, g.Edges())
}

func TestFromTable(t *testing.T) {
	table, err := lifetime.NewTable(5, []lifetime.Lifetime{
		{ID: 1, Def: 0, Use: 2},
		{ID: 2, Def: 1, Use: 3},
	})
	require.NoError(t, err)

	g := FromTable(table)
	assert.True(t, g.Adjacent(1, 2))
}

func TestWriteDOT(t *testing.T) {
	g := Build(pathLifetimes())

	t.Run("without coloring", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteDOT[uint16](&buf, g, nil))

		out := buf.String()
		assert.True(t, strings.HasPrefix(out, "graph conflicts {"))
		assert.Contains(t, out, "v1 -- v2;")
		assert.Contains(t, out, "v3 -- v4;")
		assert.NotContains(t, out, "v1 -- v3;")
		assert.Contains(t, out, `v4 [label="v4"];`)
	})

	t.Run("with coloring", func(t *testing.T) {
		var buf bytes.Buffer
		coloring := map[VarID]uint16{1: 0, 2: 1, 3: 0, 4: 1}
		require.NoError(t, WriteDOT(&buf, g, coloring))
		assert.Contains(t, buf.String(), `v2 [label="v2\nR1"`)
	})
}
