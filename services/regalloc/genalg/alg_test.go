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
	"bytes"
	"errors"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/AleutianAI/regalloc/services/regalloc/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGenAlg(t *testing.T, g *graph.Graph, rng *rand.Rand, mutation, cross Ratio) *GenAlg {
	t.Helper()
	b, err := NewBuilder(g, rng)
	require.NoError(t, err)
	ga, err := NewGenAlg(b, nil, mutation, cross, rng)
	require.NoError(t, err)
	return ga
}

func requirePopulationValid(t *testing.T, ga *GenAlg) {
	t.Helper()
	for _, c := range ga.Population() {
		requireProper(t, c)
	}
	for _, c := range ga.NextGen() {
		requireProper(t, c)
	}
	for _, c := range ga.Pool() {
		requireProper(t, c)
	}
}

func TestNewGenAlg_Errors(t *testing.T) {
	rng := newRand(1)
	b, err := NewBuilder(pathGraph(), rng)
	require.NoError(t, err)

	tests := []struct {
		name     string
		builder  *Builder
		rng      *rand.Rand
		mutation Ratio
		cross    Ratio
		want     error
	}{
		{"nil builder", nil, rng, Ratio{1, 2}, Ratio{1, 1}, ErrEmptyGraph},
		{"nil rng", b, nil, Ratio{1, 2}, Ratio{1, 1}, ErrNilRandom},
		{"zero mutation denominator", b, rng, Ratio{1, 0}, Ratio{1, 1}, ErrInvalidRatio},
		{"cross above one", b, rng, Ratio{1, 2}, Ratio{3, 2}, ErrInvalidRatio},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ga, err := NewGenAlg(tt.builder, nil, tt.mutation, tt.cross, tt.rng)
			assert.Nil(t, ga)
			require.ErrorIs(t, err, tt.want)

			var algErr *AlgorithmError
			require.True(t, errors.As(err, &algErr))
			assert.Equal(t, "NewGenAlg", algErr.Operation)
			assert.Contains(t, err.Error(), "genalg.NewGenAlg: ")
		})
	}
}

func TestGenAlg_EndToEndPathGraph(t *testing.T) {
	for seed := range uint64(50) {
		rng := newRand(seed)
		ga := newGenAlg(t, pathGraph(), rng, Ratio{Num: 1, Den: 2}, Ratio{Num: 1, Den: 1})

		ga.Gen(4)
		require.Len(t, ga.Population(), 4)
		requirePopulationValid(t, ga)
		worst0 := ga.Stats().Worst

		ga.Select(4)
		assert.Len(t, ga.Pool(), 4)
		requirePopulationValid(t, ga)

		ga.Cross()
		assert.Empty(t, ga.Pool())
		assert.Len(t, ga.NextGen(), 8, "cross ratio 1/1 pairs every pool member")
		requirePopulationValid(t, ga)

		ga.Mutate()
		requirePopulationValid(t, ga)

		ga.Accept()
		assert.Empty(t, ga.NextGen())
		assert.Len(t, ga.Population(), 12)
		requirePopulationValid(t, ga)

		ga.Reduce(4)
		assert.Len(t, ga.Population(), 4)
		requirePopulationValid(t, ga)

		winner, ok := ga.PickWinner()
		require.True(t, ok)
		assert.LessOrEqual(t, winner.Phene(), worst0)
		assert.GreaterOrEqual(t, winner.Phene(), uint16(2), "path graph needs two registers")
	}
}

func TestGenAlg_StepConverges(t *testing.T) {
	g := randomGraph(8, 40)
	ga := newGenAlg(t, g, newRand(8), Ratio{Num: 1, Den: 4}, Ratio{Num: 3, Den: 4})

	ga.Gen(30)
	initial := ga.Stats()
	assert.Equal(t, 0, initial.Generation)

	var last GenerationStats
	for range 25 {
		last = ga.Step(20, 30)
		require.Equal(t, 30, last.Size)
		requirePopulationValid(t, ga)
	}
	assert.Equal(t, 25, last.Generation)
	assert.Equal(t, 25, ga.Generation())
	// Elite reduction keeps the best member of every generation.
	assert.LessOrEqual(t, last.Best, initial.Best)
	assert.LessOrEqual(t, float64(last.Best), last.Mean)
	assert.LessOrEqual(t, last.Mean, float64(last.Worst))
}

func TestGenAlg_SeededRunsReproduce(t *testing.T) {
	g := randomGraph(12, 30)
	run := func() ([]VarID, GenerationStats) {
		ga := newGenAlg(t, g, newRand(99), Ratio{Num: 1, Den: 3}, Ratio{Num: 2, Den: 3})
		ga.Gen(16)
		var stats GenerationStats
		for range 10 {
			stats = ga.Step(10, 16)
		}
		w, ok := ga.PickWinner()
		require.True(t, ok)
		return w.Gene(), stats
	}

	geneA, statsA := run()
	geneB, statsB := run()
	assert.Equal(t, geneA, geneB)
	assert.Equal(t, statsA, statsB)
}

func TestGenAlg_EmptyStagesAreNoOps(t *testing.T) {
	ga := newGenAlg(t, pathGraph(), newRand(2), Ratio{Num: 1, Den: 1}, Ratio{Num: 1, Den: 1})

	_, ok := ga.PickWinner()
	assert.False(t, ok)
	assert.Equal(t, GenerationStats{}, ga.Stats())

	ga.Select(4)
	ga.Cross()
	ga.Mutate()
	ga.Accept()
	ga.Reduce(4)
	assert.Empty(t, ga.Population())
	assert.Empty(t, ga.NextGen())
}

func TestGenAlg_CrossRatioZeroProducesNoOffspring(t *testing.T) {
	ga := newGenAlg(t, pathGraph(), newRand(4), Ratio{Num: 1, Den: 1}, Ratio{Num: 0, Den: 1})
	ga.Gen(4)
	ga.Select(4)
	ga.Cross()

	assert.Empty(t, ga.Pool())
	assert.Empty(t, ga.NextGen())
}

func TestGenAlg_PickWinnerIsMinimal(t *testing.T) {
	ga := newGenAlg(t, randomGraph(6, 25), newRand(6), Ratio{Num: 1, Den: 2}, Ratio{Num: 1, Den: 2})
	ga.Gen(20)

	winner, ok := ga.PickWinner()
	require.True(t, ok)
	for _, c := range ga.Population() {
		assert.LessOrEqual(t, winner.Phene(), c.Phene())
	}
}

func TestGenAlg_WithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rng := newRand(5)
	b, err := NewBuilder(pathGraph(), rng)
	require.NoError(t, err)
	ga, err := NewGenAlg(b, NewEvalMatrix(b.Graph()), Ratio{Num: 1, Den: 2}, Ratio{Num: 1, Den: 1}, rng, WithLogger(logger))
	require.NoError(t, err)

	ga.Gen(4)
	ga.Step(4, 4)

	out := buf.String()
	assert.Contains(t, out, "population generated")
	assert.Contains(t, out, "generation complete")
}
