// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package driver

import (
	"context"
	"math/rand/v2"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AleutianAI/regalloc/services/regalloc/config"
	"github.com/AleutianAI/regalloc/services/regalloc/genalg"
	"github.com/AleutianAI/regalloc/services/regalloc/graph"
	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
	"github.com/AleutianAI/regalloc/services/regalloc/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func randomGraph(seed uint64, n int) *graph.Graph {
	rng := rand.New(rand.NewPCG(seed, seed^0x5eed))
	lifetimes := make(map[lifetime.VarID]lifetime.Lifetime, n)
	for i := range n {
		def := lifetime.Cycle(rng.IntN(60))
		use := def + lifetime.Cycle(rng.IntN(12))
		id := lifetime.VarID(i + 1)
		lifetimes[id] = lifetime.Lifetime{ID: id, Def: def, Use: use}
	}
	return graph.Build(lifetimes)
}

func testParams() RunParams {
	return RunParams{
		PopulationSize: 16,
		SelectionSize:  12,
		Generations:    30,
		Mutation:       genalg.Ratio{Num: 1, Den: 4},
		Cross:          genalg.Ratio{Num: 3, Den: 4},
		Seed:           7,
		Islands:        1,
	}
}

func TestRunParams_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RunParams)
	}{
		{"zero population", func(p *RunParams) { p.PopulationSize = 0 }},
		{"zero selection", func(p *RunParams) { p.SelectionSize = 0 }},
		{"negative generations", func(p *RunParams) { p.Generations = -1 }},
		{"zero islands", func(p *RunParams) { p.Islands = 0 }},
		{"too many islands", func(p *RunParams) { p.Islands = 257 }},
		{"negative stall", func(p *RunParams) { p.StallGenerations = -1 }},
		{"zero ratio denominator", func(p *RunParams) { p.Mutation = genalg.Ratio{} }},
		{"ratio above one", func(p *RunParams) { p.Cross = genalg.Ratio{Num: 5, Den: 4} }},
	}

	require.NoError(t, testParams().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidParams)
		})
	}
}

func TestParamsFromConfig(t *testing.T) {
	rc := config.DefaultRunConfig()
	rc.Seed = 99
	p := ParamsFromConfig(rc)

	assert.Equal(t, rc.PopulationSize, p.PopulationSize)
	assert.Equal(t, rc.SelectionSize, p.SelectionSize)
	assert.Equal(t, rc.Generations, p.Generations)
	assert.Equal(t, rc.MutationRatio, p.Mutation)
	assert.Equal(t, rc.CrossRatio, p.Cross)
	assert.Equal(t, uint64(99), p.Seed)
	assert.Equal(t, rc.StallGenerations, p.StallGenerations)
	assert.Equal(t, rc.Islands, p.Islands)
	assert.Zero(t, p.LowerBound)
	require.NoError(t, p.Validate())
}

func TestRun_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := Run(ctx, randomGraph(1, 10), RunParams{})
	assert.ErrorIs(t, err, ErrInvalidParams)

	_, err = Run(ctx, graph.Build(nil), testParams())
	assert.ErrorIs(t, err, genalg.ErrEmptyGraph)

	_, err = Run(ctx, nil, testParams())
	assert.ErrorIs(t, err, genalg.ErrEmptyGraph)
}

func TestRun_ProperWinner(t *testing.T) {
	g := randomGraph(3, 40)

	res, err := Run(context.Background(), g, testParams())
	require.NoError(t, err)

	require.NoError(t, res.Winner.Validate())
	assert.Equal(t, res.Winner.Phene(), res.Phene())
	assert.Len(t, res.Coloring(), g.Len())
	assert.Equal(t, uint64(7), res.Seed)

	history := res.History()
	require.Len(t, history, 31)
	assert.Equal(t, 0, history[0].Generation)
	for i := 1; i < len(history); i++ {
		assert.Equal(t, i, history[i].Generation)
		assert.LessOrEqual(t, history[i].Best, history[i-1].Best, "elitist best never worsens")
		assert.Equal(t, 16, history[i].Size)
	}
	assert.Equal(t, history[len(history)-1].Best, res.Phene())
	assert.Equal(t, StopGenerations, res.Islands[0].Stopped)
}

func TestRun_Reproducible(t *testing.T) {
	g := randomGraph(11, 50)
	params := testParams()
	params.Islands = 3

	a, err := Run(context.Background(), g, params)
	require.NoError(t, err)
	b, err := Run(context.Background(), g, params)
	require.NoError(t, err)

	assert.Equal(t, a.Island, b.Island)
	assert.Equal(t, a.Winner.Gene(), b.Winner.Gene())
	for i := range a.Islands {
		assert.Equal(t, a.Islands[i].History, b.Islands[i].History)
	}
}

func TestRun_Islands(t *testing.T) {
	g := randomGraph(5, 40)
	params := testParams()
	params.Islands = 4

	res, err := Run(context.Background(), g, params)
	require.NoError(t, err)
	require.Len(t, res.Islands, 4)

	best := res.Islands[0].Phene
	for i, ir := range res.Islands {
		assert.Equal(t, i, ir.Island)
		assert.Equal(t, params.Seed+uint64(i), ir.Seed)
		best = min(best, ir.Phene)
	}
	assert.Equal(t, best, res.Phene())
	assert.Equal(t, best, res.Islands[res.Island].Phene)
	for _, ir := range res.Islands[:res.Island] {
		assert.Greater(t, ir.Phene, best, "ties go to the lowest island")
	}
	assert.Equal(t, 4*params.Generations, res.Generations())
}

func TestRun_StallStops(t *testing.T) {
	params := testParams()
	params.Generations = 100000
	params.StallGenerations = 3

	res, err := Run(context.Background(), randomGraph(9, 20), params)
	require.NoError(t, err)

	ir := res.Islands[0]
	assert.Equal(t, StopStalled, ir.Stopped)
	assert.Less(t, ir.Generations, params.Generations)

	tail := ir.History[len(ir.History)-params.StallGenerations-1:]
	for _, s := range tail[1:] {
		assert.Equal(t, tail[0].Best, s.Best)
	}
}

func TestRun_LowerBoundStops(t *testing.T) {
	params := testParams()
	params.LowerBound = 1000

	res, err := Run(context.Background(), randomGraph(4, 20), params)
	require.NoError(t, err)

	assert.Equal(t, StopLowerBound, res.Islands[0].Stopped)
	assert.Zero(t, res.Islands[0].Generations)
	assert.Len(t, res.History(), 1)
}

func TestRun_ZeroGenerations(t *testing.T) {
	params := testParams()
	params.Generations = 0

	res, err := Run(context.Background(), randomGraph(4, 20), params)
	require.NoError(t, err)
	assert.Zero(t, res.Generations())
	assert.Equal(t, res.History()[0].Best, res.Phene())
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, randomGraph(2, 20), testParams())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRun_SeedFromClock(t *testing.T) {
	d := New()
	d.now = func() time.Time { return time.Unix(0, 12345) }
	params := testParams()
	params.Seed = 0
	params.Generations = 1

	res, err := d.Run(context.Background(), randomGraph(2, 10), params)
	require.NoError(t, err)
	assert.Equal(t, uint64(12345), res.Seed)
}

func TestRun_Progress(t *testing.T) {
	var calls atomic.Int64
	d := New(WithProgress(func(island int, stats genalg.GenerationStats) {
		calls.Add(1)
	}))
	params := testParams()
	params.Islands = 2

	res, err := d.Run(context.Background(), randomGraph(8, 20), params)
	require.NoError(t, err)
	assert.Equal(t, int64(res.Generations()), calls.Load())
}

func TestRun_RecordsMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := telemetry.NewMetrics(provider.Meter("test"))
	require.NoError(t, err)

	params := testParams()
	params.Generations = 5
	_, err = New(WithMetrics(m)).Run(context.Background(), randomGraph(6, 15), params)
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	found := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if sum, ok := metric.Data.(metricdata.Sum[int64]); ok {
				for _, dp := range sum.DataPoints {
					found[metric.Name] += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(1), found["regalloc_runs_total"])
	assert.Equal(t, int64(5), found["regalloc_generations_total"])
}
