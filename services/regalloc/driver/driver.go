// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package driver runs the generation loop around genalg.GenAlg.
//
// A run seeds one or more islands, each an independent GenAlg with its own
// random source, and steps them until the generation budget is spent, the
// best phene stalls, or the best phene reaches the known lower bound:
//
//	        ┌──────────── Run(ctx, g, params) ────────────┐
//	        │          shared graph + EvalMatrix          │
//	        │   ┌──────────┐  ┌──────────┐  ┌──────────┐  │
//	        │   │ island 0 │  │ island 1 │  │ island k │  │
//	        │   │ seed + 0 │  │ seed + 1 │  │ seed + k │  │
//	        │   └────┬─────┘  └────┬─────┘  └────┬─────┘  │
//	        │        └──────── lowest phene ─────┘        │
//	        └─────────────────────────────────────────────┘
//
// Islands never exchange chromosomes, so a seeded run is reproducible
// regardless of goroutine scheduling.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/AleutianAI/regalloc/services/regalloc/config"
	"github.com/AleutianAI/regalloc/services/regalloc/genalg"
	"github.com/AleutianAI/regalloc/services/regalloc/graph"
	"github.com/AleutianAI/regalloc/services/regalloc/telemetry"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ErrInvalidParams indicates RunParams failed validation.
var ErrInvalidParams = errors.New("invalid run parameters")

var paramsValidate = validator.New()

// StopReason says why an island stopped stepping.
type StopReason string

const (
	// StopGenerations means the generation budget was spent.
	StopGenerations StopReason = "generations"

	// StopStalled means the best phene did not improve for StallGenerations.
	StopStalled StopReason = "stalled"

	// StopLowerBound means the best phene reached LowerBound.
	StopLowerBound StopReason = "lower_bound"
)

// RunParams controls one allocation run.
type RunParams struct {
	PopulationSize int `validate:"gte=1"`
	SelectionSize  int `validate:"gte=1"`
	Generations    int `validate:"gte=0"`

	Mutation genalg.Ratio
	Cross    genalg.Ratio

	// Seed is the base seed. Island i uses Seed+i. Zero derives a seed from
	// the clock; the resolved seed is reported in Result.Seed.
	Seed uint64

	// StallGenerations stops an island after this many generations without
	// improvement. Zero disables the rule.
	StallGenerations int `validate:"gte=0"`

	Islands int `validate:"gte=1,lte=256"`

	// LowerBound stops an island once its best phene is at or below it.
	// Zero disables the rule.
	LowerBound int `validate:"gte=0"`
}

// ParamsFromConfig maps the run section of the configuration file.
func ParamsFromConfig(rc config.RunConfig) RunParams {
	return RunParams{
		PopulationSize:   rc.PopulationSize,
		SelectionSize:    rc.SelectionSize,
		Generations:      rc.Generations,
		Mutation:         rc.MutationRatio,
		Cross:            rc.CrossRatio,
		Seed:             rc.Seed,
		StallGenerations: rc.StallGenerations,
		Islands:          rc.Islands,
	}
}

// Validate checks the numeric bounds and both ratios.
func (p RunParams) Validate() error {
	if err := paramsValidate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidParams, err)
	}
	return nil
}

// IslandResult is the outcome of one island.
type IslandResult struct {
	Island      int                      `json:"island"`
	Seed        uint64                   `json:"seed"`
	Phene       uint16                   `json:"phene"`
	Generations int                      `json:"generations"`
	Stopped     StopReason               `json:"stopped"`
	History     []genalg.GenerationStats `json:"history"`

	winner *genalg.Chromosome
}

// Result is the outcome of a run.
type Result struct {
	// Winner is the lowest-phene chromosome over all islands. Ties go to the
	// lowest island index.
	Winner *genalg.Chromosome

	// Island is the index of the island that produced Winner.
	Island int

	// Seed is the resolved base seed.
	Seed uint64

	Islands []IslandResult
	Elapsed time.Duration
}

// Phene returns the winner's register count.
func (r *Result) Phene() uint16 {
	return r.Winner.Phene()
}

// Coloring returns the winner's coloring.
func (r *Result) Coloring() map[graph.VarID]genalg.Color {
	return r.Winner.Coloring()
}

// History returns the winning island's per-generation statistics.
func (r *Result) History() []genalg.GenerationStats {
	return r.Islands[r.Island].History
}

// Generations returns the number of generations stepped across all islands.
func (r *Result) Generations() int {
	total := 0
	for _, ir := range r.Islands {
		total += ir.Generations
	}
	return total
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Driver) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records run metrics on m.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Driver) {
		d.metrics = m
	}
}

// WithProgress registers fn to be called after every generation of every
// island. fn is called concurrently from island goroutines.
func WithProgress(fn func(island int, stats genalg.GenerationStats)) Option {
	return func(d *Driver) {
		d.progress = fn
	}
}

// Driver runs allocations.
//
// Thread Safety: Safe for concurrent use. Each Run owns its populations.
type Driver struct {
	logger   *slog.Logger
	metrics  *telemetry.Metrics
	progress func(int, genalg.GenerationStats)
	now      func() time.Time
}

// New creates a Driver.
func New(opts ...Option) *Driver {
	d := &Driver{
		logger: slog.Default().With(slog.String("component", "driver")),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run searches for a low-color ordering of g.
//
// Description:
//
//	Builds one EvalMatrix for g and runs params.Islands islands concurrently.
//	Each island calls Gen(PopulationSize) once and then Step(SelectionSize,
//	PopulationSize) until a stop rule fires. ctx is checked before every
//	generation; cancelling it aborts the run.
//
// Inputs:
//   - ctx: Cancellation and trace context.
//   - g: Conflict graph. Must not be empty.
//   - params: Run parameters.
//
// Outputs:
//   - *Result: The best chromosome and per-island history.
//   - error: ErrInvalidParams, genalg.ErrEmptyGraph, or the context error.
func (d *Driver) Run(ctx context.Context, g *graph.Graph, params RunParams) (*Result, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if g == nil || g.Len() == 0 {
		return nil, fmt.Errorf("driver: %w", genalg.ErrEmptyGraph)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("driver: %w", err)
	}
	if params.Seed == 0 {
		params.Seed = uint64(d.now().UnixNano())
	}

	ctx, span := telemetry.StartSpan(ctx, "driver.Run",
		trace.WithAttributes(
			attribute.Int("variables", g.Len()),
			attribute.Int("edges", g.EdgeCount()),
			attribute.Int("islands", params.Islands),
			attribute.Int64("seed", int64(params.Seed)),
		),
	)
	defer span.End()
	logger := telemetry.LoggerWithTrace(ctx, d.logger)

	start := d.now()
	matrix := genalg.NewEvalMatrix(g)
	islands := make([]IslandResult, params.Islands)

	eg, egCtx := errgroup.WithContext(ctx)
	for i := range params.Islands {
		eg.Go(func() error {
			res, err := d.runIsland(egCtx, g, matrix, params, i, logger)
			if err != nil {
				return err
			}
			islands[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		telemetry.RecordError(span, err)
		d.metrics.RecordRun(ctx, "error", d.now().Sub(start), 0, 0)
		d.metrics.RecordError(ctx, "driver.Run")
		return nil, fmt.Errorf("driver: %w", err)
	}

	best := 0
	for i := range islands[1:] {
		if islands[i+1].Phene < islands[best].Phene {
			best = i + 1
		}
	}
	result := &Result{
		Winner:  islands[best].winner,
		Island:  best,
		Seed:    params.Seed,
		Islands: islands,
		Elapsed: d.now().Sub(start),
	}

	span.SetAttributes(
		attribute.Int("phene", int(result.Phene())),
		attribute.Int("generations", result.Generations()),
	)
	telemetry.SetSpanOK(span)
	d.metrics.RecordRun(ctx, "ok", result.Elapsed, result.Phene(), result.Generations())

	logger.Info("run complete",
		slog.Int("phene", int(result.Phene())),
		slog.Int("island", best),
		slog.Int("generations", result.Generations()),
		slog.Duration("elapsed", result.Elapsed),
	)
	return result, nil
}

func (d *Driver) runIsland(ctx context.Context, g *graph.Graph, matrix *genalg.EvalMatrix, params RunParams, island int, logger *slog.Logger) (IslandResult, error) {
	seed := params.Seed + uint64(island)
	ctx, span := telemetry.StartSpan(ctx, "driver.island",
		trace.WithAttributes(
			attribute.Int("island", island),
			attribute.Int64("seed", int64(seed)),
		),
	)
	defer span.End()
	logger = logger.With(slog.Int("island", island))

	rng := rand.New(rand.NewPCG(seed, 0))
	builder, err := genalg.NewBuilder(g, rng)
	if err != nil {
		telemetry.RecordError(span, err)
		return IslandResult{}, err
	}
	ga, err := genalg.NewGenAlg(builder, matrix, params.Mutation, params.Cross, rng,
		genalg.WithLogger(logger.With(slog.String("component", "genalg"))))
	if err != nil {
		telemetry.RecordError(span, err)
		return IslandResult{}, err
	}

	ga.Gen(params.PopulationSize)
	initial := ga.Stats()
	res := IslandResult{
		Island:  island,
		Seed:    seed,
		Stopped: StopGenerations,
		History: []genalg.GenerationStats{initial},
	}
	best, sinceImproved := initial.Best, 0

	for res.Generations < params.Generations {
		if params.LowerBound > 0 && int(best) <= params.LowerBound {
			res.Stopped = StopLowerBound
			break
		}
		if params.StallGenerations > 0 && sinceImproved >= params.StallGenerations {
			res.Stopped = StopStalled
			break
		}
		if err := ctx.Err(); err != nil {
			telemetry.RecordError(span, err)
			return IslandResult{}, err
		}

		stats := ga.Step(params.SelectionSize, params.PopulationSize)
		res.Generations++
		res.History = append(res.History, stats)
		if d.progress != nil {
			d.progress(island, stats)
		}

		if stats.Best < best {
			best, sinceImproved = stats.Best, 0
		} else {
			sinceImproved++
		}
	}
	if res.Stopped == StopGenerations && params.LowerBound > 0 && int(best) <= params.LowerBound {
		res.Stopped = StopLowerBound
	}

	winner, _ := ga.PickWinner()
	res.winner = winner
	res.Phene = winner.Phene()

	span.SetAttributes(
		attribute.Int("phene", int(res.Phene)),
		attribute.Int("generations", res.Generations),
		attribute.String("stopped", string(res.Stopped)),
	)
	logger.Debug("island finished",
		slog.Int("phene", int(res.Phene)),
		slog.Int("generations", res.Generations),
		slog.String("stopped", string(res.Stopped)),
	)
	return res, nil
}

// Run runs an allocation with a default Driver.
func Run(ctx context.Context, g *graph.Graph, params RunParams) (*Result, error) {
	return New().Run(ctx, g, params)
}
