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
	"log/slog"
	"math/rand/v2"
	"slices"
)

// GenerationStats summarizes the live population after a stage.
type GenerationStats struct {
	Generation int     `json:"generation"`
	Size       int     `json:"size"`
	Best       uint16  `json:"best"`
	Worst      uint16  `json:"worst"`
	Mean       float64 `json:"mean"`
}

// Option configures a GenAlg.
type Option func(*GenAlg)

// WithLogger sets the logger used for stage-level debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(ga *GenAlg) {
		if logger != nil {
			ga.logger = logger
		}
	}
}

// GenAlg owns a population and drives it through the generation stages.
//
// Description:
//
//	The population is split into three disjoint stages: the live population,
//	the selection pool, and the next-generation buffer. A generation runs
//	Select, Cross, Mutate, Accept and Reduce in that order. Gen seeds the
//	population once at run start.
//
// Thread Safety: Not safe for concurrent use. Run independent GenAlgs with
// independent random sources to parallelize.
type GenAlg struct {
	builder  *Builder
	matrix   *EvalMatrix
	mutation Ratio
	cross    Ratio
	rng      *rand.Rand
	logger   *slog.Logger

	population []*Chromosome
	pool       []*Chromosome
	nextGen    []*Chromosome
	generation int
}

// NewGenAlg creates an orchestrator with an empty population.
//
// Inputs:
//   - builder: Source of random chromosomes. Must not be nil.
//   - matrix: Crossover repair weights. Computed from the builder's graph if nil.
//   - mutation: Per-offspring mutation probability.
//   - cross: Per-pool-member crossover probability.
//   - rng: The run's random source. Usually the builder's source as well.
//   - opts: Optional settings.
//
// Outputs:
//   - *GenAlg: The orchestrator.
//   - error: *AlgorithmError wrapping ErrEmptyGraph, ErrInvalidRatio or ErrNilRandom.
func NewGenAlg(builder *Builder, matrix *EvalMatrix, mutation, cross Ratio, rng *rand.Rand, opts ...Option) (*GenAlg, error) {
	fail := func(err error) (*GenAlg, error) {
		return nil, &AlgorithmError{Algorithm: "genalg", Operation: "NewGenAlg", Err: err}
	}
	if builder == nil {
		return fail(ErrEmptyGraph)
	}
	if rng == nil {
		return fail(ErrNilRandom)
	}
	if err := mutation.Validate(); err != nil {
		return fail(err)
	}
	if err := cross.Validate(); err != nil {
		return fail(err)
	}
	if matrix == nil {
		matrix = NewEvalMatrix(builder.Graph())
	}

	ga := &GenAlg{
		builder:  builder,
		matrix:   matrix,
		mutation: mutation,
		cross:    cross,
		rng:      rng,
		logger:   slog.Default().With(slog.String("component", "genalg")),
	}
	for _, opt := range opts {
		opt(ga)
	}
	return ga, nil
}

// ---- Stages ----

// Gen replaces the population with size freshly built chromosomes.
func (ga *GenAlg) Gen(size int) {
	ga.population = make([]*Chromosome, 0, max(size, 0))
	for range size {
		ga.population = append(ga.population, ga.builder.BuildRandom())
	}
	ga.pool = nil
	ga.nextGen = nil
	ga.generation = 0
	ga.logger.Debug("population generated", slog.Int("size", len(ga.population)))
}

// Select fills the pool from the population by ranked roulette.
func (ga *GenAlg) Select(target int) {
	ga.pool = SelectRanked(ga.population, target, ga.rng)
	ga.logger.Debug("pool selected",
		slog.Int("generation", ga.generation),
		slog.Int("target", target),
		slog.Int("pool", len(ga.pool)),
	)
}

// Cross pairs each pool member, with the cross probability, with a uniformly
// drawn pool member and appends both children to the next generation. The
// pool is cleared afterwards.
func (ga *GenAlg) Cross() {
	if len(ga.pool) == 0 {
		return
	}
	crossed := 0
	for _, a := range ga.pool {
		if !ga.cross.Hit(ga.rng) {
			continue
		}
		b := ga.pool[ga.rng.IntN(len(ga.pool))]
		childA, childB := Cross(a, b, ga.matrix, ga.rng)
		ga.nextGen = append(ga.nextGen, childA, childB)
		crossed++
	}
	ga.pool = nil
	ga.logger.Debug("pool crossed",
		slog.Int("generation", ga.generation),
		slog.Int("pairs", crossed),
		slog.Int("offspring", len(ga.nextGen)),
	)
}

// Mutate swaps two loci of each offspring with the mutation probability.
func (ga *GenAlg) Mutate() {
	mutated := 0
	for _, c := range ga.nextGen {
		if ga.mutation.Hit(ga.rng) {
			Mutate(c, ga.rng)
			mutated++
		}
	}
	if len(ga.nextGen) > 0 {
		ga.logger.Debug("offspring mutated",
			slog.Int("generation", ga.generation),
			slog.Int("mutated", mutated),
		)
	}
}

// Accept merges the next generation into the population.
func (ga *GenAlg) Accept() {
	ga.population = append(ga.population, ga.nextGen...)
	ga.nextGen = nil
}

// Reduce truncates the population to its target best members.
func (ga *GenAlg) Reduce(target int) {
	ga.population = SelectElite(ga.population, target)
}

// PickWinner returns the population member with the lowest phene. Ties go to
// the earliest member. Returns false for an empty population.
func (ga *GenAlg) PickWinner() (*Chromosome, bool) {
	if len(ga.population) == 0 {
		return nil, false
	}
	best := ga.population[0]
	for _, c := range ga.population[1:] {
		if c.Phene() < best.Phene() {
			best = c
		}
	}
	return best, true
}

// Step runs one full generation and returns the resulting statistics.
func (ga *GenAlg) Step(selectSize, populationSize int) GenerationStats {
	ga.Select(selectSize)
	ga.Cross()
	ga.Mutate()
	ga.Accept()
	ga.Reduce(populationSize)
	ga.generation++

	stats := ga.Stats()
	ga.logger.Debug("generation complete",
		slog.Int("generation", stats.Generation),
		slog.Int("best", int(stats.Best)),
		slog.Int("worst", int(stats.Worst)),
		slog.Float64("mean", stats.Mean),
	)
	return stats
}

// ---- Introspection ----

// Generation returns the number of completed Steps since Gen.
func (ga *GenAlg) Generation() int {
	return ga.generation
}

// Population returns a copy of the live population slice.
func (ga *GenAlg) Population() []*Chromosome {
	return slices.Clone(ga.population)
}

// Pool returns a copy of the selection pool slice.
func (ga *GenAlg) Pool() []*Chromosome {
	return slices.Clone(ga.pool)
}

// NextGen returns a copy of the next-generation buffer slice.
func (ga *GenAlg) NextGen() []*Chromosome {
	return slices.Clone(ga.nextGen)
}

// Stats summarizes the live population. Best, Worst and Mean are zero when
// the population is empty.
func (ga *GenAlg) Stats() GenerationStats {
	stats := GenerationStats{
		Generation: ga.generation,
		Size:       len(ga.population),
	}
	if len(ga.population) == 0 {
		return stats
	}
	stats.Best = ga.population[0].Phene()
	stats.Worst = stats.Best
	sum := 0
	for _, c := range ga.population {
		p := c.Phene()
		stats.Best = min(stats.Best, p)
		stats.Worst = max(stats.Worst, p)
		sum += int(p)
	}
	stats.Mean = float64(sum) / float64(len(ga.population))
	return stats
}
