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
	"cmp"
	"fmt"
	"math/rand/v2"
	"slices"
	"sort"
)

// -----------------------------------------------------------------------------
// Ratio
// -----------------------------------------------------------------------------

// Ratio is a probability expressed as Num/Den.
type Ratio struct {
	Num uint32 `json:"num" yaml:"num" validate:"ltefield=Den"`
	Den uint32 `json:"den" yaml:"den" validate:"gt=0"`
}

// Validate checks Den > 0 and Num <= Den.
func (r Ratio) Validate() error {
	if r.Den == 0 || r.Num > r.Den {
		return fmt.Errorf("%w: %d/%d", ErrInvalidRatio, r.Num, r.Den)
	}
	return nil
}

// Hit draws once and reports success with probability Num/Den.
func (r Ratio) Hit(rng *rand.Rand) bool {
	return rng.Uint32N(r.Den) < r.Num
}

// String renders "num/den".
func (r Ratio) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// -----------------------------------------------------------------------------
// Selection
// -----------------------------------------------------------------------------

// SelectRanked draws a reproduction pool by rank-based roulette.
//
// Description:
//
//	The population is sorted worst first (highest phene). Position i gets
//	weight i+1, so the best chromosome has weight n. Each of the
//	min(target, n) draws is uniform over [0, n(n+1)/2) and lands in exactly
//	one bucket. Draws are with replacement; every pool entry is a clone.
//
// Inputs:
//   - population: Candidates. Not modified.
//   - target: Requested pool size.
//   - rng: The run's random source.
//
// Outputs:
//   - []*Chromosome: Empty for an empty population, the single member for a
//     singleton population regardless of target.
func SelectRanked(population []*Chromosome, target int, rng *rand.Rand) []*Chromosome {
	switch len(population) {
	case 0:
		return []*Chromosome{}
	case 1:
		return []*Chromosome{population[0].Clone()}
	}

	ranked := slices.Clone(population)
	slices.SortStableFunc(ranked, func(a, b *Chromosome) int {
		return cmp.Compare(b.Phene(), a.Phene())
	})

	// upper[i] is the exclusive upper bound of bucket i.
	upper := make([]int, len(ranked))
	total := 0
	for i := range ranked {
		total += i + 1
		upper[i] = total
	}

	draws := max(min(target, len(ranked)), 0)
	pool := make([]*Chromosome, 0, draws)
	for range draws {
		spin := rng.IntN(total)
		i := sort.SearchInts(upper, spin+1)
		pool = append(pool, ranked[i].Clone())
	}
	return pool
}

// SelectElite keeps the min(target, n) chromosomes with the lowest phene.
//
// Ties keep population order. The retained set's maximum phene never exceeds
// the discarded set's minimum phene. A singleton population is returned as is
// regardless of target.
func SelectElite(population []*Chromosome, target int) []*Chromosome {
	switch len(population) {
	case 0:
		return []*Chromosome{}
	case 1:
		return []*Chromosome{population[0]}
	}

	ranked := slices.Clone(population)
	slices.SortStableFunc(ranked, func(a, b *Chromosome) int {
		return cmp.Compare(a.Phene(), b.Phene())
	})
	keep := max(min(target, len(ranked)), 0)
	return ranked[:keep:keep]
}

// -----------------------------------------------------------------------------
// Crossover
// -----------------------------------------------------------------------------

// Cross recombines two parents at one random cross point.
//
// Description:
//
//	Each child copies its dominant parent's head [0, p) and follows the
//	recessive parent's tail order. Tail ids the dominant tail also holds pass
//	through. The remaining positions are filled left to right from the
//	dominant-only tail ids: the first with the lowest-degree id, each later
//	one with the id of least EvalMatrix weight after the preceding child id.
//	Ties go to the id that comes first in the dominant tail.
//
// Inputs:
//   - a, b: Parents of equal, non-zero length. Not modified.
//   - m: Repair weights for the parents' graph.
//   - rng: The run's random source.
//
// Outputs:
//   - *Chromosome: Child with a dominant.
//   - *Chromosome: Child with b dominant.
//
// Panics if the parents differ in length or are empty.
func Cross(a, b *Chromosome, m *EvalMatrix, rng *rand.Rand) (*Chromosome, *Chromosome) {
	if a.Len() != b.Len() {
		panic(fmt.Sprintf("genalg: crossing chromosomes of different length %d and %d", a.Len(), b.Len()))
	}
	if a.Len() == 0 {
		panic("genalg: crossing empty chromosomes")
	}

	p := rng.IntN(a.Len())
	return crossAt(a, b, p, m), crossAt(b, a, p, m)
}

// crossAt builds the child of (dom, rec) for cross point p.
func crossAt(dom, rec *Chromosome, p int, m *EvalMatrix) *Chromosome {
	n := len(dom.gene)
	child := make([]VarID, n)
	copy(child, dom.gene[:p])

	recTail := make(map[VarID]struct{}, n-p)
	for _, id := range rec.gene[p:] {
		recTail[id] = struct{}{}
	}
	domTail := make(map[VarID]struct{}, n-p)
	var diff []VarID
	for _, id := range dom.gene[p:] {
		domTail[id] = struct{}{}
		if _, shared := recTail[id]; !shared {
			diff = append(diff, id)
		}
	}

	var unresolved []int
	for i, id := range rec.gene[p:] {
		if _, shared := domTail[id]; shared {
			child[p+i] = id
		} else {
			unresolved = append(unresolved, p+i)
		}
	}

	for k, pos := range unresolved {
		var pick int
		if k == 0 {
			pick = lowestDegree(diff, dom)
		} else {
			pick = nearestSuccessor(child[pos-1], diff, m)
		}
		child[pos] = diff[pick]
		diff = slices.Delete(diff, pick, pick+1)
	}

	return &Chromosome{gene: child, graph: dom.graph}
}

func lowestDegree(candidates []VarID, c *Chromosome) int {
	best := 0
	for i, id := range candidates[1:] {
		if c.graph.Degree(id) < c.graph.Degree(candidates[best]) {
			best = i + 1
		}
	}
	return best
}

func nearestSuccessor(prev VarID, candidates []VarID, m *EvalMatrix) int {
	best := 0
	bestWeight := m.Weight(prev, candidates[0])
	for i, id := range candidates[1:] {
		if w := m.Weight(prev, id); w < bestWeight {
			best, bestWeight = i+1, w
		}
	}
	return best
}

// -----------------------------------------------------------------------------
// Mutation
// -----------------------------------------------------------------------------

// Mutate swaps the genes at two uniformly drawn loci.
//
// The loci may coincide, in which case the gene is unchanged. The cached
// decode is invalidated either way. Panics on an empty chromosome.
func Mutate(c *Chromosome, rng *rand.Rand) {
	n := c.Len()
	if n == 0 {
		panic("genalg: mutating an empty chromosome")
	}
	c.SwapGenes(rng.IntN(n), rng.IntN(n))
}
