// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package genalg searches vertex orderings of a conflict graph with a genetic
// algorithm so that a greedy decoder colors the graph with few registers.
//
// Architecture:
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                        ONE GENERATION                            │
//	├──────────────────────────────────────────────────────────────────┤
//	│                                                                  │
//	│   Gen(size)  ── Builder.BuildRandom ──►  population               │
//	│                                             │                    │
//	│   Select(k)  ── SelectRanked ─────────►  pool                     │
//	│                                             │                    │
//	│   Cross()    ── Cross + repair ───────►  next generation          │
//	│                                             │                    │
//	│   Mutate()   ── locus swap ───────────►  next generation          │
//	│                                             │                    │
//	│   Accept()   ── merge ────────────────►  population               │
//	│                                             │                    │
//	│   Reduce(k)  ── SelectElite ──────────►  population               │
//	│                                                                  │
//	└──────────────────────────────────────────────────────────────────┘
//
// Representation:
//
//	A chromosome's gene is a permutation of every graph vertex. Decode walks
//	the gene once, keeping a single frontier color. A vertex receives the
//	frontier, bumped by one first if an already-colored neighbor holds it.
//	The result is always a proper coloring, but the number of colors (the
//	phene, lower is better) depends heavily on the order, which is what the
//	search optimizes.
//
// Randomness:
//
//	Every operator draws from an injected *rand.Rand. A run seeded with the
//	same value reproduces the same population, selections, cross points and
//	mutation loci.
//
// Contract violations:
//
//	Crossing parents of different length, swapping a locus outside the gene,
//	and decoding an empty gene panic. They indicate the pipeline was composed
//	incorrectly and are not recoverable.
package genalg
