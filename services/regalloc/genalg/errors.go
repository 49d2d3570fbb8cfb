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

import "errors"

// Sentinel errors for the genetic algorithm.
var (
	// ErrEmptyGraph indicates a builder was requested for a graph with no vertices.
	ErrEmptyGraph = errors.New("graph has no vertices")

	// ErrNotPermutation indicates a gene that is not a permutation of the graph vertices.
	ErrNotPermutation = errors.New("gene is not a permutation of the graph vertices")

	// ErrImproperColoring indicates two adjacent vertices share a color.
	ErrImproperColoring = errors.New("adjacent vertices share a color")

	// ErrInvalidRatio indicates a probability ratio with a zero denominator or num > den.
	ErrInvalidRatio = errors.New("invalid ratio")

	// ErrNilRandom indicates a missing random source.
	ErrNilRandom = errors.New("random source is nil")
)

// AlgorithmError wraps an error with the operation that produced it.
type AlgorithmError struct {
	Algorithm string
	Operation string
	Err       error
}

func (e *AlgorithmError) Error() string {
	return e.Algorithm + "." + e.Operation + ": " + e.Err.Error()
}

func (e *AlgorithmError) Unwrap() error {
	return e.Err
}
