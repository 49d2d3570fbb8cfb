// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lifetime models variable live intervals measured in clock cycles.
//
// A variable is live on the closed interval [Def, Use]. Two variables whose
// intervals share at least one tick conflict and cannot be held in the same
// register. The Table type is the boundary where lifetimes coming from an
// external schedule are accepted into a run and checked against the declared
// cycle horizon.
package lifetime

import (
	"fmt"
)

// VarID identifies a program variable.
type VarID uint32

// Cycle is a clock tick.
type Cycle uint32

// Lifetime is the live interval of one variable.
//
// Invariant: Def <= Use. Values built with New always satisfy it.
type Lifetime struct {
	ID  VarID `json:"id" yaml:"id"`
	Def Cycle `json:"def" yaml:"def"`
	Use Cycle `json:"use" yaml:"use"`
}

// New creates a validated lifetime.
//
// Inputs:
//   - id: Variable identifier.
//   - def: Tick at which the variable is defined.
//   - use: Tick of the last use.
//
// Outputs:
//   - Lifetime: The lifetime.
//   - error: *UseBeforeDefError when def > use.
func New(id VarID, def, use Cycle) (Lifetime, error) {
	lt := Lifetime{ID: id, Def: def, Use: use}
	if def > use {
		return Lifetime{}, &UseBeforeDefError{Lifetime: lt}
	}
	return lt, nil
}

// Overlaps reports whether the two closed intervals share at least one tick.
// Touching endpoints count as overlap.
func (l Lifetime) Overlaps(other Lifetime) bool {
	return !(l.Use < other.Def || other.Use < l.Def)
}

// Before reports whether l ends strictly before other starts.
func (l Lifetime) Before(other Lifetime) bool {
	return l.Use < other.Def
}

// String renders the lifetime as "v<id>[def,use]".
func (l Lifetime) String() string {
	return fmt.Sprintf("v%d[%d,%d]", l.ID, l.Def, l.Use)
}
