// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lifetime

import (
	"cmp"
	"fmt"
	"slices"
)

// Table is the set of lifetimes accepted into one allocation run.
//
// Thread Safety: Immutable after NewTable; safe for concurrent reads.
type Table struct {
	horizon   Cycle
	lifetimes map[VarID]Lifetime
	ids       []VarID
}

// NewTable validates lifetimes against the cycle horizon.
//
// Description:
//
//	Every lifetime whose Use exceeds horizon is collected into a single
//	*OutOfBoundsError so the caller can locate all offending source rows at
//	once. Values are never clamped. Duplicate ids are rejected.
//
// Inputs:
//   - horizon: Last valid tick of the schedule.
//   - lifetimes: Lifetimes built with New.
//
// Outputs:
//   - *Table: The accepted table.
//   - error: *OutOfBoundsError, ErrDuplicateVar or *UseBeforeDefError.
func NewTable(horizon Cycle, lifetimes []Lifetime) (*Table, error) {
	t := &Table{
		horizon:   horizon,
		lifetimes: make(map[VarID]Lifetime, len(lifetimes)),
		ids:       make([]VarID, 0, len(lifetimes)),
	}

	var violations []Violation
	for _, lt := range lifetimes {
		if lt.Def > lt.Use {
			return nil, &UseBeforeDefError{Lifetime: lt}
		}
		if _, exists := t.lifetimes[lt.ID]; exists {
			return nil, fmt.Errorf("%w: v%d", ErrDuplicateVar, lt.ID)
		}
		if lt.Use > horizon {
			violations = append(violations, Violation{ID: lt.ID, Use: lt.Use})
		}
		t.lifetimes[lt.ID] = lt
		t.ids = append(t.ids, lt.ID)
	}

	if len(violations) > 0 {
		return nil, &OutOfBoundsError{Horizon: horizon, Violations: violations}
	}

	slices.Sort(t.ids)
	return t, nil
}

// Horizon returns the declared cycle horizon.
func (t *Table) Horizon() Cycle {
	return t.horizon
}

// Len returns the number of variables.
func (t *Table) Len() int {
	return len(t.ids)
}

// IDs returns the variable ids in ascending order.
func (t *Table) IDs() []VarID {
	return slices.Clone(t.ids)
}

// Lifetime returns the lifetime of id.
func (t *Table) Lifetime(id VarID) (Lifetime, bool) {
	lt, ok := t.lifetimes[id]
	return lt, ok
}

// Lifetimes returns a copy of the id to lifetime mapping.
func (t *Table) Lifetimes() map[VarID]Lifetime {
	out := make(map[VarID]Lifetime, len(t.lifetimes))
	for id, lt := range t.lifetimes {
		out[id] = lt
	}
	return out
}

// MaxPressure returns the largest number of variables live at one tick.
// It is a lower bound for any proper coloring of the conflict graph.
//
// Lifetimes are swept as sorted def and use events, so the cost depends on
// the number of variables and not on the horizon. A def at tick c counts
// before a use at c since both variables are live at c.
func (t *Table) MaxPressure() int {
	type event struct {
		at    Cycle
		delta int
	}
	events := make([]event, 0, 2*len(t.lifetimes))
	for _, lt := range t.lifetimes {
		events = append(events, event{lt.Def, 1}, event{lt.Use, -1})
	}
	slices.SortFunc(events, func(a, b event) int {
		if c := cmp.Compare(a.at, b.at); c != 0 {
			return c
		}
		return cmp.Compare(b.delta, a.delta)
	})

	best, cur := 0, 0
	for _, e := range events {
		cur += e.delta
		best = max(best, cur)
	}
	return best
}
