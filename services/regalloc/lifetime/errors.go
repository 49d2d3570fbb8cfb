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
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for lifetime validation.
var (
	// ErrUseBeforeDef indicates a lifetime whose use tick precedes its definition.
	ErrUseBeforeDef = errors.New("use before definition")

	// ErrLifetimeOutOfBounds indicates a use tick beyond the declared cycle horizon.
	ErrLifetimeOutOfBounds = errors.New("lifetime out of bounds")

	// ErrDuplicateVar indicates two lifetimes with the same variable id.
	ErrDuplicateVar = errors.New("duplicate variable")
)

// UseBeforeDefError reports the offending lifetime.
type UseBeforeDefError struct {
	Lifetime Lifetime
}

func (e *UseBeforeDefError) Error() string {
	return fmt.Sprintf("invalid lifetime of v%d: use at %d before definition at %d",
		e.Lifetime.ID, e.Lifetime.Use, e.Lifetime.Def)
}

func (e *UseBeforeDefError) Unwrap() error {
	return ErrUseBeforeDef
}

// Violation is one lifetime that exceeds the horizon.
type Violation struct {
	ID  VarID
	Use Cycle
}

// OutOfBoundsError lists every lifetime whose use tick exceeds the horizon.
type OutOfBoundsError struct {
	Horizon    Cycle
	Violations []Violation
}

func (e *OutOfBoundsError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("v%d uses %d", v.ID, v.Use))
	}
	return fmt.Sprintf("lifetime out of bounds: horizon %d: %s", e.Horizon, strings.Join(parts, ", "))
}

func (e *OutOfBoundsError) Unwrap() error {
	return ErrLifetimeOutOfBounds
}
