// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package binding turns a register coloring into per-register occupancy
// strips and physical register assignments.
package binding

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/AleutianAI/regalloc/services/regalloc/genalg"
	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
)

var (
	// ErrUnbound indicates a table variable with no color.
	ErrUnbound = errors.New("variable has no register")

	// ErrCellConflict indicates two variables live in one register on the
	// same cycle, which only an improper coloring can produce.
	ErrCellConflict = errors.New("register cell already occupied")
)

// Cell is one cycle of a register strip.
type Cell struct {
	Var  lifetime.VarID `json:"var"`
	Live bool           `json:"live"`
}

// Row is the occupancy of one abstract register across the schedule.
type Row struct {
	Register genalg.Color `json:"register"`
	Cells    []Cell       `json:"cells"`
}

// Bind lays out every variable of table in its register's row.
//
// Description:
//
//	Rows are ordered by ascending color, one per color in use. Each row has
//	Horizon()+1 cells and the variable occupies cells [Def, Use].
//
// Outputs:
//   - []Row: The occupancy strips.
//   - error: ErrUnbound for an uncolored variable, ErrCellConflict if two
//     variables of one register overlap.
func Bind(coloring map[lifetime.VarID]genalg.Color, table *lifetime.Table) ([]Row, error) {
	width := int(table.Horizon()) + 1
	rows := make(map[genalg.Color]*Row)

	for _, id := range table.IDs() {
		color, ok := coloring[id]
		if !ok {
			return nil, fmt.Errorf("%w: v%d", ErrUnbound, id)
		}
		row, ok := rows[color]
		if !ok {
			row = &Row{Register: color, Cells: make([]Cell, width)}
			rows[color] = row
		}

		lt, _ := table.Lifetime(id)
		// int indices: a Cycle counter would wrap at the maximum Cycle.
		for c := int(lt.Def); c <= int(lt.Use); c++ {
			if cell := row.Cells[c]; cell.Live {
				return nil, fmt.Errorf("%w: R%d cycle %d holds v%d, cannot place v%d",
					ErrCellConflict, color, c, cell.Var, id)
			}
			row.Cells[c] = Cell{Var: id, Live: true}
		}
	}

	colors := make([]genalg.Color, 0, len(rows))
	for c := range rows {
		colors = append(colors, c)
	}
	slices.Sort(colors)

	out := make([]Row, 0, len(colors))
	for _, c := range colors {
		out = append(out, *rows[c])
	}
	return out, nil
}

// String renders "R<c>:\t[ <cells> ]" with cells separated by tabs, live
// cells as the variable id and free cells as "-".
func (r Row) String() string {
	cells := make([]string, len(r.Cells))
	for i, cell := range r.Cells {
		if cell.Live {
			cells[i] = strconv.FormatUint(uint64(cell.Var), 10)
		} else {
			cells[i] = "-"
		}
	}
	return fmt.Sprintf("R%d:\t[ %s ]", r.Register, strings.Join(cells, "\t"))
}

// Utilization returns the fraction of live cells.
func (r Row) Utilization() float64 {
	if len(r.Cells) == 0 {
		return 0
	}
	live := 0
	for _, cell := range r.Cells {
		if cell.Live {
			live++
		}
	}
	return float64(live) / float64(len(r.Cells))
}
