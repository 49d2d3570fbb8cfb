// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/AleutianAI/regalloc/pkg/ux"
	"github.com/AleutianAI/regalloc/services/regalloc"
)

func renderAllocation(p *ux.Printer, resp *regalloc.AllocateResponse) {
	title := resp.Name
	if title == "" {
		title = "allocation"
	}
	p.Title(fmt.Sprintf("%s: %d registers", title, resp.Registers))

	p.Field("registers", resp.Registers)
	p.Field("lower_bound", resp.LowerBound)
	p.Field("variables", len(resp.Coloring))
	p.Field("seed", resp.Seed)
	p.Field("generations", resp.Generations)
	p.Field("elapsed", (time.Duration(resp.ElapsedMS) * time.Millisecond).String())

	if int(resp.Registers) <= resp.LowerBound {
		p.Success("optimal: no tick has fewer live variables than registers used")
	} else {
		p.Info(fmt.Sprintf("%d above the pressure lower bound", int(resp.Registers)-resp.LowerBound))
	}

	if len(resp.Rows) > 0 {
		lines := make([]string, len(resp.Rows))
		for i, row := range resp.Rows {
			lines[i] = row
			if i < len(resp.Utilization) {
				lines[i] = fmt.Sprintf("%s\t%3.0f%%", row, resp.Utilization[i]*100)
			}
		}
		p.Box("Register occupancy", lines)
	}

	if a := resp.Assignment; a != nil {
		rows := make([][]string, 0, len(a.Locations))
		for _, id := range slices.Sorted(maps.Keys(a.Locations)) {
			rows = append(rows, []string{
				"v" + strconv.FormatUint(uint64(id), 10),
				strconv.Itoa(int(resp.Coloring[id])),
				a.Locations[id].String(),
			})
		}
		p.Table([]string{"VAR", "COLOR", a.Arch}, rows)
		if a.SpillSlots > 0 {
			p.Warning(fmt.Sprintf("%d spill slots needed on %s", a.SpillSlots, a.Arch))
		}
	}

	if resp.RunID != "" {
		p.Success("saved run " + resp.RunID)
	}
}
