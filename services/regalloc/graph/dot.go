// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"bufio"
	"fmt"
	"io"
)

// dotPalette is cycled through when a coloring has more colors than entries.
var dotPalette = []string{
	"#2CD7C7", "#F4D03F", "#E74C3C", "#8E44AD", "#3498DB",
	"#E67E22", "#27AE60", "#FD79A8", "#95A5A6", "#16858E",
}

// WriteDOT writes the graph in Graphviz DOT format.
//
// Description:
//
//	Emits an undirected "graph" with one node per variable and one edge per
//	conflict. When coloring is non-nil, every colored node is labelled with
//	its register index and filled from a fixed palette.
//
// Inputs:
//   - w: Destination writer.
//   - g: The conflict graph.
//   - coloring: Optional variable to color mapping. May be nil.
//
// Outputs:
//   - error: Non-nil if writing fails.
func WriteDOT[C ~uint16](w io.Writer, g *Graph, coloring map[VarID]C) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "graph conflicts {")
	fmt.Fprintln(bw, "    node [shape=circle, style=filled, fillcolor=white];")

	for _, id := range g.ids {
		if coloring != nil {
			if c, ok := coloring[id]; ok {
				fill := dotPalette[int(c)%len(dotPalette)]
				fmt.Fprintf(bw, "    v%d [label=\"v%d\\nR%d\", fillcolor=\"%s\"];\n", id, id, c, fill)
				continue
			}
		}
		fmt.Fprintf(bw, "    v%d [label=\"v%d\"];\n", id, id)
	}

	for _, e := range g.Edges() {
		fmt.Fprintf(bw, "    v%d -- v%d;\n", e.U, e.V)
	}

	fmt.Fprintln(bw, "}")
	return bw.Flush()
}
