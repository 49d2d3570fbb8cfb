// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command regalloc allocates registers for variable lifetimes by evolving
// vertex orderings of their conflict graph.
//
// Usage:
//
//	regalloc run schedule.yaml
//	regalloc run schedule.yaml --arch x86_64 --save
//	regalloc run schedule.yaml --watch
//	regalloc graph schedule.yaml | dot -Tsvg > conflicts.svg
//	regalloc runs list
//	regalloc serve --port 8088
//	regalloc config init regalloc.yaml
//
// A schedule file lists one lifetime per variable:
//
//	name: loop-body
//	cycles: 9
//	variables:
//	  - {id: 1, def: 0, use: 2}
//	  - {id: 2, def: 1, use: 3}
//
// Example requests against the server:
//
//	curl http://localhost:8088/v1/regalloc/health
//
//	curl -X POST http://localhost:8088/v1/regalloc/allocate \
//	  -H "Content-Type: application/json" \
//	  -d '{"schedule": {"cycles": 3, "variables": [{"id": 1, "def": 0, "use": 2}]}}'
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}
