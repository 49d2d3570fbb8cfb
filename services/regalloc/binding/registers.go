// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package binding

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/AleutianAI/regalloc/services/regalloc/genalg"
	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
)

// ErrUnknownArch indicates an architecture without a register file.
var ErrUnknownArch = errors.New("unknown architecture")

// Supported architectures.
const (
	ArchX86_64  = "x86_64"
	ArchARM64   = "arm64"
	ArchRISCV64 = "riscv64"
)

// RegisterFile is the ordered set of registers available to variables.
type RegisterFile struct {
	Arch      string   `json:"arch"`
	Registers []string `json:"registers"`
}

// Callee-saved registers hold values across calls.
var registerFiles = map[string][]string{
	ArchX86_64:  {"rbx", "r12", "r13", "r14", "r15"},
	ArchARM64:   {"x19", "x20", "x21", "x22", "x23", "x24", "x25", "x26", "x27", "x28"},
	ArchRISCV64: {"s0", "s1", "s2", "s3", "s4", "s5", "s6", "s7", "s8", "s9", "s10", "s11"},
}

// RegisterFileFor returns the callee-saved register file of arch.
func RegisterFileFor(arch string) (RegisterFile, error) {
	regs, ok := registerFiles[arch]
	if !ok {
		return RegisterFile{}, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownArch, arch, Architectures())
	}
	return RegisterFile{Arch: arch, Registers: slices.Clone(regs)}, nil
}

// Architectures lists the supported architectures in sorted order.
func Architectures() []string {
	return slices.Sorted(maps.Keys(registerFiles))
}

// Len returns the number of registers.
func (f RegisterFile) Len() int {
	return len(f.Registers)
}

// Location is where one variable lives.
type Location struct {
	Register  string `json:"register,omitempty"`
	Spilled   bool   `json:"spilled"`
	SpillSlot int    `json:"spill_slot,omitempty"`
}

func (l Location) String() string {
	if l.Spilled {
		return fmt.Sprintf("[spill %d]", l.SpillSlot)
	}
	return l.Register
}

// Assignment maps every colored variable to a register or a spill slot.
type Assignment struct {
	Arch       string                      `json:"arch"`
	Locations  map[lifetime.VarID]Location `json:"locations"`
	Used       []string                    `json:"used"`
	SpillSlots int                         `json:"spill_slots"`
}

// Assign maps color c to file.Registers[c] when c < file.Len() and to spill
// slot c-file.Len() otherwise. Variables sharing a color share the slot.
func Assign(coloring map[lifetime.VarID]genalg.Color, file RegisterFile) Assignment {
	a := Assignment{
		Arch:      file.Arch,
		Locations: make(map[lifetime.VarID]Location, len(coloring)),
	}
	used := make(map[int]bool)
	n := file.Len()

	for id, c := range coloring {
		idx := int(c)
		if idx < n {
			a.Locations[id] = Location{Register: file.Registers[idx]}
			used[idx] = true
			continue
		}
		slot := idx - n
		a.Locations[id] = Location{Spilled: true, SpillSlot: slot}
		a.SpillSlots = max(a.SpillSlots, slot+1)
	}

	for _, idx := range slices.Sorted(maps.Keys(used)) {
		a.Used = append(a.Used, file.Registers[idx])
	}
	return a
}

// Spilled returns the ids of spilled variables in ascending order.
func (a Assignment) Spilled() []lifetime.VarID {
	var ids []lifetime.VarID
	for id, loc := range a.Locations {
		if loc.Spilled {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}
