// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// Mode selects between styled and script-friendly output.
type Mode string

const (
	// ModeAuto resolves to ModeRich on a terminal and ModePlain otherwise.
	ModeAuto Mode = "auto"

	// ModeRich enables colors, icons and boxes.
	ModeRich Mode = "rich"

	// ModePlain outputs plain text suitable for scripting and parsing.
	ModePlain Mode = "plain"
)

// EnvOutput overrides auto detection.
const EnvOutput = "REGALLOC_OUTPUT"

// ParseMode converts a string to a Mode. Unknown values resolve to ModeAuto.
func ParseMode(s string) Mode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "rich", "full", "color":
		return ModeRich
	case "plain", "machine", "quiet":
		return ModePlain
	default:
		return ModeAuto
	}
}

// DetectMode returns ModeRich when w is a terminal, honoring REGALLOC_OUTPUT
// and NO_COLOR first.
func DetectMode(w io.Writer) Mode {
	if m := ParseMode(os.Getenv(EnvOutput)); m != ModeAuto {
		return m
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return ModePlain
	}
	f, ok := w.(*os.File)
	if !ok {
		return ModePlain
	}
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		return ModeRich
	}
	return ModePlain
}
