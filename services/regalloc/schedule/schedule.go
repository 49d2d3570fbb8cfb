// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package schedule reads variable lifetime tables from YAML or JSON.
//
// A schedule document lists the cycle horizon and one entry per variable:
//
//	name: fir4
//	cycles: 6
//	variables:
//	  - {id: 1, def: 0, use: 2}
//	  - {id: 2, def: 1, use: 3}
//
// JSON documents with the same keys are accepted since JSON is valid YAML.
package schedule

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
	"gopkg.in/yaml.v3"
)

// ErrEmptySchedule indicates a document without variables.
var ErrEmptySchedule = errors.New("schedule has no variables")

// Document is the on-disk schedule format.
type Document struct {
	Name      string         `yaml:"name,omitempty" json:"name,omitempty"`
	Cycles    lifetime.Cycle `yaml:"cycles" json:"cycles"`
	Variables []Variable     `yaml:"variables" json:"variables"`
}

// Variable is one row of a schedule.
type Variable struct {
	ID  lifetime.VarID `yaml:"id" json:"id"`
	Def lifetime.Cycle `yaml:"def" json:"def"`
	Use lifetime.Cycle `yaml:"use" json:"use"`
}

// Parse decodes a document from r. Unknown keys are rejected.
func Parse(r io.Reader) (*Document, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptySchedule
		}
		return nil, fmt.Errorf("decode schedule: %w", err)
	}
	return &doc, nil
}

// LoadFile parses the document at path and builds its table.
func LoadFile(path string) (*Document, *lifetime.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read schedule: %w", err)
	}
	doc, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	table, err := FromDocument(doc)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, table, nil
}

// FromDocument validates every variable and builds the lifetime table.
//
// Outputs:
//   - *lifetime.Table: The accepted table.
//   - error: ErrEmptySchedule, *lifetime.UseBeforeDefError,
//     lifetime.ErrDuplicateVar or *lifetime.OutOfBoundsError.
func FromDocument(doc *Document) (*lifetime.Table, error) {
	if doc == nil || len(doc.Variables) == 0 {
		return nil, ErrEmptySchedule
	}

	lifetimes := make([]lifetime.Lifetime, 0, len(doc.Variables))
	for _, v := range doc.Variables {
		lt, err := lifetime.New(v.ID, v.Def, v.Use)
		if err != nil {
			return nil, err
		}
		lifetimes = append(lifetimes, lt)
	}
	return lifetime.NewTable(doc.Cycles, lifetimes)
}

// FromTable renders a table back into a document.
func FromTable(name string, t *lifetime.Table) *Document {
	doc := &Document{Name: name, Cycles: t.Horizon()}
	for _, id := range t.IDs() {
		lt, _ := t.Lifetime(id)
		doc.Variables = append(doc.Variables, Variable{ID: lt.ID, Def: lt.Def, Use: lt.Use})
	}
	return doc
}

// Write encodes doc as YAML.
func Write(w io.Writer, doc *Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode schedule: %w", err)
	}
	return enc.Close()
}
