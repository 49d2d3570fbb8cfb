// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/regalloc/services/regalloc/config"
	"github.com/AleutianAI/regalloc/services/regalloc/genalg"
	"github.com/AleutianAI/regalloc/services/regalloc/lifetime"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrRunNotFound indicates an unknown run id.
var ErrRunNotFound = errors.New("run not found")

const runPrefix = "run/"

// RunRecord is one persisted allocation.
type RunRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`

	// Name is the schedule name, if any.
	Name string `json:"name,omitempty"`

	Seed   uint64           `json:"seed"`
	Params config.RunConfig `json:"params"`

	Phene      uint16                          `json:"phene"`
	LowerBound int                             `json:"lower_bound"`
	Gene       []lifetime.VarID                `json:"gene"`
	Coloring   map[lifetime.VarID]genalg.Color `json:"coloring"`
	History    []genalg.GenerationStats        `json:"history,omitempty"`

	Horizon   lifetime.Cycle      `json:"horizon"`
	Variables []lifetime.Lifetime `json:"variables"`

	DurationMS int64 `json:"duration_ms"`
}

// RunSummary is the list view of a RunRecord.
type RunSummary struct {
	ID         string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Name       string    `json:"name,omitempty"`
	Variables  int       `json:"variables"`
	Phene      uint16    `json:"phene"`
	LowerBound int       `json:"lower_bound"`
	Seed       uint64    `json:"seed"`
}

// Summary returns the list view of r.
func (r *RunRecord) Summary() RunSummary {
	return RunSummary{
		ID:         r.ID,
		CreatedAt:  r.CreatedAt,
		Name:       r.Name,
		Variables:  len(r.Variables),
		Phene:      r.Phene,
		LowerBound: r.LowerBound,
		Seed:       r.Seed,
	}
}

// RunStore saves and retrieves RunRecords.
//
// Keys are "run/<id>". Ids are time-ordered UUIDv7 strings, so reverse key
// order is newest first.
//
// Thread Safety: Safe for concurrent use.
type RunStore struct {
	db  *DB
	now func() time.Time
}

// NewRunStore creates a store on db. The caller keeps ownership of db.
func NewRunStore(db *DB) *RunStore {
	return &RunStore{db: db, now: time.Now}
}

// Save assigns ID and CreatedAt when unset and writes the record.
func (s *RunStore) Save(ctx context.Context, rec *RunRecord) error {
	if rec.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate run id: %w", err)
		}
		rec.ID = id.String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", rec.ID, err)
	}
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set(runKey(rec.ID), data)
	})
}

// Get loads one record.
func (s *RunStore) Get(ctx context.Context, id string) (*RunRecord, error) {
	var rec RunRecord
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get(runKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns up to limit summaries, newest first. limit <= 0 means all.
func (s *RunStore) List(ctx context.Context, limit int) ([]RunSummary, error) {
	var out []RunSummary
	err := s.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration must start past the last key of the prefix.
		for it.Seek([]byte(runPrefix + "\xff")); it.Valid(); it.Next() {
			if limit > 0 && len(out) >= limit {
				return nil
			}
			var rec RunRecord
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, rec.Summary())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a record. Deleting an unknown id reports ErrRunNotFound.
func (s *RunStore) Delete(ctx context.Context, id string) error {
	return s.db.WithTxn(ctx, func(txn *badger.Txn) error {
		if _, err := txn.Get(runKey(id)); errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, id)
		} else if err != nil {
			return err
		}
		return txn.Delete(runKey(id))
	})
}

func runKey(id string) []byte {
	return []byte(runPrefix + id)
}
