// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package datastore holds the resource records a saga reads and
// mutates: disks and snapshots, each guarded by a generation number
// so concurrent sagas racing the same resource detect each other via
// compare-and-swap instead of clobbering state.
package datastore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/nexuscp/sagactl/internal/sagaerr"
)

// ErrNotFound is returned by Get when no record exists for (kind, id).
var ErrNotFound = errors.New("datastore: resource not found")

// ErrGenerationMismatch is returned by CASUpdate when generation does
// not match the record's current generation — another writer won the
// race.
var ErrGenerationMismatch = errors.New("datastore: generation mismatch")

// Record is a stored resource: an opaque JSON document plus the
// generation number its last writer observed.
type Record struct {
	Kind       string
	ID         string
	Data       json.RawMessage
	Generation int64
}

// Store is the resource datastore a saga's Context.Datastore adapts
// to. Implementations must make CASUpdate atomic: the read-generation
// check and the write must happen under a single transaction or
// equivalent isolation guarantee.
type Store interface {
	// Get returns the current record for (kind, id), or ErrNotFound.
	Get(ctx context.Context, kind, id string) (Record, error)

	// Put inserts or unconditionally overwrites a record, starting (or
	// resetting) its generation at 1. Used for initial resource
	// creation, not for state transitions guarded by a generation.
	Put(ctx context.Context, kind, id string, data json.RawMessage) (Record, error)

	// CASUpdate writes next for (kind, id) only if the stored record's
	// generation equals expectedGeneration, and returns the new
	// generation. Returns ErrGenerationMismatch on a losing race, and
	// ErrNotFound if the record does not exist.
	CASUpdate(ctx context.Context, kind, id string, expectedGeneration int64, next json.RawMessage) (int64, error)

	// Delete removes a record. Deleting an absent record is not an
	// error — callers rely on this for idempotent compensation.
	Delete(ctx context.Context, kind, id string) error

	Close() error
}

// Adapter implements saga.Datastore over a Store, translating
// datastore errors into the saga error taxonomy. Kept separate from
// Store so Store stays a plain storage interface, testable without
// pulling in the saga package.
type Adapter struct {
	Store Store
}

func NewAdapter(store Store) *Adapter {
	return &Adapter{Store: store}
}

func (a *Adapter) GetResource(ctx context.Context, kind, id string) (json.RawMessage, int64, error) {
	rec, err := a.Store.Get(ctx, kind, id)
	if err != nil {
		return nil, 0, translateErr(kind, id, err)
	}
	return rec.Data, rec.Generation, nil
}

func (a *Adapter) CASUpdateResource(ctx context.Context, kind, id string, generation int64, next json.RawMessage) (int64, error) {
	newGen, err := a.Store.CASUpdate(ctx, kind, id, generation, next)
	if err != nil {
		return 0, translateErr(kind, id, err)
	}
	return newGen, nil
}

func (a *Adapter) PutResource(ctx context.Context, kind, id string, data json.RawMessage) (int64, error) {
	rec, err := a.Store.Put(ctx, kind, id, data)
	if err != nil {
		return 0, translateErr(kind, id, err)
	}
	return rec.Generation, nil
}

func (a *Adapter) DeleteResource(ctx context.Context, kind, id string) error {
	if err := a.Store.Delete(ctx, kind, id); err != nil {
		return translateErr(kind, id, err)
	}
	return nil
}

func translateErr(kind, id string, err error) error {
	if errors.Is(err, ErrNotFound) {
		return sagaerr.NotFoundf("datastore.get", "%s %s not found", kind, id)
	}
	if errors.Is(err, ErrGenerationMismatch) {
		return sagaerr.Conflictf("datastore.cas", "%s %s generation changed underneath us", kind, id)
	}
	return sagaerr.Transientf("datastore", "%s %s: %v", kind, id, err)
}
