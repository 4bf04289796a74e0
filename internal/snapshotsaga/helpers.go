// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

import (
	"encoding/json"
	"fmt"

	"github.com/nexuscp/sagactl/internal/saga"
	"github.com/nexuscp/sagactl/internal/sagaerr"
)

// getDisk fetches and decodes the disk record, returning its current
// generation alongside it for callers that need to CAS on it.
func getDisk(ctx *saga.Context, id string) (Disk, int64, error) {
	raw, gen, err := ctx.Datastore.GetResource(ctx.Ctx, KindDisk, id)
	if err != nil {
		return Disk{}, 0, err
	}
	var d Disk
	if err := json.Unmarshal(raw, &d); err != nil {
		return Disk{}, 0, sagaerr.Internalf("decode:disk", "unmarshal disk %s: %v", id, err)
	}
	return d, gen, nil
}

func casUpdateDisk(ctx *saga.Context, d Disk, expectedGen int64) (int64, error) {
	raw, err := json.Marshal(d)
	if err != nil {
		return 0, sagaerr.Internalf("encode:disk", "marshal disk %s: %v", d.ID, err)
	}
	return ctx.Datastore.CASUpdateResource(ctx.Ctx, KindDisk, d.ID, expectedGen, raw)
}

func getSnapshot(ctx *saga.Context, id string) (Snapshot, int64, error) {
	raw, gen, err := ctx.Datastore.GetResource(ctx.Ctx, KindSnapshot, id)
	if err != nil {
		return Snapshot{}, 0, err
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, 0, sagaerr.Internalf("decode:snapshot", "unmarshal snapshot %s: %v", id, err)
	}
	return s, gen, nil
}

func casUpdateSnapshot(ctx *saga.Context, s Snapshot, expectedGen int64) (int64, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return 0, sagaerr.Internalf("encode:snapshot", "marshal snapshot %s: %v", s.ID, err)
	}
	return ctx.Datastore.CASUpdateResource(ctx.Ctx, KindSnapshot, s.ID, expectedGen, raw)
}

func putResource(ctx *saga.Context, kind, id string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return sagaerr.Internalf("encode:"+kind, "marshal %s %s: %v", kind, id, err)
	}
	_, err = ctx.Datastore.PutResource(ctx.Ctx, kind, id, raw)
	return err
}

func getResource(ctx *saga.Context, kind, id string, dst any) error {
	raw, _, err := ctx.Datastore.GetResource(ctx.Ctx, kind, id)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return sagaerr.Internalf("decode:"+kind, "unmarshal %s %s: %v", kind, id, err)
	}
	return nil
}

// deleteIfPresent deletes a resource, converging "not found" to
// success for undo bodies that must tolerate running against state
// their forward never reached or already reversed.
func deleteIfPresent(ctx *saga.Context, kind, id string) error {
	return sagaerr.AsDeleteSuccess(ctx.Datastore.DeleteResource(ctx.Ctx, kind, id))
}

// lookupStringParam reads a single string field out of the saga's
// initial params without requiring every node to re-decode all of
// Params.
func lookupStringParam(ctx *saga.Context, key string) (string, error) {
	var v string
	if err := ctx.Param(key, &v); err != nil {
		return "", fmt.Errorf("snapshotsaga: param %s: %w", key, err)
	}
	return v, nil
}
