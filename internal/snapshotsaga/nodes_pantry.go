// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

import (
	"context"

	"github.com/nexuscp/sagactl/internal/retry"
	"github.com/nexuscp/sagactl/internal/saga"
	"github.com/nexuscp/sagactl/internal/sagaerr"
)

func getPantryAddressForward(ctx *saga.Context) (any, error) {
	addr, err := ctx.Resolver.Resolve(ctx.Ctx, "pantry", "")
	if err != nil {
		return nil, err
	}
	return addr, nil
}

// attachDiskToPantryForward transitions the disk Detached -> Maintenance
// so no other saga can attach it elsewhere while the pantry borrows it.
func attachDiskToPantryForward(ctx *saga.Context) (any, error) {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return nil, err
	}
	disk, gen, err := getDisk(ctx, diskID)
	if err != nil {
		return nil, err
	}
	if disk.State != DiskDetached {
		return nil, sagaerr.ServiceUnavailablef("attach_disk_to_pantry", "disk %s is %q, not detached", diskID, disk.State)
	}
	disk.State = DiskMaintenance
	newGen, err := casUpdateDisk(ctx, disk, gen)
	if err != nil {
		return nil, err
	}
	return newGen, nil
}

// attachDiskToPantryUndo reverses the Detached -> Maintenance
// transition only if it's still in the state this node put it in;
// anything else means a later node already moved it on, or a retried
// forward never got this far, and undoing would be wrong either way.
func attachDiskToPantryUndo(ctx *saga.Context) error {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return err
	}
	disk, gen, err := getDisk(ctx, diskID)
	if err != nil {
		return err
	}
	switch disk.State {
	case DiskMaintenance:
		disk.State = DiskDetached
		_, err := casUpdateDisk(ctx, disk, gen)
		return err
	case DiskDetached:
		return nil
	default:
		ctx.Log.Warnf("attach_disk_to_pantry.undo: disk %s in unexpected state %q, leaving alone", diskID, disk.State)
		return nil
	}
}

func callPantryAttachForDiskForward(ctx *saga.Context) (any, error) {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return nil, err
	}
	disk, _, err := getDisk(ctx, diskID)
	if err != nil {
		return nil, err
	}
	client, err := pantryClient(ctx)
	if err != nil {
		return nil, err
	}
	if err := retry.Do(ctx.Ctx, ctx.Log, "call_pantry_attach_for_disk", func(rctx context.Context) error {
		return client.Attach(rctx, diskID, disk.VCR)
	}); err != nil {
		return nil, err
	}
	return true, nil
}

func callPantryAttachForDiskUndo(ctx *saga.Context) error {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return err
	}
	client, err := pantryClient(ctx)
	if err != nil {
		return err
	}
	return retry.Do(ctx.Ctx, ctx.Log, "call_pantry_attach_for_disk.undo", func(rctx context.Context) error {
		return client.Detach(rctx, diskID)
	})
}

// callPantrySnapshotForDiskForward is deliberately not retried: a
// permanent error here fails the node immediately and the caller owns
// the decision to retry the whole saga.
func callPantrySnapshotForDiskForward(ctx *saga.Context) (any, error) {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return nil, err
	}
	var snapshotID string
	if err := ctx.Lookup("snapshot_id", &snapshotID); err != nil {
		return nil, sagaerr.Internalf("call_pantry_snapshot_for_disk", "lookup snapshot_id: %v", err)
	}
	client, err := pantryClient(ctx)
	if err != nil {
		return nil, err
	}
	if err := client.Snapshot(ctx.Ctx, diskID, snapshotID); err != nil {
		return nil, err
	}
	return true, nil
}

func callPantrySnapshotForDiskUndo(ctx *saga.Context) error {
	return undoRegionSnapshots(ctx)
}

func callPantryDetachForDiskForward(ctx *saga.Context) (any, error) {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return nil, err
	}
	client, err := pantryClient(ctx)
	if err != nil {
		return nil, err
	}
	if err := retry.Do(ctx.Ctx, ctx.Log, "call_pantry_detach_for_disk", func(rctx context.Context) error {
		return client.Detach(rctx, diskID)
	}); err != nil {
		return nil, err
	}
	return true, nil
}

// detachDiskFromPantryForward is the saga's structurally-last node
// when use_the_pantry is set: it must run after FinalizeSnapshotRecord
// so no other saga can touch the disk until the snapshot is durably
// Ready.
func detachDiskFromPantryForward(ctx *saga.Context) (any, error) {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return nil, err
	}
	var capturedGen int64
	if err := ctx.Lookup("AttachDiskToPantry", &capturedGen); err != nil {
		return nil, sagaerr.Internalf("detach_disk_from_pantry", "lookup AttachDiskToPantry output: %v", err)
	}

	disk, gen, err := getDisk(ctx, diskID)
	if err != nil {
		return nil, err
	}
	if disk.State == DiskMaintenance && gen == capturedGen {
		disk.State = DiskDetached
		if _, err := casUpdateDisk(ctx, disk, gen); err != nil {
			return nil, err
		}
		return true, nil
	}
	ctx.Log.Infof("detach_disk_from_pantry: disk %s state %q generation %d doesn't match captured generation %d, leaving alone", diskID, disk.State, gen, capturedGen)
	return false, nil
}
