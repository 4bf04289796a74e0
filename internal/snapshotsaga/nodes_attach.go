// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

import (
	"github.com/nexuscp/sagactl/internal/saga"
	"github.com/nexuscp/sagactl/internal/sagaerr"
)

// sendSnapshotRequestToSledAgentForward is the attached-path's only
// node: the disk stays wherever its instance already has it attached,
// and the host agent there takes the point-in-time snapshot directly.
func sendSnapshotRequestToSledAgentForward(ctx *saga.Context) (any, error) {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return nil, err
	}
	var snapshotID string
	if err := ctx.Lookup("snapshot_id", &snapshotID); err != nil {
		return nil, sagaerr.Internalf("send_snapshot_request_to_sled_agent", "lookup snapshot_id: %v", err)
	}

	disk, _, err := getDisk(ctx, diskID)
	if err != nil {
		return nil, err
	}
	if disk.State != DiskAttached || disk.AttachInstanceID == "" {
		return nil, sagaerr.ServiceUnavailablef("send_snapshot_request_to_sled_agent", "disk %s is no longer attached to an instance", diskID)
	}

	client, err := sledAgentClient(ctx, disk.AttachInstanceID)
	if err != nil {
		return nil, err
	}
	if err := client.IssueDiskSnapshotRequest(ctx.Ctx, disk.AttachInstanceID, diskID, snapshotID); err != nil {
		return nil, err
	}
	return disk.AttachInstanceID, nil
}

func sendSnapshotRequestToSledAgentUndo(ctx *saga.Context) error {
	return undoRegionSnapshots(ctx)
}

// undoRegionSnapshots deletes the source disk's point-in-time region
// snapshots, tolerating "not found" for regions the forward body
// never reached or a retried forward already cleaned up. Shared by
// both the attached path and the pantry path, whose snapshot-taking
// nodes have the same compensation.
func undoRegionSnapshots(ctx *saga.Context) error {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return err
	}
	var snapshotID string
	if err := ctx.Lookup("snapshot_id", &snapshotID); err != nil {
		return sagaerr.Internalf("undo_region_snapshots", "lookup snapshot_id: %v", err)
	}
	disk, _, err := getDisk(ctx, diskID)
	if err != nil {
		return err
	}

	var firstErr error
	for _, region := range disk.SourceDatasetRegions {
		client, err := storageAgentClient(ctx, region.DatasetID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := client.RegionDeleteSnapshot(ctx.Ctx, region.RegionID, snapshotID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
