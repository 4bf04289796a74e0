// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

import (
	"fmt"

	"github.com/nexuscp/sagactl/internal/saga"
	"github.com/nexuscp/sagactl/internal/sagaerr"
)

// startRunningSnapshotForward starts one running read-only downstairs
// per source region and returns the old-socket -> new-socket map that
// CreateVolumeRecord uses to remap the snapshot's VCR.
func startRunningSnapshotForward(ctx *saga.Context) (any, error) {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return nil, err
	}
	var snapshotID string
	if err := ctx.Lookup("snapshot_id", &snapshotID); err != nil {
		return nil, sagaerr.Internalf("start_running_snapshot", "lookup snapshot_id: %v", err)
	}
	disk, _, err := getDisk(ctx, diskID)
	if err != nil {
		return nil, err
	}

	socketMap := make(map[string]string, len(disk.SourceDatasetRegions))
	for _, region := range disk.SourceDatasetRegions {
		client, err := storageAgentClient(ctx, region.DatasetID)
		if err != nil {
			return nil, err
		}
		if _, err := client.RegionGet(ctx.Ctx, region.RegionID); err != nil {
			return nil, err
		}
		if err := client.RegionGetSnapshot(ctx.Ctx, region.RegionID, snapshotID); err != nil {
			return nil, err
		}
		port, err := client.RegionRunSnapshot(ctx.Ctx, region.RegionID, snapshotID)
		if err != nil {
			return nil, err
		}

		newSocket := fmt.Sprintf("%s#%d", region.StorageAgentAddr, port)
		if err := putResource(ctx, KindRegionSnapshot, regionSnapshotKey(region.DatasetID, region.RegionID, snapshotID), RegionSnapshot{
			DatasetID:    region.DatasetID,
			RegionID:     region.RegionID,
			SnapshotID:   snapshotID,
			SnapshotAddr: newSocket,
		}); err != nil {
			return nil, err
		}
		socketMap[region.Socket] = newSocket
	}
	return socketMap, nil
}

func startRunningSnapshotUndo(ctx *saga.Context) error {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return err
	}
	var snapshotID string
	if err := ctx.Lookup("snapshot_id", &snapshotID); err != nil {
		return sagaerr.Internalf("start_running_snapshot.undo", "lookup snapshot_id: %v", err)
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
		if err := client.RegionDeleteRunningSnapshot(ctx.Ctx, region.RegionID, snapshotID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
		if err := deleteIfPresent(ctx, KindRegionSnapshot, regionSnapshotKey(region.DatasetID, region.RegionID, snapshotID)); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func regionSnapshotKey(datasetID, regionID, snapshotID string) string {
	return datasetID + ":" + regionID + ":" + snapshotID
}
