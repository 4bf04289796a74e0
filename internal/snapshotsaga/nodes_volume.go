// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

import (
	"encoding/json"

	"github.com/nexuscp/sagactl/internal/saga"
	"github.com/nexuscp/sagactl/internal/sagaerr"
	"github.com/nexuscp/sagactl/internal/vcr"
)

func createDestinationVolumeForward(ctx *saga.Context) (any, error) {
	var destVolID string
	if err := ctx.Lookup("destination_volume_id", &destVolID); err != nil {
		return nil, sagaerr.Internalf("create_destination_volume", "lookup destination_volume_id: %v", err)
	}
	raw, ok := ctx.RawLookup("RegionsEnsure")
	if !ok {
		return nil, sagaerr.Internalf("create_destination_volume", "RegionsEnsure output not published")
	}
	var node vcr.Node
	if err := json.Unmarshal(raw, &node); err != nil {
		return nil, sagaerr.Internalf("create_destination_volume", "decode destination VCR: %v", err)
	}
	if err := putResource(ctx, KindVolume, destVolID, Volume{ID: destVolID, Data: &node}); err != nil {
		return nil, err
	}
	return destVolID, nil
}

func createDestinationVolumeUndo(ctx *saga.Context) error {
	var destVolID string
	if err := ctx.Lookup("destination_volume_id", &destVolID); err != nil {
		return sagaerr.Internalf("create_destination_volume.undo", "lookup destination_volume_id: %v", err)
	}
	return deleteIfPresent(ctx, KindVolume, destVolID)
}

func createSnapshotRecordForward(ctx *saga.Context) (any, error) {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return nil, err
	}
	var create CreateParams
	if err := ctx.Param("create_params", &create); err != nil {
		return nil, sagaerr.Internalf("create_snapshot_record", "param create_params: %v", err)
	}
	var snapshotID, volumeID, destVolID string
	if err := ctx.Lookup("snapshot_id", &snapshotID); err != nil {
		return nil, sagaerr.Internalf("create_snapshot_record", "lookup snapshot_id: %v", err)
	}
	if err := ctx.Lookup("volume_id", &volumeID); err != nil {
		return nil, sagaerr.Internalf("create_snapshot_record", "lookup volume_id: %v", err)
	}
	if err := ctx.Lookup("destination_volume_id", &destVolID); err != nil {
		return nil, sagaerr.Internalf("create_snapshot_record", "lookup destination_volume_id: %v", err)
	}

	snap := Snapshot{
		ID:                  snapshotID,
		State:               SnapshotCreating,
		SourceDiskID:        diskID,
		VolumeID:            volumeID,
		DestinationVolumeID: destVolID,
		SizeBytes:           create.SizeBytes,
	}
	if err := putResource(ctx, KindSnapshot, snapshotID, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func createSnapshotRecordUndo(ctx *saga.Context) error {
	var snapshotID string
	if err := ctx.Lookup("snapshot_id", &snapshotID); err != nil {
		return sagaerr.Internalf("create_snapshot_record.undo", "lookup snapshot_id: %v", err)
	}
	return deleteIfPresent(ctx, KindSnapshot, snapshotID)
}

// createVolumeRecordForward transforms the source disk's VCR into the
// snapshot's own VCR, remapping top-level region sockets through the
// map StartRunningSnapshot published, and inserts it as volume_id.
func createVolumeRecordForward(ctx *saga.Context) (any, error) {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return nil, err
	}
	var volumeID string
	if err := ctx.Lookup("volume_id", &volumeID); err != nil {
		return nil, sagaerr.Internalf("create_volume_record", "lookup volume_id: %v", err)
	}
	disk, _, err := getDisk(ctx, diskID)
	if err != nil {
		return nil, err
	}
	var socketMap map[string]string
	if err := ctx.Lookup("StartRunningSnapshot", &socketMap); err != nil {
		return nil, sagaerr.Internalf("create_volume_record", "lookup StartRunningSnapshot output: %v", err)
	}

	snapshotVCR, err := vcr.CreateSnapshotFromDisk(disk.VCR, socketMap, vcr.DefaultIDGenerator)
	if err != nil {
		return nil, sagaerr.Invalidf("create_volume_record", "transform disk vcr: %v", err)
	}
	if err := putResource(ctx, KindVolume, volumeID, Volume{ID: volumeID, Data: snapshotVCR}); err != nil {
		return nil, err
	}
	return volumeID, nil
}

func createVolumeRecordUndo(ctx *saga.Context) error {
	var volumeID string
	if err := ctx.Lookup("volume_id", &volumeID); err != nil {
		return sagaerr.Internalf("create_volume_record.undo", "lookup volume_id: %v", err)
	}
	return deleteIfPresent(ctx, KindVolume, volumeID)
}

// finalizeSnapshotRecordForward is the saga's commit point: once this
// CAS succeeds there is no further compensation, by design — a crash
// before it unwinds everything prior instead.
func finalizeSnapshotRecordForward(ctx *saga.Context) (any, error) {
	var snapshotID string
	if err := ctx.Lookup("snapshot_id", &snapshotID); err != nil {
		return nil, sagaerr.Internalf("finalize_snapshot_record", "lookup snapshot_id: %v", err)
	}
	snap, gen, err := getSnapshot(ctx, snapshotID)
	if err != nil {
		return nil, err
	}
	if snap.State != SnapshotCreating {
		return nil, sagaerr.Internalf("finalize_snapshot_record", "snapshot %s in unexpected state %q", snapshotID, snap.State)
	}
	snap.State = SnapshotReady
	if _, err := casUpdateSnapshot(ctx, snap, gen); err != nil {
		return nil, err
	}
	return snap, nil
}
