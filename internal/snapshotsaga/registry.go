// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

import "github.com/nexuscp/sagactl/internal/saga"

// Action keys, one per registered (forward, undo) pair. Node names in
// the assembled DAG match these 1:1 except where a DAG needs two
// differently-named nodes sharing a body (it doesn't, here).
const (
	keyRegionsAlloc                  = "snapshotsaga.regions_alloc"
	keyRegionsEnsure                 = "snapshotsaga.regions_ensure"
	keyCreateDestinationVolume       = "snapshotsaga.create_destination_volume"
	keyCreateSnapshotRecord          = "snapshotsaga.create_snapshot_record"
	keySpaceAccount                  = "snapshotsaga.space_account"
	keySendSnapshotRequestToSledAgnt = "snapshotsaga.send_snapshot_request_to_sled_agent"
	keyGetPantryAddress              = "snapshotsaga.get_pantry_address"
	keyAttachDiskToPantry            = "snapshotsaga.attach_disk_to_pantry"
	keyCallPantryAttachForDisk       = "snapshotsaga.call_pantry_attach_for_disk"
	keyCallPantrySnapshotForDisk     = "snapshotsaga.call_pantry_snapshot_for_disk"
	keyCallPantryDetachForDisk       = "snapshotsaga.call_pantry_detach_for_disk"
	keyStartRunningSnapshot          = "snapshotsaga.start_running_snapshot"
	keyCreateVolumeRecord            = "snapshotsaga.create_volume_record"
	keyFinalizeSnapshotRecord        = "snapshotsaga.finalize_snapshot_record"
	keyDetachDiskFromPantry          = "snapshotsaga.detach_disk_from_pantry"
)

// RegisterActions registers every snapshot saga node's (forward, undo)
// pair into reg. Call once per process at startup.
func RegisterActions(reg *saga.Registry) error {
	actions := []struct {
		key     string
		forward saga.Forward
		undo    saga.Undo
	}{
		{keyRegionsAlloc, regionsAllocForward, regionsAllocUndo},
		{keyRegionsEnsure, regionsEnsureForward, regionsEnsureUndo},
		{keyCreateDestinationVolume, createDestinationVolumeForward, createDestinationVolumeUndo},
		{keyCreateSnapshotRecord, createSnapshotRecordForward, createSnapshotRecordUndo},
		{keySpaceAccount, spaceAccountForward, spaceAccountUndo},
		{keySendSnapshotRequestToSledAgnt, sendSnapshotRequestToSledAgentForward, sendSnapshotRequestToSledAgentUndo},
		{keyGetPantryAddress, getPantryAddressForward, nil},
		{keyAttachDiskToPantry, attachDiskToPantryForward, attachDiskToPantryUndo},
		{keyCallPantryAttachForDisk, callPantryAttachForDiskForward, callPantryAttachForDiskUndo},
		{keyCallPantrySnapshotForDisk, callPantrySnapshotForDiskForward, callPantrySnapshotForDiskUndo},
		{keyCallPantryDetachForDisk, callPantryDetachForDiskForward, nil},
		{keyStartRunningSnapshot, startRunningSnapshotForward, startRunningSnapshotUndo},
		{keyCreateVolumeRecord, createVolumeRecordForward, createVolumeRecordUndo},
		{keyFinalizeSnapshotRecord, finalizeSnapshotRecordForward, nil},
		{keyDetachDiskFromPantry, detachDiskFromPantryForward, nil},
	}
	for _, a := range actions {
		if err := reg.Register(a.key, a.forward, a.undo); err != nil {
			return err
		}
	}
	return nil
}
