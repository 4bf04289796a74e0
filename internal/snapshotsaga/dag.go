// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nexuscp/sagactl/internal/saga"
)

// Node names, matching the vocabulary node bodies and tests refer to
// each step by.
const (
	NodeSnapshotID             = "snapshot_id"
	NodeVolumeID               = "volume_id"
	NodeDestinationVolumeID    = "destination_volume_id"
	NodeRegionsAlloc           = "RegionsAlloc"
	NodeRegionsEnsure          = "RegionsEnsure"
	NodeCreateDestinationVol   = "CreateDestinationVolume"
	NodeCreateSnapshotRecord   = "CreateSnapshotRecord"
	NodeSpaceAccount           = "SpaceAccount"
	NodeUseAttachedPath        = "UseAttachedPath"
	NodeUsePantryPath          = "UsePantryPath"
	NodeSendSnapshotToSled     = "SendSnapshotRequestToSledAgent"
	NodeGetPantryAddress       = "GetPantryAddress"
	NodeAttachDiskToPantry     = "AttachDiskToPantry"
	NodeCallPantryAttach       = "CallPantryAttachForDisk"
	NodeCallPantrySnapshot     = "CallPantrySnapshotForDisk"
	NodeCallPantryDetach       = "CallPantryDetachForDisk"
	NodeStartRunningSnapshot   = "StartRunningSnapshot"
	NodeCreateVolumeRecord     = "CreateVolumeRecord"
	NodeFinalizeSnapshotRecord = "FinalizeSnapshotRecord"
	NodeDetachDiskFromPantry   = "DetachDiskFromPantry"
)

// BuildDAG assembles the snapshot saga's DAG for one saga run and the
// flattened parameter map Manager.Create expects. use_the_pantry
// decides the DAG's shape, not just a runtime branch: DetachDiskFromPantry
// only exists at all when the caller asked for the pantry path, so it
// must be decided here rather than skipped at runtime.
func BuildDAG(params Params) (*saga.DAG, map[string]json.RawMessage, error) {
	b := saga.NewBuilder()

	b.Append(saga.Node{Name: NodeSnapshotID, Kind: saga.NodeConstant, Constant: uuid.NewString()})
	b.Append(saga.Node{Name: NodeVolumeID, Kind: saga.NodeConstant, Constant: uuid.NewString()})
	b.Append(saga.Node{Name: NodeDestinationVolumeID, Kind: saga.NodeConstant, Constant: uuid.NewString()})

	b.Append(saga.Node{Name: NodeRegionsAlloc, Kind: saga.NodeAction, ActionKey: keyRegionsAlloc, DependsOn: []string{NodeDestinationVolumeID}})
	b.Append(saga.Node{Name: NodeRegionsEnsure, Kind: saga.NodeAction, ActionKey: keyRegionsEnsure, DependsOn: []string{NodeRegionsAlloc}})
	b.Append(saga.Node{Name: NodeCreateDestinationVol, Kind: saga.NodeAction, ActionKey: keyCreateDestinationVolume, DependsOn: []string{NodeRegionsEnsure, NodeDestinationVolumeID}})
	b.Append(saga.Node{Name: NodeCreateSnapshotRecord, Kind: saga.NodeAction, ActionKey: keyCreateSnapshotRecord, DependsOn: []string{NodeCreateDestinationVol, NodeSnapshotID, NodeVolumeID}})
	b.Append(saga.Node{Name: NodeSpaceAccount, Kind: saga.NodeAction, ActionKey: keySpaceAccount, DependsOn: []string{NodeCreateSnapshotRecord}})

	attachedSub, err := saga.NewBuilder().
		Append(saga.Node{Name: NodeSendSnapshotToSled, Kind: saga.NodeAction, ActionKey: keySendSnapshotRequestToSledAgnt}).
		Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build attached-path subgraph: %w", err)
	}

	pantrySub, err := saga.NewBuilder().
		Append(saga.Node{Name: NodeGetPantryAddress, Kind: saga.NodeAction, ActionKey: keyGetPantryAddress}).
		Append(saga.Node{Name: NodeAttachDiskToPantry, Kind: saga.NodeAction, ActionKey: keyAttachDiskToPantry, DependsOn: []string{NodeGetPantryAddress}}).
		Append(saga.Node{Name: NodeCallPantryAttach, Kind: saga.NodeAction, ActionKey: keyCallPantryAttachForDisk, DependsOn: []string{NodeAttachDiskToPantry}}).
		Append(saga.Node{Name: NodeCallPantrySnapshot, Kind: saga.NodeAction, ActionKey: keyCallPantrySnapshotForDisk, DependsOn: []string{NodeCallPantryAttach}}).
		Append(saga.Node{Name: NodeCallPantryDetach, Kind: saga.NodeAction, ActionKey: keyCallPantryDetachForDisk, DependsOn: []string{NodeCallPantrySnapshot}}).
		Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build pantry-path subgraph: %w", err)
	}

	b.Append(saga.Node{
		Name: NodeUseAttachedPath, Kind: saga.NodeBranch,
		Predicate: func(ctx *saga.Context) (bool, error) {
			var useThePantry bool
			if err := ctx.Param("use_the_pantry", &useThePantry); err != nil {
				return false, err
			}
			return !useThePantry, nil
		},
		Subgraph:  attachedSub,
		DependsOn: []string{NodeSpaceAccount},
	})
	b.Append(saga.Node{
		Name: NodeUsePantryPath, Kind: saga.NodeBranch,
		Predicate: func(ctx *saga.Context) (bool, error) {
			var useThePantry bool
			if err := ctx.Param("use_the_pantry", &useThePantry); err != nil {
				return false, err
			}
			return useThePantry, nil
		},
		Subgraph:  pantrySub,
		DependsOn: []string{NodeSpaceAccount},
	})

	b.Append(saga.Node{Name: NodeStartRunningSnapshot, Kind: saga.NodeAction, ActionKey: keyStartRunningSnapshot, DependsOn: []string{NodeUseAttachedPath, NodeUsePantryPath}})
	b.Append(saga.Node{Name: NodeCreateVolumeRecord, Kind: saga.NodeAction, ActionKey: keyCreateVolumeRecord, DependsOn: []string{NodeStartRunningSnapshot, NodeVolumeID}})
	b.Append(saga.Node{Name: NodeFinalizeSnapshotRecord, Kind: saga.NodeAction, ActionKey: keyFinalizeSnapshotRecord, DependsOn: []string{NodeCreateVolumeRecord}})

	if params.UseThePantry {
		// Must be appended last and depend on FinalizeSnapshotRecord:
		// concurrent operations on this disk stay blocked until the
		// snapshot is durably Ready.
		b.Append(saga.Node{Name: NodeDetachDiskFromPantry, Kind: saga.NodeAction, ActionKey: keyDetachDiskFromPantry, DependsOn: []string{NodeFinalizeSnapshotRecord}})
	}

	dag, err := b.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build snapshot saga dag: %w", err)
	}

	paramMap, err := paramsToMap(params)
	if err != nil {
		return nil, nil, err
	}
	return dag, paramMap, nil
}

func paramsToMap(p Params) (map[string]json.RawMessage, error) {
	fields := map[string]any{
		"auth_token":     p.AuthToken,
		"silo_id":        p.SiloID,
		"project_id":     p.ProjectID,
		"disk_id":        p.DiskID,
		"use_the_pantry": p.UseThePantry,
		"create_params":  p.CreateParams,
	}
	out := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("marshal param %s: %w", k, err)
		}
		out[k] = raw
	}
	return out, nil
}
