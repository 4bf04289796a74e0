// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nexuscp/sagactl/internal/remote"
	"github.com/nexuscp/sagactl/internal/retry"
	"github.com/nexuscp/sagactl/internal/saga"
	"github.com/nexuscp/sagactl/internal/sagaerr"
	"github.com/nexuscp/sagactl/internal/vcr"
)

// regionsAllocForward allocates one destination region per source
// region, recorded under the caller-supplied destination volume id so
// a re-run after crash finds the existing allocation instead of
// minting a second one.
func regionsAllocForward(ctx *saga.Context) (any, error) {
	diskID, err := lookupStringParam(ctx, "disk_id")
	if err != nil {
		return nil, err
	}
	var destVolID string
	if err := ctx.Lookup("destination_volume_id", &destVolID); err != nil {
		return nil, sagaerr.Internalf("regions_alloc", "lookup destination_volume_id: %v", err)
	}

	var existing RegionAllocation
	if err := getResource(ctx, KindRegionAllocation, destVolID, &existing); err == nil {
		return existing, nil
	} else if sagaerr.KindOf(err) != sagaerr.NotFound {
		return nil, err
	}

	disk, _, err := getDisk(ctx, diskID)
	if err != nil {
		return nil, err
	}

	regions := make([]DatasetRegion, 0, len(disk.SourceDatasetRegions))
	for _, src := range disk.SourceDatasetRegions {
		regions = append(regions, DatasetRegion{
			DatasetID:        src.DatasetID,
			RegionID:         uuid.NewString(),
			StorageAgentAddr: src.StorageAgentAddr,
		})
	}

	alloc := RegionAllocation{VolumeID: destVolID, Regions: regions}
	if err := putResource(ctx, KindRegionAllocation, destVolID, alloc); err != nil {
		return nil, err
	}
	return alloc, nil
}

func regionsAllocUndo(ctx *saga.Context) error {
	var destVolID string
	if err := ctx.Lookup("destination_volume_id", &destVolID); err != nil {
		return sagaerr.Internalf("regions_alloc.undo", "lookup destination_volume_id: %v", err)
	}
	return deleteIfPresent(ctx, KindRegionAllocation, destVolID)
}

// regionsEnsureForward instructs each allocated region's storage
// agent to create it, then assembles the destination VCR.
func regionsEnsureForward(ctx *saga.Context) (any, error) {
	var alloc RegionAllocation
	if err := ctx.Lookup("RegionsAlloc", &alloc); err != nil {
		return nil, sagaerr.Internalf("regions_ensure", "lookup RegionsAlloc output: %v", err)
	}
	var create CreateParams
	if err := ctx.Param("create_params", &create); err != nil {
		return nil, sagaerr.Internalf("regions_ensure", "param create_params: %v", err)
	}

	subVolumes := make([]*vcr.Node, 0, len(alloc.Regions))
	for i := range alloc.Regions {
		region := &alloc.Regions[i]
		client, err := storageAgentClient(ctx, region.DatasetID)
		if err != nil {
			return nil, err
		}
		rr := remote.Region{ID: region.RegionID, BlockSize: create.BlockSize, BlocksPerExtent: create.BlocksPerExt, ExtentCount: create.ExtentCount}
		if err := retry.Do(ctx.Ctx, ctx.Log, "regions_ensure.region_create", func(rctx context.Context) error {
			return client.RegionCreate(rctx, rr)
		}); err != nil {
			return nil, err
		}

		key, err := randomBase64Key()
		if err != nil {
			return nil, sagaerr.Internalf("regions_ensure", "generate region key: %v", err)
		}
		subVolumes = append(subVolumes, vcr.NewRegion(create.BlockSize, create.BlocksPerExt, create.ExtentCount, 1, vcr.RegionOpts{
			ID:       region.RegionID,
			Targets:  []string{region.StorageAgentAddr},
			Key:      key,
			ReadOnly: false,
		}))
	}

	volume := vcr.NewVolume(uuid.NewString(), create.BlockSize, subVolumes, nil)
	return vcr.MarshalTree(volume)
}

// regionsEnsureUndo deletes the regions this node placed in the
// destination VCR. It deletes only the allocated regions that
// CollectRegionIDs finds in the tree RegionsEnsure published; if that
// tree is missing or does not decode, it deletes every allocated region.
func regionsEnsureUndo(ctx *saga.Context) error {
	var alloc RegionAllocation
	if err := ctx.Lookup("RegionsAlloc", &alloc); err != nil {
		// RegionsAlloc never reached "succeeded" — nothing was ensured.
		return nil
	}

	var ensured map[string]bool
	if raw, ok := ctx.RawLookup("RegionsEnsure"); ok {
		var tree vcr.Node
		if err := json.Unmarshal(raw, &tree); err == nil {
			ids := vcr.CollectRegionIDs(&tree)
			ensured = make(map[string]bool, len(ids))
			for _, id := range ids {
				ensured[id] = true
			}
		}
	}

	var firstErr error
	for _, region := range alloc.Regions {
		if ensured != nil && !ensured[region.RegionID] {
			continue
		}
		client, err := storageAgentClient(ctx, region.DatasetID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if err := client.RegionDelete(ctx.Ctx, region.RegionID); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func randomBase64Key() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
