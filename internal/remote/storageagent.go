// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// StorageAgentClient talks to one dataset's storage agent, the remote
// process that owns regions and their running snapshots for that
// dataset.
type StorageAgentClient struct {
	client *resty.Client
}

func NewStorageAgentClient(baseURL string) *StorageAgentClient {
	return &StorageAgentClient{client: newBaseClient(baseURL)}
}

type Region struct {
	ID              string `json:"id"`
	BlockSize       uint64 `json:"block_size"`
	BlocksPerExtent uint64 `json:"blocks_per_extent"`
	ExtentCount     uint64 `json:"extent_count"`
}

type runningSnapshot struct {
	PortNumber int `json:"port_number"`
}

// RegionCreate creates a region on this dataset, the forward body of
// RegionsEnsure.
func (c *StorageAgentClient) RegionCreate(ctx context.Context, region Region) error {
	resp, err := c.client.R().SetContext(ctx).SetBody(region).Post("/regions")
	if httpErr := classifyHTTPError("storageagent.region_create", resp, err); httpErr != nil {
		return httpErr
	}
	return nil
}

// RegionDelete hard-deletes a region (undo of RegionsEnsure).
func (c *StorageAgentClient) RegionDelete(ctx context.Context, regionID string) error {
	resp, err := c.client.R().SetContext(ctx).Delete(fmt.Sprintf("/regions/%s", regionID))
	if httpErr := classifyHTTPError("storageagent.region_delete", resp, err); httpErr != nil && !isNotFound(httpErr) {
		return httpErr
	}
	return nil
}

// RegionGet fetches a region's current description.
func (c *StorageAgentClient) RegionGet(ctx context.Context, regionID string) (Region, error) {
	var region Region
	resp, err := c.client.R().SetContext(ctx).SetResult(&region).Get(fmt.Sprintf("/regions/%s", regionID))
	if httpErr := classifyHTTPError("storageagent.region_get", resp, err); httpErr != nil {
		return Region{}, httpErr
	}
	return region, nil
}

// RegionGetSnapshot fetches a region's point-in-time snapshot
// metadata, used to validate one exists before starting a running
// downstairs against it.
func (c *StorageAgentClient) RegionGetSnapshot(ctx context.Context, regionID, snapshotID string) error {
	resp, err := c.client.R().SetContext(ctx).Get(fmt.Sprintf("/regions/%s/snapshots/%s", regionID, snapshotID))
	return classifyHTTPError("storageagent.region_get_snapshot", resp, err)
}

// RegionRunSnapshot starts a running read-only downstairs for
// snapshotID on regionID, the forward body of StartRunningSnapshot.
func (c *StorageAgentClient) RegionRunSnapshot(ctx context.Context, regionID, snapshotID string) (int, error) {
	var result runningSnapshot
	resp, err := c.client.R().SetContext(ctx).SetResult(&result).
		Post(fmt.Sprintf("/regions/%s/snapshots/%s/run", regionID, snapshotID))
	if httpErr := classifyHTTPError("storageagent.region_run_snapshot", resp, err); httpErr != nil {
		return 0, httpErr
	}
	return result.PortNumber, nil
}

// RegionDeleteSnapshot deletes a region's point-in-time snapshot.
// "not found" is success (delete-if-present).
func (c *StorageAgentClient) RegionDeleteSnapshot(ctx context.Context, regionID, snapshotID string) error {
	resp, err := c.client.R().SetContext(ctx).
		Delete(fmt.Sprintf("/regions/%s/snapshots/%s", regionID, snapshotID))
	if httpErr := classifyHTTPError("storageagent.region_delete_snapshot", resp, err); httpErr != nil && !isNotFound(httpErr) {
		return httpErr
	}
	return nil
}

// RegionDeleteRunningSnapshot tears down a running read-only
// downstairs. "not found" is success.
func (c *StorageAgentClient) RegionDeleteRunningSnapshot(ctx context.Context, regionID, snapshotID string) error {
	resp, err := c.client.R().SetContext(ctx).
		Delete(fmt.Sprintf("/regions/%s/snapshots/%s/run", regionID, snapshotID))
	if httpErr := classifyHTTPError("storageagent.region_delete_running_snapshot", resp, err); httpErr != nil && !isNotFound(httpErr) {
		return httpErr
	}
	return nil
}
