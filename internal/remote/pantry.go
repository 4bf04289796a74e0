// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/nexuscp/sagactl/internal/vcr"
)

// PantryClient talks to the pantry helper service that multiplexes
// several disks' worth of storage through one attach point.
type PantryClient struct {
	client *resty.Client
}

func NewPantryClient(baseURL string) *PantryClient {
	return &PantryClient{client: newBaseClient(baseURL)}
}

type attachRequest struct {
	VolumeConstructionRequest *vcr.Node `json:"volume_construction_request"`
}

type snapshotRequest struct {
	SnapshotID string `json:"snapshot_id"`
}

// Attach issues attach(disk_id, {volume_construction_request}).
func (c *PantryClient) Attach(ctx context.Context, diskID string, construction *vcr.Node) error {
	resp, err := c.client.R().SetContext(ctx).
		SetBody(attachRequest{VolumeConstructionRequest: construction}).
		Post(fmt.Sprintf("/disks/%s/attach", diskID))
	if httpErr := classifyHTTPError("pantry.attach", resp, err); httpErr != nil {
		return httpErr
	}
	return nil
}

// Snapshot issues snapshot(disk_id, {snapshot_id}). This call is
// deliberately never wrapped in retry by this client: the caller owns
// the idempotence story for re-issuing it.
func (c *PantryClient) Snapshot(ctx context.Context, diskID, snapshotID string) error {
	resp, err := c.client.R().SetContext(ctx).
		SetBody(snapshotRequest{SnapshotID: snapshotID}).
		Post(fmt.Sprintf("/disks/%s/snapshot", diskID))
	if httpErr := classifyHTTPError("pantry.snapshot", resp, err); httpErr != nil {
		return httpErr
	}
	return nil
}

// Detach issues detach(disk_id).
func (c *PantryClient) Detach(ctx context.Context, diskID string) error {
	resp, err := c.client.R().SetContext(ctx).Post(fmt.Sprintf("/disks/%s/detach", diskID))
	if httpErr := classifyHTTPError("pantry.detach", resp, err); httpErr != nil && !isNotFound(httpErr) {
		return httpErr
	}
	return nil
}
