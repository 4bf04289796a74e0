// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

// SledAgentClient talks to a host instance agent running on the sled
// that owns the instance currently attached to a disk.
type SledAgentClient struct {
	client *resty.Client
}

func NewSledAgentClient(baseURL string) *SledAgentClient {
	return &SledAgentClient{client: newBaseClient(baseURL)}
}

type issueSnapshotRequest struct {
	SnapshotID string `json:"snapshot_id"`
}

// IssueDiskSnapshotRequest calls
// instance_issue_disk_snapshot_request(instance_id, disk_id, {snapshot_id}).
func (c *SledAgentClient) IssueDiskSnapshotRequest(ctx context.Context, instanceID, diskID, snapshotID string) error {
	resp, err := c.client.R().SetContext(ctx).
		SetBody(issueSnapshotRequest{SnapshotID: snapshotID}).
		Post(fmt.Sprintf("/instances/%s/disks/%s/snapshot", instanceID, diskID))
	if httpErr := classifyHTTPError("sledagent.issue_disk_snapshot_request", resp, err); httpErr != nil {
		return httpErr
	}
	return nil
}
