// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

// CreateParams carries the caller-supplied shape of the snapshot being
// created: how big it should be billed as, and a human label.
type CreateParams struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	SizeBytes    uint64 `json:"size_bytes"`
	BlockSize    uint64 `json:"block_size"`
	BlocksPerExt uint64 `json:"blocks_per_extent"`
	ExtentCount  uint64 `json:"extent_count"`
}

// Params is the snapshot saga's top-level parameter set.
type Params struct {
	AuthToken    string       `json:"auth_token"`
	SiloID       string       `json:"silo_id"`
	ProjectID    string       `json:"project_id"`
	DiskID       string       `json:"disk_id"`
	UseThePantry bool         `json:"use_the_pantry"`
	CreateParams CreateParams `json:"create_params"`
}
