// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package snapshotsaga assembles the flagship saga: creating a
// point-in-time snapshot of a disk, either through the disk's
// attached host instance or through the pantry helper service when
// the disk isn't attached anywhere.
package snapshotsaga

import "github.com/nexuscp/sagactl/internal/vcr"

// Resource kinds under which node bodies store and fetch records
// through the saga Context's Datastore.
const (
	KindDisk             = "disk"
	KindSnapshot         = "snapshot"
	KindVolume           = "volume"
	KindRegionAllocation = "region_allocation"
	KindProvisioning     = "provisioning"
	KindRegionSnapshot   = "region_snapshot"
)

// DiskState is a disk's attachment lifecycle state (§4.G).
type DiskState string

const (
	DiskDetached    DiskState = "detached"
	DiskMaintenance DiskState = "maintenance"
	DiskAttached    DiskState = "attached"
)

// SnapshotState is a snapshot row's lifecycle state (§4.G).
type SnapshotState string

const (
	SnapshotCreating SnapshotState = "creating"
	SnapshotReady    SnapshotState = "ready"
)

// DatasetRegion names one (dataset, region) pair a disk's volume
// touches, along with the storage agent address that owns it.
type DatasetRegion struct {
	DatasetID        string `json:"dataset_id"`
	RegionID         string `json:"region_id"`
	StorageAgentAddr string `json:"storage_agent_addr"`
	Socket           string `json:"socket"`
}

// Disk is the subset of a disk resource's state a snapshot saga reads
// and conditionally mutates.
type Disk struct {
	ID                   string          `json:"id"`
	State                DiskState       `json:"state"`
	AttachInstanceID     string          `json:"attach_instance_id,omitempty"`
	SizeBytes            uint64          `json:"size_bytes"`
	VCR                  *vcr.Node       `json:"vcr"`
	SourceDatasetRegions []DatasetRegion `json:"source_dataset_regions"`
}

// Snapshot is a snapshot resource row.
type Snapshot struct {
	ID                  string        `json:"id"`
	State               SnapshotState `json:"state"`
	SourceDiskID        string        `json:"source_disk_id"`
	VolumeID            string        `json:"volume_id"`             // the snapshot's own VCR, written by CreateVolumeRecord
	DestinationVolumeID string        `json:"destination_volume_id"` // the scrub destination, written by CreateDestinationVolume
	SizeBytes           uint64        `json:"size_bytes"`
}

// Volume is a volume resource row: an id and its construction request.
type Volume struct {
	ID   string    `json:"id"`
	Data *vcr.Node `json:"data"`
}

// RegionAllocation records the regions reserved for a destination
// volume, keyed by that volume's id so the allocator is idempotent
// under the caller-supplied-id contract described in §4.H.1.
type RegionAllocation struct {
	VolumeID string          `json:"volume_id"`
	Regions  []DatasetRegion `json:"regions"`
}

// Provisioning tracks a project's virtual-provisioning counters.
type Provisioning struct {
	ProjectID     string `json:"project_id"`
	ProvisionedBy uint64 `json:"provisioned_bytes"`
}

// RegionSnapshot records a running read-only downstairs serving one
// region's point-in-time snapshot.
type RegionSnapshot struct {
	DatasetID    string `json:"dataset_id"`
	RegionID     string `json:"region_id"`
	SnapshotID   string `json:"snapshot_id"`
	SnapshotAddr string `json:"snapshot_addr"`
}
