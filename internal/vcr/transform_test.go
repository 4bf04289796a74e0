// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package vcr

import (
	"fmt"
	"testing"
)

func sequentialIDs(prefix string) IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func sourceTree() *Node {
	region := NewRegion(4096, 100, 10, 1, RegionOpts{
		ID:      "src-region-1",
		Targets: []string{"10.0.0.1:1000", "10.0.0.2:1000"},
		Key:     "source-key",
	})
	roParentRegion := NewRegion(4096, 100, 10, 1, RegionOpts{
		ID:      "parent-region-1",
		Targets: []string{"10.0.0.9:9000"},
		Key:     "parent-key",
	})
	roParent := NewVolume("parent-vol", 4096, []*Node{roParentRegion}, nil)
	return NewVolume("src-vol", 4096, []*Node{region}, roParent)
}

func TestCreateSnapshotFromDisk_FreshIDsThroughoutTree(t *testing.T) {
	src := sourceTree()
	socketMap := map[string]string{
		"10.0.0.1:1000": "10.0.1.1:2000",
		"10.0.0.2:1000": "10.0.1.2:2000",
	}

	out, err := CreateSnapshotFromDisk(src, socketMap, sequentialIDs("new"))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	if out.ID == src.ID || out.ID == "" {
		t.Fatalf("expected fresh top-level id, got %q", out.ID)
	}
	if out.SubVolumes[0].Opts.ID == src.SubVolumes[0].Opts.ID {
		t.Fatal("expected fresh region id")
	}
	if out.ReadOnlyParent.ID == src.ReadOnlyParent.ID {
		t.Fatal("expected fresh read-only-parent id")
	}
}

func TestCreateSnapshotFromDisk_TopLevelRegionTargetsRemapped(t *testing.T) {
	src := sourceTree()
	socketMap := map[string]string{
		"10.0.0.1:1000": "10.0.1.1:2000",
		"10.0.0.2:1000": "10.0.1.2:2000",
	}
	out, err := CreateSnapshotFromDisk(src, socketMap, sequentialIDs("new"))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	got := out.SubVolumes[0].Opts.Targets
	want := []string{"10.0.1.1:2000", "10.0.1.2:2000"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("target %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestCreateSnapshotFromDisk_ReadOnlyParentTargetsUnchanged(t *testing.T) {
	src := sourceTree()
	socketMap := map[string]string{
		"10.0.0.1:1000": "10.0.1.1:2000",
		"10.0.0.2:1000": "10.0.1.2:2000",
	}
	out, err := CreateSnapshotFromDisk(src, socketMap, sequentialIDs("new"))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	parentRegion := out.ReadOnlyParent.SubVolumes[0]
	if parentRegion.Opts.Targets[0] != "10.0.0.9:9000" {
		t.Fatalf("expected read-only-parent target unchanged, got %q", parentRegion.Opts.Targets[0])
	}
}

func TestCreateSnapshotFromDisk_OptsReadOnlyTrueControlNil(t *testing.T) {
	src := sourceTree()
	socketMap := map[string]string{
		"10.0.0.1:1000": "10.0.1.1:2000",
		"10.0.0.2:1000": "10.0.1.2:2000",
	}
	out, err := CreateSnapshotFromDisk(src, socketMap, sequentialIDs("new"))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if !out.SubVolumes[0].Opts.ReadOnly {
		t.Fatal("expected transformed region to be read_only")
	}
	if out.SubVolumes[0].Opts.Control != nil {
		t.Fatal("expected transformed region's control to be nil")
	}
}

func TestCreateSnapshotFromDisk_NestedSubVolumeRegionTargetsRemapped(t *testing.T) {
	innerRegion := NewRegion(4096, 100, 10, 1, RegionOpts{
		ID:      "inner-region-1",
		Targets: []string{"10.0.2.1:3000"},
		Key:     "inner-key",
	})
	innerVol := NewVolume("inner-vol", 4096, []*Node{innerRegion}, nil)
	src := NewVolume("outer-vol", 4096, []*Node{innerVol}, nil)

	socketMap := map[string]string{
		"10.0.2.1:3000": "10.0.3.1:4000",
	}
	out, err := CreateSnapshotFromDisk(src, socketMap, sequentialIDs("new"))
	if err != nil {
		t.Fatalf("transform: %v", err)
	}

	nestedRegion := out.SubVolumes[0].SubVolumes[0]
	if nestedRegion.Opts.Targets[0] != "10.0.3.1:4000" {
		t.Fatalf("expected nested sub_volume region target remapped, got %q", nestedRegion.Opts.Targets[0])
	}
}

func TestCreateSnapshotFromDisk_MissingSocketMappingFails(t *testing.T) {
	src := sourceTree()
	_, err := CreateSnapshotFromDisk(src, map[string]string{}, sequentialIDs("new"))
	if err == nil {
		t.Fatal("expected missing socket mapping to fail the transform")
	}
}

func TestNode_ValidateRejectsEmptyTargets(t *testing.T) {
	r := NewRegion(4096, 1, 1, 1, RegionOpts{ID: "r1"})
	vol := NewVolume("v1", 4096, []*Node{r}, nil)
	if err := vol.Validate(); err == nil {
		t.Fatal("expected validate to reject a region with no targets")
	}
}

func TestCollectRegionIDs_WalksSubVolumesAndReadOnlyParent(t *testing.T) {
	src := sourceTree()
	ids := CollectRegionIDs(src)
	if len(ids) != 2 {
		t.Fatalf("expected 2 region ids, got %v", ids)
	}
	if ids[0] != "src-region-1" || ids[1] != "parent-region-1" {
		t.Fatalf("unexpected region ids: %v", ids)
	}
}

func TestTargetSockets_DeduplicatesAcrossRegions(t *testing.T) {
	region := NewRegion(4096, 1, 1, 1, RegionOpts{ID: "r1", Targets: []string{"10.0.0.1:1000", "10.0.0.2:1000"}})
	region2 := NewRegion(4096, 1, 1, 1, RegionOpts{ID: "r2", Targets: []string{"10.0.0.2:1000", "10.0.0.3:1000"}})
	vol := NewVolume("v1", 4096, []*Node{region, region2}, nil)
	sockets := TargetSockets(vol)
	if len(sockets) != 3 {
		t.Fatalf("expected 3 deduplicated sockets, got %v", sockets)
	}
}
