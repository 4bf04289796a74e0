// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package vcr

import (
	"fmt"

	"github.com/google/uuid"
)

// IDGenerator mints fresh node ids. Production code uses uuid.NewString;
// tests substitute a deterministic sequence.
type IDGenerator func() string

// DefaultIDGenerator mints random UUIDs.
func DefaultIDGenerator() string { return uuid.NewString() }

// CreateSnapshotFromDisk recursively transforms a source disk's VCR
// into a snapshot's VCR:
//   - every Volume/Region/Url/File node gets a fresh id;
//   - every Region node reachable through sub_volumes, at any depth,
//     has its target sockets remapped through socketMap (a missing
//     entry is a fatal error);
//   - opts.read_only is set true and opts.control cleared on every
//     transformed Region;
//   - read_only_parent is preserved structurally (ids regenerated,
//     but its Region targets are left unmapped, at any depth — it is
//     read through, never written through, so it needs no new
//     running-snapshot socket).
//
// socketMap is the old_region_socket → new_snapshot_socket map
// StartRunningSnapshot produces. genID defaults to DefaultIDGenerator
// when nil.
func CreateSnapshotFromDisk(source *Node, socketMap map[string]string, genID IDGenerator) (*Node, error) {
	if source == nil {
		return nil, fmt.Errorf("vcr transform: source is nil")
	}
	if genID == nil {
		genID = DefaultIDGenerator
	}
	return transformVolume(source, socketMap, genID, true)
}

// transformVolume transforms a Volume node. remap is true throughout
// the main sub_volumes tree, at every depth, and carried unchanged
// into nested sub_volumes Volumes — only a read_only_parent subtree
// switches it off, via transformReadOnlyParent.
func transformVolume(n *Node, socketMap map[string]string, genID IDGenerator, remap bool) (*Node, error) {
	if n.Kind != KindVolume {
		return nil, fmt.Errorf("vcr transform: expected volume node, got %q", n.Kind)
	}

	subVolumes := make([]*Node, len(n.SubVolumes))
	for i, sv := range n.SubVolumes {
		transformed, err := transformChild(sv, socketMap, genID, remap)
		if err != nil {
			return nil, err
		}
		subVolumes[i] = transformed
	}

	var readOnlyParent *Node
	if n.ReadOnlyParent != nil {
		rop, err := transformReadOnlyParent(n.ReadOnlyParent, genID)
		if err != nil {
			return nil, err
		}
		readOnlyParent = rop
	}

	return &Node{
		Kind:           KindVolume,
		ID:             genID(),
		BlockSize:      n.BlockSize,
		SubVolumes:     subVolumes,
		ReadOnlyParent: readOnlyParent,
	}, nil
}

// transformChild dispatches a Volume's direct child to the right
// per-kind transform, threading remap through nested Volumes
// unchanged so a Region at any sub_volumes depth gets the same
// treatment as one at the top.
func transformChild(n *Node, socketMap map[string]string, genID IDGenerator, remap bool) (*Node, error) {
	switch n.Kind {
	case KindVolume:
		return transformVolume(n, socketMap, genID, remap)
	case KindRegion:
		return transformRegion(n, socketMap, genID, remap)
	case KindURL:
		return &Node{Kind: KindURL, ID: genID(), BlockSize: n.BlockSize, URL: n.URL}, nil
	case KindFile:
		return &Node{Kind: KindFile, ID: genID(), BlockSize: n.BlockSize, Path: n.Path}, nil
	default:
		return nil, fmt.Errorf("vcr transform: unknown node kind %q", n.Kind)
	}
}

func transformRegion(n *Node, socketMap map[string]string, genID IDGenerator, remap bool) (*Node, error) {
	if n.Opts == nil {
		return nil, fmt.Errorf("vcr transform: region node missing opts")
	}

	var targets []string
	if remap {
		targets = make([]string, len(n.Opts.Targets))
		for i, socket := range n.Opts.Targets {
			newSocket, ok := socketMap[socket]
			if !ok {
				return nil, fmt.Errorf("vcr transform: no running-snapshot socket mapped for %q", socket)
			}
			targets[i] = newSocket
		}
	} else {
		targets = append([]string(nil), n.Opts.Targets...)
	}

	return &Node{
		Kind:            KindRegion,
		BlockSize:       n.BlockSize,
		BlocksPerExtent: n.BlocksPerExtent,
		ExtentCount:     n.ExtentCount,
		Generation:      n.Generation,
		Opts: &RegionOpts{
			ID:       genID(),
			Targets:  targets,
			Key:      n.Opts.Key,
			ReadOnly: true,
			Control:  nil,
		},
	}, nil
}

// transformReadOnlyParent regenerates ids through the read-only-parent
// subtree without remapping any Region targets at any depth — the
// parent is read through by the child volume, never written to, so it
// needs no running-snapshot socket of its own.
func transformReadOnlyParent(n *Node, genID IDGenerator) (*Node, error) {
	switch n.Kind {
	case KindVolume:
		return transformVolume(n, nil, genID, false)
	case KindRegion:
		return transformRegion(n, nil, genID, false)
	case KindURL:
		return &Node{Kind: KindURL, ID: genID(), BlockSize: n.BlockSize, URL: n.URL}, nil
	case KindFile:
		return &Node{Kind: KindFile, ID: genID(), BlockSize: n.BlockSize, Path: n.Path}, nil
	default:
		return nil, fmt.Errorf("vcr transform: unknown node kind %q", n.Kind)
	}
}
