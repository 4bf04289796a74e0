// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package vcr models the volume construction request: the recursive
// tree a disk or snapshot's backing storage is described by, and the
// pure transform that derives a snapshot's VCR from its source disk's.
package vcr

import (
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
)

// Kind tags a Node's concrete type for JSON (de)serialization as a
// tagged union with a "type" discriminant field.
type Kind string

const (
	KindVolume Kind = "volume"
	KindRegion Kind = "region"
	KindURL    Kind = "url"
	KindFile   Kind = "file"
)

// Node is the recursive VCR tree. Exactly one of the Kind-specific
// fields is populated, matching Kind.
type Node struct {
	Kind Kind `json:"type"`

	// Volume fields.
	ID             string  `json:"id,omitempty"`
	BlockSize      uint64  `json:"block_size,omitempty"`
	SubVolumes     []*Node `json:"sub_volumes,omitempty"`
	ReadOnlyParent *Node   `json:"read_only_parent,omitempty"`

	// Region fields.
	BlocksPerExtent uint64      `json:"blocks_per_extent,omitempty"`
	ExtentCount     uint64      `json:"extent_count,omitempty"`
	Generation      uint64      `json:"generation,omitempty"`
	Opts            *RegionOpts `json:"opts,omitempty"`

	// Url fields.
	URL string `json:"url,omitempty"`

	// File fields.
	Path string `json:"path,omitempty"`
}

// RegionOpts configures a Region node's targets and access mode.
type RegionOpts struct {
	ID       string   `json:"id"`
	Targets  []string `json:"targets"`
	Key      string   `json:"key,omitempty"`
	ReadOnly bool     `json:"read_only"`
	Control  *string  `json:"control,omitempty"`
}

// NewVolume constructs a Volume node.
func NewVolume(id string, blockSize uint64, subVolumes []*Node, readOnlyParent *Node) *Node {
	return &Node{
		Kind:           KindVolume,
		ID:             id,
		BlockSize:      blockSize,
		SubVolumes:     subVolumes,
		ReadOnlyParent: readOnlyParent,
	}
}

// NewRegion constructs a Region node.
func NewRegion(blockSize, blocksPerExtent, extentCount, generation uint64, opts RegionOpts) *Node {
	o := opts
	return &Node{
		Kind:            KindRegion,
		BlockSize:       blockSize,
		BlocksPerExtent: blocksPerExtent,
		ExtentCount:     extentCount,
		Generation:      generation,
		Opts:            &o,
	}
}

// Validate walks the tree checking that every Region has at least one
// target and that ids are distinct across the tree.
func (n *Node) Validate() error {
	return n.validate(make(map[string]bool))
}

func (n *Node) validate(seenIDs map[string]bool) error {
	if n == nil {
		return fmt.Errorf("vcr: nil node")
	}
	switch n.Kind {
	case KindVolume:
		if n.ID != "" {
			if seenIDs[n.ID] {
				return fmt.Errorf("vcr: duplicate id %q", n.ID)
			}
			seenIDs[n.ID] = true
		}
		for _, sv := range n.SubVolumes {
			if err := sv.validate(seenIDs); err != nil {
				return err
			}
		}
		if n.ReadOnlyParent != nil {
			if err := n.ReadOnlyParent.validate(seenIDs); err != nil {
				return err
			}
		}
	case KindRegion:
		if n.Opts == nil || len(n.Opts.Targets) == 0 {
			return fmt.Errorf("vcr: region %s has no targets", n.Opts.id())
		}
		if seenIDs[n.Opts.ID] {
			return fmt.Errorf("vcr: duplicate id %q", n.Opts.ID)
		}
		seenIDs[n.Opts.ID] = true
	case KindURL, KindFile:
		if seenIDs[n.ID] {
			return fmt.Errorf("vcr: duplicate id %q", n.ID)
		}
		seenIDs[n.ID] = true
	default:
		return fmt.Errorf("vcr: unknown node kind %q", n.Kind)
	}
	return nil
}

func (o *RegionOpts) id() string {
	if o == nil {
		return "<nil>"
	}
	return o.ID
}

// CollectRegionIDs walks the tree and returns the id of every Region
// node, deduplicated, in the order they're first encountered. The
// snapshot saga's RegionsEnsure undo uses this to know which regions
// to delete without duplicating work across sub-volumes that reference
// a shared region.
func CollectRegionIDs(n *Node) []string {
	var ids []string
	collectRegionIDs(n, &ids)
	return lo.Uniq(ids)
}

func collectRegionIDs(n *Node, ids *[]string) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindVolume:
		for _, sv := range n.SubVolumes {
			collectRegionIDs(sv, ids)
		}
		collectRegionIDs(n.ReadOnlyParent, ids)
	case KindRegion:
		if n.Opts != nil && n.Opts.ID != "" {
			*ids = append(*ids, n.Opts.ID)
		}
	}
}

// TargetSockets returns the deduplicated set of storage-agent socket
// addresses a tree's Region nodes target, used to fan requests out to
// the right storage agents.
func TargetSockets(n *Node) []string {
	var all []string
	collectTargets(n, &all)
	return lo.Uniq(all)
}

func collectTargets(n *Node, out *[]string) {
	if n == nil {
		return
	}
	switch n.Kind {
	case KindVolume:
		for _, sv := range n.SubVolumes {
			collectTargets(sv, out)
		}
		collectTargets(n.ReadOnlyParent, out)
	case KindRegion:
		if n.Opts != nil {
			*out = append(*out, n.Opts.Targets...)
		}
	}
}

// MarshalTree and UnmarshalTree round-trip a VCR through JSON, per
// the tagged-union wire format.
func MarshalTree(n *Node) (json.RawMessage, error) {
	b, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("vcr: marshal tree: %w", err)
	}
	return b, nil
}

func UnmarshalTree(raw json.RawMessage) (*Node, error) {
	var n Node
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("vcr: unmarshal tree: %w", err)
	}
	return &n, nil
}
