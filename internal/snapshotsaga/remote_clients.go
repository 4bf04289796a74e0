// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package snapshotsaga

import (
	"fmt"

	"github.com/nexuscp/sagactl/internal/remote"
	"github.com/nexuscp/sagactl/internal/saga"
)

// storageAgentClient returns the storage agent client for datasetID.
// Tests inject a fake under RemoteClients["storageagent:"+datasetID];
// production code falls through to resolving the dataset's real
// endpoint and building a client against it.
func storageAgentClient(ctx *saga.Context, datasetID string) (*remote.StorageAgentClient, error) {
	key := "storageagent:" + datasetID
	if c, err := saga.RemoteClient[*remote.StorageAgentClient](ctx, key); err == nil {
		return c, nil
	}
	addr, err := ctx.Resolver.Resolve(ctx.Ctx, "storageagent", datasetID)
	if err != nil {
		return nil, fmt.Errorf("resolve storage agent for dataset %s: %w", datasetID, err)
	}
	return remote.NewStorageAgentClient(addr), nil
}

func pantryClient(ctx *saga.Context) (*remote.PantryClient, error) {
	if c, err := saga.RemoteClient[*remote.PantryClient](ctx, "pantry"); err == nil {
		return c, nil
	}
	addr, err := ctx.Resolver.Resolve(ctx.Ctx, "pantry", "")
	if err != nil {
		return nil, fmt.Errorf("resolve pantry: %w", err)
	}
	return remote.NewPantryClient(addr), nil
}

func sledAgentClient(ctx *saga.Context, instanceID string) (*remote.SledAgentClient, error) {
	key := "sledagent:" + instanceID
	if c, err := saga.RemoteClient[*remote.SledAgentClient](ctx, key); err == nil {
		return c, nil
	}
	addr, err := ctx.Resolver.Resolve(ctx.Ctx, "sledagent", instanceID)
	if err != nil {
		return nil, fmt.Errorf("resolve sled agent for instance %s: %w", instanceID, err)
	}
	return remote.NewSledAgentClient(addr), nil
}
