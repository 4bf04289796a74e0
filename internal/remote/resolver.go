// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import "context"

// ResolverAdapter satisfies saga.Resolver over a Directory. The key
// argument is accepted for interface symmetry with future resolvers
// that shard by key (e.g. per-dataset agents); the service directory
// itself resolves by service name alone.
type ResolverAdapter struct {
	Directory Directory
}

func NewResolverAdapter(dir Directory) *ResolverAdapter {
	return &ResolverAdapter{Directory: dir}
}

func (r *ResolverAdapter) Resolve(ctx context.Context, service, _ string) (string, error) {
	return r.Directory.LookupEndpoint(ctx, service)
}
