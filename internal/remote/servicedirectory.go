// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package remote

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nexuscp/sagactl/internal/sagaerr"
)

// Directory resolves a service name to a dialable endpoint.
type Directory interface {
	LookupEndpoint(ctx context.Context, serviceName string) (string, error)
}

// StaticDirectory resolves from a fixed name→endpoint map, configured
// at startup from internal/config. It is wrapped in a
// RedisEndpointCache in deployments that want to avoid re-resolving
// the same service repeatedly within a saga's deadline.
type StaticDirectory struct {
	endpoints map[string]string
}

func NewStaticDirectory(endpoints map[string]string) *StaticDirectory {
	return &StaticDirectory{endpoints: endpoints}
}

func (d *StaticDirectory) LookupEndpoint(_ context.Context, serviceName string) (string, error) {
	endpoint, ok := d.endpoints[serviceName]
	if !ok {
		return "", sagaerr.NotFoundf("servicedirectory.lookup_endpoint", "no endpoint registered for service %q", serviceName)
	}
	return endpoint, nil
}

// RedisEndpointCache fronts a Directory with a Redis-backed cache so
// repeated lookups within a saga's deadline don't each pay a
// directory round trip.
type RedisEndpointCache struct {
	client *redis.Client
	inner  Directory
	prefix string
	ttl    time.Duration
}

// NewRedisEndpointCache wraps inner with a cache keyed under
// "sagactl:endpoint:<service>", addressed by a Redis client built
// from addr.
func NewRedisEndpointCache(addr string, inner Directory, ttl time.Duration) *RedisEndpointCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisEndpointCache{client: client, inner: inner, prefix: "sagactl:endpoint:", ttl: ttl}
}

func (c *RedisEndpointCache) key(serviceName string) string {
	return c.prefix + serviceName
}

func (c *RedisEndpointCache) LookupEndpoint(ctx context.Context, serviceName string) (string, error) {
	cached, err := c.client.Get(ctx, c.key(serviceName)).Result()
	if err == nil {
		return cached, nil
	}
	if err != redis.Nil {
		return "", sagaerr.Transientf("servicedirectory.cache_get", "redis get %q: %v", serviceName, err)
	}

	endpoint, err := c.inner.LookupEndpoint(ctx, serviceName)
	if err != nil {
		return "", err
	}
	if setErr := c.client.Set(ctx, c.key(serviceName), endpoint, c.ttl).Err(); setErr != nil {
		return endpoint, nil // cache write failure doesn't invalidate the resolved endpoint
	}
	return endpoint, nil
}

func (c *RedisEndpointCache) Close() error {
	return c.client.Close()
}
