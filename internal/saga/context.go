// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nexuscp/sagactl/internal/authz"
	"github.com/nexuscp/sagactl/internal/logger"
)

// Datastore is the subset of the control-plane datastore a node body
// needs: reading and CAS-updating generation-guarded resource records.
// internal/datastore.Adapter satisfies this structurally.
type Datastore interface {
	GetResource(ctx context.Context, kind, id string) (json.RawMessage, int64, error)
	CASUpdateResource(ctx context.Context, kind, id string, generation int64, next json.RawMessage) (int64, error)
	PutResource(ctx context.Context, kind, id string, data json.RawMessage) (int64, error)
	DeleteResource(ctx context.Context, kind, id string) error
}

// Resolver turns a logical service name into a dialable endpoint,
// typically backed by a service directory with a cache in front of it.
type Resolver interface {
	Resolve(ctx context.Context, service, key string) (string, error)
}

// Context is the per-saga-run handle a node body receives. It bundles
// saga parameters, this run's published node outputs, and the
// ambient dependencies (logging, auth, datastore, service resolution,
// remote clients) a forward or undo body may need.
type Context struct {
	SagaID string

	// Ctx is the run's context.Context, carrying the saga deadline and
	// cancellation. The engine refreshes it at the start of every Run
	// call (including recursive branch-subgraph runs) and restores the
	// previous value when that call returns; node bodies use it for any
	// call that should respect the saga's overall deadline.
	Ctx context.Context

	mu      sync.RWMutex
	params  map[string]json.RawMessage
	outputs map[string]json.RawMessage

	Log       logger.Logger
	Auth      authz.Token
	Datastore Datastore
	Resolver  Resolver

	// RemoteClients holds transport clients (storage agent, pantry,
	// sled agent) keyed by name. Node bodies type-assert the entry
	// they need; concrete client types live in internal/remote.
	RemoteClients map[string]any
}

// NewContext builds a Context for one saga run.
func NewContext(sagaID string, params map[string]json.RawMessage, log logger.Logger, auth authz.Token, ds Datastore, resolver Resolver, clients map[string]any) *Context {
	return &Context{
		SagaID:        sagaID,
		Ctx:           context.Background(),
		params:        params,
		outputs:       make(map[string]json.RawMessage),
		Log:           log,
		Auth:          auth,
		Datastore:     ds,
		Resolver:      resolver,
		RemoteClients: clients,
	}
}

// Param decodes the saga's initial parameter named key into dst.
func (c *Context) Param(key string, dst any) error {
	c.mu.RLock()
	raw, ok := c.params[key]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("saga context: no such param %q", key)
	}
	return json.Unmarshal(raw, dst)
}

// Lookup decodes a previously published node output named key into
// dst. It is the Context & Lookup component's read side: node bodies
// use it to consume the outputs of their declared dependencies.
func (c *Context) Lookup(key string, dst any) error {
	c.mu.RLock()
	raw, ok := c.outputs[key]
	c.mu.RUnlock()
	if !ok {
		return fmt.Errorf("saga context: no published output %q", key)
	}
	return json.Unmarshal(raw, dst)
}

// RawLookup returns a previously published node output without decoding.
func (c *Context) RawLookup(key string) (json.RawMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	raw, ok := c.outputs[key]
	return raw, ok
}

// publish records node's outcome under key for later Lookup calls.
// Called by the engine only, after a forward body succeeds.
func (c *Context) publish(key string, raw json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outputs[key] = raw
}

// RemoteClient type-asserts the named remote client to T.
func RemoteClient[T any](c *Context, name string) (T, error) {
	var zero T
	v, ok := c.RemoteClients[name]
	if !ok {
		return zero, fmt.Errorf("saga context: no remote client registered as %q", name)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("saga context: remote client %q is not of the requested type", name)
	}
	return t, nil
}
