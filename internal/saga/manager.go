// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// LogOpener mints a durable Log for a newly created saga instance.
type LogOpener func(sagaID string) (Log, error)

// ContextFactory builds the per-run Context a saga instance executes
// against, wiring in whatever logging/auth/datastore/resolver/remote
// client dependencies the deployment needs.
type ContextFactory func(sagaID string, params map[string]json.RawMessage) *Context

type instance struct {
	dag     *DAG
	sagaCtx *Context
	log     Log
}

// Manager is the saga execution engine's public surface: create a
// saga instance from parameters and a built DAG, run it to
// completion (or replay it after a restart), and, for tests, force a
// node's next forward invocation to fail.
type Manager struct {
	engine     *Engine
	openLog    LogOpener
	newContext ContextFactory

	mu        sync.Mutex
	instances map[string]*instance
}

func NewManager(engine *Engine, openLog LogOpener, newContext ContextFactory) *Manager {
	return &Manager{
		engine:     engine,
		openLog:    openLog,
		newContext: newContext,
		instances:  make(map[string]*instance),
	}
}

// Create registers a new saga instance over dag with the given
// parameters and returns its id. Nothing executes until Run is called.
func (m *Manager) Create(params map[string]json.RawMessage, dag *DAG) (string, error) {
	sagaID := uuid.NewString()
	log, err := m.openLog(sagaID)
	if err != nil {
		return "", fmt.Errorf("open action log for saga %s: %w", sagaID, err)
	}
	m.mu.Lock()
	m.instances[sagaID] = &instance{
		dag:     dag,
		sagaCtx: m.newContext(sagaID, params),
		log:     log,
	}
	m.mu.Unlock()
	return sagaID, nil
}

// Resume re-registers an existing saga id against dag and a reopened
// log, so a process restart (or an operator-issued retry) can call
// Run again and pick up from wherever the action log left off.
func (m *Manager) Resume(sagaID string, params map[string]json.RawMessage, dag *DAG) error {
	log, err := m.openLog(sagaID)
	if err != nil {
		return fmt.Errorf("reopen action log for saga %s: %w", sagaID, err)
	}
	m.mu.Lock()
	m.instances[sagaID] = &instance{
		dag:     dag,
		sagaCtx: m.newContext(sagaID, params),
		log:     log,
	}
	m.mu.Unlock()
	return nil
}

// Run drives sagaID's DAG forward, replaying any progress its action
// log already recorded.
func (m *Manager) Run(ctx context.Context, sagaID string) (*Result, error) {
	m.mu.Lock()
	inst, ok := m.instances[sagaID]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("saga manager: no such saga %q", sagaID)
	}
	return m.engine.Run(ctx, inst.dag, inst.sagaCtx, inst.log)
}

// InjectError forces node's next forward invocation to fail with err.
// The injection is held by the Manager's shared Engine and keyed by
// node name only: sagaID is not consulted, so whichever of this
// Manager's sagas next runs node receives the failure. Test-only fault
// injection for the per-node failure sweep and saga-level chaos tests.
func (m *Manager) InjectError(sagaID, node string, err error) {
	m.engine.InjectError(node, err)
}

// Outputs returns sagaID's published node outputs as of the last Run.
func (m *Manager) Outputs(sagaID string) (map[string]json.RawMessage, bool) {
	m.mu.Lock()
	inst, ok := m.instances[sagaID]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	return snapshotOutputs(inst.sagaCtx), true
}
