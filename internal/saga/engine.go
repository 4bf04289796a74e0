// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package saga

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nexuscp/sagactl/internal/metrics"
	"github.com/nexuscp/sagactl/internal/sagaerr"
)

// Engine drives a built DAG forward to completion, replaying prior
// progress from the action log and compensating backward in reverse
// topological order on permanent failure.
type Engine struct {
	registry *Registry
	metrics  *metrics.Registry
	deadline time.Duration

	mu       sync.Mutex
	injected map[string]error
}

// NewEngine constructs an Engine. deadline bounds how long the whole
// saga run — including every node's internal retry loop — may take; a
// node still running when it expires fails, and compensation then runs
// under the same expired context. Zero means no deadline.
func NewEngine(registry *Registry, metricsReg *metrics.Registry, deadline time.Duration) *Engine {
	return &Engine{
		registry: registry,
		metrics:  metricsReg,
		deadline: deadline,
		injected: make(map[string]error),
	}
}

// InjectError forces the next forward invocation of node to fail with
// err, regardless of its registered body. Test-only fault injection
// for the per-node failure sweep.
func (e *Engine) InjectError(node string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.injected[node] = err
}

func (e *Engine) takeInjectedError(node string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.injected[node]
	delete(e.injected, node)
	return err
}

type nodeState struct {
	succeeded bool
	undone    bool
	outcome   json.RawMessage
}

// Run executes dag to completion (or to its first permanently-failing
// node) against sagaCtx, appending progress to log as it goes. A run
// that observes a node already marked succeeded in log's replay skips
// re-invoking that node's forward body and republishes its recorded
// outcome instead — this is what makes a restarted run idempotent.
func (e *Engine) Run(ctx context.Context, dag *DAG, sagaCtx *Context, log Log) (*Result, error) {
	if e.deadline > 0 {
		if _, hasDeadline := ctx.Deadline(); !hasDeadline {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, e.deadline)
			defer cancel()
		}
	}
	prevCtx := sagaCtx.Ctx
	sagaCtx.Ctx = ctx
	defer func() { sagaCtx.Ctx = prevCtx }()

	prior, err := log.Replay()
	if err != nil {
		return nil, fmt.Errorf("replay action log: %w", err)
	}
	states := make(map[string]*nodeState, dag.Len())
	for _, rec := range prior {
		st := states[rec.Node]
		if st == nil {
			st = &nodeState{}
			states[rec.Node] = st
		}
		switch rec.Phase {
		case PhaseSucceeded:
			st.succeeded = true
			st.outcome = rec.Outcome
		case PhaseUndoSucceeded:
			st.undone = true
		}
		// Republish anything already known succeeded so downstream
		// Lookup calls work even before this run re-walks the node.
		if rec.Phase == PhaseSucceeded {
			sagaCtx.publish(rec.Node, rec.Outcome)
		}
	}

	remaining := make(map[string]*Node, dag.Len())
	for _, name := range dag.Order() {
		n, _ := dag.Node(name)
		remaining[name] = n
	}
	done := make(map[string]bool, dag.Len())
	for name, st := range states {
		if _, inDag := remaining[name]; inDag && st.succeeded {
			done[name] = true
		}
	}

	completedOrder := make([]string, 0, dag.Len())
	for _, name := range dag.Order() {
		if done[name] {
			completedOrder = append(completedOrder, name)
		}
	}

	var stuckNode string
	var stuckErr error

	for len(done) < len(remaining) {
		ready := e.readySet(dag, remaining, done)
		if len(ready) == 0 {
			return nil, fmt.Errorf("saga %s: no ready nodes but %d of %d incomplete — dependency graph is stuck", sagaCtx.SagaID, len(remaining)-len(done), len(remaining))
		}

		g, gctx := errgroup.WithContext(ctx)
		results := make(map[string]error, len(ready))
		var rmu sync.Mutex

		for _, name := range ready {
			name := name
			n := remaining[name]
			g.Go(func() error {
				nodeErr := e.runNode(gctx, n, sagaCtx, log)
				rmu.Lock()
				results[name] = nodeErr
				rmu.Unlock()
				return nil // collect all results in this level before deciding
			})
		}
		_ = g.Wait()

		anyFailed := false
		for _, name := range ready {
			if results[name] != nil {
				if !anyFailed {
					stuckNode = name
					stuckErr = results[name]
				}
				anyFailed = true
				continue
			}
			done[name] = true
			completedOrder = append(completedOrder, name)
		}
		if anyFailed {
			break
		}
	}

	if stuckErr != nil {
		if compErr := e.compensate(ctx, dag, sagaCtx, log, completedOrder); compErr != nil {
			e.metrics.ObserveSagaOutcome("stuck")
			return &Result{
				SagaID:      sagaCtx.SagaID,
				Status:      StatusStuck,
				StuckNode:   stuckNode,
				StuckReason: stuckErr.Error(),
			}, compErr
		}
		e.metrics.ObserveSagaOutcome("compensated")
		return &Result{
			SagaID:      sagaCtx.SagaID,
			Status:      StatusCompensated,
			StuckNode:   stuckNode,
			StuckReason: stuckErr.Error(),
			Outputs:     snapshotOutputs(sagaCtx),
		}, nil
	}

	e.metrics.ObserveSagaOutcome("success")
	return &Result{
		SagaID:  sagaCtx.SagaID,
		Status:  StatusSuccess,
		Outputs: snapshotOutputs(sagaCtx),
	}, nil
}

// readySet returns every not-yet-done node whose dependencies are all
// done, so the caller can run a whole level concurrently.
func (e *Engine) readySet(dag *DAG, remaining map[string]*Node, done map[string]bool) []string {
	var ready []string
	for _, name := range dag.Order() {
		if done[name] {
			continue
		}
		n := remaining[name]
		allSatisfied := true
		for _, dep := range n.DependsOn {
			if !done[dep] {
				allSatisfied = false
				break
			}
		}
		if allSatisfied {
			ready = append(ready, name)
		}
	}
	return ready
}

// runNode executes a single node: an action's forward body, a
// constant's fixed value, or a branch's predicate and (when taken) its
// subgraph. Nodes already marked succeeded by a
// prior run are filtered out of the ready set before this is called
// (see Run), so every call here is a genuine first (or retried)
// attempt.
func (e *Engine) runNode(ctx context.Context, n *Node, sagaCtx *Context, log Log) error {
	switch n.Kind {
	case NodeConstant:
		raw, err := marshalOutcome(n.Constant)
		if err != nil {
			return err
		}
		return e.recordSuccess(n.Name, raw, sagaCtx, log)

	case NodeBranch:
		take, err := n.Predicate(sagaCtx)
		if err != nil {
			return sagaerr.Internalf("branch:"+n.Name, "evaluate branch predicate: %v", err)
		}
		if !take {
			raw, _ := marshalOutcome(map[string]bool{"taken": false})
			return e.recordSuccess(n.Name, raw, sagaCtx, log)
		}
		subResult, err := e.Run(ctx, n.Subgraph, sagaCtx, log)
		if err != nil {
			return err
		}
		if subResult.Status != StatusSuccess {
			return fmt.Errorf("branch %s: subgraph did not succeed: %s", n.Name, subResult.StuckReason)
		}
		raw, _ := marshalOutcome(map[string]bool{"taken": true})
		return e.recordSuccess(n.Name, raw, sagaCtx, log)

	case NodeAction:
		return e.runAction(n, sagaCtx, log)

	default:
		return fmt.Errorf("saga engine: unknown node kind for %q", n.Name)
	}
}

func (e *Engine) runAction(n *Node, sagaCtx *Context, log Log) error {
	funcs, ok := e.registry.Lookup(n.ActionKey)
	if !ok {
		return fmt.Errorf("saga engine: no registered action for key %q (node %q)", n.ActionKey, n.Name)
	}

	if err := log.Append(Record{SagaID: sagaCtx.SagaID, Node: n.Name, Phase: PhaseStarted, Timestamp: now()}); err != nil {
		return fmt.Errorf("append started record for %s: %w", n.Name, err)
	}

	start := time.Now()
	var outcome any
	var err error
	if injected := e.takeInjectedError(n.Name); injected != nil {
		err = injected
	} else {
		outcome, err = funcs.Forward(sagaCtx)
	}
	e.metrics.ObserveNodeDuration(n.Name, time.Since(start).Seconds())

	if err != nil {
		e.metrics.ObserveNodeAttempt(n.Name, "failed")
		_ = log.Append(Record{
			SagaID:    sagaCtx.SagaID,
			Node:      n.Name,
			Phase:     PhaseFailed,
			ErrorKind: sagaerr.KindOf(err).String(),
			ErrorMsg:  err.Error(),
			Timestamp: now(),
		})
		return err
	}

	e.metrics.ObserveNodeAttempt(n.Name, "succeeded")
	raw, merr := marshalOutcome(outcome)
	if merr != nil {
		return merr
	}
	return e.recordSuccess(n.Name, raw, sagaCtx, log)
}

func (e *Engine) recordSuccess(name string, raw json.RawMessage, sagaCtx *Context, log Log) error {
	if err := log.Append(Record{SagaID: sagaCtx.SagaID, Node: name, Phase: PhaseSucceeded, Outcome: raw, Timestamp: now()}); err != nil {
		return fmt.Errorf("append succeeded record for %s: %w", name, err)
	}
	sagaCtx.publish(name, raw)
	return nil
}

// compensate undoes every completed node in reverse topological order.
// An undo_failed aborts compensation immediately and leaves the saga
// stuck — partial, un-reasoned-about compensation is worse than
// stopping and surfacing a diagnostic.
func (e *Engine) compensate(ctx context.Context, dag *DAG, sagaCtx *Context, log Log, completedOrder []string) error {
	for i := len(completedOrder) - 1; i >= 0; i-- {
		name := completedOrder[i]
		n, ok := dag.Node(name)
		if !ok {
			continue
		}
		if n.Kind == NodeBranch && n.Subgraph != nil {
			// A taken branch's own nodes live in its subgraph, not in
			// completedOrder; undo those that published an outcome.
			var subDone []string
			for _, sub := range n.Subgraph.Order() {
				if _, published := sagaCtx.RawLookup(sub); published {
					subDone = append(subDone, sub)
				}
			}
			if err := e.compensate(ctx, n.Subgraph, sagaCtx, log, subDone); err != nil {
				return err
			}
			continue
		}
		if n.Kind != NodeAction {
			continue
		}
		funcs, ok := e.registry.Lookup(n.ActionKey)
		if !ok || funcs.Undo == nil {
			continue
		}

		if err := log.Append(Record{SagaID: sagaCtx.SagaID, Node: name, Phase: PhaseUndoStarted, Timestamp: now()}); err != nil {
			return err
		}

		if err := funcs.Undo(sagaCtx); err != nil {
			e.metrics.ObserveUndoAttempt(name, "failed")
			_ = log.Append(Record{
				SagaID:    sagaCtx.SagaID,
				Node:      name,
				Phase:     PhaseUndoFailed,
				ErrorKind: sagaerr.KindOf(err).String(),
				ErrorMsg:  err.Error(),
				Timestamp: now(),
			})
			return fmt.Errorf("undo %s: %w", name, err)
		}

		e.metrics.ObserveUndoAttempt(name, "succeeded")
		_ = log.Append(Record{SagaID: sagaCtx.SagaID, Node: name, Phase: PhaseUndoSucceeded, Timestamp: now()})
	}
	return nil
}

func snapshotOutputs(c *Context) map[string]json.RawMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(c.outputs))
	for k, v := range c.outputs {
		out[k] = v
	}
	return out
}

// now is a seam so tests can, in principle, control action log
// timestamps; production code always uses wall-clock time.
var now = time.Now
