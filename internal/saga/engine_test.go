// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package saga

import (
	"context"
	"errors"
	"testing"

	"github.com/nexuscp/sagactl/internal/authz"
	"github.com/nexuscp/sagactl/internal/logger"
	"github.com/nexuscp/sagactl/internal/metrics"
	"github.com/nexuscp/sagactl/internal/sagaerr"
	"github.com/prometheus/client_golang/prometheus"
)

func newTestEngine() (*Engine, *Registry) {
	reg := NewRegistry()
	m := metrics.NewRegistry(prometheus.NewRegistry())
	return NewEngine(reg, m, 0), reg
}

func newTestContext(sagaID string) *Context {
	return NewContext(sagaID, nil, logger.NewLogger(logger.WithQuiet()), authz.Token{}, nil, nil, nil)
}

func TestEngine_HappyPathRunsAllNodesInOrder(t *testing.T) {
	engine, reg := newTestEngine()

	var executed []string
	mustRegister := func(key string) {
		key := key
		if err := reg.Register(key, func(ctx *Context) (any, error) {
			executed = append(executed, key)
			return key + "-result", nil
		}, func(ctx *Context) error { return nil }); err != nil {
			t.Fatalf("register %s: %v", key, err)
		}
	}
	mustRegister("alloc")
	mustRegister("attach")

	b := NewBuilder()
	b.Append(Node{Name: "alloc", Kind: NodeAction, ActionKey: "alloc"})
	b.Append(Node{Name: "attach", Kind: NodeAction, ActionKey: "attach", DependsOn: []string{"alloc"}})
	dag, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	log := NewMemoryLog()
	sagaCtx := newTestContext("saga-1")
	result, err := engine.Run(context.Background(), dag, sagaCtx, log)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Status, result.StuckReason)
	}
	if len(executed) != 2 || executed[0] != "alloc" || executed[1] != "attach" {
		t.Fatalf("expected alloc before attach, got %v", executed)
	}

	var out string
	if err := sagaCtx.Lookup("attach", &out); err != nil {
		t.Fatalf("lookup attach output: %v", err)
	}
	if out != "attach-result" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestEngine_PermanentFailureTriggersCompensationInReverseOrder(t *testing.T) {
	engine, reg := newTestEngine()

	var undone []string
	register := func(key string, forward Forward) {
		key := key
		if err := reg.Register(key, forward, func(ctx *Context) error {
			undone = append(undone, key)
			return nil
		}); err != nil {
			t.Fatalf("register %s: %v", key, err)
		}
	}
	register("alloc", func(ctx *Context) (any, error) { return "ok", nil })
	register("attach", func(ctx *Context) (any, error) { return "ok", nil })
	register("finalize", func(ctx *Context) (any, error) {
		return nil, sagaerr.Invalidf("finalize", "bad state")
	})

	b := NewBuilder()
	b.Append(Node{Name: "alloc", Kind: NodeAction, ActionKey: "alloc"})
	b.Append(Node{Name: "attach", Kind: NodeAction, ActionKey: "attach", DependsOn: []string{"alloc"}})
	b.Append(Node{Name: "finalize", Kind: NodeAction, ActionKey: "finalize", DependsOn: []string{"attach"}})
	dag, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	log := NewMemoryLog()
	sagaCtx := newTestContext("saga-2")
	result, err := engine.Run(context.Background(), dag, sagaCtx, log)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != StatusCompensated {
		t.Fatalf("expected compensated, got %s", result.Status)
	}
	if len(undone) != 2 || undone[0] != "attach" || undone[1] != "alloc" {
		t.Fatalf("expected attach then alloc undone, got %v", undone)
	}
}

func TestEngine_InjectedErrorPerNode(t *testing.T) {
	engine, reg := newTestEngine()
	if err := reg.Register("step", func(ctx *Context) (any, error) { return "ok", nil }, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	b := NewBuilder()
	b.Append(Node{Name: "step", Kind: NodeAction, ActionKey: "step"})
	dag, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	engine.InjectError("step", sagaerr.ServiceUnavailablef("step", "simulated"))
	result, err := engine.Run(context.Background(), dag, newTestContext("saga-3"), NewMemoryLog())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != StatusCompensated {
		t.Fatalf("expected compensated after injected failure, got %s", result.Status)
	}
}

func TestEngine_CrashRestartSkipsSucceededNodes(t *testing.T) {
	engine, reg := newTestEngine()

	calls := 0
	if err := reg.Register("once", func(ctx *Context) (any, error) {
		calls++
		return "done", nil
	}, nil); err != nil {
		t.Fatalf("register: %v", err)
	}

	b := NewBuilder()
	b.Append(Node{Name: "once", Kind: NodeAction, ActionKey: "once"})
	dag, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	log := NewMemoryLog()
	if _, err := engine.Run(context.Background(), dag, newTestContext("saga-4"), log); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call after first run, got %d", calls)
	}

	// Simulate a restart: fresh Context, same log, same dag.
	result, err := engine.Run(context.Background(), dag, newTestContext("saga-4"), log)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected forward body to not be re-invoked on replay, got %d calls", calls)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success on replay, got %s", result.Status)
	}
}

func TestEngine_ConstantNodePublishesValue(t *testing.T) {
	engine, _ := newTestEngine()
	b := NewBuilder()
	b.Append(Node{Name: "k", Kind: NodeConstant, Constant: map[string]any{"use_the_pantry": true}})
	dag, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	sagaCtx := newTestContext("saga-5")
	if _, err := engine.Run(context.Background(), dag, sagaCtx, NewMemoryLog()); err != nil {
		t.Fatalf("run: %v", err)
	}
	var v map[string]bool
	if err := sagaCtx.Lookup("k", &v); err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if !v["use_the_pantry"] {
		t.Fatal("expected published constant to round-trip")
	}
}

func TestEngine_BranchSkippedWhenPredicateFalse(t *testing.T) {
	engine, reg := newTestEngine()
	invoked := false
	if err := reg.Register("inner", func(ctx *Context) (any, error) {
		invoked = true
		return nil, nil
	}, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	innerBuilder := NewBuilder()
	innerBuilder.Append(Node{Name: "inner", Kind: NodeAction, ActionKey: "inner"})
	innerDAG, err := innerBuilder.Build()
	if err != nil {
		t.Fatalf("build inner: %v", err)
	}

	b := NewBuilder()
	b.Append(Node{
		Name:      "branch",
		Kind:      NodeBranch,
		Predicate: func(ctx *Context) (bool, error) { return false, nil },
		Subgraph:  innerDAG,
	})
	dag, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result, err := engine.Run(context.Background(), dag, newTestContext("saga-6"), NewMemoryLog())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s", result.Status)
	}
	if invoked {
		t.Fatal("expected branch subgraph not to run when predicate is false")
	}
}

func TestEngine_UndoFailureLeavesResultStuck(t *testing.T) {
	engine, reg := newTestEngine()
	if err := reg.Register("a", func(ctx *Context) (any, error) { return "ok", nil },
		func(ctx *Context) error { return errors.New("undo boom") }); err != nil {
		t.Fatalf("register a: %v", err)
	}
	if err := reg.Register("b", func(ctx *Context) (any, error) {
		return nil, sagaerr.Invalidf("b", "bad")
	}, nil); err != nil {
		t.Fatalf("register b: %v", err)
	}

	b := NewBuilder()
	b.Append(Node{Name: "a", Kind: NodeAction, ActionKey: "a"})
	b.Append(Node{Name: "b", Kind: NodeAction, ActionKey: "b", DependsOn: []string{"a"}})
	dag, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	result, runErr := engine.Run(context.Background(), dag, newTestContext("saga-7"), NewMemoryLog())
	if runErr == nil {
		t.Fatal("expected compensation error to surface when undo fails")
	}
	if result.Status != StatusStuck {
		t.Fatalf("expected stuck status, got %s", result.Status)
	}
}
