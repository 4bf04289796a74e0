// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package saga

import "fmt"

// NodeKind distinguishes the three node shapes a DAG can contain.
type NodeKind int

const (
	// NodeAction invokes a registered (forward, undo) pair.
	NodeAction NodeKind = iota
	// NodeConstant publishes a fixed value with no forward/undo body.
	NodeConstant
	// NodeBranch embeds a fully-built sub-DAG, taken only when its
	// predicate returns true against the outer saga's lookup.
	NodeBranch
)

// BranchPredicate decides whether a NodeBranch's subgraph executes.
type BranchPredicate func(ctx *Context) (bool, error)

// Node is one vertex of a saga DAG.
type Node struct {
	Name string
	Kind NodeKind

	// ActionKey names the Registry entry for NodeAction nodes.
	ActionKey string

	// Constant is the value published by NodeConstant nodes.
	Constant any

	// Predicate and Subgraph apply to NodeBranch nodes.
	Predicate BranchPredicate
	Subgraph  *DAG

	// DependsOn lists the Name of every node whose completion is a
	// prerequisite for this one. Order is insignificant; duplicates
	// are tolerated.
	DependsOn []string
}

// DAG is a built, validated graph of Nodes plus their topological
// execution order.
type DAG struct {
	nodes map[string]*Node
	order []string // topological order, forward direction
}

// Builder assembles Nodes into a validated DAG.
type Builder struct {
	nodes []*Node
	seen  map[string]bool
	err   error
}

func NewBuilder() *Builder {
	return &Builder{seen: make(map[string]bool)}
}

// Append adds a single node to the graph under construction.
func (b *Builder) Append(n Node) *Builder {
	if b.err != nil {
		return b
	}
	if n.Name == "" {
		b.err = fmt.Errorf("dag builder: node has empty name")
		return b
	}
	if b.seen[n.Name] {
		b.err = fmt.Errorf("dag builder: duplicate node name %q", n.Name)
		return b
	}
	b.seen[n.Name] = true
	cp := n
	b.nodes = append(b.nodes, &cp)
	return b
}

// AppendParallel adds a group of nodes that share the same DependsOn
// set and do not depend on each other — a convenience for fan-out
// groups the engine can run concurrently via errgroup.
func (b *Builder) AppendParallel(nodes ...Node) *Builder {
	for _, n := range nodes {
		b.Append(n)
	}
	return b
}

// Build validates the accumulated nodes (no dangling dependency
// references, no cycles) and returns a DAG with a topological order
// computed by Kahn's algorithm.
func (b *Builder) Build() (*DAG, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.nodes) == 0 {
		return nil, fmt.Errorf("dag builder: no nodes")
	}

	index := make(map[string]*Node, len(b.nodes))
	for _, n := range b.nodes {
		index[n.Name] = n
	}

	indegree := make(map[string]int, len(b.nodes))
	dependents := make(map[string][]string, len(b.nodes))
	for _, n := range b.nodes {
		indegree[n.Name] = 0
	}
	for _, n := range b.nodes {
		for _, dep := range n.DependsOn {
			if _, ok := index[dep]; !ok {
				return nil, fmt.Errorf("dag builder: node %q depends on unknown node %q", n.Name, dep)
			}
			indegree[n.Name]++
			dependents[dep] = append(dependents[dep], n.Name)
		}
	}

	var queue []string
	for _, n := range b.nodes {
		if indegree[n.Name] == 0 {
			queue = append(queue, n.Name)
		}
	}

	var order []string
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		order = append(order, name)
		for _, dep := range dependents[name] {
			indegree[dep]--
			if indegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}

	if len(order) != len(b.nodes) {
		return nil, fmt.Errorf("dag builder: cycle detected among nodes (resolved %d of %d)", len(order), len(b.nodes))
	}

	return &DAG{nodes: index, order: order}, nil
}

// Order returns the DAG's forward topological order.
func (d *DAG) Order() []string {
	out := make([]string, len(d.order))
	copy(out, d.order)
	return out
}

// ReverseOrder returns the DAG's nodes in reverse topological order,
// the sequence the engine walks when compensating.
func (d *DAG) ReverseOrder() []string {
	out := make([]string, len(d.order))
	for i, name := range d.order {
		out[len(d.order)-1-i] = name
	}
	return out
}

// Node looks up a node by name.
func (d *DAG) Node(name string) (*Node, bool) {
	n, ok := d.nodes[name]
	return n, ok
}

// Len reports the number of nodes in the DAG.
func (d *DAG) Len() int { return len(d.order) }
