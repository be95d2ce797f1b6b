// Package pipeline composes scalar transform stages into a fixed directed
// graph that is evaluated synchronously.
//
// Nodes live in an arena owned by Graph and are referenced by NodeID. Pushing
// a value into a node runs its stage and then every downstream node, in the
// order the edges were connected, before Push returns.
package pipeline

import (
	"fmt"
)

// Stage transforms one scalar into another.
type Stage interface {
	Transform(v float64) float64
}

// StageFunc adapts a plain function to Stage.
type StageFunc func(v float64) float64

func (f StageFunc) Transform(v float64) float64 { return f(v) }

// NodeID references a node in a Graph.
type NodeID int

type node struct {
	name  string
	stage Stage
	emit  func(v float64)
	next  []NodeID
	last  float64
	seen  bool
}

// Graph is an arena of pipeline nodes. It is not safe for concurrent use;
// the daemon only touches it from the scheduler goroutine.
type Graph struct {
	nodes []node
}

func NewGraph() *Graph {
	return &Graph{}
}

// Add appends a transform node. A nil stage passes values through.
func (g *Graph) Add(name string, stage Stage) NodeID {
	g.nodes = append(g.nodes, node{name: name, stage: stage})
	return NodeID(len(g.nodes) - 1)
}

// AddSink appends a terminal node that hands every value to emit.
func (g *Graph) AddSink(name string, emit func(v float64)) NodeID {
	g.nodes = append(g.nodes, node{name: name, emit: emit})
	return NodeID(len(g.nodes) - 1)
}

// Connect adds an edge and returns to, so chains can be written as
// g.Connect(g.Connect(a, b), c). Edges must point to a node added after
// from, which keeps the graph acyclic.
func (g *Graph) Connect(from, to NodeID) NodeID {
	g.mustExist(from)
	g.mustExist(to)
	if to <= from {
		panic(fmt.Sprintf("pipeline: edge %s -> %s points backwards", g.nodes[from].name, g.nodes[to].name))
	}
	g.nodes[from].next = append(g.nodes[from].next, to)
	return to
}

// Chain connects the given nodes in sequence and returns the last one.
func (g *Graph) Chain(ids ...NodeID) NodeID {
	for i := 1; i < len(ids); i++ {
		g.Connect(ids[i-1], ids[i])
	}
	return ids[len(ids)-1]
}

// Push feeds v into node id and propagates the result downstream.
func (g *Graph) Push(id NodeID, v float64) {
	g.mustExist(id)
	n := &g.nodes[id]

	out := v
	if n.stage != nil {
		out = n.stage.Transform(v)
	}
	n.last = out
	n.seen = true

	if n.emit != nil {
		n.emit(out)
	}
	for _, next := range n.next {
		g.Push(next, out)
	}
}

// Last returns the most recent output of node id.
func (g *Graph) Last(id NodeID) (float64, bool) {
	g.mustExist(id)
	return g.nodes[id].last, g.nodes[id].seen
}

func (g *Graph) Name(id NodeID) string {
	g.mustExist(id)
	return g.nodes[id].name
}

func (g *Graph) Len() int {
	return len(g.nodes)
}

func (g *Graph) mustExist(id NodeID) {
	if id < 0 || int(id) >= len(g.nodes) {
		panic(fmt.Sprintf("pipeline: unknown node %d", id))
	}
}
