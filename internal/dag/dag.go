// Package dag implements a directed graph with tie-broken topological
// iteration.
package dag

import (
	"fmt"
	"iter"
	"slices"

	"github.com/dwhswenson/codemodel"
)

// Edge is a directed edge From -> To.
type Edge[T comparable] struct {
	From T
	To   T
}

// Direction tells FromDependencyMap how to read a dependency map.
type Direction int

const (
	// DirectionTo: keys are "to" nodes and each value lists the nodes the
	// key depends on.
	DirectionTo Direction = iota
	// DirectionFrom: keys are "from" nodes and values are their successors.
	DirectionFrom
)

// TieBreak reorders the nodes that are ready at one step; the first node of
// the result is emitted next.
type TieBreak[T comparable] func(ready []T) []T

// DAG is a directed graph. Nodes keep their registration order, which is
// also the order handed to a TieBreak. Acyclicity is not enforced on
// insertion; see Sorted and Validate.
type DAG[T comparable] struct {
	nodes      []T
	known      map[T]struct{}
	edges      []Edge[T]
	edgeSet    map[Edge[T]]struct{}
	successors map[T][]T
}

// New returns an empty graph.
func New[T comparable]() *DAG[T] {
	return &DAG[T]{
		known:      make(map[T]struct{}),
		edgeSet:    make(map[Edge[T]]struct{}),
		successors: make(map[T][]T),
	}
}

// AddNode registers a node. Registering a node twice has no effect.
func (g *DAG[T]) AddNode(n T) {
	if _, ok := g.known[n]; ok {
		return
	}
	g.known[n] = struct{}{}
	g.nodes = append(g.nodes, n)
}

// AddEdge registers the edge from -> to and both of its endpoints.
func (g *DAG[T]) AddEdge(from, to T) {
	g.AddNode(from)
	g.AddNode(to)
	e := Edge[T]{From: from, To: to}
	if _, ok := g.edgeSet[e]; ok {
		return
	}
	g.edgeSet[e] = struct{}{}
	g.edges = append(g.edges, e)
	g.successors[from] = append(g.successors[from], to)
}

// FromDependencyMap builds a graph from a dependency map. Nodes are
// registered following order, then any remaining keys in map order; nodes
// with an empty dependency list are included.
func FromDependencyMap[T comparable](deps map[T][]T, order []T, dir Direction) *DAG[T] {
	g := New[T]()
	keys := slices.Clone(order)
	for k := range deps {
		if !slices.Contains(keys, k) {
			keys = append(keys, k)
		}
	}
	for _, k := range keys {
		g.AddNode(k)
	}
	for _, k := range keys {
		for _, v := range deps[k] {
			if dir == DirectionTo {
				g.AddEdge(v, k)
			} else {
				g.AddEdge(k, v)
			}
		}
	}
	return g
}

// Nodes returns the nodes in registration order.
func (g *DAG[T]) Nodes() []T { return slices.Clone(g.nodes) }

// Edges returns the edges in registration order.
func (g *DAG[T]) Edges() []Edge[T] { return slices.Clone(g.edges) }

// InDegrees counts, for every node, the edges ending at it.
func (g *DAG[T]) InDegrees() map[T]int {
	counts := make(map[T]int, len(g.nodes))
	for _, n := range g.nodes {
		counts[n] = 0
	}
	for _, e := range g.edges {
		counts[e.To]++
	}
	return counts
}

// Ordered returns a topological ordering as a single-use sequence. At each
// step the nodes with no remaining incoming edges are passed, in
// registration order, to tieBreak (nil keeps that order) and the first
// one is emitted. If the graph has a cycle the sequence stops once no node
// is ready. Ranging over the sequence again continues where the previous
// range stopped.
func (g *DAG[T]) Ordered(tieBreak TieBreak[T]) iter.Seq[T] {
	counts := g.InDegrees()
	remaining := slices.Clone(g.nodes)
	return func(yield func(T) bool) {
		for len(remaining) > 0 {
			var ready []T
			for _, n := range remaining {
				if counts[n] == 0 {
					ready = append(ready, n)
				}
			}
			if len(ready) == 0 {
				return
			}
			if tieBreak != nil {
				ready = tieBreak(ready)
			}
			next := ready[0]
			for _, s := range g.successors[next] {
				counts[s]--
			}
			remaining = slices.DeleteFunc(remaining, func(n T) bool { return n == next })
			if !yield(next) {
				return
			}
		}
	}
}

// Sorted drains Ordered. If nodes remain that never became ready it
// returns the nodes emitted so far and a CycleDetectedError naming the
// rest.
func (g *DAG[T]) Sorted(tieBreak TieBreak[T]) ([]T, error) {
	out := make([]T, 0, len(g.nodes))
	for n := range g.Ordered(tieBreak) {
		out = append(out, n)
	}
	if len(out) == len(g.nodes) {
		return out, nil
	}
	var rest []string
	for _, n := range g.nodes {
		if !slices.Contains(out, n) {
			rest = append(rest, fmt.Sprint(n))
		}
	}
	return out, codemodel.NewCycleDetectedError(rest)
}

// Validate checks the graph for cycles with a depth-first search and names
// a node on the first cycle found.
func (g *DAG[T]) Validate() error {
	visited := make(map[T]bool, len(g.nodes))
	stack := make(map[T]bool, len(g.nodes))
	var hasCycle func(n T) bool
	hasCycle = func(n T) bool {
		if stack[n] {
			return true
		}
		if visited[n] {
			return false
		}
		visited[n] = true
		stack[n] = true
		for _, s := range g.successors[n] {
			if hasCycle(s) {
				return true
			}
		}
		stack[n] = false
		return false
	}
	for _, n := range g.nodes {
		if hasCycle(n) {
			return codemodel.NewCycleDetectedError([]string{fmt.Sprint(n)})
		}
	}
	return nil
}

// SortedTieBreak returns a TieBreak ordering ready nodes with less.
func SortedTieBreak[T comparable](less func(a, b T) int) TieBreak[T] {
	return func(ready []T) []T {
		out := slices.Clone(ready)
		slices.SortStableFunc(out, less)
		return out
	}
}
