// Package dag orders tables by their foreign-key dependencies.
// An edge runs from a referenced (parent) table to the table holding the
// foreign key (child); parents sort before children.
package dag

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// CycleError is returned by TopologicalSort when the graph has a cycle.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

// Graph is a directed graph of table names.
type Graph struct {
	children map[string][]string
	parents  map[string][]string
	indegree map[string]int
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		children: make(map[string][]string),
		parents:  make(map[string][]string),
		indegree: make(map[string]int),
	}
}

// AddNode adds id to the graph; adding it twice is a no-op.
func (g *Graph) AddNode(id string) {
	if _, ok := g.indegree[id]; !ok {
		g.indegree[id] = 0
	}
}

// HasNode reports whether id was added.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.indegree[id]
	return ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.indegree) }

// AddEdge records that child depends on parent. Both nodes must exist.
// Self-references impose no order between distinct tables and are ignored.
func (g *Graph) AddEdge(parent, child string) error {
	for _, id := range []string{parent, child} {
		if !g.HasNode(id) {
			return fmt.Errorf("node %q does not exist", id)
		}
	}
	if parent == child || slices.Contains(g.children[parent], child) {
		return nil
	}
	g.children[parent] = append(g.children[parent], child)
	g.parents[child] = append(g.parents[child], parent)
	g.indegree[child]++
	return nil
}

// TopologicalSort returns the node ids with every parent before its
// children. Among nodes whose parents are all placed, less picks the next
// one; a nil less falls back to name order.
func (g *Graph) TopologicalSort(less func(a, b string) bool) ([]string, error) {
	if less == nil {
		less = func(a, b string) bool { return a < b }
	}

	remaining := make(map[string]int, len(g.indegree))
	var ready []string
	for _, id := range g.ids() {
		remaining[id] = g.indegree[id]
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}

	out := make([]string, 0, len(g.indegree))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		id := ready[0]
		ready = ready[1:]
		out = append(out, id)
		for _, c := range g.children[id] {
			if remaining[c]--; remaining[c] == 0 {
				ready = append(ready, c)
			}
		}
	}

	if len(out) < len(g.indegree) {
		return nil, &CycleError{Path: g.cycle(remaining)}
	}
	return out, nil
}

// cycle follows unplaced parents from an unplaced node until one repeats.
// Every unplaced node has at least one unplaced parent, so the walk always
// closes a loop. The loop is returned parent first.
func (g *Graph) cycle(remaining map[string]int) []string {
	var start string
	for _, id := range g.ids() {
		if remaining[id] > 0 {
			start = id
			break
		}
	}

	seen := map[string]int{}
	var path []string
	for id := start; ; {
		if at, ok := seen[id]; ok {
			loop := append(path[at:], id)
			slices.Reverse(loop)
			return loop
		}
		seen[id] = len(path)
		path = append(path, id)
		for _, p := range g.parents[id] {
			if remaining[p] > 0 {
				id = p
				break
			}
		}
	}
}

func (g *Graph) ids() []string {
	ids := make([]string, 0, len(g.indegree))
	for id := range g.indegree {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
