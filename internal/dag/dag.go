// Package dag provides directed graph operations for projection inclusion.
// It supports cycle enumeration, topological sorting and upstream queries.
package dag

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Node represents a node in the graph.
type Node struct {
	// ID is the unique identifier (projection name)
	ID string
	// Data holds arbitrary node data
	Data any
}

// Graph is a directed graph where an edge parent -> child means the child
// depends on the parent. For projections, a projection depends on every
// projection it applies.
type Graph struct {
	nodes   map[string]*Node
	edges   map[string][]string // parent -> children (dependents)
	parents map[string][]string // child -> parents (dependencies)
}

// CycleError reports one or more dependency cycles.
type CycleError struct {
	Cycles [][]string
}

func (e *CycleError) Error() string {
	parts := make([]string, len(e.Cycles))
	for i, c := range e.Cycles {
		parts[i] = FormatCycle(c)
	}
	return "cycle detected: " + strings.Join(parts, "; ")
}

// FormatCycle renders a cycle path as "a -> b -> a".
func FormatCycle(path []string) string {
	return strings.Join(path, " -> ")
}

// NewGraph creates a new empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		edges:   make(map[string][]string),
		parents: make(map[string][]string),
	}
}

// AddNode adds a node to the graph.
func (g *Graph) AddNode(id string, data any) {
	if _, exists := g.nodes[id]; !exists {
		g.nodes[id] = &Node{ID: id, Data: data}
		g.edges[id] = []string{}
		g.parents[id] = []string{}
	} else {
		// Update data if node already exists
		g.nodes[id].Data = data
	}
}

// AddEdge adds a directed edge from parent to child (child depends on parent).
// Self-loops are kept and reported as cycles.
func (g *Graph) AddEdge(parentID, childID string) error {
	if _, exists := g.nodes[parentID]; !exists {
		return fmt.Errorf("parent node %q does not exist", parentID)
	}
	if _, exists := g.nodes[childID]; !exists {
		return fmt.Errorf("child node %q does not exist", childID)
	}

	// Add edge (avoid duplicates)
	if !slices.Contains(g.edges[parentID], childID) {
		g.edges[parentID] = append(g.edges[parentID], childID)
	}
	if !slices.Contains(g.parents[childID], parentID) {
		g.parents[childID] = append(g.parents[childID], parentID)
	}
	return nil
}

// GetNode returns a node by ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, exists := g.nodes[id]
	return node, exists
}

// GetParents returns the parents (dependencies) of a node in insertion order.
func (g *Graph) GetParents(id string) []string {
	return slices.Clone(g.parents[id])
}

// GetChildren returns the children (dependents) of a node.
func (g *Graph) GetChildren(id string) []string {
	return slices.Clone(g.edges[id])
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges in the graph.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, children := range g.edges {
		count += len(children)
	}
	return count
}

func (g *Graph) sortedIDs() []string {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Cycles returns every elementary cycle along dependencies, including cycles
// that share nodes with others. Each path starts and ends with the same node,
// e.g. [a b a] when a depends on b and b depends on a. Paths start at their
// smallest node and are returned in sorted order.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	for _, start := range g.sortedIDs() {
		// Only nodes greater than start are walked, so each cycle is found
		// exactly once: from its smallest node.
		onPath := map[string]bool{start: true}
		path := []string{start}

		var walk func(id string)
		walk = func(id string) {
			for _, dep := range g.parents[id] {
				switch {
				case dep == start:
					cycles = append(cycles, append(slices.Clone(path), start))
				case dep > start && !onPath[dep]:
					onPath[dep] = true
					path = append(path, dep)
					walk(dep)
					path = path[:len(path)-1]
					onPath[dep] = false
				}
			}
		}
		walk(start)
	}

	sort.Slice(cycles, func(i, j int) bool {
		return slices.Compare(cycles[i], cycles[j]) < 0
	})
	return cycles
}

// HasCycle returns true if the graph contains a cycle, along with the first
// cycle path.
func (g *Graph) HasCycle() (bool, []string) {
	cycles := g.Cycles()
	if len(cycles) == 0 {
		return false, nil
	}
	return true, cycles[0]
}

// TopologicalSort returns nodes in topological order (dependencies before
// dependents). Returns a *CycleError if the graph contains a cycle.
func (g *Graph) TopologicalSort() ([]*Node, error) {
	if cycles := g.Cycles(); len(cycles) > 0 {
		return nil, &CycleError{Cycles: cycles}
	}

	visited := make(map[string]bool)
	var result []*Node

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true

		// Visit all parents first
		for _, parentID := range g.parents[id] {
			visit(parentID)
		}

		result = append(result, g.nodes[id])
	}

	for _, id := range g.sortedIDs() {
		visit(id)
	}
	return result, nil
}

// GetUpstreamNodes returns all nodes upstream of the given node (its
// dependencies and their dependencies), sorted.
func (g *Graph) GetUpstreamNodes(id string) []string {
	upstream := make(map[string]bool)

	var markUpstream func(nodeID string)
	markUpstream = func(nodeID string) {
		for _, parentID := range g.parents[nodeID] {
			if !upstream[parentID] {
				upstream[parentID] = true
				markUpstream(parentID)
			}
		}
	}

	markUpstream(id)

	result := make([]string, 0, len(upstream))
	for nodeID := range upstream {
		result = append(result, nodeID)
	}
	sort.Strings(result)
	return result
}
