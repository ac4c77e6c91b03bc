package dag

import (
	"errors"
	"testing"
)

// dependsOn records that child applies parent.
func dependsOn(t *testing.T, g *Graph, child, parent string) {
	t.Helper()
	if err := g.AddEdge(parent, child); err != nil {
		t.Fatalf("failed to add edge: %v", err)
	}
}

func newGraph(ids ...string) *Graph {
	g := NewGraph()
	for _, id := range ids {
		g.AddNode(id, nil)
	}
	return g
}

func TestGraph_AddNodeAndEdge(t *testing.T) {
	g := newGraph("a", "b", "c")

	if g.NodeCount() != 3 {
		t.Errorf("expected 3 nodes, got %d", g.NodeCount())
	}

	dependsOn(t, g, "b", "a")
	dependsOn(t, g, "c", "b")
	dependsOn(t, g, "c", "b")

	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}
	if got := g.GetParents("c"); len(got) != 1 || got[0] != "b" {
		t.Errorf("expected c to depend on b, got %v", got)
	}
	if got := g.GetChildren("a"); len(got) != 1 || got[0] != "b" {
		t.Errorf("expected b to depend on a, got %v", got)
	}
}

func TestGraph_AddEdge_InvalidNodes(t *testing.T) {
	g := newGraph("a")

	if err := g.AddEdge("a", "nonexistent"); err == nil {
		t.Error("expected error for nonexistent child node")
	}
	if err := g.AddEdge("nonexistent", "a"); err == nil {
		t.Error("expected error for nonexistent parent node")
	}
}

func TestGraph_HasCycle_NoCycle(t *testing.T) {
	g := newGraph("a", "b", "c")
	dependsOn(t, g, "b", "a")
	dependsOn(t, g, "c", "a")
	dependsOn(t, g, "c", "b")

	if hasCycle, path := g.HasCycle(); hasCycle {
		t.Errorf("expected no cycle, got %v", path)
	}
}

func TestGraph_SelfLoopIsCycle(t *testing.T) {
	g := newGraph("a")
	dependsOn(t, g, "a", "a")

	hasCycle, path := g.HasCycle()
	if !hasCycle {
		t.Fatal("expected self-loop to be a cycle")
	}
	if FormatCycle(path) != "a -> a" {
		t.Errorf("unexpected cycle path %q", FormatCycle(path))
	}
}

func TestGraph_Cycles_FullPath(t *testing.T) {
	// x applies y, y applies z, z applies x
	g := newGraph("x", "y", "z")
	dependsOn(t, g, "x", "y")
	dependsOn(t, g, "y", "z")
	dependsOn(t, g, "z", "x")

	cycles := g.Cycles()
	if len(cycles) != 1 {
		t.Fatalf("expected 1 cycle, got %v", cycles)
	}
	if got := FormatCycle(cycles[0]); got != "x -> y -> z -> x" {
		t.Errorf("unexpected cycle path %q", got)
	}
}

func TestGraph_Cycles_Multiple(t *testing.T) {
	g := newGraph("a", "b", "c", "d", "ok")
	dependsOn(t, g, "a", "b")
	dependsOn(t, g, "b", "a")
	dependsOn(t, g, "c", "d")
	dependsOn(t, g, "d", "c")
	dependsOn(t, g, "ok", "a")

	cycles := g.Cycles()
	if len(cycles) != 2 {
		t.Fatalf("expected 2 cycles, got %v", cycles)
	}
	if FormatCycle(cycles[0]) != "a -> b -> a" || FormatCycle(cycles[1]) != "c -> d -> c" {
		t.Errorf("unexpected cycles %v", cycles)
	}
}

func TestGraph_Cycles_SharedNodes(t *testing.T) {
	// a applies b and c, both apply d, d applies a
	g := newGraph("a", "b", "c", "d")
	dependsOn(t, g, "a", "b")
	dependsOn(t, g, "a", "c")
	dependsOn(t, g, "b", "d")
	dependsOn(t, g, "c", "d")
	dependsOn(t, g, "d", "a")

	cycles := g.Cycles()
	want := []string{"a -> b -> d -> a", "a -> c -> d -> a"}
	if len(cycles) != len(want) {
		t.Fatalf("expected %d cycles, got %v", len(want), cycles)
	}
	for i, w := range want {
		if got := FormatCycle(cycles[i]); got != w {
			t.Errorf("cycle %d: expected %q, got %q", i, w, got)
		}
	}
}

func TestGraph_Cycles_NestedLoops(t *testing.T) {
	// a <-> b and a -> b -> c -> a share the edge a -> b
	g := newGraph("a", "b", "c")
	dependsOn(t, g, "a", "b")
	dependsOn(t, g, "b", "a")
	dependsOn(t, g, "b", "c")
	dependsOn(t, g, "c", "a")

	cycles := g.Cycles()
	if len(cycles) != 2 {
		t.Fatalf("expected 2 cycles, got %v", cycles)
	}
	if FormatCycle(cycles[0]) != "a -> b -> a" || FormatCycle(cycles[1]) != "a -> b -> c -> a" {
		t.Errorf("unexpected cycles %v", cycles)
	}
}

func TestGraph_TopologicalSort(t *testing.T) {
	g := newGraph("app", "base", "mid")
	dependsOn(t, g, "mid", "base")
	dependsOn(t, g, "app", "mid")

	nodes, err := g.TopologicalSort()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	order := make([]string, len(nodes))
	for i, n := range nodes {
		order[i] = n.ID
	}
	want := []string{"base", "mid", "app"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, order)
		}
	}

	dependsOn(t, g, "base", "app")
	_, err = g.TopologicalSort()
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if got := FormatCycle(cycleErr.Cycles[0]); got != "app -> mid -> base -> app" {
		t.Errorf("unexpected cycle %q", got)
	}
}

func TestGraph_GetUpstreamNodes(t *testing.T) {
	g := newGraph("a", "b", "c", "d")
	dependsOn(t, g, "a", "b")
	dependsOn(t, g, "b", "c")

	got := g.GetUpstreamNodes("a")
	if len(got) != 2 || got[0] != "b" || got[1] != "c" {
		t.Errorf("expected [b c], got %v", got)
	}
	if len(g.GetUpstreamNodes("d")) != 0 {
		t.Error("expected no upstream nodes for d")
	}
}
