package dag

import (
	"cmp"
	"errors"
	"math/rand"
	"slices"
	"strings"
	"testing"

	"github.com/dwhswenson/codemodel"
)

// exampleDAG: b and c feed d; d and a feed e; b and e feed f; g is alone.
func exampleDAG() *DAG[string] {
	g := New[string]()
	for _, e := range []string{"bd", "cd", "ae", "de", "bf", "ef"} {
		g.AddEdge(e[:1], e[1:])
	}
	for _, n := range "abcdefg" {
		g.AddNode(string(n))
	}
	return g
}

func exampleDeps() map[string][]string {
	return map[string][]string{
		"a": {}, "b": {}, "c": {}, "d": {"b", "c"}, "e": {"d", "a"}, "f": {"b", "e"}, "g": {},
	}
}

func assertOrder(t *testing.T, g *DAG[string], order []string) {
	t.Helper()
	if len(order) != len(g.Nodes()) {
		t.Fatalf("expected %d nodes, got %v", len(g.Nodes()), order)
	}
	for _, e := range g.Edges() {
		if slices.Index(order, e.From) >= slices.Index(order, e.To) {
			t.Errorf("edge %s->%s violated by order %v", e.From, e.To, order)
		}
	}
}

func TestAddEdge_RegistersNodes(t *testing.T) {
	g := New[string]()
	g.AddEdge("a", "b")
	g.AddEdge("a", "b")
	if got := g.Nodes(); !slices.Equal(got, []string{"a", "b"}) {
		t.Errorf("unexpected nodes: %v", got)
	}
	if got := g.Edges(); len(got) != 1 || got[0] != (Edge[string]{"a", "b"}) {
		t.Errorf("unexpected edges: %v", got)
	}
}

func TestFromDependencyMap(t *testing.T) {
	order := strings.Split("abcdefg", "")
	for _, dir := range []Direction{DirectionTo, DirectionFrom} {
		g := FromDependencyMap(exampleDeps(), order, dir)
		if got := g.Nodes(); !slices.Equal(got, order) {
			t.Errorf("direction %d: unexpected nodes %v", dir, got)
		}
		want := map[Edge[string]]bool{}
		for _, e := range exampleDAG().Edges() {
			if dir == DirectionTo {
				want[e] = true
			} else {
				want[Edge[string]{e.To, e.From}] = true
			}
		}
		edges := g.Edges()
		if len(edges) != len(want) {
			t.Fatalf("direction %d: expected %d edges, got %v", dir, len(want), edges)
		}
		for _, e := range edges {
			if !want[e] {
				t.Errorf("direction %d: unexpected edge %v", dir, e)
			}
		}
	}
}

func TestInDegrees(t *testing.T) {
	want := map[string]int{"a": 0, "b": 0, "c": 0, "d": 2, "e": 2, "f": 2, "g": 0}
	got := exampleDAG().InDegrees()
	for n, c := range want {
		if got[n] != c {
			t.Errorf("in-degree of %s = %d, want %d", n, got[n], c)
		}
	}
}

func TestOrdered_TieBreak(t *testing.T) {
	tests := []struct {
		name     string
		tieBreak TieBreak[string]
		want     string
	}{
		{"sorted", SortedTieBreak(cmp.Compare[string]), "abcdefg"},
		{"reverse sorted", SortedTieBreak(func(a, b string) int { return cmp.Compare(b, a) }), "gcbdaef"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := exampleDAG()
			got, err := g.Sorted(tt.tieBreak)
			if err != nil {
				t.Fatalf("Sorted() error = %v", err)
			}
			if strings.Join(got, "") != tt.want {
				t.Errorf("Sorted() = %v, want %s", got, tt.want)
			}
		})
	}
}

func TestOrdered_DefaultKeepsOrder(t *testing.T) {
	g := exampleDAG()
	var order []string
	for n := range g.Ordered(nil) {
		order = append(order, n)
	}
	assertOrder(t, g, order)
	if order[0] != "b" {
		t.Errorf("default tie break should keep registration order, got %v", order)
	}
}

func TestOrdered_NotRestartable(t *testing.T) {
	seq := exampleDAG().Ordered(nil)
	n := 0
	for range seq {
		n++
	}
	for range seq {
		t.Fatal("second range over an exhausted sequence yielded a node")
	}
	if n != 7 {
		t.Errorf("expected 7 nodes, got %d", n)
	}
}

func TestOrdered_RandomAcyclic(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		g := New[int]()
		size := 2 + r.Intn(12)
		perm := r.Perm(size)
		for i := 0; i < size; i++ {
			g.AddNode(perm[i])
		}
		for i := 0; i < size; i++ {
			for j := i + 1; j < size; j++ {
				if r.Intn(3) == 0 {
					g.AddEdge(i, j)
				}
			}
		}
		order, err := g.Sorted(nil)
		if err != nil {
			t.Fatalf("trial %d: unexpected error %v", trial, err)
		}
		if len(order) != size {
			t.Fatalf("trial %d: expected %d nodes, got %d", trial, size, len(order))
		}
		for _, e := range g.Edges() {
			if slices.Index(order, e.From) >= slices.Index(order, e.To) {
				t.Errorf("trial %d: edge %v violated", trial, e)
			}
		}
	}
}

func TestCycles(t *testing.T) {
	g := New[string]()
	g.AddEdge("start", "a")
	g.AddEdge("a", "b")
	g.AddEdge("b", "a")

	var partial []string
	for n := range g.Ordered(nil) {
		partial = append(partial, n)
	}
	if !slices.Equal(partial, []string{"start"}) {
		t.Errorf("Ordered() on a cycle = %v, want [start]", partial)
	}

	_, err := g.Sorted(nil)
	if !errors.Is(err, codemodel.ErrCycleDetected) {
		t.Errorf("Sorted() error = %v, want cycle error", err)
	}
	if err := g.Validate(); !errors.Is(err, codemodel.ErrCycleDetected) {
		t.Errorf("Validate() error = %v, want cycle error", err)
	}
	if err := exampleDAG().Validate(); err != nil {
		t.Errorf("Validate() on acyclic graph = %v", err)
	}
}
