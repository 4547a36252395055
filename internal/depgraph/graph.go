package depgraph

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Edge is a directed edge between two issue keys.
type Edge struct {
	From string
	To   string
}

// Graph is a directed graph of issue keys. Nodes are registered lazily
// the first time an edge references them; parallel edges collapse.
// Self links are kept beside the gonum graph, which cannot hold them.
type Graph struct {
	g     *simple.DirectedGraph
	ids   map[string]int64
	keys  []string // index = node id
	loops map[int64]bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		g:     simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
		loops: make(map[int64]bool),
	}
}

// Build assembles the graph from report rows: one edge Issue -> DependsOn
// per row, including self links.
func Build(rows []Relation) *Graph {
	g := NewGraph()
	for _, r := range rows {
		g.AddEdge(r.Issue, r.DependsOn)
	}
	return g
}

// node returns the id for key, registering it on first reference.
func (g *Graph) node(key string) int64 {
	if id, ok := g.ids[key]; ok {
		return id
	}
	id := int64(len(g.keys))
	g.ids[key] = id
	g.keys = append(g.keys, key)
	g.g.AddNode(simple.Node(id))
	return id
}

// AddEdge adds from -> to.
func (g *Graph) AddEdge(from, to string) {
	f := g.node(from)
	t := g.node(to)
	if f == t {
		g.loops[f] = true
		return
	}
	if g.g.HasEdgeFromTo(f, t) {
		return
	}
	g.g.SetEdge(g.g.NewEdge(simple.Node(f), simple.Node(t)))
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.keys)
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	return g.g.Edges().Len() + len(g.loops)
}

// Nodes returns every key in registration order.
func (g *Graph) Nodes() []string {
	return append([]string(nil), g.keys...)
}

// Edges returns every edge sorted by (From, To).
func (g *Graph) Edges() []Edge {
	var edges []Edge
	it := g.g.Edges()
	for it.Next() {
		e := it.Edge()
		edges = append(edges, Edge{From: g.keys[e.From().ID()], To: g.keys[e.To().ID()]})
	}
	for id := range g.loops {
		edges = append(edges, Edge{From: g.keys[id], To: g.keys[id]})
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// HasEdge reports whether from -> to exists.
func (g *Graph) HasEdge(from, to string) bool {
	f, ok := g.ids[from]
	if !ok {
		return false
	}
	t, ok := g.ids[to]
	if !ok {
		return false
	}
	if f == t {
		return g.loops[f]
	}
	return g.g.HasEdgeFromTo(f, t)
}

// Key returns the issue key registered under id.
func (g *Graph) Key(id int64) string {
	return g.keys[id]
}

// ID returns the node id for key.
func (g *Graph) ID(key string) (int64, bool) {
	id, ok := g.ids[key]
	return id, ok
}

// Directed exposes the underlying gonum graph.
func (g *Graph) Directed() graph.Directed {
	return g.g
}

// Cycles returns every elementary cycle as the path of keys walked along
// its edges, without repeating the first key. A self link is a cycle of
// one. Each path starts at its smallest key and the paths are sorted.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	for id := range g.loops {
		cycles = append(cycles, []string{g.keys[id]})
	}
	for _, c := range topo.DirectedCyclesIn(g.g) {
		if len(c) > 1 && c[0].ID() == c[len(c)-1].ID() {
			c = c[:len(c)-1]
		}
		path := make([]string, len(c))
		start := 0
		for i, n := range c {
			path[i] = g.keys[n.ID()]
			if path[i] < path[start] {
				start = i
			}
		}
		cycles = append(cycles, append(path[start:], path[:start]...))
	}
	sort.Slice(cycles, func(i, j int) bool { return lessPath(cycles[i], cycles[j]) })
	return cycles
}

func lessPath(a, b []string) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}
