package depgraph

import (
	"math"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/layout"
	"gonum.org/v1/gonum/spatial/r2"
)

// Layout positions every node with a spring (Eades) force-directed
// layout over the undirected view of the graph. Coordinates are keyed by
// issue key.
func Layout(g *Graph) map[string]r2.Vec {
	pos := make(map[string]r2.Vec, g.Len())
	if g.Len() == 0 {
		return pos
	}
	if g.Len() == 1 {
		pos[g.keys[0]] = r2.Vec{}
		return pos
	}

	eades := layout.EadesR2{Repulsion: 1, Rate: 0.05, Updates: 30, Theta: 0.2}
	opt := layout.NewOptimizerR2(graph.Undirect{G: g.g}, eades.Update)
	for opt.Update() {
	}

	for id, key := range g.keys {
		v := opt.Coord2(int64(id))
		if math.IsNaN(v.X) || math.IsNaN(v.Y) {
			v = r2.Vec{}
		}
		pos[key] = v
	}
	return pos
}
