package chart

import (
	"fmt"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/andywolf/sprintwatch/internal/depgraph"
)

var (
	nodeColor  = color.RGBA{R: 0xad, G: 0xd8, B: 0xe6, A: 0xff} // lightblue
	edgeColor  = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
	graphWidth = 14 * vg.Inch
	graphHigh  = 10 * vg.Inch
)

// Graph returns a renderer for a node-link drawing of g at the given
// positions: one labelled circle per issue and one arrow per edge. An
// empty graph renders the title and a note.
func Graph(title string, g *depgraph.Graph, pos map[string]r2.Vec) Renderer {
	return func(w io.Writer) error {
		p := plot.New()
		p.Title.Text = title
		p.HideAxes()

		if g.Len() == 0 {
			p.X.Min, p.X.Max = 0, 1
			p.Y.Min, p.Y.Max = 0, 1
			note, err := plotter.NewLabels(plotter.XYLabels{
				XYs:    plotter.XYs{{X: 0.5, Y: 0.5}},
				Labels: []string{"No open dependencies"},
			})
			if err != nil {
				return fmt.Errorf("render graph: %w", err)
			}
			p.Add(note)
			return writePlot(p, w)
		}

		span := extent(pos)
		for _, e := range g.Edges() {
			from, to := pos[e.From], pos[e.To]
			if e.From == e.To {
				loop, err := plotter.NewLine(selfLoop(from, span*0.03))
				if err != nil {
					return fmt.Errorf("render graph edge %s -> %s: %w", e.From, e.To, err)
				}
				loop.LineStyle.Color = edgeColor
				loop.LineStyle.Width = vg.Points(0.8)
				p.Add(loop)
				continue
			}
			shaft, err := plotter.NewLine(plotter.XYs{{X: from.X, Y: from.Y}, {X: to.X, Y: to.Y}})
			if err != nil {
				return fmt.Errorf("render graph edge %s -> %s: %w", e.From, e.To, err)
			}
			shaft.LineStyle.Color = edgeColor
			shaft.LineStyle.Width = vg.Points(0.8)

			head, err := plotter.NewLine(arrowHead(from, to, span*0.02))
			if err != nil {
				return fmt.Errorf("render graph edge %s -> %s: %w", e.From, e.To, err)
			}
			head.LineStyle.Color = edgeColor
			head.LineStyle.Width = vg.Points(1.2)

			p.Add(shaft, head)
		}

		keys := g.Nodes()
		xys := make(plotter.XYs, len(keys))
		for i, k := range keys {
			xys[i].X, xys[i].Y = pos[k].X, pos[k].Y
		}

		nodes, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("render graph nodes: %w", err)
		}
		nodes.GlyphStyle.Shape = draw.CircleGlyph{}
		nodes.GlyphStyle.Color = nodeColor
		nodes.GlyphStyle.Radius = vg.Points(9)

		labels, err := plotter.NewLabels(plotter.XYLabels{XYs: xys, Labels: keys})
		if err != nil {
			return fmt.Errorf("render graph labels: %w", err)
		}
		for i := range labels.TextStyle {
			labels.TextStyle[i].Font.Size = vg.Points(7)
			labels.TextStyle[i].XAlign = draw.XCenter
			labels.TextStyle[i].YAlign = draw.YCenter
		}

		p.Add(nodes, labels)

		// Keep circles at the border inside the canvas.
		pad := span * 0.05
		xmin, xmax, ymin, ymax := bounds(pos)
		p.X.Min, p.X.Max = xmin-pad, xmax+pad
		p.Y.Min, p.Y.Max = ymin-pad, ymax+pad

		return writePlot(p, w)
	}
}

func writePlot(p *plot.Plot, w io.Writer) error {
	wt, err := p.WriterTo(graphWidth, graphHigh, "png")
	if err != nil {
		return fmt.Errorf("render graph: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("render graph: %w", err)
	}
	return nil
}

// arrowHead returns the two barbs of an arrow pointing at to, drawn size
// units back from the tip.
func arrowHead(from, to r2.Vec, size float64) plotter.XYs {
	d := r2.Sub(to, from)
	n := r2.Norm(d)
	if n == 0 || size == 0 {
		return plotter.XYs{{X: to.X, Y: to.Y}, {X: to.X, Y: to.Y}}
	}
	u := r2.Scale(1/n, d)
	// Stop short of the node centre so the tip stays visible.
	tip := r2.Sub(to, r2.Scale(size, u))
	back := r2.Sub(tip, r2.Scale(size, u))
	perp := r2.Vec{X: -u.Y, Y: u.X}
	left := r2.Add(back, r2.Scale(size*0.5, perp))
	right := r2.Sub(back, r2.Scale(size*0.5, perp))
	return plotter.XYs{{X: left.X, Y: left.Y}, {X: tip.X, Y: tip.Y}, {X: right.X, Y: right.Y}}
}

// selfLoop returns a closed ring of radius r sitting on top of the node at c.
func selfLoop(c r2.Vec, r float64) plotter.XYs {
	const segments = 16
	centre := r2.Vec{X: c.X, Y: c.Y + r}
	xys := make(plotter.XYs, segments+1)
	for i := range xys {
		a := 2 * math.Pi * float64(i) / segments
		xys[i].X = centre.X + r*math.Cos(a)
		xys[i].Y = centre.Y + r*math.Sin(a)
	}
	return xys
}

func bounds(pos map[string]r2.Vec) (xmin, xmax, ymin, ymax float64) {
	xmin, ymin = math.Inf(1), math.Inf(1)
	xmax, ymax = math.Inf(-1), math.Inf(-1)
	for _, v := range pos {
		xmin, xmax = math.Min(xmin, v.X), math.Max(xmax, v.X)
		ymin, ymax = math.Min(ymin, v.Y), math.Max(ymax, v.Y)
	}
	return xmin, xmax, ymin, ymax
}

// extent is the larger side of the bounding box, 1 for a single point.
func extent(pos map[string]r2.Vec) float64 {
	xmin, xmax, ymin, ymax := bounds(pos)
	s := math.Max(xmax-xmin, ymax-ymin)
	if s <= 0 || math.IsInf(s, 0) || math.IsNaN(s) {
		return 1
	}
	return s
}
