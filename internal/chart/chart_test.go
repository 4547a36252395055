package chart

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/andywolf/sprintwatch/internal/depgraph"
	"gonum.org/v1/gonum/spatial/r2"
)

var pngMagic = []byte("\x89PNG\r\n\x1a\n")

func assertPNG(t *testing.T, name string, r Renderer) {
	t.Helper()
	var buf bytes.Buffer
	if err := r(&buf); err != nil {
		t.Fatalf("%s: render error: %v", name, err)
	}
	if !bytes.HasPrefix(buf.Bytes(), pngMagic) {
		t.Errorf("%s: output is not a PNG (first bytes %q)", name, buf.Bytes()[:min(8, buf.Len())])
	}
}

func TestBar(t *testing.T) {
	assertPNG(t, "readiness", Bar("Sprint Readiness", "Readiness %", []Value{
		{Label: "Engineering - Platform", Value: 120},
		{Label: "Design", Value: 45},
		{Label: "Data Science", Value: 0},
	}))
	assertPNG(t, "all zero", Bar("Completion", "%", []Value{{Label: "Design", Value: 0}}))

	if err := Bar("empty", "", nil)(&bytes.Buffer{}); !errors.Is(err, ErrNoData) {
		t.Errorf("Bar(nil) error = %v, want ErrNoData", err)
	}
}

func TestPie(t *testing.T) {
	assertPNG(t, "distribution", Pie("Ready Tickets", []Value{
		{Label: "Design", Value: 3},
		{Label: "Data Science", Value: 0},
		{Label: "Engineering - AI Ops", Value: 5},
	}))

	err := Pie("zero", []Value{{Label: "Design", Value: 0}, {Label: "Data Science", Value: 0}})(&bytes.Buffer{})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("Pie(all zero) error = %v, want ErrNoData", err)
	}
}

func TestStackedBar(t *testing.T) {
	assertPNG(t, "backlog", StackedBar("Backlog", []Stack{
		{Label: "Design", Segments: []Value{{Label: "New", Value: 4}, {Label: "Grooming", Value: 2}}},
		{Label: "None", Segments: []Value{{Label: "New", Value: 1}}},
	}))

	err := StackedBar("empty", []Stack{{Label: "Design", Segments: []Value{{Label: "New", Value: 0}}}})(&bytes.Buffer{})
	if !errors.Is(err, ErrNoData) {
		t.Errorf("StackedBar(all zero) error = %v, want ErrNoData", err)
	}
}

func TestGraph(t *testing.T) {
	assertPNG(t, "empty graph", Graph("Dependencies", depgraph.NewGraph(), nil))

	single := depgraph.NewGraph()
	single.AddEdge("CLP-1", "CLP-1")
	assertPNG(t, "single node", Graph("Dependencies", single, map[string]r2.Vec{"CLP-1": {}}))

	looped := depgraph.NewGraph()
	looped.AddEdge("CLP-1", "CLP-2")
	looped.AddEdge("CLP-2", "CLP-2")
	assertPNG(t, "graph with self link", Graph("Dependencies", looped, depgraph.Layout(looped)))

	g := depgraph.NewGraph()
	g.AddEdge("CLP-1", "CLP-2")
	g.AddEdge("CLP-3", "CLP-2")
	assertPNG(t, "laid out graph", Graph("Dependencies", g, depgraph.Layout(g)))
}

func TestSelfLoop(t *testing.T) {
	c := r2.Vec{X: 2, Y: 3}
	xys := selfLoop(c, 0.5)
	if len(xys) != 17 {
		t.Fatalf("len = %d, want 17", len(xys))
	}
	if math.Hypot(xys[0].X-xys[16].X, xys[0].Y-xys[16].Y) > 1e-9 {
		t.Errorf("ring not closed: first %v, last %v", xys[0], xys[16])
	}
	for i, p := range xys {
		if d := math.Hypot(p.X-c.X, p.Y-(c.Y+0.5)); math.Abs(d-0.5) > 1e-9 {
			t.Errorf("point %d at distance %v from ring centre, want 0.5", i, d)
		}
	}
}

func TestArrowHead(t *testing.T) {
	xys := arrowHead(r2.Vec{X: 0, Y: 0}, r2.Vec{X: 10, Y: 0}, 1)
	if len(xys) != 3 {
		t.Fatalf("arrowHead() = %d points, want 3", len(xys))
	}
	if xys[1].X != 9 || xys[1].Y != 0 {
		t.Errorf("tip = %v, want (9, 0)", xys[1])
	}
	if xys[0].X != 8 || xys[2].X != 8 || xys[0].Y != -xys[2].Y {
		t.Errorf("barbs = %v, %v, want symmetric at x=8", xys[0], xys[2])
	}

	if got := arrowHead(r2.Vec{X: 1, Y: 1}, r2.Vec{X: 1, Y: 1}, 1); len(got) != 2 {
		t.Errorf("arrowHead(zero length) = %v, want degenerate 2-point line", got)
	}
}

func TestWriteFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "charts", "bar.png")
	if err := WriteFile(path, Bar("t", "", []Value{{Label: "a", Value: 1}})); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(data, pngMagic) {
		t.Error("written file is not a PNG")
	}

	failed := filepath.Join(dir, "pie.png")
	err = WriteFile(failed, Pie("t", nil))
	if !errors.Is(err, ErrNoData) {
		t.Errorf("WriteFile() error = %v, want ErrNoData", err)
	}
	if _, statErr := os.Stat(failed); !os.IsNotExist(statErr) {
		t.Errorf("failed render left %s behind", failed)
	}
}

func TestAxisMax(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0, 1},
		{-3, 1},
		{10, 11},
		{0.5, 1},
	}
	for _, tt := range tests {
		if got := axisMax(tt.in); got != tt.want {
			t.Errorf("axisMax(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
