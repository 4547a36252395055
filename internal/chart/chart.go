// Package chart renders report charts as PNG images.
package chart

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when there is nothing meaningful to draw, e.g. a
// pie whose slices sum to zero. Callers skip the upload in that case.
var ErrNoData = errors.New("chart: no data to plot")

const (
	defaultWidth  = 1024
	defaultHeight = 600
	barWidth      = 60
	barSpacing    = 40
)

var palette = []drawing.Color{
	drawing.ColorFromHex("9ecae1"),
	drawing.ColorFromHex("fdae6b"),
	drawing.ColorFromHex("a1d99b"),
	drawing.ColorFromHex("bcbddc"),
	drawing.ColorFromHex("fc9272"),
	drawing.ColorFromHex("c7e9c0"),
	drawing.ColorFromHex("fdd0a2"),
	drawing.ColorFromHex("dadaeb"),
}

func colorAt(i int) drawing.Color {
	return palette[i%len(palette)]
}

// Value is one labelled number: a bar, a pie slice or a stack segment.
type Value struct {
	Label string
	Value float64
}

// Stack is one bar of a stacked bar chart.
type Stack struct {
	Label    string
	Segments []Value
}

// Renderer draws a chart to w.
type Renderer func(w io.Writer) error

// WriteFile renders into path, replacing any existing file. The file is
// removed again if rendering fails.
func WriteFile(path string, render Renderer) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create chart directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := render(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	return f.Close()
}

// Bar returns a renderer for a vertical bar chart in the given order.
// All-zero data still renders, with a unit y axis.
func Bar(title, yLabel string, values []Value) Renderer {
	return func(w io.Writer) error {
		if len(values) == 0 {
			return ErrNoData
		}

		maxVal := 0.0
		bars := make([]gochart.Value, len(values))
		for i, v := range values {
			maxVal = math.Max(maxVal, v.Value)
			bars[i] = gochart.Value{
				Label: v.Label,
				Value: v.Value,
				Style: gochart.Style{FillColor: colorAt(i), StrokeColor: colorAt(i)},
			}
		}

		c := gochart.BarChart{
			Title:      title,
			Background: gochart.Style{Padding: gochart.Box{Top: 50, Bottom: 20, Left: 20, Right: 20}},
			Width:      chartWidth(len(values)),
			Height:     defaultHeight,
			BarWidth:   barWidth,
			BarSpacing: barSpacing,
			XAxis:      gochart.Style{TextRotationDegrees: 30},
			YAxis: gochart.YAxis{
				Name:  yLabel,
				Range: &gochart.ContinuousRange{Min: 0, Max: axisMax(maxVal)},
			},
			Bars: bars,
		}
		if err := c.Render(gochart.PNG, w); err != nil {
			return fmt.Errorf("render bar chart: %w", err)
		}
		return nil
	}
}

// Pie returns a renderer for a pie chart. Zero slices are dropped; a pie
// with nothing left returns ErrNoData.
func Pie(title string, values []Value) Renderer {
	return func(w io.Writer) error {
		var slices []gochart.Value
		for i, v := range values {
			if v.Value <= 0 {
				continue
			}
			slices = append(slices, gochart.Value{
				Label: fmt.Sprintf("%s (%s)", v.Label, formatNumber(v.Value)),
				Value: v.Value,
				Style: gochart.Style{FillColor: colorAt(i)},
			})
		}
		if len(slices) == 0 {
			return ErrNoData
		}

		c := gochart.PieChart{
			Title:      title,
			Background: gochart.Style{Padding: gochart.Box{Top: 50}},
			Width:      defaultHeight + 200,
			Height:     defaultHeight + 200,
			Values:     slices,
		}
		if err := c.Render(gochart.PNG, w); err != nil {
			return fmt.Errorf("render pie chart: %w", err)
		}
		return nil
	}
}

// StackedBar returns a renderer for a stacked bar chart. Segment colors
// are assigned per segment label so the same label keeps its color
// across bars. Returns ErrNoData when every stack is empty.
func StackedBar(title string, stacks []Stack) Renderer {
	return func(w io.Writer) error {
		colors := map[string]drawing.Color{}
		var bars []gochart.StackedBar
		for _, s := range stacks {
			var vals []gochart.Value
			for _, seg := range s.Segments {
				if seg.Value <= 0 {
					continue
				}
				c, ok := colors[seg.Label]
				if !ok {
					c = colorAt(len(colors))
					colors[seg.Label] = c
				}
				vals = append(vals, gochart.Value{
					Label: fmt.Sprintf("%s: %s", seg.Label, formatNumber(seg.Value)),
					Value: seg.Value,
					Style: gochart.Style{FillColor: c, StrokeColor: drawing.ColorWhite, StrokeWidth: 1},
				})
			}
			if len(vals) == 0 {
				continue
			}
			bars = append(bars, gochart.StackedBar{Name: s.Label, Width: barWidth, Values: vals})
		}
		if len(bars) == 0 {
			return ErrNoData
		}

		c := gochart.StackedBarChart{
			Title:      title,
			Background: gochart.Style{Padding: gochart.Box{Top: 50, Bottom: 20, Left: 20, Right: 20}},
			Width:      chartWidth(len(bars)),
			Height:     defaultHeight,
			BarSpacing: barSpacing,
			Bars:       bars,
		}
		if err := c.Render(gochart.PNG, w); err != nil {
			return fmt.Errorf("render stacked bar chart: %w", err)
		}
		return nil
	}
}

func chartWidth(bars int) int {
	w := bars*(barWidth+barSpacing) + 200
	if w < defaultWidth {
		return defaultWidth
	}
	return w
}

// axisMax leaves head room above the tallest bar and keeps a usable range
// when every value is zero.
func axisMax(maxVal float64) float64 {
	if maxVal <= 0 {
		return 1
	}
	return math.Ceil(maxVal * 1.1)
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.1f", v)
}
