package profile

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"sort"

	"github.com/tebben/riool/network"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// screenDPI is the resolution of png canvases in gonum/plot, sizes are given
// in pixels.
const screenDPI = 96

var (
	groundColor  = color.RGBA{R: 0, G: 128, B: 0, A: 255}
	pipeColor    = color.RGBA{R: 165, G: 42, B: 42, A: 255}
	waterColor   = color.RGBA{R: 0, G: 0, B: 255, A: 128}
	manholeColor = color.RGBA{R: 255, G: 0, B: 0, A: 255}
)

// bounds tracks the vertical extent of everything drawn.
type bounds struct {
	min, max float64
}

func (b *bounds) add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	b.min = math.Min(b.min, v)
	b.max = math.Max(b.max, v)
}

// Render draws the side profile of a route as a png image of width x height
// pixels.
func Render(route *network.Route, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	p := plot.New()
	p.X.Label.Text = "Afstand (m)"
	p.Y.Label.Text = "Diepte t.o.v. NAP (m)"
	p.Add(plotter.NewGrid())

	yRange := &bounds{min: math.Inf(1), max: math.Inf(-1)}

	if err := addGroundLevel(p, route, yRange); err != nil {
		return nil, err
	}

	for _, leg := range route.Legs {
		if err := addLeg(p, leg, yRange); err != nil {
			return nil, err
		}
	}

	if math.IsInf(yRange.min, 1) {
		yRange.min, yRange.max = 0, 1
	}

	if err := addManholes(p, route, yRange); err != nil {
		return nil, err
	}

	p.X.Min = 0
	p.X.Max = math.Max(route.Length(), 1)

	w := vg.Length(width) * vg.Inch / screenDPI
	h := vg.Length(height) * vg.Inch / screenDPI
	writer, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, fmt.Errorf("failed to create png canvas: %w", err)
	}

	var buf bytes.Buffer
	if _, err := writer.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to write png: %w", err)
	}

	return buf.Bytes(), nil
}

func addGroundLevel(p *plot.Plot, route *network.Route, yRange *bounds) error {
	var xys plotter.XYs
	for i, m := range route.Manholes {
		if !m.HasGroundLevel() {
			continue
		}
		xys = append(xys, plotter.XY{X: route.Positions[i], Y: m.GroundLevel})
		yRange.add(m.GroundLevel)
	}
	if len(xys) < 2 {
		return nil
	}

	line, err := plotter.NewLine(xys)
	if err != nil {
		return err
	}
	line.LineStyle.Color = groundColor
	p.Add(line)
	return nil
}

func addLeg(p *plot.Plot, leg network.Leg, yRange *bounds) error {
	s := leg.Sewer

	bob := plotter.XYs{{X: leg.Position(0), Y: s.Bob1}}
	obb := plotter.XYs{{X: leg.Position(0), Y: s.Bob1 + s.Diameter}}
	var water []waterPoint

	measurements := append(s.Measurements[:0:0], s.Measurements...)
	sort.SliceStable(measurements, func(i, j int) bool { return measurements[i].Dist < measurements[j].Dist })

	for _, m := range measurements {
		x := leg.Position(m.Dist)
		bob = append(bob, plotter.XY{X: x, Y: m.Bob})
		obb = append(obb, plotter.XY{X: x, Y: m.Obb})
		if !math.IsNaN(m.WaterLevel) {
			water = append(water, waterPoint{x: x, bob: m.Bob, level: m.WaterLevel})
		}
	}

	bob = append(bob, plotter.XY{X: leg.Position(s.Length), Y: s.Bob2})
	obb = append(obb, plotter.XY{X: leg.Position(s.Length), Y: s.Bob2 + s.Diameter})

	for _, xys := range []plotter.XYs{bob, obb} {
		line, err := plotter.NewLine(xys)
		if err != nil {
			return err
		}
		line.LineStyle.Color = pipeColor
		p.Add(line)

		for _, xy := range xys {
			yRange.add(xy.Y)
		}
	}

	return addWater(p, water)
}

type waterPoint struct {
	x, bob, level float64
}

// addWater fills the area between BOB and water level of the measurements.
// The manholes have no water level, so the fill starts and ends at the first
// and last measurement.
func addWater(p *plot.Plot, water []waterPoint) error {
	if len(water) < 2 {
		return nil
	}

	xys := make(plotter.XYs, 0, len(water)*2)
	for _, w := range water {
		xys = append(xys, plotter.XY{X: w.x, Y: w.bob})
	}
	for i := len(water) - 1; i >= 0; i-- {
		xys = append(xys, plotter.XY{X: water[i].x, Y: math.Max(water[i].level, water[i].bob)})
	}

	polygon, err := plotter.NewPolygon(xys)
	if err != nil {
		return err
	}
	polygon.Color = waterColor
	polygon.LineStyle.Width = 0
	p.Add(polygon)
	return nil
}

// addManholes draws every manhole as a labeled vertical line.
func addManholes(p *plot.Plot, route *network.Route, yRange *bounds) error {
	labels := plotter.XYLabels{}
	for i, m := range route.Manholes {
		x := route.Positions[i]
		line, err := plotter.NewLine(plotter.XYs{{X: x, Y: yRange.min}, {X: x, Y: yRange.max}})
		if err != nil {
			return err
		}
		line.LineStyle.Color = manholeColor
		p.Add(line)

		labels.XYs = append(labels.XYs, plotter.XY{X: x, Y: yRange.max})
		labels.Labels = append(labels.Labels, m.Code)
	}

	if len(labels.Labels) == 0 {
		return nil
	}

	l, err := plotter.NewLabels(labels)
	if err != nil {
		return err
	}
	for i := range l.TextStyle {
		l.TextStyle[i].Rotation = math.Pi / 2
		l.TextStyle[i].Font.Size = vg.Points(9)
	}
	p.Add(l)
	return nil
}
