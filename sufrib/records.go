package sufrib

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

const (
	TypeAlge        = "*ALGE"
	TypePut         = "*PUT"
	TypeRiool       = "*RIOO"
	TypeMeasurement = "*MRIO"
	TypeWaar        = "*WAAR"
)

const (
	DirectionFromNode1 = "A"
	DirectionFromNode2 = "B"

	// MeasurementAbsolute values are BOB levels in m relative to NAP.
	MeasurementAbsolute = "A"
	// MeasurementRelative values are deviations in m from the straight line
	// between the BOBs of both nodes.
	MeasurementRelative = "B"
)

var errNoRiool = errors.New("*MRIO record without preceding *RIOO record")

// Record is one parsed line of a survey file.
type Record interface {
	LineNumber() int
	RecordType() string
	// updateCoordinates receives the record parsed before this one.
	updateCoordinates(prev Record) error
}

// Alge is the general header, it is only copied.
type Alge struct {
	Line int
	Raw  string
}

func (a *Alge) LineNumber() int                  { return a.Line }
func (a *Alge) RecordType() string               { return TypeAlge }
func (a *Alge) updateCoordinates(_ Record) error { return nil }
func (a *Alge) String() string                   { return a.Raw }

// Put is a manhole.
type Put struct {
	Line        int
	Code        string
	Point       orb.Point
	HasPoint    bool
	GroundLevel float64
}

func (p *Put) LineNumber() int                  { return p.Line }
func (p *Put) RecordType() string               { return TypePut }
func (p *Put) updateCoordinates(_ Record) error { return nil }

func (p *Put) String() string {
	values := map[string]string{
		"CAA": p.Code,
		"CCU": formatFloat(p.GroundLevel, 2),
	}
	if p.HasPoint {
		values["CAB"] = formatCoordinate(p.Point.X(), p.Point.Y())
	}
	return putLayout.format(values)
}

// Riool is a sewer pipe between two manholes.
type Riool struct {
	Line      int
	Raw       string
	Code      string
	Node1     string
	Node2     string
	Point1    orb.Point
	Point2    orb.Point
	HasPoint1 bool
	HasPoint2 bool
	Bob1      float64
	Bob2      float64
	// Height of the pipe in mm.
	Height float64
}

func (r *Riool) LineNumber() int                  { return r.Line }
func (r *Riool) RecordType() string               { return TypeRiool }
func (r *Riool) updateCoordinates(_ Record) error { return nil }

func (r *Riool) String() string {
	values := map[string]string{
		"AAA": r.Code,
		"AAD": r.Node1,
		"AAF": r.Node2,
		"ACR": formatFloat(r.Bob1, 2),
		"ACS": formatFloat(r.Bob2, 2),
		"ACB": formatFloat(r.Height, 0),
	}
	if r.HasPoint1 {
		values["AAE"] = formatCoordinate(r.Point1.X(), r.Point1.Y())
	}
	if r.HasPoint2 {
		values["AAG"] = formatCoordinate(r.Point2.X(), r.Point2.Y())
	}
	return rioolLayout.format(values)
}

// Diameter returns the pipe height in m.
func (r *Riool) Diameter() float64 {
	if math.IsNaN(r.Height) {
		return 0
	}
	return r.Height / 1000
}

// Length is the straight distance between both nodes, NaN when a node has no
// coordinates.
func (r *Riool) Length() float64 {
	if !r.HasPoint1 || !r.HasPoint2 {
		return math.NaN()
	}
	return planar.Distance(r.Point1, r.Point2)
}

// LineString returns the sewer geometry from node 1 to node 2.
func (r *Riool) LineString() orb.LineString {
	return orb.LineString{r.Point1, r.Point2}
}

// Design returns the BOB of the straight line between both nodes at a
// distance from node 1.
func (r *Riool) Design(dist float64) float64 {
	length := r.Length()
	if math.IsNaN(length) || length == 0 {
		return r.Bob1
	}
	return r.Bob1 + (r.Bob2-r.Bob1)*dist/length
}

// Measurement is a depth measurement along the sewer of the records before it.
type Measurement struct {
	Line      int
	Distance  float64
	Direction string
	Type      string
	Value     float64
	Riool     *Riool
	Point     orb.Point
	HasPoint  bool
}

func (m *Measurement) LineNumber() int    { return m.Line }
func (m *Measurement) RecordType() string { return TypeMeasurement }

// updateCoordinates attaches the measurement to the sewer of the previous
// record and places it on that sewer.
func (m *Measurement) updateCoordinates(prev Record) error {
	switch p := prev.(type) {
	case *Riool:
		m.Riool = p
	case *Measurement:
		m.Riool = p.Riool
	}
	if m.Riool == nil {
		return errNoRiool
	}
	m.locate()
	return nil
}

func (m *Measurement) locate() {
	r := m.Riool
	if r == nil || !r.HasPoint1 || !r.HasPoint2 {
		m.HasPoint = false
		return
	}

	length := r.Length()
	if length == 0 {
		m.Point, m.HasPoint = r.Point1, true
		return
	}

	from, to := r.Point1, r.Point2
	if m.Direction == DirectionFromNode2 {
		from, to = r.Point2, r.Point1
	}

	f := math.Max(0, math.Min(m.Distance, length)) / length
	m.Point = orb.Point{
		from.X() + (to.X()-from.X())*f,
		from.Y() + (to.Y()-from.Y())*f,
	}
	m.HasPoint = true
}

// SufID identifies the measurement within its file.
func (m *Measurement) SufID() string {
	code := ""
	if m.Riool != nil {
		code = m.Riool.Code
	}
	return fmt.Sprintf("%s:%d", code, m.Line)
}

// DistanceFromNode1 normalises the distance to the direction node 1 to node 2.
func (m *Measurement) DistanceFromNode1() float64 {
	if m.Direction != DirectionFromNode2 {
		return m.Distance
	}
	if m.Riool == nil {
		return math.NaN()
	}
	return m.Riool.Length() - m.Distance
}

// Bob returns the measured invert level in m relative to NAP.
func (m *Measurement) Bob() float64 {
	if m.Type == MeasurementRelative && m.Riool != nil {
		return m.Riool.Design(m.DistanceFromNode1()) + m.Value
	}
	return m.Value
}

func (m *Measurement) String() string {
	return measurementLayout.format(map[string]string{
		"ZYA": formatFloat(m.Distance, 2),
		"ZYB": m.Direction,
		"ZYR": m.Type,
		"ZYS": formatFloat(m.Value, 3),
	})
}

// Waar is an observation. Input files may contain them, the results export
// writes them.
type Waar struct {
	Line      int
	Distance  float64
	Direction string
	Riool     string
	Code      string
	// Min and Max are fractions, written as percentages.
	Min    float64
	Max    float64
	Remark string
}

func (w *Waar) LineNumber() int                  { return w.Line }
func (w *Waar) RecordType() string               { return TypeWaar }
func (w *Waar) updateCoordinates(_ Record) error { return nil }

func (w *Waar) String() string {
	return waarLayout.format(map[string]string{
		"ZZA": formatFloat(w.Distance, 2),
		"ZZB": w.Direction,
		"ZZE": w.Riool,
		"ZZF": w.Code,
		"ZZI": formatFloat(percent(w.Min), 2),
		"ZZJ": formatFloat(percent(w.Max), 2),
		"ZZV": w.Remark,
	})
}

func percent(fraction float64) float64 {
	return math.Max(0, math.Min(100, fraction*100))
}
