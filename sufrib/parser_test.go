package sufrib

import (
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putLine(code string, x, y, groundLevel float64) string {
	p := &Put{Code: code, Point: orb.Point{x, y}, HasPoint: true, GroundLevel: groundLevel}
	return p.String()
}

func rioolLine(code, node1 string, p1 *orb.Point, node2 string, p2 *orb.Point, bob1, bob2, height float64) string {
	r := &Riool{Code: code, Node1: node1, Node2: node2, Bob1: bob1, Bob2: bob2, Height: height}
	if p1 != nil {
		r.Point1, r.HasPoint1 = *p1, true
	}
	if p2 != nil {
		r.Point2, r.HasPoint2 = *p2, true
	}
	return r.String()
}

func measurementLine(dist float64, direction, kind string, value float64) string {
	m := &Measurement{Distance: dist, Direction: direction, Type: kind, Value: value}
	return m.String()
}

func testFile() string {
	p1, p2 := orb.Point{155000, 463000}, orb.Point{155100, 463000}
	return strings.Join([]string{
		"*ALGE|Gemeente Utrecht",
		putLine("MH1", 155000, 463000, 2.00),
		putLine("MH2", 155100, 463000, 2.10),
		rioolLine("S1", "MH1", &p1, "MH2", &p2, 0.00, -0.50, 300),
		measurementLine(10, DirectionFromNode1, MeasurementAbsolute, -0.2),
		measurementLine(20, DirectionFromNode2, MeasurementRelative, 0.05),
		"*WAAR|ignored",
		"*XYZ|unknown record",
	}, "\r\n")
}

func TestRioolCodeOffset(t *testing.T) {
	p := orb.Point{1, 2}
	line := rioolLine("STRENG-001", "A", &p, "B", &p, 0, 0, 300)

	assert.Equal(t, "*RIOO|", line[:6])
	assert.Equal(t, "STRENG-001", strings.TrimSpace(line[6:36]))
}

func TestParse(t *testing.T) {
	file, err := Parse(strings.NewReader(testFile()))
	require.NoError(t, err)
	require.Empty(t, file.Errors)

	assert.Len(t, file.Records, 6)
	assert.IsType(t, &Alge{}, file.Records[0])
	assert.Equal(t, "*ALGE|Gemeente Utrecht", file.Records[0].(*Alge).Raw)

	puts := file.Puts()
	require.Len(t, puts, 2)
	assert.Equal(t, "MH1", puts[0].Code)
	assert.InDelta(t, 2.0, puts[0].GroundLevel, 1e-9)

	riolen := file.Riolen()
	require.Len(t, riolen, 1)
	r := riolen[0]
	assert.Equal(t, "S1", r.Code)
	assert.Equal(t, "MH1", r.Node1)
	assert.Equal(t, "MH2", r.Node2)
	assert.InDelta(t, 100, r.Length(), 1e-9)
	assert.InDelta(t, 0.3, r.Diameter(), 1e-9)
	assert.Equal(t, 4, r.LineNumber())

	measurements := file.Measurements()
	require.Len(t, measurements, 2)

	m1 := measurements[0]
	assert.Same(t, r, m1.Riool)
	assert.True(t, m1.HasPoint)
	assert.InDelta(t, 155010, m1.Point.X(), 1e-9)
	assert.InDelta(t, 10, m1.DistanceFromNode1(), 1e-9)
	assert.InDelta(t, -0.2, m1.Bob(), 1e-9)
	assert.Equal(t, "S1:5", m1.SufID())

	m2 := measurements[1]
	assert.Same(t, r, m2.Riool)
	assert.InDelta(t, 155080, m2.Point.X(), 1e-9)
	assert.InDelta(t, 80, m2.DistanceFromNode1(), 1e-9)
	// design line at 80 m is -0.40, measured 5 cm above it
	assert.InDelta(t, -0.35, m2.Bob(), 1e-9)
}

func TestParse_Pool(t *testing.T) {
	file, err := Parse(strings.NewReader(testFile()))
	require.NoError(t, err)

	pool := file.Pool()
	require.Len(t, pool["S1"], 3)
	assert.IsType(t, &Riool{}, pool["S1"][0])
	assert.IsType(t, &Measurement{}, pool["S1"][1])
	assert.IsType(t, &Measurement{}, pool["S1"][2])
}

func TestParse_MeasurementWithoutRiool(t *testing.T) {
	p := orb.Point{0, 0}
	q := orb.Point{10, 0}
	input := strings.Join([]string{
		measurementLine(1, DirectionFromNode1, MeasurementAbsolute, 1),
		rioolLine("S1", "MH1", &p, "MH2", &q, 0, 0, 300),
	}, "\n")

	file, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, file.Errors, 1)
	assert.Equal(t, 1, file.Errors[0].Line)
	assert.Contains(t, file.Errors[0].Message, "without preceding *RIOO")
	assert.Empty(t, file.Measurements())
}

func TestParse_MeasurementFollowsMeasurement(t *testing.T) {
	p, q := orb.Point{0, 0}, orb.Point{10, 0}
	r, s := orb.Point{10, 0}, orb.Point{10, 10}
	input := strings.Join([]string{
		rioolLine("S1", "MH1", &p, "MH2", &q, 0, 0, 300),
		measurementLine(1, DirectionFromNode1, MeasurementAbsolute, 1),
		measurementLine(2, DirectionFromNode1, MeasurementAbsolute, 1),
		rioolLine("S2", "MH2", &r, "MH3", &s, 0, 0, 300),
		measurementLine(3, DirectionFromNode1, MeasurementAbsolute, 1),
	}, "\n")

	file, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, file.Errors)

	ms := file.Measurements()
	require.Len(t, ms, 3)
	assert.Equal(t, "S1", ms[0].Riool.Code)
	assert.Equal(t, "S1", ms[1].Riool.Code)
	assert.Equal(t, "S2", ms[2].Riool.Code)
	assert.InDelta(t, 10, ms[2].Point.X(), 1e-9)
	assert.InDelta(t, 3, ms[2].Point.Y(), 1e-9)
}

func TestParse_CoordinatesFromPut(t *testing.T) {
	input := strings.Join([]string{
		rioolLine("S1", "MH1", nil, "MH2", nil, 1, 0.5, 400),
		measurementLine(5, DirectionFromNode1, MeasurementAbsolute, 0.7),
		putLine("MH1", 0, 0, 3),
		putLine("MH2", 0, 50, 3),
	}, "\n")

	file, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Empty(t, file.Errors)

	r := file.Riolen()[0]
	assert.True(t, r.HasPoint1)
	assert.True(t, r.HasPoint2)
	assert.Equal(t, orb.Point{0, 50}, r.Point2)

	m := file.Measurements()[0]
	assert.True(t, m.HasPoint)
	assert.InDelta(t, 0, m.Point.X(), 1e-9)
	assert.InDelta(t, 5, m.Point.Y(), 1e-9)
}

func TestParse_MissingCoordinates(t *testing.T) {
	input := rioolLine("S1", "MH1", nil, "MH2", nil, 1, 0.5, 400)

	file, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, file.Errors, 2)
	assert.Equal(t, 1, file.Errors[0].Line)
	assert.Contains(t, file.Errors[0].Message, "MH1")
}

func TestParse_FieldErrors(t *testing.T) {
	p := orb.Point{0, 0}
	line := rioolLine("S1", "MH1", &p, "MH2", &p, 0, 0, 300)
	start, width := rioolLayout.offset("ACR")
	line = line[:start] + strings.Repeat("x", width) + line[start+width:]

	input := strings.Join([]string{
		line,
		"*MRIO|    1.00|C|A|   1.000|",
	}, "\n")

	file, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Len(t, file.Errors, 2)
	assert.Equal(t, ParseError{Line: 1, Message: `ACR: invalid number "xxxxxxxx"`}, file.Errors[0])
	assert.Equal(t, 2, file.Errors[1].Line)
	assert.Contains(t, file.Errors[1].Message, "ZYB")
}

func TestParse_NoRiool(t *testing.T) {
	file, err := Parse(strings.NewReader("*ALGE|only a header\n" + putLine("MH1", 0, 0, 1)))
	require.NoError(t, err)

	require.Len(t, file.Errors, 1)
	assert.Equal(t, 0, file.Errors[0].Line)
	assert.True(t, file.HasErrors())
}

func TestParse_ShortLine(t *testing.T) {
	file, err := Parse(strings.NewReader("*PUT|MH9"))
	require.NoError(t, err)

	puts := file.Puts()
	require.Len(t, puts, 1)
	assert.Equal(t, "MH9", puts[0].Code)
	assert.False(t, puts[0].HasPoint)
	assert.True(t, math.IsNaN(puts[0].GroundLevel))
}

func TestKind(t *testing.T) {
	kind, err := Kind("survey.RMB")
	require.NoError(t, err)
	assert.Equal(t, KindRMB, kind)

	kind, err = Kind("survey.rib")
	require.NoError(t, err)
	assert.Equal(t, KindRIB, kind)

	_, err = Kind("survey.txt")
	assert.ErrorIs(t, err, ErrBadExtension)
}

func TestWaarString(t *testing.T) {
	w := &Waar{Distance: 12.5, Direction: "A", Riool: "S1", Code: "BDD", Min: 0.25, Max: 1.01, Remark: "Door Lizard Riool Toolkit"}
	line := w.String()

	assert.True(t, strings.HasPrefix(line, "*WAAR|   12.50|A|S1"))
	assert.Equal(t, "S1", waarLayout.extract(line, "ZZE"))
	assert.Equal(t, "BDD", waarLayout.extract(line, "ZZF"))
	assert.Equal(t, "25.00", waarLayout.extract(line, "ZZI"))
	assert.Equal(t, "100.00", waarLayout.extract(line, "ZZJ"))
	assert.Equal(t, "Door Lizard Riool Toolkit", waarLayout.extract(line, "ZZV"))
}
