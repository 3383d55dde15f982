package sufrib

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const separator = "|"

type field struct {
	name    string
	width   int
	numeric bool
}

// layout describes the fixed-width fields of one record type. Every field is
// followed by a separator, the first one starts after "<type>|".
type layout struct {
	recordType string
	fields     []field
}

var (
	putLayout = layout{"*PUT", []field{
		{"CAA", 30, false},
		{"CAB", 24, false},
		{"CCU", 8, true},
	}}
	rioolLayout = layout{"*RIOO", []field{
		{"AAA", 30, false},
		{"AAD", 30, false},
		{"AAE", 24, false},
		{"AAF", 30, false},
		{"AAG", 24, false},
		{"ACR", 8, true},
		{"ACS", 8, true},
		{"ACB", 5, true},
	}}
	measurementLayout = layout{"*MRIO", []field{
		{"ZYA", 8, true},
		{"ZYB", 1, false},
		{"ZYR", 1, false},
		{"ZYS", 8, true},
	}}
	waarLayout = layout{"*WAAR", []field{
		{"ZZA", 8, true},
		{"ZZB", 1, false},
		{"ZZE", 30, false},
		{"ZZF", 3, false},
		{"ZZI", 6, true},
		{"ZZJ", 6, true},
		{"ZZV", 40, false},
	}}
)

// coordinate fields hold X and Y in two columns of this width
const coordinateWidth = 12

// offset returns the start of the named field within a line.
func (l layout) offset(name string) (int, int) {
	pos := len(l.recordType) + len(separator)
	for _, f := range l.fields {
		if f.name == name {
			return pos, f.width
		}
		pos += f.width + len(separator)
	}
	panic(fmt.Sprintf("sufrib: no field %s in %s", name, l.recordType))
}

// extract returns the trimmed value of a field, empty when the line is too
// short to contain it.
func (l layout) extract(line, name string) string {
	start, width := l.offset(name)
	if start >= len(line) {
		return ""
	}
	end := start + width
	if end > len(line) {
		end = len(line)
	}
	return strings.TrimSpace(line[start:end])
}

// format renders values into a record line. Values longer than their field
// are cut off.
func (l layout) format(values map[string]string) string {
	var b strings.Builder
	b.WriteString(l.recordType)
	b.WriteString(separator)
	for _, f := range l.fields {
		v := values[f.name]
		if len(v) > f.width {
			v = v[:f.width]
		}
		if f.numeric {
			b.WriteString(fmt.Sprintf("%*s", f.width, v))
		} else {
			b.WriteString(fmt.Sprintf("%-*s", f.width, v))
		}
		b.WriteString(separator)
	}
	return b.String()
}

// parseFloat reads an optional number, NaN when empty.
func parseFloat(value string) (float64, error) {
	if value == "" {
		return math.NaN(), nil
	}
	f, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64)
	if err != nil {
		return math.NaN(), fmt.Errorf("invalid number %q", value)
	}
	return f, nil
}

// parseCoordinate reads an X/Y field, ok is false when it is empty.
func parseCoordinate(value string) (x, y float64, ok bool, err error) {
	if strings.TrimSpace(value) == "" {
		return 0, 0, false, nil
	}

	// RD coordinates never fill a column, so the padding separates X and Y
	parts := strings.Fields(value)
	if len(parts) != 2 {
		return 0, 0, false, fmt.Errorf("invalid coordinate %q", value)
	}

	x, err = strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid coordinate %q", value)
	}
	y, err = strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, 0, false, fmt.Errorf("invalid coordinate %q", value)
	}
	return x, y, true, nil
}

func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func formatCoordinate(x, y float64) string {
	return fmt.Sprintf("%*.2f%*.2f", coordinateWidth, x, coordinateWidth, y)
}
