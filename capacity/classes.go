package capacity

import "strconv"

// Class is a range of flooded percentages with its map colour.
type Class struct {
	Name  string  `json:"class" doc:"Class name"`
	Label string  `json:"label" doc:"Legend label"`
	Min   float64 `json:"min" doc:"Lower boundary (inclusive), fraction"`
	Max   float64 `json:"max" doc:"Upper boundary (exclusive), fraction"`
	Color string  `json:"color" doc:"HTML colour without #"`
}

var Classes = []Class{
	{"A", "< 1%", 0.0, 0.01, "00ff00"},
	{"B", "1%-25%", 0.01, 0.25, "40C000"},
	{"C", "25%-50%", 0.25, 0.50, "808000"},
	{"D", "50%-75%", 0.50, 0.75, "C04000"},
	{"E", "75%-99%", 0.75, 0.999, "C04000"},
	{"F", "100%", 0.999, 1.01, "ff0000"},
}

// ClassFor returns the class of a flooded fraction. Values outside the table
// fall into the first or last class.
func ClassFor(pct float64) Class {
	for _, c := range Classes {
		if pct >= c.Min && pct < c.Max {
			return c
		}
	}
	if pct < Classes[0].Min {
		return Classes[0]
	}
	return Classes[len(Classes)-1]
}

// RGBA converts the HTML colour of a class to components in [0, 1].
func (c Class) RGBA() (r, g, b, a float64) {
	var components [3]float64
	for i := range components {
		v, _ := strconv.ParseUint(c.Color[i*2:i*2+2], 16, 8)
		components[i] = float64(v) / 255
	}
	return components[0], components[1], components[2], 1
}
