package network

import (
	"fmt"

	"github.com/tebben/riool/models"
)

// Leg is one sewer of a route.
type Leg struct {
	Sewer models.Sewer
	// Forward is true when the sewer is traversed from manhole 1 to manhole 2.
	Forward bool
	// Start and End are the positions of the manholes on the route.
	Start float64
	End   float64
}

// Position maps a distance from manhole 1 of the leg's sewer onto the route.
func (l Leg) Position(dist float64) float64 {
	if l.Forward {
		return l.Start + dist
	}
	return l.End - dist
}

// Route is a chain of manholes placed on a straight line.
type Route struct {
	Manholes []models.Manhole
	// Positions holds the distance of every manhole from the first one.
	Positions []float64
	Legs      []Leg
}

// Route follows a chain of manhole codes, every pair must be connected by a
// sewer.
func (n *Network) Route(codes []string) (*Route, error) {
	if len(codes) == 0 {
		return nil, fmt.Errorf("empty route")
	}

	route := &Route{Positions: []float64{0}}
	for i, code := range codes {
		m, ok := n.Manhole(code)
		if !ok {
			return nil, fmt.Errorf("manhole %s not in graph", code)
		}
		route.Manholes = append(route.Manholes, m)
		if i == 0 {
			continue
		}

		s, ok := n.Sewer(codes[i-1], code)
		if !ok {
			return nil, fmt.Errorf("manholes %s and %s are not connected", codes[i-1], code)
		}

		start := route.Positions[len(route.Positions)-1]
		end := start + s.Length
		route.Positions = append(route.Positions, end)
		route.Legs = append(route.Legs, Leg{
			Sewer:   s,
			Forward: s.Manhole1.Code == codes[i-1],
			Start:   start,
			End:     end,
		})
	}

	return route, nil
}

// Length is the total length of the route.
func (r *Route) Length() float64 {
	return r.Positions[len(r.Positions)-1]
}
