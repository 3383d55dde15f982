package capacity

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/tebben/riool/models"
)

// Result is the standing water at one measurement point.
type Result struct {
	SufID             string
	Dist              float64
	Bob               float64
	WaterLevel        float64
	FloodedPercentage float64
	Point             orb.Point
}

type profilePoint struct {
	dist        float64
	bob         float64
	measurement int
}

// Compute returns the standing water for every measurement of a sewer.
//
// Water only leaves a sewer at its manholes, so the level at a point is the
// lowest of the highest BOB between the point and manhole 1 and the highest
// BOB between the point and manhole 2. Results are in measurement order.
func Compute(sewer models.Sewer) []Result {
	if len(sewer.Measurements) == 0 {
		return nil
	}

	points := make([]profilePoint, 0, len(sewer.Measurements)+2)
	points = append(points, profilePoint{0, sewer.Bob1, -1})
	for i, m := range sewer.Measurements {
		points = append(points, profilePoint{m.Dist, m.Bob, i})
	}
	points = append(points, profilePoint{sewer.Length, sewer.Bob2, -1})

	// keep the manholes at both ends, even when a measurement lies beyond
	// the geometric length
	inner := points[1 : len(points)-1]
	sort.SliceStable(inner, func(i, j int) bool { return inner[i].dist < inner[j].dist })

	n := len(points)
	left := make([]float64, n)
	right := make([]float64, n)

	left[0] = points[0].bob
	for i := 1; i < n; i++ {
		left[i] = math.Max(left[i-1], points[i].bob)
	}
	right[n-1] = points[n-1].bob
	for i := n - 2; i >= 0; i-- {
		right[i] = math.Max(right[i+1], points[i].bob)
	}

	results := make([]Result, len(sewer.Measurements))
	for i, p := range points {
		if p.measurement < 0 {
			continue
		}
		m := sewer.Measurements[p.measurement]
		level := math.Min(left[i], right[i])
		results[p.measurement] = Result{
			SufID:             m.SufID,
			Dist:              m.Dist,
			Bob:               m.Bob,
			WaterLevel:        level,
			FloodedPercentage: FloodedPercentage(level, m.Bob, sewer.Diameter),
			Point:             m.Geom,
		}
	}

	return results
}

// FloodedPercentage is the fraction of the pipe height below the water level.
func FloodedPercentage(waterLevel, bob, diameter float64) float64 {
	if diameter <= 0 || math.IsNaN(waterLevel) || math.IsNaN(bob) {
		return 0
	}
	return math.Max(0, math.Min(1, (waterLevel-bob)/diameter))
}

// ComputeNetwork computes every sewer and returns the stored graph nodes of
// an upload. Water levels are written back into the measurements.
func ComputeNetwork(uploadID int64, sewers []models.Sewer) []models.StoredGraphNode {
	var nodes []models.StoredGraphNode
	for s := range sewers {
		for i, r := range Compute(sewers[s]) {
			sewers[s].Measurements[i].WaterLevel = r.WaterLevel
			nodes = append(nodes, models.StoredGraphNode{
				UploadID:          uploadID,
				SufID:             r.SufID,
				FloodedPercentage: r.FloodedPercentage,
				XY:                r.Point,
			})
		}
	}
	return nodes
}
