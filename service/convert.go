package service

import (
	"math"

	"github.com/tebben/riool/models"
	"github.com/tebben/riool/sufrib"
)

// networkFromFile converts the records of a survey file into manholes and
// sewers. Manholes without a *PUT record are created from the sewer nodes.
func networkFromFile(file *sufrib.File) ([]models.Manhole, []models.Sewer) {
	var codes []string
	manholes := make(map[string]*models.Manhole)
	located := make(map[string]bool)

	add := func(code string) *models.Manhole {
		if m, ok := manholes[code]; ok {
			return m
		}
		m := &models.Manhole{Code: code, GroundLevel: math.NaN()}
		manholes[code] = m
		codes = append(codes, code)
		return m
	}

	for _, p := range file.Puts() {
		m := add(p.Code)
		m.GroundLevel = p.GroundLevel
		if p.HasPoint {
			m.Geom, located[p.Code] = p.Point, true
		}
	}

	riolen := file.Riolen()
	for _, r := range riolen {
		m1, m2 := add(r.Node1), add(r.Node2)
		if !located[r.Node1] && r.HasPoint1 {
			m1.Geom, located[r.Node1] = r.Point1, true
		}
		if !located[r.Node2] && r.HasPoint2 {
			m2.Geom, located[r.Node2] = r.Point2, true
		}
	}

	measurements := make(map[*sufrib.Riool][]models.Measurement)
	for _, m := range file.Measurements() {
		if m.Riool == nil || !m.HasPoint {
			continue
		}
		bob := m.Bob()
		measurements[m.Riool] = append(measurements[m.Riool], models.Measurement{
			SufID:      m.SufID(),
			Dist:       m.DistanceFromNode1(),
			Bob:        bob,
			Obb:        bob + m.Riool.Diameter(),
			WaterLevel: math.NaN(),
			Geom:       m.Point,
		})
	}

	sewers := make([]models.Sewer, 0, len(riolen))
	for _, r := range riolen {
		if !r.HasPoint1 || !r.HasPoint2 {
			continue
		}
		sewers = append(sewers, models.Sewer{
			Code:         r.Code,
			Manhole1:     *manholes[r.Node1],
			Manhole2:     *manholes[r.Node2],
			Bob1:         r.Bob1,
			Bob2:         r.Bob2,
			Diameter:     r.Diameter(),
			Geom:         r.LineString(),
			Length:       r.Length(),
			Measurements: measurements[r],
		})
	}

	result := make([]models.Manhole, 0, len(codes))
	for _, code := range codes {
		result = append(result, *manholes[code])
	}
	return result, sewers
}

func uploadErrors(uploadID int64, errs []sufrib.ParseError) []models.UploadedFileError {
	result := make([]models.UploadedFileError, len(errs))
	for i, e := range errs {
		result[i] = models.UploadedFileError{UploadID: uploadID, Line: e.Line, Message: e.Message}
	}
	return result
}
