package models

import (
	"errors"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

// SRID of all stored geometries, RD New.
const SRID = 28992

// SRIDWebMercator is the projection of map tiles and extents.
const SRIDWebMercator = 3857

var (
	ErrNotFound = errors.New("not found")
	// ErrInvalid marks errors caused by bad input.
	ErrInvalid = errors.New("invalid")
)

type UploadStatus int

const (
	StatusUploaded UploadStatus = iota
	StatusProcessing
	StatusProcessed
	StatusFailed
)

func (s UploadStatus) String() string {
	switch s {
	case StatusUploaded:
		return "uploaded"
	case StatusProcessing:
		return "processing"
	case StatusProcessed:
		return "processed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type Upload struct {
	ID       int64
	Filename string
	// Path of the stored file on disk.
	Path                   string
	Kind                   string
	Status                 UploadStatus
	HasComputedPercentages bool
	ErrorCount             int
	UploadedAt             time.Time
}

// ResultsFilename is the name of the SUFRIB results download.
func (u Upload) ResultsFilename() string {
	base := strings.TrimSuffix(u.Filename, filepath.Ext(u.Filename))
	return base + "_results.txt"
}

type UploadedFileError struct {
	UploadID int64
	// Line is 0 for errors about the file as a whole.
	Line    int
	Message string
}

type Sewerage struct {
	ID       int64
	UploadID int64
	Name     string
	Active   bool
}

type Manhole struct {
	ID         int64
	SewerageID int64
	Code       string
	// GroundLevel is NaN when unknown.
	GroundLevel float64
	Geom        orb.Point
}

func (m Manhole) HasGroundLevel() bool {
	return !math.IsNaN(m.GroundLevel)
}

type Sewer struct {
	ID         int64
	SewerageID int64
	Code       string
	Manhole1   Manhole
	Manhole2   Manhole
	Bob1       float64
	Bob2       float64
	// Diameter in m.
	Diameter     float64
	Geom         orb.LineString
	Length       float64
	Measurements []Measurement
}

type Measurement struct {
	ID    int64
	SufID string
	// Dist is measured from manhole 1.
	Dist float64
	Bob  float64
	Obb  float64
	// WaterLevel is NaN until lost capacity has been computed.
	WaterLevel float64
	Geom       orb.Point
}

// StoredGraphNode is a measurement point with its computed flooded percentage.
type StoredGraphNode struct {
	UploadID          int64
	SufID             string
	FloodedPercentage float64
	XY                orb.Point
}

// NearestManhole is the result of a manhole search around a point.
type NearestManhole struct {
	Code       string
	SewerageID int64
	// Point is in the projection of the search.
	Point orb.Point
}
