package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/tebben/riool/metrics"
	"github.com/tebben/riool/models"
	"github.com/tebben/riool/network"
	"github.com/tebben/riool/profile"

	log "github.com/sirupsen/logrus"
)

const (
	DefaultProfileWidth  = 900
	DefaultProfileHeight = 300
	// MaxProfileSize bounds both pixel sizes of a side profile.
	MaxProfileSize = 4000
	// DefaultSearchRadius is the manhole finder radius in meters.
	DefaultSearchRadius = 10.0
)

type Popup struct {
	QueryString string `json:"query_string" doc:"Query string of the side profile image"`
	Width       int    `json:"width" doc:"Image width in pixels"`
	Height      int    `json:"height" doc:"Image height in pixels"`
}

type PathManhole struct {
	Put string  `json:"put" doc:"Manhole code"`
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
}

type Path struct {
	Strengen []string      `json:"strengen" doc:"Sewer codes along the path"`
	Putten   []PathManhole `json:"putten" doc:"Manholes along the path"`
}

type FoundManhole struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Put        string  `json:"put" doc:"Manhole code"`
	// SewerageID is sent back as upload_id to the path finder and side
	// profile.
	SewerageID int64 `json:"upload_id" doc:"Sewerage of the manhole"`
}

func (s *Service) Sewerages(ctx context.Context) ([]models.Sewerage, error) {
	return s.store.Sewerages(ctx)
}

// parseSize reads a pixel size, browsers may send it as a float.
func parseSize(value string, def int) (int, error) {
	if value == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w size %q", models.ErrInvalid, value)
	}
	if math.IsNaN(f) || f < 1 || f > MaxProfileSize {
		return 0, fmt.Errorf("%w size %q, expected 1 to %d", models.ErrInvalid, value, MaxProfileSize)
	}
	return int(f), nil
}

// ValidSize reports whether a pixel size can be rendered.
func ValidSize(size int) bool {
	return size >= 1 && size <= MaxProfileSize
}

// SideProfilePopup builds the query string of the side profile image of a
// selection of manholes and sewers.
func (s *Service) SideProfilePopup(sewerageID int64, putten, strengen []string, width, height string) (Popup, error) {
	w, err := parseSize(width, DefaultProfileWidth)
	if err != nil {
		return Popup{}, err
	}
	h, err := parseSize(height, DefaultProfileHeight)
	if err != nil {
		return Popup{}, err
	}

	if putten == nil {
		putten = []string{}
	}
	if strengen == nil {
		strengen = []string{}
	}
	puttenJSON, err := json.Marshal(putten)
	if err != nil {
		return Popup{}, err
	}
	strengenJSON, err := json.Marshal(strengen)
	if err != nil {
		return Popup{}, err
	}

	values := url.Values{}
	values.Set("upload_id", strconv.FormatInt(sewerageID, 10))
	values.Set("putten", string(puttenJSON))
	values.Set("strengen", string(strengenJSON))
	values.Set("width", strconv.Itoa(w))
	values.Set("height", strconv.Itoa(h))

	return Popup{QueryString: values.Encode(), Width: w, Height: h}, nil
}

// SideProfile renders the side profile of a chain of manholes of a sewerage.
func (s *Service) SideProfile(ctx context.Context, sewerageID int64, manholes []string, width, height int) ([]byte, error) {
	if !ValidSize(width) || !ValidSize(height) {
		return nil, fmt.Errorf("%w size %dx%d, expected 1 to %d", models.ErrInvalid, width, height, MaxProfileSize)
	}

	sewers, err := s.store.Sewers(ctx, sewerageID, models.SRID)
	if err != nil {
		return nil, err
	}

	route, err := network.New(sewers).Route(manholes)
	if err != nil {
		return nil, fmt.Errorf("%w route: %v", models.ErrInvalid, err)
	}

	png, err := profile.Render(route, width, height)
	if err != nil {
		return nil, fmt.Errorf("%w side profile: %v", models.ErrInvalid, err)
	}

	metrics.SideProfilesTotal.Inc()
	return png, nil
}

// FindPath returns the shortest path between two manholes with coordinates
// in srs. Failures are logged and give an empty path.
func (s *Service) FindPath(ctx context.Context, sewerageID int64, source, target, srs string) Path {
	path, err := s.findPath(ctx, sewerageID, source, target, srs)
	if err != nil {
		log.Debugf("No path from %s to %s in sewerage %d: %v", source, target, sewerageID, err)
		return Path{Strengen: []string{}, Putten: []PathManhole{}}
	}
	return path
}

func (s *Service) findPath(ctx context.Context, sewerageID int64, source, target, srs string) (Path, error) {
	srid, err := ParseSRS(srs)
	if err != nil {
		return Path{}, err
	}

	sewers, err := s.store.Sewers(ctx, sewerageID, models.SRID)
	if err != nil {
		return Path{}, err
	}

	g := network.New(sewers)
	codes, err := g.ShortestPath(source, target)
	if err != nil {
		return Path{}, err
	}
	strengen, err := g.Sewers(codes)
	if err != nil {
		return Path{}, err
	}

	manholes, err := s.store.Manholes(ctx, sewerageID, srid)
	if err != nil {
		return Path{}, err
	}
	points := make(map[string]orb.Point, len(manholes))
	for _, m := range manholes {
		points[m.Code] = m.Geom
	}

	path := Path{Strengen: strengen, Putten: make([]PathManhole, len(codes))}
	if path.Strengen == nil {
		path.Strengen = []string{}
	}
	for i, code := range codes {
		p := points[code]
		path.Putten[i] = PathManhole{Put: code, X: p.X(), Y: p.Y()}
	}
	return path, nil
}

// FindManhole returns the manhole nearest to a point in srs within radius
// meters, nil when there is none. Without sewerages all active ones are
// searched.
func (s *Service) FindManhole(ctx context.Context, x, y, radius float64, srs string, sewerageIDs []int64) (*FoundManhole, error) {
	srid, err := ParseSRS(srs)
	if err != nil {
		return nil, err
	}
	if radius <= 0 {
		radius = DefaultSearchRadius
	}

	if len(sewerageIDs) == 0 {
		sewerages, err := s.store.Sewerages(ctx)
		if err != nil {
			return nil, err
		}
		for _, sewerage := range sewerages {
			sewerageIDs = append(sewerageIDs, sewerage.ID)
		}
		if len(sewerageIDs) == 0 {
			return nil, nil
		}
	}

	m, err := s.store.NearestManhole(ctx, orb.Point{x, y}, srid, radius, sewerageIDs)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &FoundManhole{X: m.Point.X(), Y: m.Point.Y(), Put: m.Code, SewerageID: m.SewerageID}, nil
}

// SearchManholes looks up manhole codes of a sewerage, by prefix or, when
// fuzzy, by edit distance.
func (s *Service) SearchManholes(sewerageID int64, q string, fuzzy bool, limit int) ([]string, error) {
	if s.index == nil {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 10
	}

	if !fuzzy {
		codes, err := s.index.Prefix(sewerageID, q, limit)
		if err != nil {
			return nil, err
		}
		if codes == nil {
			codes = []string{}
		}
		return codes, nil
	}

	matches, err := s.index.Fuzzy(sewerageID, q, 2, limit)
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(matches))
	for i, m := range matches {
		codes[i] = m.Code
	}
	return codes, nil
}
