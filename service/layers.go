package service

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/tebben/riool/capacity"
	"github.com/tebben/riool/database"
	"github.com/tebben/riool/models"
)

type Extent struct {
	West  float64 `json:"west"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	North float64 `json:"north"`
}

// Classes is the legend of the flood percentage layer.
func (s *Service) Classes() []capacity.Class {
	return capacity.Classes
}

func (s *Service) ManholesGeoJSON(ctx context.Context, sewerageID int64, srs string) (*geojson.FeatureCollection, error) {
	srid, err := ParseSRS(srs)
	if err != nil {
		return nil, err
	}

	manholes, err := s.store.Manholes(ctx, sewerageID, srid)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, m := range manholes {
		f := geojson.NewFeature(m.Geom)
		f.ID = m.Code
		f.Properties["code"] = m.Code
		f.Properties["sewerage_id"] = m.SewerageID
		if m.HasGroundLevel() {
			f.Properties["ground_level"] = m.GroundLevel
		}
		fc.Append(f)
	}
	return fc, nil
}

func (s *Service) SewersGeoJSON(ctx context.Context, sewerageID int64, srs string) (*geojson.FeatureCollection, error) {
	srid, err := ParseSRS(srs)
	if err != nil {
		return nil, err
	}

	sewers, err := s.store.Sewers(ctx, sewerageID, srid)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, r := range sewers {
		f := geojson.NewFeature(r.Geom)
		f.ID = r.Code
		f.Properties["code"] = r.Code
		f.Properties["sewerage_id"] = r.SewerageID
		f.Properties["manhole1"] = r.Manhole1.Code
		f.Properties["manhole2"] = r.Manhole2.Code
		f.Properties["bob1"] = r.Bob1
		f.Properties["bob2"] = r.Bob2
		f.Properties["diameter"] = r.Diameter
		f.Properties["length"] = r.Length
		fc.Append(f)
	}
	return fc, nil
}

// PercentagesGeoJSON returns the flood percentages of an upload with their
// class and colour.
func (s *Service) PercentagesGeoJSON(ctx context.Context, uploadID int64, srs string) (*geojson.FeatureCollection, error) {
	srid, err := ParseSRS(srs)
	if err != nil {
		return nil, err
	}

	nodes, err := s.store.StoredGraph(ctx, uploadID, srid)
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, n := range nodes {
		class := capacity.ClassFor(n.FloodedPercentage)
		f := geojson.NewFeature(n.XY)
		f.ID = n.SufID
		f.Properties["sufid"] = n.SufID
		f.Properties["flooded_percentage"] = n.FloodedPercentage
		f.Properties["class"] = class.Name
		f.Properties["color"] = class.Color
		fc.Append(f)
	}
	return fc, nil
}

// Extent returns the bounds of an upload in web mercator.
func (s *Service) Extent(ctx context.Context, uploadID int64) (Extent, error) {
	b, err := s.store.UploadExtent(ctx, uploadID)
	if err != nil {
		return Extent{}, err
	}
	return Extent{West: b.Min.X(), South: b.Min.Y(), East: b.Max.X(), North: b.Max.Y()}, nil
}

func (s *Service) Tile(ctx context.Context, layer string, z, x, y int, filterID int64) ([]byte, error) {
	if _, err := database.TileQuery(layer); err != nil {
		return nil, fmt.Errorf("%w: layer %s", models.ErrNotFound, layer)
	}
	if z < 0 || z > 30 || x < 0 || y < 0 || x >= 1<<z || y >= 1<<z {
		return nil, fmt.Errorf("%w tile %d/%d/%d", models.ErrInvalid, z, x, y)
	}
	return s.store.Tile(ctx, layer, z, x, y, filterID)
}
