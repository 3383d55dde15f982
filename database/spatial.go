package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/paulmach/orb"
	"github.com/tebben/riool/capacity"
	"github.com/tebben/riool/models"
)

// SaveStoredGraph replaces the flood percentages of an upload.
func (s *Store) SaveStoredGraph(ctx context.Context, uploadID int64, nodes []models.StoredGraphNode) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM stored_graph WHERE upload_id = $1`, uploadID)
	for _, n := range nodes {
		geom, err := marshalGeometry(n.XY)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO stored_graph (upload_id, sufid, flooded_percentage, geom)
			VALUES ($1, $2, $3, ST_SetSRID(ST_GeomFromWKB($4), $5))`,
			uploadID, n.SufID, n.FloodedPercentage, geom, models.SRID)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store graph of upload %d: %w", uploadID, err)
	}

	return tx.Commit(ctx)
}

// StoredGraph returns the flood percentages of an upload, points in srid.
func (s *Store) StoredGraph(ctx context.Context, uploadID int64, srid int) ([]models.StoredGraphNode, error) {
	pool, err := s.pool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT sufid, flooded_percentage, ST_AsBinary(ST_Transform(geom, $2::int))
		FROM stored_graph
		WHERE upload_id = $1
		ORDER BY id`, uploadID, srid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	nodes := []models.StoredGraphNode{}
	for rows.Next() {
		n := models.StoredGraphNode{UploadID: uploadID}
		var geom []byte
		if err := rows.Scan(&n.SufID, &n.FloodedPercentage, &geom); err != nil {
			return nil, err
		}
		if n.XY, err = unmarshalPoint(geom); err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// NearestManhole finds the manhole closest to a point in srid, within radius
// meters, among the given sewerages.
func (s *Store) NearestManhole(ctx context.Context, point orb.Point, srid int, radius float64, sewerageIDs []int64) (models.NearestManhole, error) {
	pool, err := s.pool()
	if err != nil {
		return models.NearestManhole{}, err
	}

	var result models.NearestManhole
	var x, y float64
	err = pool.QueryRow(ctx, `
		WITH target AS (
			SELECT ST_Transform(ST_SetSRID(ST_MakePoint($1, $2), $3::int), $6::int) AS geom
		)
		SELECT m.code, s.id, ST_X(ST_Transform(m.geom, $3::int)), ST_Y(ST_Transform(m.geom, $3::int))
		FROM manholes m
		JOIN sewerages s ON s.id = m.sewerage_id
		CROSS JOIN target t
		WHERE s.id = ANY($5) AND ST_DWithin(m.geom, t.geom, $4)
		ORDER BY ST_Distance(m.geom, t.geom), m.id
		LIMIT 1`,
		point.X(), point.Y(), srid, radius, sewerageIDs, models.SRID,
	).Scan(&result.Code, &result.SewerageID, &x, &y)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.NearestManhole{}, models.ErrNotFound
	}
	if err != nil {
		return models.NearestManhole{}, err
	}

	result.Point = orb.Point{x, y}
	return result, nil
}

// UploadExtent returns the bounds of the manholes of an upload in web
// mercator.
func (s *Store) UploadExtent(ctx context.Context, uploadID int64) (orb.Bound, error) {
	pool, err := s.pool()
	if err != nil {
		return orb.Bound{}, err
	}

	var minX, minY, maxX, maxY *float64
	err = pool.QueryRow(ctx, `
		WITH extent AS (
			SELECT ST_Transform(ST_SetSRID(ST_Extent(m.geom)::geometry, $2::int), $3::int) AS geom
			FROM manholes m
			JOIN sewerages s ON s.id = m.sewerage_id
			WHERE s.upload_id = $1
		)
		SELECT ST_XMin(geom), ST_YMin(geom), ST_XMax(geom), ST_YMax(geom) FROM extent`,
		uploadID, models.SRID, models.SRIDWebMercator,
	).Scan(&minX, &minY, &maxX, &maxY)
	if err != nil {
		return orb.Bound{}, err
	}
	if minX == nil {
		return orb.Bound{}, models.ErrNotFound
	}

	return orb.Bound{Min: orb.Point{*minX, *minY}, Max: orb.Point{*maxX, *maxY}}, nil
}

const (
	LayerManholes    = "manholes"
	LayerSewers      = "sewers"
	LayerPercentages = "percentages"
)

type tileSource struct {
	columns []string
	// features selects the columns and geom, $4 filters on the sewerage (the
	// upload for percentages), 0 selects all active ones.
	features string
}

var tileSources = map[string]tileSource{
	LayerManholes: {
		columns: []string{"code", "sewerage_id", "ground_level"},
		features: `
			SELECT m.code, m.sewerage_id, m.ground_level, m.geom
			FROM manholes m
			JOIN sewerages s ON s.id = m.sewerage_id
			WHERE s.active AND ($4 = 0 OR s.id = $4)`,
	},
	LayerSewers: {
		columns: []string{"code", "sewerage_id", "diameter"},
		features: `
			SELECT r.code, r.sewerage_id, r.diameter, r.geom
			FROM sewers r
			JOIN sewerages s ON s.id = r.sewerage_id
			WHERE s.active AND ($4 = 0 OR s.id = $4)`,
	},
	LayerPercentages: {
		columns: []string{"sufid", "upload_id", "flooded_percentage", "class"},
		features: `
			SELECT g.sufid, g.upload_id, g.flooded_percentage, ` + classCase("g.flooded_percentage") + ` AS class, g.geom
			FROM stored_graph g
			JOIN sewerages s ON s.upload_id = g.upload_id
			WHERE s.active AND ($4 = 0 OR g.upload_id = $4)`,
	},
}

var tileQuery = `
WITH bounds AS (
    SELECT ST_TileEnvelope($1, $2, $3) AS geom
),
mvtgeom AS (
    SELECT ST_AsMVTGeom(ST_Transform(f.geom, 3857), bounds.geom) AS mvt_geom, %[1]s
    FROM (%[2]s) f, bounds
    WHERE f.geom && ST_Transform(bounds.geom, %[3]d)
)
SELECT ST_AsMVT(mvtgeom.*, '%[4]s', 4096, 'mvt_geom') FROM mvtgeom;
`

// classCase classifies a percentage column the way capacity.ClassFor does.
func classCase(column string) string {
	var b strings.Builder
	b.WriteString("CASE")
	for _, c := range capacity.Classes[:len(capacity.Classes)-1] {
		fmt.Fprintf(&b, " WHEN %s < %v THEN '%s'", column, c.Max, c.Name)
	}
	fmt.Fprintf(&b, " ELSE '%s' END", capacity.Classes[len(capacity.Classes)-1].Name)
	return b.String()
}

func TileQuery(layer string) (string, error) {
	source, ok := tileSources[layer]
	if !ok {
		return "", fmt.Errorf("unknown layer %s", layer)
	}

	columns := make([]string, len(source.columns))
	for i, c := range source.columns {
		columns[i] = "f." + c
	}
	return fmt.Sprintf(tileQuery, strings.Join(columns, ", "), source.features, models.SRID, layer), nil
}

// Tile renders a mapbox vector tile of a layer.
func (s *Store) Tile(ctx context.Context, layer string, z, x, y int, filterID int64) ([]byte, error) {
	query, err := TileQuery(layer)
	if err != nil {
		return nil, err
	}

	pool, err := s.pool()
	if err != nil {
		return nil, err
	}

	var tile []byte
	if err := pool.QueryRow(ctx, query, z, x, y, filterID).Scan(&tile); err != nil {
		return nil, fmt.Errorf("failed to render tile %s/%d/%d/%d: %w", layer, z, x, y, err)
	}
	return tile, nil
}
