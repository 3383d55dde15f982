package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tebben/riool/models"
	"github.com/tebben/riool/settings"

	log "github.com/sirupsen/logrus"
)

const poolName = "riool"

var tables = []string{
	"stored_graph",
	"measurements",
	"sewers",
	"manholes",
	"sewerages",
	"uploaded_file_errors",
	"uploads",
}

var schemaQuery = `
CREATE EXTENSION IF NOT EXISTS postgis;

CREATE TABLE IF NOT EXISTS uploads (
    id BIGSERIAL PRIMARY KEY,
    filename TEXT NOT NULL,
    path TEXT NOT NULL,
    kind TEXT NOT NULL,
    status SMALLINT NOT NULL DEFAULT 0,
    has_computed_percentages BOOLEAN NOT NULL DEFAULT FALSE,
    uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS uploaded_file_errors (
    id BIGSERIAL PRIMARY KEY,
    upload_id BIGINT NOT NULL REFERENCES uploads (id) ON DELETE CASCADE,
    line INTEGER NOT NULL,
    message TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_uploaded_file_errors_upload ON uploaded_file_errors (upload_id, line);

CREATE TABLE IF NOT EXISTS sewerages (
    id BIGSERIAL PRIMARY KEY,
    upload_id BIGINT NOT NULL UNIQUE REFERENCES uploads (id) ON DELETE CASCADE,
    name TEXT NOT NULL,
    active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS manholes (
    id BIGSERIAL PRIMARY KEY,
    sewerage_id BIGINT NOT NULL REFERENCES sewerages (id) ON DELETE CASCADE,
    code TEXT NOT NULL,
    ground_level DOUBLE PRECISION,
    geom geometry(Point, %[1]d) NOT NULL,
    UNIQUE (sewerage_id, code)
);
CREATE INDEX IF NOT EXISTS idx_manholes_geom ON manholes USING gist (geom);

CREATE TABLE IF NOT EXISTS sewers (
    id BIGSERIAL PRIMARY KEY,
    sewerage_id BIGINT NOT NULL REFERENCES sewerages (id) ON DELETE CASCADE,
    code TEXT NOT NULL,
    manhole1_id BIGINT NOT NULL REFERENCES manholes (id) ON DELETE CASCADE,
    manhole2_id BIGINT NOT NULL REFERENCES manholes (id) ON DELETE CASCADE,
    bob1 DOUBLE PRECISION NOT NULL,
    bob2 DOUBLE PRECISION NOT NULL,
    diameter DOUBLE PRECISION NOT NULL,
    length DOUBLE PRECISION NOT NULL,
    geom geometry(LineString, %[1]d) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sewers_sewerage ON sewers (sewerage_id);
CREATE INDEX IF NOT EXISTS idx_sewers_geom ON sewers USING gist (geom);

CREATE TABLE IF NOT EXISTS measurements (
    id BIGSERIAL PRIMARY KEY,
    sewer_id BIGINT NOT NULL REFERENCES sewers (id) ON DELETE CASCADE,
    sufid TEXT NOT NULL,
    dist DOUBLE PRECISION NOT NULL,
    bob DOUBLE PRECISION NOT NULL,
    obb DOUBLE PRECISION NOT NULL,
    water_level DOUBLE PRECISION,
    geom geometry(Point, %[1]d) NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_measurements_sewer ON measurements (sewer_id, dist);

CREATE TABLE IF NOT EXISTS stored_graph (
    id BIGSERIAL PRIMARY KEY,
    upload_id BIGINT NOT NULL REFERENCES uploads (id) ON DELETE CASCADE,
    sufid TEXT NOT NULL,
    flooded_percentage DOUBLE PRECISION NOT NULL,
    geom geometry(Point, %[1]d) NOT NULL,
    UNIQUE (upload_id, sufid)
);
CREATE INDEX IF NOT EXISTS idx_stored_graph_geom ON stored_graph USING gist (geom);
`

// CreateDB creates the schema. With drop set, existing tables and their data
// are removed first.
func CreateDB(ctx context.Context, config settings.DatabaseConfig, drop bool) error {
	pool, err := GetDBPool(poolName, config)
	if err != nil {
		return err
	}

	if drop {
		log.Info("Dropping tables")
		if err := dropTables(ctx, pool); err != nil {
			return fmt.Errorf("failed to drop tables: %w", err)
		}
	}

	log.Info("Creating tables")
	if _, err := pool.Exec(ctx, fmt.Sprintf(schemaQuery, models.SRID)); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

func dropTables(ctx context.Context, pool *pgxpool.Pool) error {
	for _, table := range tables {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE;", table)); err != nil {
			return err
		}
	}
	return nil
}
