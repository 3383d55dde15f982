package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tebben/riool/models"

	log "github.com/sirupsen/logrus"
)

// SaveSewerage stores a sewerage with its manholes, sewers and measurements in
// one transaction. Sewers refer to their manholes by code. IDs are set on
// the given values.
func (s *Store) SaveSewerage(ctx context.Context, sewerage *models.Sewerage, manholes []models.Manhole, sewers []models.Sewer) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO sewerages (upload_id, name, active) VALUES ($1, $2, $3) RETURNING id`,
		sewerage.UploadID, sewerage.Name, sewerage.Active,
	).Scan(&sewerage.ID)
	if err != nil {
		return fmt.Errorf("failed to insert sewerage: %w", err)
	}

	manholeIDs := make(map[string]int64, len(manholes))
	for i := range manholes {
		m := &manholes[i]
		geom, err := marshalGeometry(m.Geom)
		if err != nil {
			return err
		}

		m.SewerageID = sewerage.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO manholes (sewerage_id, code, ground_level, geom)
			VALUES ($1, $2, $3, ST_SetSRID(ST_GeomFromWKB($4), $5))
			RETURNING id`,
			sewerage.ID, m.Code, nullable(m.GroundLevel), geom, models.SRID,
		).Scan(&m.ID)
		if err != nil {
			return fmt.Errorf("failed to insert manhole %s: %w", m.Code, err)
		}
		manholeIDs[m.Code] = m.ID
	}

	for i := range sewers {
		sw := &sewers[i]
		id1, ok1 := manholeIDs[sw.Manhole1.Code]
		id2, ok2 := manholeIDs[sw.Manhole2.Code]
		if !ok1 || !ok2 {
			return fmt.Errorf("sewer %s refers to an unknown manhole", sw.Code)
		}

		geom, err := marshalGeometry(sw.Geom)
		if err != nil {
			return err
		}

		sw.SewerageID = sewerage.ID
		err = tx.QueryRow(ctx, `
			INSERT INTO sewers (sewerage_id, code, manhole1_id, manhole2_id, bob1, bob2, diameter, length, geom)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, ST_SetSRID(ST_GeomFromWKB($9), $10))
			RETURNING id`,
			sewerage.ID, sw.Code, id1, id2, sw.Bob1, sw.Bob2, sw.Diameter, sw.Length, geom, models.SRID,
		).Scan(&sw.ID)
		if err != nil {
			return fmt.Errorf("failed to insert sewer %s: %w", sw.Code, err)
		}

		if len(sw.Measurements) == 0 {
			continue
		}

		batch := &pgx.Batch{}
		for _, m := range sw.Measurements {
			geom, err := marshalGeometry(m.Geom)
			if err != nil {
				return err
			}
			batch.Queue(`
				INSERT INTO measurements (sewer_id, sufid, dist, bob, obb, water_level, geom)
				VALUES ($1, $2, $3, $4, $5, $6, ST_SetSRID(ST_GeomFromWKB($7), $8))`,
				sw.ID, m.SufID, m.Dist, m.Bob, m.Obb, nullable(m.WaterLevel), geom, models.SRID)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to insert measurements of sewer %s: %w", sw.Code, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit sewerage: %w", err)
	}

	log.Infof("Stored sewerage %s: %d manholes, %d sewers", sewerage.Name, len(manholes), len(sewers))
	return nil
}

// Sewerages returns the active sewerages ordered by name.
func (s *Store) Sewerages(ctx context.Context) ([]models.Sewerage, error) {
	pool, err := s.pool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT id, upload_id, name, active FROM sewerages
		WHERE active
		ORDER BY name, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sewerages := []models.Sewerage{}
	for rows.Next() {
		var sw models.Sewerage
		if err := rows.Scan(&sw.ID, &sw.UploadID, &sw.Name, &sw.Active); err != nil {
			return nil, err
		}
		sewerages = append(sewerages, sw)
	}
	return sewerages, rows.Err()
}

func (s *Store) SewerageByUpload(ctx context.Context, uploadID int64) (models.Sewerage, error) {
	pool, err := s.pool()
	if err != nil {
		return models.Sewerage{}, err
	}

	var sw models.Sewerage
	err = pool.QueryRow(ctx, `
		SELECT id, upload_id, name, active FROM sewerages WHERE upload_id = $1`, uploadID,
	).Scan(&sw.ID, &sw.UploadID, &sw.Name, &sw.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Sewerage{}, models.ErrNotFound
	}
	return sw, err
}

// Manholes returns the manholes of a sewerage with geometries in srid.
func (s *Store) Manholes(ctx context.Context, sewerageID int64, srid int) ([]models.Manhole, error) {
	pool, err := s.pool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT id, code, ground_level, ST_AsBinary(ST_Transform(geom, $2::int))
		FROM manholes
		WHERE sewerage_id = $1
		ORDER BY code`, sewerageID, srid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	manholes := []models.Manhole{}
	for rows.Next() {
		m := models.Manhole{SewerageID: sewerageID}
		var groundLevel *float64
		var geom []byte
		if err := rows.Scan(&m.ID, &m.Code, &groundLevel, &geom); err != nil {
			return nil, err
		}
		m.GroundLevel = orNaN(groundLevel)
		if m.Geom, err = unmarshalPoint(geom); err != nil {
			return nil, err
		}
		manholes = append(manholes, m)
	}
	return manholes, rows.Err()
}

// Sewers returns the sewers of a sewerage with their manholes and
// measurements, geometries in srid. Measurements are ordered by distance.
func (s *Store) Sewers(ctx context.Context, sewerageID int64, srid int) ([]models.Sewer, error) {
	manholes, err := s.Manholes(ctx, sewerageID, srid)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Manhole, len(manholes))
	for _, m := range manholes {
		byID[m.ID] = m
	}

	pool, err := s.pool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT id, code, manhole1_id, manhole2_id, bob1, bob2, diameter, length, ST_AsBinary(ST_Transform(geom, $2::int))
		FROM sewers
		WHERE sewerage_id = $1
		ORDER BY id`, sewerageID, srid)
	if err != nil {
		return nil, err
	}

	sewers := []models.Sewer{}
	index := make(map[int64]int)
	for rows.Next() {
		sw := models.Sewer{SewerageID: sewerageID}
		var m1, m2 int64
		var geom []byte
		if err := rows.Scan(&sw.ID, &sw.Code, &m1, &m2, &sw.Bob1, &sw.Bob2, &sw.Diameter, &sw.Length, &geom); err != nil {
			rows.Close()
			return nil, err
		}
		if sw.Geom, err = unmarshalLineString(geom); err != nil {
			rows.Close()
			return nil, err
		}
		sw.Manhole1, sw.Manhole2 = byID[m1], byID[m2]
		index[sw.ID] = len(sewers)
		sewers = append(sewers, sw)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = pool.Query(ctx, `
		SELECT m.id, m.sewer_id, m.sufid, m.dist, m.bob, m.obb, m.water_level, ST_AsBinary(ST_Transform(m.geom, $2::int))
		FROM measurements m
		JOIN sewers s ON s.id = m.sewer_id
		WHERE s.sewerage_id = $1
		ORDER BY m.sewer_id, m.dist, m.id`, sewerageID, srid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var m models.Measurement
		var sewerID int64
		var waterLevel *float64
		var geom []byte
		if err := rows.Scan(&m.ID, &sewerID, &m.SufID, &m.Dist, &m.Bob, &m.Obb, &waterLevel, &geom); err != nil {
			return nil, err
		}
		m.WaterLevel = orNaN(waterLevel)
		if m.Geom, err = unmarshalPoint(geom); err != nil {
			return nil, err
		}
		if i, ok := index[sewerID]; ok {
			sewers[i].Measurements = append(sewers[i].Measurements, m)
		}
	}

	return sewers, rows.Err()
}

// SaveWaterLevels stores the computed water level of every measurement.
func (s *Store) SaveWaterLevels(ctx context.Context, sewers []models.Sewer) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, sw := range sewers {
		for _, m := range sw.Measurements {
			batch.Queue(`UPDATE measurements SET water_level = $2 WHERE id = $1`, m.ID, nullable(m.WaterLevel))
		}
	}
	if batch.Len() == 0 {
		return nil
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store water levels: %w", err)
	}
	return nil
}
