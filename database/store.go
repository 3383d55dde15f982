package database

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/tebben/riool/models"
	"github.com/tebben/riool/settings"
)

// Store keeps uploads and sewerage networks in PostGIS.
type Store struct {
	config settings.DatabaseConfig
}

func NewStore(config settings.DatabaseConfig) *Store {
	return &Store{config: config}
}

func (s *Store) pool() (*pgxpool.Pool, error) {
	return GetDBPool(poolName, s.config)
}

// Ping checks whether the database can be reached.
func (s *Store) Ping(ctx context.Context) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}
	return pool.Ping(ctx)
}

func (s *Store) CreateUpload(ctx context.Context, u *models.Upload) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}

	err = pool.QueryRow(ctx, `
		INSERT INTO uploads (filename, path, kind, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, uploaded_at`,
		u.Filename, u.Path, u.Kind, int16(u.Status),
	).Scan(&u.ID, &u.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to insert upload: %w", err)
	}
	return nil
}

const uploadColumns = `
	u.id, u.filename, u.path, u.kind, u.status, u.has_computed_percentages, u.uploaded_at,
	(SELECT COUNT(*) FROM uploaded_file_errors e WHERE e.upload_id = u.id)`

func scanUpload(row pgx.Row) (models.Upload, error) {
	var u models.Upload
	var status int16
	err := row.Scan(&u.ID, &u.Filename, &u.Path, &u.Kind, &status, &u.HasComputedPercentages, &u.UploadedAt, &u.ErrorCount)
	u.Status = models.UploadStatus(status)
	return u, err
}

func (s *Store) Upload(ctx context.Context, id int64) (models.Upload, error) {
	pool, err := s.pool()
	if err != nil {
		return models.Upload{}, err
	}

	u, err := scanUpload(pool.QueryRow(ctx, `SELECT `+uploadColumns+` FROM uploads u WHERE u.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Upload{}, models.ErrNotFound
	}
	return u, err
}

// Uploads returns all uploads, newest first.
func (s *Store) Uploads(ctx context.Context) ([]models.Upload, error) {
	return s.queryUploads(ctx, `SELECT `+uploadColumns+` FROM uploads u ORDER BY u.uploaded_at DESC, u.id DESC`)
}

// PendingCapacityUploads returns processed rmb uploads without flood
// percentages.
func (s *Store) PendingCapacityUploads(ctx context.Context) ([]models.Upload, error) {
	return s.queryUploads(ctx, `
		SELECT `+uploadColumns+`
		FROM uploads u
		WHERE u.kind = 'rmb' AND u.status = $1 AND NOT u.has_computed_percentages
		ORDER BY u.id`, int16(models.StatusProcessed))
}

func (s *Store) queryUploads(ctx context.Context, query string, args ...any) ([]models.Upload, error) {
	pool, err := s.pool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	uploads := []models.Upload{}
	for rows.Next() {
		u, err := scanUpload(rows)
		if err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

func (s *Store) UpdateUpload(ctx context.Context, u models.Upload) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}

	tag, err := pool.Exec(ctx, `
		UPDATE uploads SET status = $2, has_computed_percentages = $3 WHERE id = $1`,
		u.ID, int16(u.Status), u.HasComputedPercentages)
	if err != nil {
		return fmt.Errorf("failed to update upload %d: %w", u.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteUpload removes an upload with its errors, sewerage and stored graph.
func (s *Store) DeleteUpload(ctx context.Context, id int64) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}

	if _, err := pool.Exec(ctx, `DELETE FROM uploads WHERE id = $1`, id); err != nil {
		return fmt.Errorf("failed to delete upload %d: %w", id, err)
	}
	return nil
}

func (s *Store) SaveUploadErrors(ctx context.Context, uploadID int64, errs []models.UploadedFileError) error {
	pool, err := s.pool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM uploaded_file_errors WHERE upload_id = $1`, uploadID)
	for _, e := range errs {
		batch.Queue(`INSERT INTO uploaded_file_errors (upload_id, line, message) VALUES ($1, $2, $3)`,
			uploadID, e.Line, e.Message)
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to store errors of upload %d: %w", uploadID, err)
	}
	return nil
}

func (s *Store) UploadErrors(ctx context.Context, uploadID int64) ([]models.UploadedFileError, error) {
	pool, err := s.pool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, `
		SELECT line, message FROM uploaded_file_errors
		WHERE upload_id = $1
		ORDER BY line, id`, uploadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	errs := []models.UploadedFileError{}
	for rows.Next() {
		e := models.UploadedFileError{UploadID: uploadID}
		if err := rows.Scan(&e.Line, &e.Message); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}

// nullable stores NaN as NULL.
func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func marshalGeometry(g orb.Geometry) ([]byte, error) {
	data, err := wkb.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to encode geometry: %w", err)
	}
	return data, nil
}

func unmarshalPoint(data []byte) (orb.Point, error) {
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return orb.Point{}, err
	}
	p, ok := g.(orb.Point)
	if !ok {
		return orb.Point{}, fmt.Errorf("expected point, got %s", g.GeoJSONType())
	}
	return p, nil
}

func unmarshalLineString(data []byte) (orb.LineString, error) {
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	ls, ok := g.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("expected linestring, got %s", g.GeoJSONType())
	}
	return ls, nil
}
