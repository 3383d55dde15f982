package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/tebben/riool/codeindex"
	"github.com/tebben/riool/models"
	"github.com/tebben/riool/upload"
)

// Store persists uploads and sewerage networks.
type Store interface {
	CreateUpload(ctx context.Context, u *models.Upload) error
	Upload(ctx context.Context, id int64) (models.Upload, error)
	Uploads(ctx context.Context) ([]models.Upload, error)
	PendingCapacityUploads(ctx context.Context) ([]models.Upload, error)
	UpdateUpload(ctx context.Context, u models.Upload) error
	DeleteUpload(ctx context.Context, id int64) error
	SaveUploadErrors(ctx context.Context, uploadID int64, errs []models.UploadedFileError) error
	UploadErrors(ctx context.Context, uploadID int64) ([]models.UploadedFileError, error)

	SaveSewerage(ctx context.Context, sewerage *models.Sewerage, manholes []models.Manhole, sewers []models.Sewer) error
	Sewerages(ctx context.Context) ([]models.Sewerage, error)
	SewerageByUpload(ctx context.Context, uploadID int64) (models.Sewerage, error)
	Manholes(ctx context.Context, sewerageID int64, srid int) ([]models.Manhole, error)
	Sewers(ctx context.Context, sewerageID int64, srid int) ([]models.Sewer, error)
	SaveWaterLevels(ctx context.Context, sewers []models.Sewer) error

	SaveStoredGraph(ctx context.Context, uploadID int64, nodes []models.StoredGraphNode) error
	StoredGraph(ctx context.Context, uploadID int64, srid int) ([]models.StoredGraphNode, error)
	NearestManhole(ctx context.Context, point orb.Point, srid int, radius float64, sewerageIDs []int64) (models.NearestManhole, error)
	UploadExtent(ctx context.Context, uploadID int64) (orb.Bound, error)
	Tile(ctx context.Context, layer string, z, x, y int, filterID int64) ([]byte, error)
}

// Queue runs tasks in the background.
type Queue interface {
	ProcessUploadAsync(uploadID int64) error
	ComputeLostCapacityAsync() error
}

type Service struct {
	store     Store
	queue     Queue
	assembler *upload.Assembler
	index     *codeindex.Index
}

func New(store Store, queue Queue, assembler *upload.Assembler, index *codeindex.Index) *Service {
	return &Service{
		store:     store,
		queue:     queue,
		assembler: assembler,
		index:     index,
	}
}

// ParseSRS reads a projection like EPSG:28992, empty means RD New.
func ParseSRS(srs string) (int, error) {
	if srs == "" {
		return models.SRID, nil
	}

	authority, code, ok := strings.Cut(srs, ":")
	if !ok || !strings.EqualFold(authority, "EPSG") {
		return 0, fmt.Errorf("%w srs %q, expected EPSG:<code>", models.ErrInvalid, srs)
	}

	srid, err := strconv.Atoi(code)
	if err != nil || srid <= 0 {
		return 0, fmt.Errorf("%w srs %q, expected EPSG:<code>", models.ErrInvalid, srs)
	}
	return srid, nil
}
