package handlers

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"github.com/tebben/riool/capacity"
	"github.com/tebben/riool/models"
	"github.com/tebben/riool/service"
	"github.com/tebben/riool/upload"
)

// Service is what the handlers need from service.Service.
type Service interface {
	HandleChunk(ctx context.Context, chunk upload.Chunk) error
	Uploads(ctx context.Context) ([]service.UploadItem, error)
	UploadErrors(ctx context.Context, uploadID int64) (service.UploadErrorsPage, error)
	DeleteUpload(ctx context.Context, uploadID int64) error
	Results(ctx context.Context, uploadID int64) (string, []byte, error)
	Extent(ctx context.Context, uploadID int64) (service.Extent, error)
	PercentagesGeoJSON(ctx context.Context, uploadID int64, srs string) (*geojson.FeatureCollection, error)

	SideProfileFiles(ctx context.Context) ([]service.SideProfileFile, error)
	SideProfilePopup(sewerageID int64, putten, strengen []string, width, height string) (service.Popup, error)
	SideProfile(ctx context.Context, sewerageID int64, manholes []string, width, height int) ([]byte, error)

	Sewerages(ctx context.Context) ([]models.Sewerage, error)
	ManholesGeoJSON(ctx context.Context, sewerageID int64, srs string) (*geojson.FeatureCollection, error)
	SewersGeoJSON(ctx context.Context, sewerageID int64, srs string) (*geojson.FeatureCollection, error)
	FindManhole(ctx context.Context, x, y, radius float64, srs string, sewerageIDs []int64) (*service.FoundManhole, error)
	SearchManholes(sewerageID int64, q string, fuzzy bool, limit int) ([]string, error)
	FindPath(ctx context.Context, sewerageID int64, source, target, srs string) service.Path

	Classes() []capacity.Class
	Tile(ctx context.Context, layer string, z, x, y int, filterID int64) ([]byte, error)
}
