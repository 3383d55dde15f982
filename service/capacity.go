package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/tebben/riool/capacity"
	"github.com/tebben/riool/metrics"
	"github.com/tebben/riool/models"
	"github.com/tebben/riool/sufrib"

	log "github.com/sirupsen/logrus"
)

type SideProfileFile struct {
	UploadID  int64  `json:"upload_id" doc:"Database id of the upload"`
	Name      string `json:"name" doc:"File name"`
	Available bool   `json:"available" doc:"Flood percentages have been computed"`
}

// ComputeLostCapacity computes the water levels and flood percentages of an
// rmb upload.
func (s *Service) ComputeLostCapacity(ctx context.Context, uploadID int64) (err error) {
	defer func() {
		metrics.CapacityComputationsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
	}()

	u, err := s.store.Upload(ctx, uploadID)
	if err != nil {
		return err
	}

	sewerage, err := s.store.SewerageByUpload(ctx, uploadID)
	if err != nil {
		return fmt.Errorf("no sewerage for upload %d: %w", uploadID, err)
	}

	sewers, err := s.store.Sewers(ctx, sewerage.ID, models.SRID)
	if err != nil {
		return err
	}

	nodes := capacity.ComputeNetwork(uploadID, sewers)
	if err := s.store.SaveWaterLevels(ctx, sewers); err != nil {
		return err
	}
	if err := s.store.SaveStoredGraph(ctx, uploadID, nodes); err != nil {
		return err
	}

	u.HasComputedPercentages = true
	if err := s.store.UpdateUpload(ctx, u); err != nil {
		return err
	}

	log.Infof("Computed %d flood percentages for upload %d", len(nodes), uploadID)
	return nil
}

// ComputePending computes lost capacity for every processed rmb upload that
// has none yet.
func (s *Service) ComputePending(ctx context.Context) error {
	uploads, err := s.store.PendingCapacityUploads(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, u := range uploads {
		if err := s.ComputeLostCapacity(ctx, u.ID); err != nil {
			log.Errorf("Failed to compute lost capacity of upload %d: %v", u.ID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SideProfileFiles lists the processed rmb uploads. Computation is queued
// when flood percentages are missing for some of them.
func (s *Service) SideProfileFiles(ctx context.Context) ([]SideProfileFile, error) {
	uploads, err := s.store.Uploads(ctx)
	if err != nil {
		return nil, err
	}

	files := []SideProfileFile{}
	missing := false
	for _, u := range uploads {
		if u.Kind != sufrib.KindRMB || u.Status != models.StatusProcessed {
			continue
		}
		files = append(files, SideProfileFile{
			UploadID:  u.ID,
			Name:      u.Filename,
			Available: u.HasComputedPercentages,
		})
		missing = missing || !u.HasComputedPercentages
	}

	if missing {
		if err := s.queue.ComputeLostCapacityAsync(); err != nil {
			log.Errorf("Failed to queue lost capacity computation: %v", err)
		}
	}

	return files, nil
}
