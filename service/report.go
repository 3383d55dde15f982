package service

import (
	"context"
	"fmt"

	"github.com/tebben/riool/analysis"
	"github.com/tebben/riool/models"
)

type Report struct {
	UploadID int64                   `json:"upload_id"`
	Classes  []analysis.ClassSummary `json:"classes"`
	Worst    []analysis.SewerSummary `json:"worst_sewers"`
}

// ExportParquet writes the flood percentages of an upload to a parquet file
// and returns the number of records.
func (s *Service) ExportParquet(ctx context.Context, uploadID int64, path string) (int, error) {
	u, err := s.store.Upload(ctx, uploadID)
	if err != nil {
		return 0, err
	}
	if !u.HasComputedPercentages {
		return 0, fmt.Errorf("flood percentages of upload %d are not computed", uploadID)
	}

	nodes, err := s.store.StoredGraph(ctx, uploadID, models.SRID)
	if err != nil {
		return 0, err
	}

	records := analysis.RecordsFromNodes(nodes)
	if err := analysis.WriteParquet(path, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Report summarizes a parquet export per class and lists the most flooded
// sewers.
func (s *Service) Report(ctx context.Context, uploadID int64, path string, worst int) (Report, error) {
	if _, err := s.ExportParquet(ctx, uploadID, path); err != nil {
		return Report{}, err
	}

	classes, err := analysis.Summarize(ctx, path)
	if err != nil {
		return Report{}, err
	}

	sewers, err := analysis.WorstSewers(ctx, path, worst)
	if err != nil {
		return Report{}, err
	}

	return Report{UploadID: uploadID, Classes: classes, Worst: sewers}, nil
}
