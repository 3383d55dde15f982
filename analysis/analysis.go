package analysis

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/marcboeker/go-duckdb"
	"github.com/tebben/riool/capacity"
	"github.com/tebben/riool/models"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/reader"
	"github.com/xitongsys/parquet-go/writer"

	log "github.com/sirupsen/logrus"
)

type FloodRecord struct {
	UploadID   int64   `parquet:"name=upload_id, type=INT64"`
	SufID      string  `parquet:"name=sufid, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Sewer      string  `parquet:"name=sewer, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	Percentage float64 `parquet:"name=percentage, type=DOUBLE"`
	Class      string  `parquet:"name=class, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"`
	X          float64 `parquet:"name=x, type=DOUBLE"`
	Y          float64 `parquet:"name=y, type=DOUBLE"`
}

type ClassSummary struct {
	Class          string  `json:"class"`
	Count          int64   `json:"count"`
	MeanPercentage float64 `json:"mean_percentage"`
	MaxPercentage  float64 `json:"max_percentage"`
}

type SewerSummary struct {
	Sewer         string  `json:"sewer"`
	Count         int64   `json:"count"`
	MaxPercentage float64 `json:"max_percentage"`
}

// RecordsFromNodes converts stored graph nodes, the sewer code is the part of
// the SufID before the line number.
func RecordsFromNodes(nodes []models.StoredGraphNode) []FloodRecord {
	records := make([]FloodRecord, 0, len(nodes))
	for _, n := range nodes {
		sewer := n.SufID
		if i := strings.LastIndex(sewer, ":"); i >= 0 {
			sewer = sewer[:i]
		}
		records = append(records, FloodRecord{
			UploadID:   n.UploadID,
			SufID:      n.SufID,
			Sewer:      sewer,
			Percentage: n.FloodedPercentage,
			Class:      capacity.ClassFor(n.FloodedPercentage).Name,
			X:          n.XY.X(),
			Y:          n.XY.Y(),
		})
	}
	return records
}

func WriteParquet(path string, records []FloodRecord) error {
	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer fw.Close()

	pw, err := writer.NewParquetWriter(fw, new(FloodRecord), 4)
	if err != nil {
		return fmt.Errorf("failed to create parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, r := range records {
		if err := pw.Write(r); err != nil {
			return fmt.Errorf("failed to write record %s: %w", r.SufID, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		return fmt.Errorf("failed to finish parquet file: %w", err)
	}

	log.Infof("Wrote %d flood records to %s", len(records), path)
	return nil
}

func ReadParquet(path string) ([]FloodRecord, error) {
	fr, err := local.NewLocalFileReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer fr.Close()

	pr, err := reader.NewParquetReader(fr, new(FloodRecord), 4)
	if err != nil {
		return nil, fmt.Errorf("failed to create parquet reader: %w", err)
	}
	defer pr.ReadStop()

	records := make([]FloodRecord, pr.GetNumRows())
	if err := pr.Read(&records); err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	return records, nil
}

// Summarize counts the flood records of a parquet file per class.
func Summarize(ctx context.Context, path string) ([]ClassSummary, error) {
	db, err := getDuckDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, fileQuery(ClassSummaryQuery, path))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", path, err)
	}
	defer rows.Close()

	summaries := []ClassSummary{}
	for rows.Next() {
		var s ClassSummary
		if err := rows.Scan(&s.Class, &s.Count, &s.MeanPercentage, &s.MaxPercentage); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// WorstSewers returns the sewers with the highest flooded percentage.
func WorstSewers(ctx context.Context, path string, limit int) ([]SewerSummary, error) {
	db, err := getDuckDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()

	query := strings.ReplaceAll(fileQuery(SewerSummaryQuery, path), "%LIMIT%", strconv.Itoa(limit))
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", path, err)
	}
	defer rows.Close()

	summaries := []SewerSummary{}
	for rows.Next() {
		var s SewerSummary
		if err := rows.Scan(&s.Sewer, &s.Count, &s.MaxPercentage); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

func fileQuery(query, path string) string {
	return strings.ReplaceAll(query, "%FILE%", strings.ReplaceAll(path, "'", "''"))
}

func getDuckDB() (*sql.DB, error) {
	return sql.Open("duckdb", "")
}
