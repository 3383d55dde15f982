package analysis

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tebben/riool/models"
)

func testNodes() []models.StoredGraphNode {
	return []models.StoredGraphNode{
		{UploadID: 1, SufID: "S1:4", FloodedPercentage: 0, XY: orb.Point{1, 2}},
		{UploadID: 1, SufID: "S1:5", FloodedPercentage: 0.3, XY: orb.Point{3, 4}},
		{UploadID: 1, SufID: "S2:8", FloodedPercentage: 0.4, XY: orb.Point{5, 6}},
		{UploadID: 1, SufID: "S:2:9", FloodedPercentage: 1, XY: orb.Point{7, 8}},
	}
}

func TestRecordsFromNodes(t *testing.T) {
	records := RecordsFromNodes(testNodes())
	require.Len(t, records, 4)

	assert.Equal(t, "S1", records[0].Sewer)
	assert.Equal(t, "A", records[0].Class)
	assert.Equal(t, "C", records[1].Class)
	assert.Equal(t, "S:2", records[3].Sewer)
	assert.Equal(t, "F", records[3].Class)
	assert.Equal(t, 7.0, records[3].X)
}

func TestParquetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flood.parquet")
	require.NoError(t, WriteParquet(path, RecordsFromNodes(testNodes())))

	records, err := ReadParquet(path)
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "S2:8", records[2].SufID)
	assert.InDelta(t, 0.4, records[2].Percentage, 1e-9)
}

func TestSummarize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flood.parquet")
	require.NoError(t, WriteParquet(path, RecordsFromNodes(testNodes())))

	summaries, err := Summarize(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	assert.Equal(t, "A", summaries[0].Class)
	assert.Equal(t, int64(1), summaries[0].Count)
	assert.Equal(t, "C", summaries[1].Class)
	assert.Equal(t, int64(2), summaries[1].Count)
	assert.InDelta(t, 0.35, summaries[1].MeanPercentage, 1e-9)
	assert.InDelta(t, 0.4, summaries[1].MaxPercentage, 1e-9)
	assert.Equal(t, "F", summaries[2].Class)

	sewers, err := WorstSewers(context.Background(), path, 2)
	require.NoError(t, err)
	require.Len(t, sewers, 2)
	assert.Equal(t, "S:2", sewers[0].Sewer)
	assert.Equal(t, "S2", sewers[1].Sewer)
}
