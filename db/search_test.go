package db

import (
	"testing"

	"github.com/andrejsstepanovs/docqa/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func results(distances ...float64) []SearchResult {
	out := make([]SearchResult, len(distances))
	for i, d := range distances {
		out[i] = SearchResult{ChunkID: int64(i + 1), Distance: d}
	}
	return out
}

func TestFilterByDistance(t *testing.T) {
	testCases := []struct {
		name     string
		results  []SearchResult
		opts     SearchOptions
		expected int
	}{
		{
			name:     "empty",
			results:  nil,
			opts:     SearchOptions{MaxDistance: 0.8, MinResults: 1, MaxResults: 5, UseAdaptive: true},
			expected: 0,
		},
		{
			name:     "simple threshold",
			results:  results(0.1, 0.2, 0.5, 0.9),
			opts:     SearchOptions{MaxDistance: 0.6, MinResults: 1, MaxResults: 10},
			expected: 3,
		},
		{
			name:     "max results caps",
			results:  results(0.1, 0.2, 0.3, 0.4),
			opts:     SearchOptions{MaxDistance: 0.6, MinResults: 1, MaxResults: 2},
			expected: 2,
		},
		{
			name:     "min results tops up",
			results:  results(0.7, 0.8, 0.9),
			opts:     SearchOptions{MaxDistance: 0.3, MinResults: 2, MaxResults: 5},
			expected: 2,
		},
		{
			name:     "min results bounded by available",
			results:  results(0.9),
			opts:     SearchOptions{MaxDistance: 0.3, MinResults: 5, MaxResults: 5},
			expected: 1,
		},
		{
			name:     "adaptive cuts at the gap",
			results:  results(0.10, 0.12, 0.14, 0.50, 0.52),
			opts:     SearchOptions{MaxDistance: 0.8, MinResults: 1, MaxResults: 10, UseAdaptive: true},
			expected: 3,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Len(t, filterByDistance(tc.results, tc.opts), tc.expected)
		})
	}
}

func TestCalculateAdaptiveThreshold(t *testing.T) {
	assert.Equal(t, 0.8, calculateAdaptiveThreshold(results(0.1), 0.8))
	assert.Equal(t, 0.8, calculateAdaptiveThreshold(results(0.10, 0.12, 0.14), 0.8), "no meaningful gap")
	assert.InDelta(t, 0.32, calculateAdaptiveThreshold(results(0.10, 0.14, 0.50), 0.8), 1e-9)
	assert.Equal(t, 0.3, calculateAdaptiveThreshold(results(0.10, 0.14, 0.90), 0.3), "gap above max keeps max")
}

func TestSearchWithThreshold(t *testing.T) {
	db := openTestDB(t)

	res, err := Search(db, []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, res, "empty store")

	_, err = SaveIndex(db,
		models.Index{Name: "index_report", Kind: models.KindPDF, Source: "report.pdf"},
		[]models.Chunk{
			{Content: "exact", Source: "report.pdf"},
			{Content: "close", Source: "report.pdf"},
			{Content: "orthogonal", Source: "report.pdf"},
		},
		[]models.Embedding{{1, 0, 0}, {0.95, 0.05, 0}, {0, 1, 0}},
	)
	require.NoError(t, err)
	saveTestIndex(t, db, "index_yb", models.Embedding{0, 0, 1})

	res, err = SearchWithThreshold(db, []float32{1, 0, 0}, SearchOptions{MaxDistance: 0.5, MinResults: 1, MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "exact", res[0].Content)
	assert.Equal(t, "index_report", res[0].Index)
	assert.Equal(t, "report.pdf", res[0].Source)
	assert.InDelta(t, 0.0, res[0].Distance, 1e-5)
	assert.Equal(t, "close", res[1].Content)

	top, err := Search(db, []float32{1, 0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "exact", top[0].Content)

	sim, err := SearchWithSimilarity(db, []float32{0, 0, 1}, 0.9, 5)
	require.NoError(t, err)
	require.Len(t, sim, 1)
	assert.Equal(t, "index_yb", sim[0].Index)
	assert.InDelta(t, 1.0, sim[0].Distance, 1e-5)

	_, err = Search(db, []float32{1, 0}, 5)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
