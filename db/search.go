package db

import (
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

// SearchResult is a retrieved chunk with its cosine distance to the query.
type SearchResult struct {
	ChunkID  int64
	Index    string
	Content  string
	Source   string
	Distance float64
}

// SearchOptions provides flexible search configuration
type SearchOptions struct {
	MaxDistance float64 // Maximum distance threshold (e.g., 0.7)
	MinResults  int     // Minimum number of results to return
	MaxResults  int     // Maximum number of results to return
	UseAdaptive bool    // Use adaptive threshold based on result distribution
}

// SearchWithThreshold runs a KNN query over every index and keeps the
// results under the distance threshold.
func SearchWithThreshold(db *sql.DB, embedding []float32, opts SearchOptions) ([]SearchResult, error) {
	dims, err := Dimensions(db)
	if err != nil {
		return nil, err
	}
	if dims == 0 {
		return nil, nil
	}
	if len(embedding) != dims {
		return nil, fmt.Errorf("%w: store has %d, query has %d", ErrDimensionMismatch, dims, len(embedding))
	}

	embeddingBytes, err := sqlite_vec.SerializeFloat32(embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize embedding: %w", err)
	}

	// Get a larger initial set to analyze distances
	initialLimit := opts.MaxResults * 2
	if initialLimit < 100 {
		initialLimit = 100
	}

	query := `
		WITH knn AS (
			SELECT rowid, distance
			FROM chunk_vectors
			WHERE embedding MATCH vec_f32(?)
			AND k = ?
		)
		SELECT c.id, i.name, c.content, c.source, knn.distance
		FROM knn
		JOIN chunks c ON c.id = knn.rowid
		JOIN indexes i ON i.id = c.index_id
		ORDER BY knn.distance ASC
	`

	rows, err := db.Query(query, embeddingBytes, initialLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search query: %w", err)
	}
	defer rows.Close()

	var allResults []SearchResult
	for rows.Next() {
		var result SearchResult
		err = rows.Scan(&result.ChunkID, &result.Index, &result.Content, &result.Source, &result.Distance)
		if err != nil {
			return nil, fmt.Errorf("failed to scan embedding search row: %w", err)
		}
		allResults = append(allResults, result)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over rows: %w", err)
	}

	return filterByDistance(allResults, opts), nil
}

// filterByDistance applies distance-based filtering logic
func filterByDistance(results []SearchResult, opts SearchOptions) []SearchResult {
	if len(results) == 0 {
		return results
	}

	threshold := opts.MaxDistance
	if opts.UseAdaptive {
		threshold = calculateAdaptiveThreshold(results, opts.MaxDistance)
	}

	var filtered []SearchResult
	for _, result := range results {
		if result.Distance <= threshold && len(filtered) < opts.MaxResults {
			filtered = append(filtered, result)
		}
	}

	// Top up to the minimum with the nearest chunks
	if len(filtered) < opts.MinResults {
		minCount := min(opts.MinResults, len(results), opts.MaxResults)
		return results[:minCount]
	}

	return filtered
}

// calculateAdaptiveThreshold finds a natural break in distance distribution
func calculateAdaptiveThreshold(results []SearchResult, maxThreshold float64) float64 {
	if len(results) <= 1 {
		return maxThreshold
	}

	// Look for the largest gap in distances (elbow method)
	largestGap := 0.0
	gapIndex := 0

	for i := 1; i < len(results) && i < 20; i++ {
		gap := results[i].Distance - results[i-1].Distance
		if gap > largestGap {
			largestGap = gap
			gapIndex = i
		}
	}

	if largestGap > 0.05 && gapIndex > 0 {
		adaptiveThreshold := results[gapIndex-1].Distance + (largestGap / 2)
		if adaptiveThreshold < maxThreshold {
			return adaptiveThreshold
		}
	}

	return maxThreshold
}

// Search returns the k nearest chunks without any threshold.
func Search(db *sql.DB, embedding []float32, k int) ([]SearchResult, error) {
	opts := SearchOptions{
		MaxDistance: 2.0, // cosine distance upper bound
		MinResults:  k,
		MaxResults:  k,
		UseAdaptive: false,
	}
	return SearchWithThreshold(db, embedding, opts)
}

// SearchWithSimilarity returns results scored by similarity (1 - distance).
func SearchWithSimilarity(db *sql.DB, embedding []float32, minSimilarity float64, maxResults int) ([]SearchResult, error) {
	opts := SearchOptions{
		MaxDistance: 1.0 - minSimilarity,
		MinResults:  1,
		MaxResults:  maxResults,
		UseAdaptive: true,
	}

	results, err := SearchWithThreshold(db, embedding, opts)
	if err != nil {
		return nil, err
	}

	for i := range results {
		results[i].Distance = 1.0 - results[i].Distance
	}

	return results, nil
}
