package db

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/andrejsstepanovs/docqa/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "docqa.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func saveTestIndex(t *testing.T, db *sql.DB, name string, vectors ...models.Embedding) int64 {
	t.Helper()
	chunks := make([]models.Chunk, len(vectors))
	for i := range vectors {
		chunks[i] = models.Chunk{Content: name + " chunk", Source: name + ".pdf"}
	}
	id, err := SaveIndex(db, models.Index{Name: name, Kind: models.KindPDF, Source: name + ".pdf"}, chunks, vectors)
	require.NoError(t, err)
	return id
}

func TestInitDB_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docqa.db")

	db, err := InitDB(path)
	require.NoError(t, err)
	saveTestIndex(t, db, "index_report", models.Embedding{1, 0, 0})
	require.NoError(t, db.Close())

	db, err = InitDB(path)
	require.NoError(t, err)
	defer db.Close()

	n, err := CountIndexes(db)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	dims, err := Dimensions(db)
	require.NoError(t, err)
	assert.Equal(t, 3, dims)
}

func TestEnsureVectors(t *testing.T) {
	db := openTestDB(t)

	dims, err := Dimensions(db)
	require.NoError(t, err)
	assert.Equal(t, 0, dims)

	assert.Error(t, EnsureVectors(db, 0))
	require.NoError(t, EnsureVectors(db, 4))
	require.NoError(t, EnsureVectors(db, 4))
	assert.ErrorIs(t, EnsureVectors(db, 8), ErrDimensionMismatch)
}

func TestSaveIndex(t *testing.T) {
	db := openTestDB(t)

	created := time.Date(2024, 2, 15, 10, 0, 0, 0, time.UTC)
	chunks := []models.Chunk{
		{Content: "Renault Group annual results", Source: "report.pdf"},
		{Content: "Agenda 2024 des annonces financières", Source: "report.pdf"},
	}
	vectors := []models.Embedding{{1, 0, 0, 0}, {0, 1, 0, 0}}

	id, err := SaveIndex(db, models.Index{Name: "index_report", Kind: models.KindPDF, Source: "report.pdf", CreatedAt: created}, chunks, vectors)
	require.NoError(t, err)
	assert.Positive(t, id)

	exists, err := IndexExists(db, "index_report")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = IndexExists(db, "index_other")
	require.NoError(t, err)
	assert.False(t, exists)

	indexes, err := ListIndexes(db)
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, "index_report", indexes[0].Name)
	assert.Equal(t, models.KindPDF, indexes[0].Kind)
	assert.Equal(t, "report.pdf", indexes[0].Source)
	assert.Equal(t, 2, indexes[0].Chunks)
	assert.Equal(t, created.Unix(), indexes[0].CreatedAt.Unix())

	var ordinal int
	var content string
	err = db.QueryRow("SELECT ordinal, content FROM chunks WHERE index_id = ? ORDER BY ordinal DESC LIMIT 1", id).Scan(&ordinal, &content)
	require.NoError(t, err)
	assert.Equal(t, 1, ordinal)
	assert.Equal(t, "Agenda 2024 des annonces financières", content)

	_, err = SaveIndex(db, models.Index{Name: "index_report", Kind: models.KindPDF, Source: "report.pdf"}, chunks, vectors)
	assert.Error(t, err, "index names are unique")
}

func TestSaveIndex_Invalid(t *testing.T) {
	db := openTestDB(t)
	idx := models.Index{Name: "index_x", Kind: models.KindImage, Source: "x.png"}

	testCases := []struct {
		name    string
		chunks  []models.Chunk
		vectors []models.Embedding
	}{
		{name: "no chunks"},
		{name: "count mismatch", chunks: []models.Chunk{{Content: "a"}}, vectors: []models.Embedding{{1}, {2}}},
		{name: "ragged vectors", chunks: []models.Chunk{{Content: "a"}, {Content: "b"}}, vectors: []models.Embedding{{1, 0}, {1}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := SaveIndex(db, idx, tc.chunks, tc.vectors)
			assert.Error(t, err)

			exists, err := IndexExists(db, "index_x")
			require.NoError(t, err)
			assert.False(t, exists, "failed saves leave nothing behind")
		})
	}
}

func TestDeleteIndex(t *testing.T) {
	db := openTestDB(t)
	keep := saveTestIndex(t, db, "index_keep", models.Embedding{1, 0}, models.Embedding{0, 1})
	drop := saveTestIndex(t, db, "index_drop", models.Embedding{1, 1})

	require.NoError(t, DeleteIndex(db, drop))

	indexes, err := ListIndexes(db)
	require.NoError(t, err)
	require.Len(t, indexes, 1)
	assert.Equal(t, keep, indexes[0].ID)

	var chunkCount, vectorCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&chunkCount))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM chunk_vectors").Scan(&vectorCount))
	assert.Equal(t, 2, chunkCount)
	assert.Equal(t, 2, vectorCount)
}

func TestDeleteAll(t *testing.T) {
	db := openTestDB(t)

	// Nothing stored yet, no vector table
	require.NoError(t, DeleteAll(db))

	saveTestIndex(t, db, "index_a", models.Embedding{1, 0})
	saveTestIndex(t, db, "index_b", models.Embedding{0, 1})
	_, err := AppendMessage(db, models.Message{Role: models.RoleHuman, Content: "hello"})
	require.NoError(t, err)

	require.NoError(t, DeleteAll(db))

	n, err := CountIndexes(db)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	var vectorCount int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM chunk_vectors").Scan(&vectorCount))
	assert.Equal(t, 0, vectorCount)

	messages, err := ListMessages(db)
	require.NoError(t, err)
	assert.Len(t, messages, 1, "conversation memory survives")
}

func TestMessages(t *testing.T) {
	db := openTestDB(t)

	messages, err := ListMessages(db)
	require.NoError(t, err)
	assert.Empty(t, messages)

	same := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	first, err := AppendMessage(db, models.Message{Role: models.RoleHuman, Content: "What is the revenue?", CreatedAt: same})
	require.NoError(t, err)
	assert.NotEmpty(t, first.ID)

	_, err = AppendMessage(db, models.Message{Role: models.RoleAI, Content: "46.6 billion euros", CreatedAt: same})
	require.NoError(t, err)

	messages, err = ListMessages(db)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.RoleHuman, messages[0].Role)
	assert.Equal(t, first.ID, messages[0].ID)
	assert.Equal(t, models.RoleAI, messages[1].Role)
	assert.Equal(t, "46.6 billion euros", messages[1].Content)

	_, err = AppendMessage(db, models.Message{ID: first.ID, Role: models.RoleHuman, Content: "dup"})
	assert.Error(t, err)

	require.NoError(t, ClearMessages(db))
	messages, err = ListMessages(db)
	require.NoError(t, err)
	assert.Empty(t, messages)
}
