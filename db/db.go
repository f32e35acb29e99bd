package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/andrejsstepanovs/docqa/models"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

var ErrDimensionMismatch = errors.New("embedding dimensions do not match the index store")

func InitDB(path string) (*sql.DB, error) {
	sqlite_vec.Auto()

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// sqlite allows a single writer; uploads and chat history share the handle.
	db.SetMaxOpenConns(1)

	tables := []struct {
		name string
		ddl  string
	}{
		{"meta", `
			CREATE TABLE IF NOT EXISTS meta (
				key TEXT PRIMARY KEY NOT NULL,
				value TEXT NOT NULL
			);`},
		{"indexes", `
			CREATE TABLE IF NOT EXISTS indexes (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				name TEXT NOT NULL UNIQUE,
				kind TEXT NOT NULL,
				source TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);`},
		{"chunks", `
			CREATE TABLE IF NOT EXISTS chunks (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				index_id INTEGER NOT NULL,
				ordinal INTEGER NOT NULL,
				content TEXT NOT NULL,
				source TEXT NOT NULL
			);`},
		{"messages", `
			CREATE TABLE IF NOT EXISTS messages (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				id TEXT NOT NULL UNIQUE,
				role TEXT NOT NULL,
				content TEXT NOT NULL,
				created_at DATETIME DEFAULT CURRENT_TIMESTAMP
			);`},
	}

	for _, t := range tables {
		if _, err := db.Exec(t.ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("error creating %s table: %w", t.name, err)
		}
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS chunks_index_id ON chunks(index_id);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error creating chunks index: %w", err)
	}

	return db, nil
}

// Dimensions returns the embedding size of the vector table, or 0 when no
// vectors were stored yet.
func Dimensions(db *sql.DB) (int, error) {
	var value string
	err := db.QueryRow("SELECT value FROM meta WHERE key = 'dimensions'").Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read dimensions: %w", err)
	}
	dims, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid stored dimensions %q: %w", value, err)
	}
	return dims, nil
}

// EnsureVectors creates the vec0 table on first use. Later calls must use the
// same dimensions.
func EnsureVectors(db *sql.DB, dimensions int) error {
	if dimensions <= 0 {
		return fmt.Errorf("invalid embedding dimensions: %d", dimensions)
	}

	current, err := Dimensions(db)
	if err != nil {
		return err
	}
	if current == dimensions {
		return nil
	}
	if current != 0 {
		return fmt.Errorf("%w: store has %d, got %d", ErrDimensionMismatch, current, dimensions)
	}

	_, err = db.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS chunk_vectors USING vec0(
			embedding float[` + strconv.Itoa(dimensions) + `] distance_metric=cosine
		);
	`)
	if err != nil {
		return fmt.Errorf("error creating chunk_vectors table: %w", err)
	}

	_, err = db.Exec("INSERT INTO meta (key, value) VALUES ('dimensions', ?)", strconv.Itoa(dimensions))
	if err != nil {
		return fmt.Errorf("failed to store dimensions: %w", err)
	}
	return nil
}

// SaveIndex stores an index with its chunks and their vectors in a single
// transaction and returns the new index id.
func SaveIndex(db *sql.DB, index models.Index, chunks []models.Chunk, embeddings []models.Embedding) (id int64, err error) {
	if len(chunks) == 0 {
		return 0, errors.New("index has no chunks")
	}
	if len(chunks) != len(embeddings) {
		return 0, fmt.Errorf("got %d chunks but %d embeddings", len(chunks), len(embeddings))
	}
	if err := EnsureVectors(db, len(embeddings[0])); err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	createdAt := index.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	result, err := tx.Exec("INSERT INTO indexes (name, kind, source, created_at) VALUES (?, ?, ?, ?)",
		index.Name, string(index.Kind), index.Source, createdAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert index %s: %w", index.Name, err)
	}

	id, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert id err: %w", err)
	}

	for i, chunk := range chunks {
		if len(embeddings[i]) != len(embeddings[0]) {
			err = fmt.Errorf("%w: chunk %d has %d", ErrDimensionMismatch, i, len(embeddings[i]))
			return 0, err
		}

		res, err := tx.Exec("INSERT INTO chunks (index_id, ordinal, content, source) VALUES (?, ?, ?, ?)",
			id, i, chunk.Content, chunk.Source)
		if err != nil {
			return 0, fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
		chunkID, err := res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("failed to get chunk id: %w", err)
		}

		embeddingBytes, err := sqlite_vec.SerializeFloat32(embeddings[i].Float32())
		if err != nil {
			return 0, fmt.Errorf("failed to serialize embedding: %w", err)
		}

		_, err = tx.Exec("INSERT INTO chunk_vectors (rowid, embedding) VALUES (?, vec_f32(?))", chunkID, embeddingBytes)
		if err != nil {
			return 0, fmt.Errorf("failed to insert into chunk_vectors: %w", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, nil
}

func IndexExists(db *sql.DB, name string) (bool, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM indexes WHERE name = ?", name).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", name, err)
	}
	return n > 0, nil
}

func CountIndexes(db *sql.DB) (int, error) {
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM indexes").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count indexes: %w", err)
	}
	return n, nil
}

// ListIndexes returns all indexes in creation order with their chunk counts.
func ListIndexes(db *sql.DB) ([]models.Index, error) {
	rows, err := db.Query(`
		SELECT i.id, i.name, i.kind, i.source, i.created_at, COUNT(c.id)
		FROM indexes i
		LEFT JOIN chunks c ON c.index_id = i.id
		GROUP BY i.id
		ORDER BY i.created_at ASC, i.id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query indexes: %w", err)
	}
	defer rows.Close()

	var indexes []models.Index
	for rows.Next() {
		var idx models.Index
		var kind string
		if err := rows.Scan(&idx.ID, &idx.Name, &kind, &idx.Source, &idx.CreatedAt, &idx.Chunks); err != nil {
			return nil, fmt.Errorf("failed to scan index row: %w", err)
		}
		idx.Kind = models.SourceKind(kind)
		indexes = append(indexes, idx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during index row iteration: %w", err)
	}

	return indexes, nil
}

// DeleteIndex removes an index with its chunks and vectors.
func DeleteIndex(db *sql.DB, indexID int64) (err error) {
	dims, err := Dimensions(db)
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if dims > 0 {
		_, err = tx.Exec("DELETE FROM chunk_vectors WHERE rowid IN (SELECT id FROM chunks WHERE index_id = ?)", indexID)
		if err != nil {
			return fmt.Errorf("failed to delete vectors for index %d: %w", indexID, err)
		}
	}

	_, err = tx.Exec("DELETE FROM chunks WHERE index_id = ?", indexID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks for index %d: %w", indexID, err)
	}

	_, err = tx.Exec("DELETE FROM indexes WHERE id = ?", indexID)
	if err != nil {
		return fmt.Errorf("failed to delete index %d: %w", indexID, err)
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// DeleteAll drops every index, chunk and vector. Conversation memory is kept.
func DeleteAll(db *sql.DB) error {
	dims, err := Dimensions(db)
	if err != nil {
		return err
	}
	if dims > 0 {
		if _, err := db.Exec("DELETE FROM chunk_vectors"); err != nil {
			return fmt.Errorf("failed to delete from chunk_vectors: %w", err)
		}
	}

	if _, err := db.Exec("DELETE FROM chunks"); err != nil {
		return fmt.Errorf("failed to delete from chunks: %w", err)
	}

	if _, err := db.Exec("DELETE FROM indexes"); err != nil {
		return fmt.Errorf("failed to delete from indexes: %w", err)
	}

	return nil
}
