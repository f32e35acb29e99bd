package client

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/andrejsstepanovs/docqa/models"
	"github.com/klauspost/compress/zstd"
)

type cacheEntry struct {
	ModelName   string    `json:"model_name"`
	ContentHash string    `json:"content_hash"`
	Embedding   []float32 `json:"embedding"`
	Ctime       int64     `json:"ctime"`
}

// EmbeddingCache persists zstd-compressed embeddings on disk, keyed by model
// and content hash, inside the model cache directory.
type EmbeddingCache struct {
	dir string
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewEmbeddingCache(cacheDir string) (*EmbeddingCache, error) {
	dir := filepath.Join(cacheDir, "embeddings")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create embedding cache: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, fmt.Errorf("failed to create cache encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache decoder: %w", err)
	}
	return &EmbeddingCache{dir: dir, enc: enc, dec: dec}, nil
}

func contentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// modelDir flattens "org/name" into one directory name.
func modelDir(model string) string {
	return strings.ReplaceAll(model, "/", "--")
}

func (c *EmbeddingCache) path(model, hash string) string {
	return filepath.Join(c.dir, modelDir(model), hash+".json.zst")
}

func (c *EmbeddingCache) Get(model, text string) (models.Embedding, bool) {
	hash := contentHash(text)
	compressed, err := os.ReadFile(c.path(model, hash))
	if err != nil {
		return nil, false
	}
	data, err := c.dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.ContentHash != hash || entry.ModelName != model {
		return nil, false
	}

	emb := make(models.Embedding, len(entry.Embedding))
	for i, v := range entry.Embedding {
		emb[i] = float64(v)
	}
	return emb, true
}

func (c *EmbeddingCache) Put(model, text string, emb models.Embedding) error {
	if len(emb) == 0 {
		return errors.New("refusing to cache empty embedding")
	}
	hash := contentHash(text)
	entry := cacheEntry{
		ModelName:   model,
		ContentHash: hash,
		Embedding:   emb.Float32(),
		Ctime:       time.Now().Unix(),
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	data := c.enc.EncodeAll(raw, nil)

	path := c.path(model, hash)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
