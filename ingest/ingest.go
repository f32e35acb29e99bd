package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/andrejsstepanovs/docqa/db"
	"github.com/andrejsstepanovs/docqa/extract"
	"github.com/andrejsstepanovs/docqa/file"
	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
	"github.com/andrejsstepanovs/docqa/splitter"
)

const embedBatchSize = 32

var (
	ErrValidation      = errors.New("invalid input")
	ErrUnsupportedType = errors.New("unsupported file type")
)

type Embedder interface {
	Embeddings(ctx context.Context, texts []string) ([]models.Embedding, error)
}

// ImageReader OCRs an image and returns its cleaned text.
type ImageReader interface {
	Text(path, name string) (string, error)
}

// Transcriber fetches a video transcript and stores it as a text file.
type Transcriber interface {
	TranscriptPath(name string) string
	Transcribe(ctx context.Context, videoURL, name string) (string, string, error)
}

// Dirs are the directories uploads are saved to and synced from.
type Dirs struct {
	PDF     string
	Image   string
	YouTube string
}

type Options struct {
	DB            *sql.DB
	Embedder      Embedder
	Splitter      *splitter.Splitter
	Images        ImageReader
	Transcriber   Transcriber
	ReadPDF       func(path string) (string, error)
	Dirs          Dirs
	MaxNameLength int
}

// Result describes what happened to one source file.
type Result struct {
	File    string `json:"file"`
	Index   string `json:"index"`
	Kind    string `json:"kind"`
	Chunks  int    `json:"chunks"`
	Skipped bool   `json:"skipped"`
	Reason  string `json:"reason,omitempty"`
}

// Service turns source files into indexes.
type Service struct {
	opts Options
	mu   sync.Mutex
}

func New(opts Options) *Service {
	if opts.MaxNameLength <= 0 {
		opts.MaxNameLength = 70
	}
	return &Service{opts: opts}
}

func (s *Service) dirFor(kind models.SourceKind) string {
	switch kind {
	case models.KindPDF:
		return s.opts.Dirs.PDF
	case models.KindImage:
		return s.opts.Dirs.Image
	case models.KindYouTube:
		return s.opts.Dirs.YouTube
	}
	return ""
}

// IndexFile extracts, splits and embeds one file into its own index. Files
// that already have an index, or that yield no text, are skipped.
func (s *Service) IndexFile(ctx context.Context, path string, kind models.SourceKind) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := filepath.Base(path)
	res := Result{File: name, Index: file.IndexName(path), Kind: string(kind)}

	exists, err := db.IndexExists(s.opts.DB, res.Index)
	if err != nil {
		return res, err
	}
	if exists {
		logging.Infof("Index already exists for %s. Skipping.", name)
		res.Skipped, res.Reason = true, "index already exists"
		return res, nil
	}

	logging.Infof("Processing %s: %s", kind, name)
	text, err := s.extract(path, kind)
	if err != nil {
		return res, fmt.Errorf("failed to extract %s: %w", name, err)
	}

	chunks, err := s.opts.Splitter.Split(text)
	if err != nil {
		return res, err
	}
	if len(chunks) == 0 {
		logging.Warnf("No content extracted from %s. Skipping.", name)
		res.Skipped, res.Reason = true, "no text extracted"
		return res, nil
	}

	embeddings, err := s.embed(ctx, chunks)
	if err != nil {
		return res, fmt.Errorf("failed to embed %s: %w", name, err)
	}

	docs := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		docs[i] = models.Chunk{Ordinal: i, Content: c, Source: name}
	}

	index := models.Index{Name: res.Index, Kind: kind, Source: name}
	if _, err := db.SaveIndex(s.opts.DB, index, docs, embeddings); err != nil {
		return res, fmt.Errorf("failed to save index %s: %w", res.Index, err)
	}

	res.Chunks = len(chunks)
	logging.Infof("Saved index %s with %d chunks", res.Index, res.Chunks)
	return res, nil
}

func (s *Service) extract(path string, kind models.SourceKind) (string, error) {
	switch kind {
	case models.KindPDF:
		if s.opts.ReadPDF == nil {
			return "", fmt.Errorf("%w: pdf", ErrUnsupportedType)
		}
		return s.opts.ReadPDF(path)
	case models.KindImage:
		if s.opts.Images == nil {
			return "", fmt.Errorf("%w: image (ocr disabled)", ErrUnsupportedType)
		}
		return s.opts.Images.Text(path, filepath.Base(path))
	case models.KindYouTube:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
}

func (s *Service) embed(ctx context.Context, chunks []string) ([]models.Embedding, error) {
	out := make([]models.Embedding, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))
		batch, err := s.opts.Embedder.Embeddings(ctx, chunks[start:end])
		if err != nil {
			return nil, err
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("expected %d embeddings, got %d", end-start, len(batch))
		}
		out = append(out, batch...)
	}
	return out, nil
}

// SaveUpload stores an uploaded file in the directory of its kind under a
// safe name.
func (s *Service) SaveUpload(name string, kind models.SourceKind, r io.Reader) (string, error) {
	safe := file.SafeName(name, s.opts.MaxNameLength)
	if safe == "" {
		return "", fmt.Errorf("%w: empty file name", ErrValidation)
	}
	dir := s.dirFor(kind)
	if dir == "" {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, kind)
	}
	return file.Save(dir, safe, r)
}

// ProcessUpload saves an uploaded PDF or image and indexes it.
func (s *Service) ProcessUpload(ctx context.Context, name, contentType string, r io.Reader) (Result, error) {
	kind, ok := file.KindOf(name, contentType)
	if !ok {
		return Result{File: name}, fmt.Errorf("%w: %s (%s)", ErrUnsupportedType, name, contentType)
	}

	path, err := s.SaveUpload(name, kind, r)
	if err != nil {
		return Result{File: name, Kind: string(kind)}, err
	}
	logging.Infof("Saved uploaded %s as %s", kind, filepath.Base(path))

	return s.IndexFile(ctx, path, kind)
}

// ProcessYouTube transcribes a video unless its transcript already exists and
// indexes the transcript.
func (s *Service) ProcessYouTube(ctx context.Context, videoURL string) (Result, error) {
	videoURL = strings.TrimSpace(videoURL)
	if videoURL == "" {
		return Result{}, fmt.Errorf("%w: no YouTube URL was provided", ErrValidation)
	}

	id := extract.YouTubeID(videoURL)
	if id == "" {
		return Result{}, fmt.Errorf("%w: no video id in %q", ErrValidation, videoURL)
	}
	if s.opts.Transcriber == nil {
		return Result{}, fmt.Errorf("%w: youtube transcription disabled", ErrUnsupportedType)
	}

	path := s.opts.Transcriber.TranscriptPath(id)
	if _, err := os.Stat(path); err == nil {
		logging.Infof("Transcript already exists: %s. Skipping.", filepath.Base(path))
	} else {
		if _, _, err := s.opts.Transcriber.Transcribe(ctx, videoURL, id); err != nil {
			return Result{File: filepath.Base(path), Kind: string(models.KindYouTube)}, err
		}
		logging.Infof("Transcript downloaded: %s", filepath.Base(path))
	}

	return s.IndexFile(ctx, path, models.KindYouTube)
}
