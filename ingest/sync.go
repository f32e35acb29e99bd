package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/andrejsstepanovs/docqa/db"
	"github.com/andrejsstepanovs/docqa/file"
	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
)

// SyncReport summarises a directory sweep.
type SyncReport struct {
	Indexed []Result `json:"indexed"`
	Skipped int      `json:"skipped"`
	Failed  []string `json:"failed"`
	Removed []string `json:"removed"`
}

// Sync indexes every source file that has no index yet and drops indexes
// whose source file is gone. Per-file failures are logged and reported; they
// do not stop the sweep. With rebuild every index is dropped first.
func (s *Service) Sync(ctx context.Context, rebuild bool) (*SyncReport, error) {
	if rebuild {
		logging.Infof("Dropping all indexes before rebuild")
		if err := db.DeleteAll(s.opts.DB); err != nil {
			return nil, fmt.Errorf("error deleting existing vector data: %w", err)
		}
	}

	report := &SyncReport{}
	sources := []struct {
		kind       models.SourceKind
		extensions []string
	}{
		{models.KindPDF, file.PDFExtensions},
		{models.KindImage, file.ImageExtensions},
		{models.KindYouTube, file.TranscriptExtensions},
	}

	for _, src := range sources {
		dir := s.dirFor(src.kind)
		files, err := file.Files(dir, src.extensions)
		if err != nil {
			return report, fmt.Errorf("error finding files: %w", err)
		}
		logging.Infof("Found %d %s files in %s", len(files), src.kind, dir)

		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return report, err
			}

			res, err := s.IndexFile(ctx, path, src.kind)
			if err != nil {
				logging.Errorf("Error processing %s: %v", filepath.Base(path), err)
				report.Failed = append(report.Failed, filepath.Base(path))
				continue
			}
			if res.Skipped {
				report.Skipped++
				continue
			}
			report.Indexed = append(report.Indexed, res)
		}
	}

	removed, err := s.pruneIndexes()
	if err != nil {
		return report, err
	}
	report.Removed = removed

	logging.Infof("Sync done: %d indexed, %d skipped, %d failed, %d removed",
		len(report.Indexed), report.Skipped, len(report.Failed), len(report.Removed))
	return report, nil
}

func (s *Service) pruneIndexes() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	indexes, err := db.ListIndexes(s.opts.DB)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, idx := range indexes {
		dir := s.dirFor(idx.Kind)
		if dir == "" {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, idx.Source)); !os.IsNotExist(err) {
			continue
		}

		logging.Infof("Removing index of deleted file: %s", idx.Source)
		if err := db.DeleteIndex(s.opts.DB, idx.ID); err != nil {
			return removed, fmt.Errorf("error deleting index %s: %w", idx.Name, err)
		}
		removed = append(removed, idx.Name)
	}
	return removed, nil
}
