package file

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
)

var (
	PDFExtensions        = []string{".pdf"}
	ImageExtensions      = []string{".png", ".jpg", ".jpeg", ".tiff"}
	TranscriptExtensions = []string{".txt"}
)

// Files lists the regular files directly inside dir whose extension is one of
// extensions, sorted by name. A missing directory yields no files.
func Files(dir string, extensions []string) ([]string, error) {
	// Normalize extensions to include the dot and be lowercase
	normalizedExts := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalizedExts[ext] = true
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		if !e.Type().IsRegular() {
			logging.Debugf("Skipping non-regular file %s", e.Name())
			continue
		}
		if len(normalizedExts) > 0 && !normalizedExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		files = append(files, filepath.Join(dir, e.Name()))
	}

	sort.Strings(files)
	return files, nil
}

// IndexName derives the index name of a source file:
// index_<stem, spaces replaced by underscores, lowercased>.
func IndexName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return "index_" + strings.ToLower(strings.ReplaceAll(stem, " ", "_"))
}

// SafeName strips any directory from an uploaded file name and truncates it
// to maxLen characters.
func SafeName(name string, maxLen int) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	if maxLen > 0 {
		runes := []rune(name)
		if len(runes) > maxLen {
			name = string(runes[:maxLen])
		}
	}
	return name
}

// Save writes r to dir/name and returns the path.
func Save(dir, name string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}

	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	return path, nil
}

// KindOf routes an upload on its content type, falling back to the file
// extension.
func KindOf(name, contentType string) (models.SourceKind, bool) {
	switch strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0])) {
	case "application/pdf":
		return models.KindPDF, true
	case "image/png", "image/jpg", "image/jpeg", "image/tiff":
		return models.KindImage, true
	}

	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range PDFExtensions {
		if ext == e {
			return models.KindPDF, true
		}
	}
	for _, e := range ImageExtensions {
		if ext == e {
			return models.KindImage, true
		}
	}
	return "", false
}
