package ocr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/andrejsstepanovs/docqa/extract"
	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/otiai10/gosseract/v2"
)

// Result is the OCR output of one image.
type Result struct {
	Text     string
	TextPath string
	Tables   []string
}

// Engine runs Tesseract over images and stores the cleaned text and the
// detected text blocks.
type Engine struct {
	Language string
	TextDir  string
	TableDir string
}

func New(textDir, tableDir string) *Engine {
	return &Engine{Language: "eng", TextDir: textDir, TableDir: tableDir}
}

// Extract OCRs the image at path. The cleaned text is saved to
// txt_<name>.txt and every non-empty text block to <name>_table_<i>.csv.
func (e *Engine) Extract(path, name string) (*Result, error) {
	for _, dir := range []string{e.TextDir, e.TableDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create output dir: %w", err)
		}
	}

	c := gosseract.NewClient()
	defer c.Close()

	if err := c.SetLanguage(e.Language); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}
	if err := c.SetImage(path); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	raw, err := c.Text()
	if err != nil {
		return nil, fmt.Errorf("recognize text: %w", err)
	}

	res := &Result{}
	if text := extract.CleanOCRText(raw); text != "" {
		res.TextPath = filepath.Join(e.TextDir, "txt_"+name+".txt")
		if err := os.WriteFile(res.TextPath, []byte(text), 0o644); err != nil {
			return nil, fmt.Errorf("failed to save ocr text: %w", err)
		}
		res.Text = text
	}

	blocks, err := c.GetBoundingBoxes(gosseract.RIL_BLOCK)
	if err != nil {
		logging.Warnf("Block detection failed for %s: %v", path, err)
		blocks = nil
	}

	for i, b := range blocks {
		text := extract.CleanOCRText(b.Word)
		if text == "" {
			continue
		}
		tablePath := filepath.Join(e.TableDir, fmt.Sprintf("%s_table_%d.csv", name, i+1))
		if err := extract.WriteTable(tablePath, extract.TableRows(text)); err != nil {
			return nil, err
		}
		res.Tables = append(res.Tables, tablePath)
	}

	logging.Infof("Extracted text and %d tables from %s", len(res.Tables), filepath.Base(path))
	return res, nil
}

// Text runs Extract and returns only the cleaned text.
func (e *Engine) Text(path, name string) (string, error) {
	res, err := e.Extract(path, name)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}
