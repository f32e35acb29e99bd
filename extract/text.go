package extract

import (
	"encoding/csv"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var horizontalSpace = regexp.MustCompile(`[ \t]+`)

// CleanOCRText collapses runs of spaces and tabs, trims every line and drops
// blank lines.
func CleanOCRText(text string) string {
	text = horizontalSpace.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// TableRows splits cleaned OCR text into rows of whitespace separated cells.
func TableRows(text string) [][]string {
	var rows [][]string
	for _, line := range strings.Split(text, "\n") {
		cells := strings.Fields(line)
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows
}

// WriteTable saves rows as CSV. The header row is the column numbers, as
// rows can have different widths.
func WriteTable(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create table file: %w", err)
	}
	defer f.Close()

	width := 0
	for _, r := range rows {
		width = max(width, len(r))
	}

	w := csv.NewWriter(f)
	header := make([]string, width)
	for i := range header {
		header[i] = fmt.Sprintf("%d", i)
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write table header: %w", err)
	}
	for _, r := range rows {
		padded := make([]string, width)
		copy(padded, r)
		if err := w.Write(padded); err != nil {
			return fmt.Errorf("failed to write table row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}
	return nil
}
