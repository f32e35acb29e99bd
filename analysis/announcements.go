package analysis

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"unicode"

	"github.com/andrejsstepanovs/docqa/file"
	"github.com/andrejsstepanovs/docqa/logging"
	"github.com/andrejsstepanovs/docqa/models"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Dates are searched in this many characters after an agenda heading.
const agendaWindow = 300

var (
	agendaPattern = regexp.MustCompile(`(?i)Agenda\s+(\d{4})\s+des annonces financieres`)
	datePattern   = regexp.MustCompile(`(?i)\b(\d{1,2})\s+(janvier|fevrier|mars|avril|mai|juin|juillet|aout|septembre|octobre|novembre|decembre)\b`)

	frenchMonths = map[string]string{
		"janvier":   "01",
		"fevrier":   "02",
		"mars":      "03",
		"avril":     "04",
		"mai":       "05",
		"juin":      "06",
		"juillet":   "07",
		"aout":      "08",
		"septembre": "09",
		"octobre":   "10",
		"novembre":  "11",
		"decembre":  "12",
	}
)

// foldAccents strips combining marks so "février" and "fevrier" match alike.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ExtractAnnouncements finds "Agenda YYYY des annonces financières" headings
// and returns the French dates listed right after them as YYYY-MM-DD.
func ExtractAnnouncements(text string) []string {
	folded := []rune(foldAccents(text))
	s := string(folded)

	var dates []string
	for _, m := range agendaPattern.FindAllStringSubmatchIndex(s, -1) {
		year := s[m[2]:m[3]]

		start := len([]rune(s[:m[1]]))
		end := min(start+agendaWindow, len(folded))
		block := string(folded[start:end])

		for _, d := range datePattern.FindAllStringSubmatch(block, -1) {
			day := d[1]
			if len(day) == 1 {
				day = "0" + day
			}
			month, ok := frenchMonths[toLowerASCII(d[2])]
			if !ok {
				continue
			}
			dates = append(dates, year+"-"+month+"-"+day)
		}
	}
	return dates
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// AnnouncementDates returns the cached dates from csvPath, or extracts them
// from every PDF in pdfDir and caches them. Unreadable PDFs are skipped.
func AnnouncementDates(pdfDir, csvPath string, readPDF func(string) (string, error)) ([]models.Announcement, error) {
	rows, err := readCSV(csvPath)
	if err == nil {
		var out []models.Announcement
		for i, row := range rows {
			if i == 0 || len(row) == 0 || row[0] == "" {
				continue
			}
			a := models.Announcement{Date: row[0]}
			if len(row) > 1 {
				a.Source = row[1]
			}
			out = append(out, a)
		}
		return out, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	pdfs, err := file.Files(pdfDir, file.PDFExtensions)
	if err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var out []models.Announcement
	for _, path := range pdfs {
		text, err := readPDF(path)
		if err != nil {
			logging.Warnf("Failed to read PDF %s: %v", path, err)
			continue
		}
		for _, d := range ExtractAnnouncements(text) {
			if seen[d] {
				continue
			}
			seen[d] = true
			out = append(out, models.Announcement{Date: d, Source: "pdf"})
		}
	}

	if len(out) == 0 {
		logging.Warnf("No announcement dates were extracted from %s", pdfDir)
		return nil, nil
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })

	csvRows := [][]string{{"date", "source"}}
	for _, a := range out {
		csvRows = append(csvRows, []string{a.Date, a.Source})
	}
	if err := writeCSV(csvPath, csvRows); err != nil {
		return nil, fmt.Errorf("failed to cache announcement dates: %w", err)
	}
	logging.Infof("%d dates saved to: %s", len(out), csvPath)
	return out, nil
}
