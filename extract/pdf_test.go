package extract

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestPDF builds a minimal uncompressed PDF with one page per entry.
// An empty entry produces a page without any text.
func writeTestPDF(t *testing.T, dir, name string, pages []string) string {
	t.Helper()

	var objects []string
	pageCount := len(pages)
	fontObj := 3 + 2*pageCount

	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pageCount),
	)
	for i, text := range pages {
		content := "BT ET"
		if text != "" {
			content = fmt.Sprintf("BT /F1 12 Tf 72 720 Td (%s) Tj ET", text)
		}
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 %d 0 R >> >> /Contents %d 0 R >>", fontObj, 4+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		)
	}
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func TestPDF(t *testing.T) {
	dir := t.TempDir()
	path := writeTestPDF(t, dir, "report.pdf", []string{"Agenda 2024 des annonces", "", "Chiffre d affaires"})

	text, err := PDF(path)
	require.NoError(t, err)
	assert.Contains(t, text, "Agenda 2024 des annonces")
	assert.Contains(t, text, "Chiffre d affaires")
	assert.Less(t, bytes.Index([]byte(text), []byte("Agenda")), bytes.Index([]byte(text), []byte("Chiffre")))
	assert.NotContains(t, text, "\n\n", "pages without text are skipped")
}

func TestPDF_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := PDF(filepath.Join(dir, "missing.pdf"))
	assert.Error(t, err)

	garbage := filepath.Join(dir, "garbage.pdf")
	require.NoError(t, os.WriteFile(garbage, []byte("this is not a pdf at all"), 0o644))
	_, err = PDF(garbage)
	assert.Error(t, err)
}
