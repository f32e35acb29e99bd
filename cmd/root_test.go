package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DOCQA_MODELS_CACHE_DIR", filepath.Join(t.TempDir(), "models"))

	app := &App{}
	root := newRootCmd(app)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	app.close()
	return out.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd(&App{})
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"serve", "ingest", "youtube", "sync", "ask", "chart", "ocr", "history", "config", "find"})
}

func TestConfigInit(t *testing.T) {
	dataDir := t.TempDir()
	path := filepath.Join(t.TempDir(), "docqa.yaml")

	out, err := run(t, "config", "init", path, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration written to")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "data_dir: "+dataDir)
	assert.NotContains(t, string(data), "token:")

	_, err = run(t, "config", "init", path)
	assert.ErrorContains(t, err, "already exists")

	_, err = run(t, "config", "init", path, "--force")
	assert.NoError(t, err)
}

func TestHistoryCmd_Empty(t *testing.T) {
	dataDir := t.TempDir()

	out, err := run(t, "history", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Equal(t, "No conversation history yet.\n", out)
	assert.DirExists(t, filepath.Join(dataDir, "pdfs"))
	assert.FileExists(t, filepath.Join(dataDir, "vector_indices", "docqa.db"))
}

func TestChartCmd_RejectsUnknownChart(t *testing.T) {
	_, err := run(t, "chart", "pie", "--data-dir", t.TempDir())
	assert.Error(t, err)
}

func TestIngestCmd_Unsupported(t *testing.T) {
	dataDir := t.TempDir()
	doc := filepath.Join(t.TempDir(), "notes.docx")
	require.NoError(t, os.WriteFile(doc, []byte("doc"), 0o644))

	out, err := run(t, "ingest", doc, "--data-dir", dataDir)
	assert.ErrorContains(t, err, "1 of 1 files failed")
	assert.Contains(t, out, "unsupported file type")
}
