package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canvas-sync/canvas-sync/internal/config"
	"github.com/canvas-sync/canvas-sync/internal/testutil"
)

// =============================================================================
// Batch file parsing
// =============================================================================

func TestReadBatchFile_PlainText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "urls.txt")
	content := `# course files
https://example.com/a.pdf

https://example.com/b.pdf
https://example.com/a.pdf/
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entries, err := readBatchFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2, "comments, blanks and duplicates are dropped")
	assert.Equal(t, "https://example.com/a.pdf", entries[0].URL)
	assert.Equal(t, "https://example.com/b.pdf", entries[1].URL)
}

func TestReadBatchFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "batch.yaml")
	content := `
- url: https://example.com/files/1/download
  path: week1/slides.pdf
  size: 2048
  mtime: 2024-02-01T10:00:00Z
- url: https://example.com/files/2/download
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	entries, err := readBatchFile(path)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "week1/slides.pdf", entries[0].Path)
	assert.Equal(t, int64(2048), entries[0].Size)
	assert.True(t, entries[0].MTime.Equal(time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC)))
	assert.Empty(t, entries[1].Path)
	assert.True(t, entries[1].MTime.IsZero())
}

func TestReadBatchFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := readBatchFile(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("# nothing\n\n"), 0o644))
	_, err = readBatchFile(empty)
	assert.Error(t, err)

	noURL := filepath.Join(dir, "bad.yml")
	require.NoError(t, os.WriteFile(noURL, []byte("- path: x.pdf\n"), 0o644))
	_, err = readBatchFile(noURL)
	assert.Error(t, err)
}

func TestResolveDest(t *testing.T) {
	out := filepath.Join(string(filepath.Separator), "data")

	tests := []struct {
		name    string
		entry   batchEntry
		want    string
		wantErr bool
	}{
		{"empty path derives name", batchEntry{URL: "u"}, out + string(filepath.Separator), false},
		{"relative path", batchEntry{URL: "u", Path: "week1/a.pdf"}, filepath.Join(out, "week1", "a.pdf"), false},
		{"inner dotdot stays inside", batchEntry{URL: "u", Path: "week1/../a.pdf"}, filepath.Join(out, "a.pdf"), false},
		{"absolute path", batchEntry{URL: "u", Path: filepath.Join(string(filepath.Separator), "tmp", "a.pdf")}, "", true},
		{"escaping path", batchEntry{URL: "u", Path: "../a.pdf"}, "", true},
		{"escaping after clean", batchEntry{URL: "u", Path: "week1/../../a.pdf"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDest(out, tt.entry)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// =============================================================================
// get end to end
// =============================================================================

func TestRunGet_DownloadsAndResumes(t *testing.T) {
	server := testutil.NewMockServer(testutil.WithFileSize(8192), testutil.WithRangeSupport(true))
	defer server.Close()

	out := t.TempDir()
	batch := filepath.Join(t.TempDir(), "batch.yaml")
	content := "- url: " + server.URLFor("files/1") + "\n  path: week1/notes.bin\n  size: 8192\n" +
		"- url: " + server.URLFor("files/lecture.bin") + "\n"
	require.NoError(t, os.WriteFile(batch, []byte(content), 0o644))

	// A staging file from an interrupted run
	staged := filepath.Join(out, "lecture.bin."+config.DefaultTmpSuffix)
	require.NoError(t, os.WriteFile(staged, testutil.Content(8192)[:1024], 0o644))

	var buf bytes.Buffer
	err := runGet(&buf, config.DefaultSettings(), getOptions{OutputDir: out, BatchFile: batch, Workers: 2})
	require.NoError(t, err)

	for _, p := range []string{filepath.Join(out, "week1", "notes.bin"), filepath.Join(out, "lecture.bin")} {
		got, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, testutil.Content(8192), got, p)
	}
	assert.Contains(t, server.RangeHeaders(), "bytes=1024-")
	assert.Contains(t, buf.String(), "done 2 completed")

	// Second run finds everything up to date
	buf.Reset()
	err = runGet(&buf, config.DefaultSettings(), getOptions{OutputDir: out, BatchFile: batch})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "0 completed, 2 up to date")
}

func TestRunGet_Dashboard(t *testing.T) {
	server := testutil.NewMockServer(testutil.WithFileSize(4096))
	defer server.Close()

	out := t.TempDir()
	err := runGet(&bytes.Buffer{}, config.DefaultSettings(), getOptions{
		OutputDir: out,
		URLs:      []string{server.URLFor("files/slides.pdf")},
		TUI:       true,
	})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(out, "slides.pdf"))
	require.NoError(t, err)
	assert.Equal(t, testutil.Content(4096), got)
}

func TestRunGet_RejectsAbsoluteBatchPath(t *testing.T) {
	out := t.TempDir()
	batch := filepath.Join(t.TempDir(), "batch.yaml")
	outside := filepath.Join(t.TempDir(), "outside.pdf")
	require.NoError(t, os.WriteFile(batch, []byte("- url: http://127.0.0.1:1/a.pdf\n  path: "+outside+"\n"), 0o644))

	err := runGet(&bytes.Buffer{}, config.DefaultSettings(), getOptions{OutputDir: out, BatchFile: batch, Quiet: true})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 downloads failed")
	_, statErr := os.Stat(outside)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunGet_ReportsFailures(t *testing.T) {
	server := testutil.NewMockServer(testutil.WithStatus(500))
	defer server.Close()

	err := runGet(&bytes.Buffer{}, config.DefaultSettings(), getOptions{
		OutputDir: t.TempDir(),
		URLs:      []string{server.URL()},
		Quiet:     true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 downloads failed")
}

func TestRunGet_LockedOutputDir(t *testing.T) {
	out := t.TempDir()
	lock, locked, err := AcquireLock(out)
	require.NoError(t, err)
	require.True(t, locked)
	defer lock.Release()

	err = runGet(&bytes.Buffer{}, config.DefaultSettings(), getOptions{OutputDir: out, URLs: []string{"http://127.0.0.1:1/x"}})
	require.Error(t, err)
	if !strings.Contains(err.Error(), "already writing") {
		t.Skip("same-process re-locking succeeded on this platform")
	}
}
