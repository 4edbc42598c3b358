package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple filename", "file.zip", "file.zip"},
		{"filename with spaces", "  file.zip  ", "file.zip"},
		{"filename with backslash", "path\\file.zip", "file.zip"},
		{"filename with forward slash", "path/file.zip", "file.zip"},
		{"filename with colon", "file:name.zip", "file_name.zip"},
		{"filename with asterisk", "file*name.zip", "file_name.zip"},
		{"filename with question mark", "file?name.zip", "file_name.zip"},
		{"filename with quotes", "file\"name.zip", "file_name.zip"},
		{"filename with angle brackets", "file<name>.zip", "file_name_.zip"},
		{"filename with pipe", "file|name.zip", "file_name.zip"},
		{"dot only", ".", "."},
		{"multiple bad chars", "b*c?d.zip", "b_c_d.zip"},
		{"filename with extension only", ".gitignore", ".gitignore"},
		{"filename with multiple dots", "file.tar.gz", "file.tar.gz"},
		{"all spaces becomes empty after trim", "   ", ""},
		{"consecutive bad chars", "file***name.zip", "file___name.zip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizeFilename(tt.input)
			if got != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestFilenameFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"last path segment", "http://gnu.mirror.constant.com/coreutils/coreutils-8.10.tar.gz", "coreutils-8.10.tar.gz"},
		{"signature file", "http://gnu.mirror.constant.com/coreutils/coreutils-8.10.tar.gz.sig", "coreutils-8.10.tar.gz.sig"},
		{"filename query wins", "https://example.com/files/123/download?filename=notes.pdf", "notes.pdf"},
		{"file query keeps base name", "https://example.com/get?file=a%2Fb.txt", "b.txt"},
		{"escaped path", "https://example.com/dir/my%20file.txt", "my file.txt"},
		{"no path falls back", "https://example.com", "download.bin"},
		{"trailing slash", "https://example.com/dir/", "dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FilenameFromURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilenameFromURL_Invalid(t *testing.T) {
	_, err := FilenameFromURL("http://[::1")
	assert.Error(t, err)
}

func TestDetectKind(t *testing.T) {
	dir := t.TempDir()

	png := filepath.Join(dir, "image")
	pngHeader := []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D, 'I', 'H', 'D', 'R'}
	require.NoError(t, os.WriteFile(png, pngHeader, 0644))

	kind, err := DetectKind(png)
	require.NoError(t, err)
	assert.Equal(t, "image/png", kind)

	txt := filepath.Join(dir, "plain")
	require.NoError(t, os.WriteFile(txt, []byte("just text"), 0644))
	kind, err = DetectKind(txt)
	require.NoError(t, err)
	assert.Empty(t, kind)

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0644))
	kind, err = DetectKind(empty)
	require.NoError(t, err)
	assert.Empty(t, kind)

	_, err = DetectKind(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
