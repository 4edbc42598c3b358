package utils

import (
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/h2non/filetype"
)

// FilenameFromURL derives a local file name from a download URL.
// Query parameters "filename" and "file" win over the last path segment.
func FilenameFromURL(rawurl string) (string, error) {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return "", err
	}

	var candidate string
	q := parsed.Query()
	if name := q.Get("filename"); name != "" {
		candidate = name
	} else if name := q.Get("file"); name != "" {
		candidate = name
	} else {
		candidate = path.Base(parsed.Path)
	}

	filename := sanitizeFilename(candidate)
	if filename == "" || filename == "." || filename == "/" {
		filename = "download.bin"
	}
	return filename, nil
}

func sanitizeFilename(name string) string {
	// Replace backslashes with forward slashes first so path.Base treats them as separators
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(name)
	if name == "." {
		return name
	}
	if name == "/" {
		return "_"
	}
	name = strings.TrimSpace(name)
	replacer := strings.NewReplacer(
		"/", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
	)
	return replacer.Replace(name)
}

// DetectKind sniffs the content type from the first bytes of a file.
// It returns "" when the type is not recognized.
func DetectKind(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	header := make([]byte, 262)
	n, err := io.ReadFull(f, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", err
	}

	kind, _ := filetype.Match(header[:n])
	if kind == filetype.Unknown {
		return "", nil
	}
	return kind.MIME.Value, nil
}
