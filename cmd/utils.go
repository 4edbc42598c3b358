package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// batchEntry is one download requested from a batch file
type batchEntry struct {
	URL   string    `yaml:"url"`
	Path  string    `yaml:"path,omitempty"`  // relative to the output dir; empty derives the name from the URL
	Size  int64     `yaml:"size,omitempty"`  // expected bytes, 0 when unknown
	MTime time.Time `yaml:"mtime,omitempty"` // remote modification time, zero when unknown
}

// readBatchFile reads a YAML list of entries, or plain text with one URL per line
func readBatchFile(path string) ([]batchEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	var entries []batchEntry
	if isYAMLBatch(path, data) {
		if err := yaml.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse batch file: %w", err)
		}
	} else {
		scanner := bufio.NewScanner(bytes.NewReader(data))
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			// Skip empty lines and comments
			if line != "" && !strings.HasPrefix(line, "#") {
				entries = append(entries, batchEntry{URL: line})
			}
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("failed to read file: %w", err)
		}
	}

	for i, e := range entries {
		if e.URL == "" {
			return nil, fmt.Errorf("batch entry %d has no url", i+1)
		}
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no URLs found in file")
	}
	return dedupeEntries(entries), nil
}

func isYAMLBatch(path string, data []byte) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(data), []byte("- "))
}

// dedupeEntries drops repeated url/path pairs, ignoring trailing slashes on the URL
func dedupeEntries(entries []batchEntry) []batchEntry {
	seen := make(map[string]bool)
	unique := make([]batchEntry, 0, len(entries))
	for _, e := range entries {
		key := strings.TrimRight(e.URL, "/") + "\x00" + e.Path
		if !seen[key] {
			seen[key] = true
			unique = append(unique, e)
		}
	}
	return unique
}

// resolveDest returns the destination for an entry under outDir. Entry paths
// must stay inside outDir; an empty path keeps a trailing separator so the name
// is derived from the URL.
func resolveDest(outDir string, e batchEntry) (string, error) {
	if e.Path == "" {
		return outDir + string(filepath.Separator), nil
	}
	clean := filepath.Clean(e.Path)
	if filepath.IsAbs(e.Path) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the output directory", e.Path)
	}
	return filepath.Join(outDir, clean), nil
}
