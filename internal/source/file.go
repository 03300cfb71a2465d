package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"opsboard/internal/csvfeed"
)

// FileSource reads a CSV export from disk.
type FileSource struct {
	key  string
	path string
}

// NewFileSource builds a file feed.
func NewFileSource(key, path string) *FileSource {
	return &FileSource{key: key, path: path}
}

// Key implements Source.
func (s *FileSource) Key() string { return s.key }

// Location implements Source.
func (s *FileSource) Location() string { return "file:" + absPath(s.path) }

// Path is the watched file.
func (s *FileSource) Path() string { return s.path }

// Load implements Source.
func (s *FileSource) Load(ctx context.Context) (csvfeed.Feed, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	return csvfeed.Parse(string(data)), nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
