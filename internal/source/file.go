package source

import (
	"context"
	"fmt"
	"os"
)

// FileSource reads a CSV export from disk.
type FileSource struct {
	Path string
}

func (s *FileSource) Name() string { return s.Path }

func (s *FileSource) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return "", fmt.Errorf("failed to read %q: %w", s.Path, err)
	}
	return string(data), nil
}
