package utils

import (
	"context"
	"os"
	"path/filepath"
)

// FileBlobStore keeps blobs as plain files under Dir. Used by the CLI tools
// where a GCS bucket would be overkill.
type FileBlobStore struct {
	Dir string
}

func (s *FileBlobStore) Write(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(s.Dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (s *FileBlobStore) Read(ctx context.Context, location string) ([]byte, error) {
	return os.ReadFile(location)
}
