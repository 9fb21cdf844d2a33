package filestorage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type LocalFileStorage struct {
	dir string
}

func NewLocalFileStorage(dir string) (*LocalFileStorage, error) {
	if dir == "" {
		return nil, fmt.Errorf("local storage directory is not set")
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &LocalFileStorage{dir: dir}, nil
}

// Upload writes through a temp file; the final name only ever holds a
// complete image.
func (u *LocalFileStorage) Upload(_ context.Context, file FileInfo) (string, error) {
	filedest := filepath.Join(u.dir, file.Filename())

	tmp, err := os.CreateTemp(u.dir, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(file.Content); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to save content to file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return "", err
	}

	if err := os.Rename(tmp.Name(), filedest); err != nil {
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return filedest, nil
}

func (u *LocalFileStorage) Exists(_ context.Context, filename string) (bool, error) {
	_, err := os.Stat(filepath.Join(u.dir, filename))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}
