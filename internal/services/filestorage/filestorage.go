package filestorage

import (
	"context"
	"fmt"
	"strings"

	"github.com/cozy-creator/captcha-server/internal/config"
)

type FileInfo struct {
	Name      string
	Extension string
	Content   []byte
}

func (f FileInfo) Filename() string {
	return f.Name + f.Extension
}

type FileStorage interface {
	Upload(ctx context.Context, file FileInfo) (string, error)
	Exists(ctx context.Context, filename string) (bool, error)
}

func NewFileInfo(name string, extension string, content []byte) FileInfo {
	return FileInfo{
		Name:      name,
		Extension: extension,
		Content:   content,
	}
}

func NewFileStorage(cfg *config.Config) (FileStorage, error) {
	if cfg.Archive == nil {
		return nil, fmt.Errorf("archive config is not set")
	}

	switch strings.ToLower(cfg.Archive.FilesystemType) {
	case config.FilesystemLocal:
		return NewLocalFileStorage(cfg.Archive.Dir)
	case config.FilesystemS3:
		return NewS3FileStorage(context.Background(), cfg.S3)
	}

	return nil, fmt.Errorf("invalid filesystem type %s", cfg.Archive.FilesystemType)
}
