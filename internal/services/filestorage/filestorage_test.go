package filestorage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cozy-creator/captcha-server/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "archive")
	storage, err := NewLocalFileStorage(dir)
	require.NoError(t, err)

	ctx := context.Background()
	file := NewFileInfo("abc123", ".png", []byte("pixels"))

	exists, err := storage.Exists(ctx, file.Filename())
	require.NoError(t, err)
	assert.False(t, exists)

	dest, err := storage.Upload(ctx, file)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "abc123.png"), dest)

	content, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(content))

	exists, err = storage.Exists(ctx, "abc123.png")
	require.NoError(t, err)
	assert.True(t, exists)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestNewFileStorage(t *testing.T) {
	cfg := &config.Config{Archive: &config.ArchiveConfig{FilesystemType: "LOCAL", Dir: t.TempDir()}}
	storage, err := NewFileStorage(cfg)
	require.NoError(t, err)
	assert.IsType(t, &LocalFileStorage{}, storage)

	cfg.Archive.FilesystemType = config.FilesystemS3
	_, err = NewFileStorage(cfg)
	assert.Error(t, err, "s3 without bucket must fail")

	cfg.Archive.FilesystemType = "ftp"
	_, err = NewFileStorage(cfg)
	assert.Error(t, err)
}

func TestS3Key(t *testing.T) {
	s := &S3FileStorage{cfg: &config.S3Config{Folder: "/captchas/"}}
	assert.Equal(t, "captchas/a.png", s.key("a.png"))

	s.cfg.Folder = ""
	assert.Equal(t, "a.png", s.key("a.png"))
}
