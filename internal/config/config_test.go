package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultRequestTimeout, cfg.RequestTimeout)
	assert.EqualValues(t, DefaultMaxUploadSize, cfg.MaxUploadSize)
	assert.Equal(t, DetectorHTTP, cfg.Detector.Type)
	assert.Equal(t, DefaultDetectorURL, cfg.Detector.URL)
	assert.False(t, cfg.Archive.Enabled)
	assert.False(t, filepath.IsAbs(DefaultModelPath))
	assert.True(t, filepath.IsAbs(cfg.Detector.ModelPath), "model path should be expanded")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CAPTCHA_PORT", "9001")
	t.Setenv("CAPTCHA_DETECTOR_TYPE", "tcp")
	t.Setenv("CAPTCHA_DETECTOR_ADDRESS", "10.0.0.2:7000")
	t.Setenv("CAPTCHA_DETECTOR_TIMEOUT", "3s")
	t.Setenv("CAPTCHA_ARCHIVE_ENABLED", "true")

	v := viper.New()
	ConfigureEnv(v)

	cfg, err := Load(v)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, DetectorTCP, cfg.Detector.Type)
	assert.Equal(t, "10.0.0.2:7000", cfg.Detector.Address)
	assert.Equal(t, 3*time.Second, cfg.Detector.Timeout)
	assert.True(t, cfg.Archive.Enabled)
	assert.Equal(t, "0.0.0.0:9001", cfg.Addr())
}

func TestLoadRejectsUnknownDetector(t *testing.T) {
	v := viper.New()
	v.Set("detector.type", "yolo")

	_, err := Load(v)
	assert.ErrorIs(t, err, ErrUnknownDetectorType)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			RequestTimeout: time.Second,
			Detector:       &DetectorConfig{Type: DetectorONNX, ModelPath: "m.onnx", Timeout: time.Second},
			Archive:        &ArchiveConfig{Enabled: true, FilesystemType: FilesystemS3},
		}
	}

	require.NoError(t, valid().Validate())

	cfg := valid()
	cfg.RequestTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidTimeout)

	cfg = valid()
	cfg.Detector.ModelPath = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingDetectorSetup)

	cfg = valid()
	cfg.Archive.FilesystemType = "ftp"
	assert.ErrorIs(t, cfg.Validate(), ErrUnknownFilesystem)

	cfg = valid()
	cfg.Archive.Enabled = false
	cfg.Archive.FilesystemType = "ftp"
	assert.NoError(t, cfg.Validate())
}

func TestLoadExpandsHomePaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	v := viper.New()
	v.Set("detector.model_path", "~/models/a.onnx")

	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "models/a.onnx"), cfg.Detector.ModelPath)
	assert.Equal(t, filepath.Join(home, ".captcha/archive"), cfg.Archive.Dir)
}
