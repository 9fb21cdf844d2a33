package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cozy-creator/captcha-server/internal/utils/pathutil"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	FilesystemLocal = "local"
	FilesystemS3    = "s3"
)

const (
	DetectorHTTP = "http"
	DetectorTCP  = "tcp"
	DetectorONNX = "onnx"
)

const envPrefix = "CAPTCHA"

type Config struct {
	Port           int             `mapstructure:"port" json:"port"`
	Host           string          `mapstructure:"host" json:"host"`
	Environment    string          `mapstructure:"environment" json:"environment"`
	PublicDir      string          `mapstructure:"public_dir" json:"public_dir"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout" json:"request_timeout"`
	MaxUploadSize  int64           `mapstructure:"max_upload_size" json:"max_upload_size"`
	Detector       *DetectorConfig `mapstructure:"detector" json:"detector"`
	Archive        *ArchiveConfig  `mapstructure:"archive" json:"archive"`
	S3             *S3Config       `mapstructure:"s3" json:"s3,omitempty"`
}

type DetectorConfig struct {
	Type    string        `mapstructure:"type" json:"type"`
	URL     string        `mapstructure:"url" json:"url,omitempty"`
	Address string        `mapstructure:"address" json:"address,omitempty"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`

	// tcp
	PoolSize int `mapstructure:"pool_size" json:"pool_size,omitempty"`

	// onnx
	ModelPath     string  `mapstructure:"model_path" json:"model_path,omitempty"`
	LibraryPath   string  `mapstructure:"library_path" json:"library_path,omitempty"`
	InputSize     int     `mapstructure:"input_size" json:"input_size,omitempty"`
	NumClasses    int     `mapstructure:"num_classes" json:"num_classes,omitempty"`
	ConfThreshold float64 `mapstructure:"conf_threshold" json:"conf_threshold,omitempty"`
}

type ArchiveConfig struct {
	Enabled        bool   `mapstructure:"enabled" json:"enabled"`
	FilesystemType string `mapstructure:"filesystem_type" json:"filesystem_type"`
	Dir            string `mapstructure:"dir" json:"dir"`
	Workers        int    `mapstructure:"workers" json:"workers"`
}

type S3Config struct {
	Folder      string `mapstructure:"folder" json:"folder"`
	Region      string `mapstructure:"region_name" json:"region_name"`
	Bucket      string `mapstructure:"bucket_name" json:"bucket_name"`
	AccessKey   string `mapstructure:"access_key" json:"-"`
	SecretKey   string `mapstructure:"secret_key" json:"-"`
	PublicUrl   string `mapstructure:"public_url" json:"public_url"`
	EndpointUrl string `mapstructure:"endpoint_url" json:"endpoint_url"`
}

var config *Config

// SetDefaults registers every known key so that viper.Unmarshal also picks
// up values that only exist in the environment.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("port", DefaultPort)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("environment", DefaultEnvironment)
	v.SetDefault("public_dir", "")
	v.SetDefault("request_timeout", DefaultRequestTimeout)
	v.SetDefault("max_upload_size", DefaultMaxUploadSize)

	v.SetDefault("detector.type", DefaultDetectorType)
	v.SetDefault("detector.url", DefaultDetectorURL)
	v.SetDefault("detector.address", DefaultDetectorAddress)
	v.SetDefault("detector.timeout", DefaultDetectorTimeout)
	v.SetDefault("detector.pool_size", 4)
	v.SetDefault("detector.model_path", DefaultModelPath)
	v.SetDefault("detector.library_path", "")
	v.SetDefault("detector.input_size", DefaultInputSize)
	v.SetDefault("detector.num_classes", DefaultNumClasses)
	v.SetDefault("detector.conf_threshold", DefaultConfThreshold)

	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.filesystem_type", FilesystemLocal)
	v.SetDefault("archive.dir", DefaultArchiveDir)
	v.SetDefault("archive.workers", DefaultArchiveWorkers)

	v.SetDefault("s3.folder", "")
	v.SetDefault("s3.region_name", "")
	v.SetDefault("s3.bucket_name", "")
	v.SetDefault("s3.access_key", "")
	v.SetDefault("s3.secret_key", "")
	v.SetDefault("s3.public_url", "")
	v.SetDefault("s3.endpoint_url", "")
}

// ConfigureEnv makes CAPTCHA_DETECTOR_TYPE resolve to detector.type and
// --detector-type style flags resolve to detector_type.
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(
		`-`, `_`,
		`.`, `_`,
	))
	v.AutomaticEnv()
}

// LoadEnvAndConfigFiles loads the optional .env and YAML config files into the
// global viper instance and stores the resulting Config.
func LoadEnvAndConfigFiles() error {
	v := viper.GetViper()

	envFile, err := pathutil.ExpandPath(v.GetString("env_file"))
	if err != nil {
		return err
	}
	if envFile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envFile = ".env"
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	configFile, err := pathutil.ExpandPath(v.GetString("config_file"))
	if err != nil {
		return err
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigType("yaml")
		v.SetConfigName(DefaultConfigName)
		for _, p := range DefaultConfigPaths {
			if p, err = pathutil.ExpandPath(p); err == nil {
				v.AddConfigPath(p)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return fmt.Errorf("error reading config: %w", err)
		}
	}

	cfg, err := Load(v)
	if err != nil {
		return err
	}

	config = cfg
	return nil
}

// Load builds a Config from v. Defaults are registered first so env-only
// values are visible to Unmarshal.
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	if err := cfg.expandPaths(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout: %w", ErrInvalidTimeout)
	}

	if c.Detector == nil {
		return fmt.Errorf("detector: %w", ErrMissingDetectorSetup)
	}

	switch strings.ToLower(c.Detector.Type) {
	case DetectorHTTP:
		if c.Detector.URL == "" {
			return fmt.Errorf("detector.url: %w", ErrMissingDetectorSetup)
		}
	case DetectorTCP:
		if c.Detector.Address == "" {
			return fmt.Errorf("detector.address: %w", ErrMissingDetectorSetup)
		}
	case DetectorONNX:
		if c.Detector.ModelPath == "" {
			return fmt.Errorf("detector.model_path: %w", ErrMissingDetectorSetup)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownDetectorType, c.Detector.Type)
	}

	if c.Detector.Timeout <= 0 {
		return fmt.Errorf("detector.timeout: %w", ErrInvalidTimeout)
	}

	if c.Archive != nil && c.Archive.Enabled {
		switch strings.ToLower(c.Archive.FilesystemType) {
		case FilesystemLocal, FilesystemS3:
		default:
			return fmt.Errorf("%w: %q", ErrUnknownFilesystem, c.Archive.FilesystemType)
		}
	}

	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *Config) expandPaths() error {
	var err error
	if c.PublicDir, err = pathutil.ExpandPath(c.PublicDir); err != nil {
		return err
	}

	if c.Detector != nil {
		if c.Detector.ModelPath, err = pathutil.ExpandPath(c.Detector.ModelPath); err != nil {
			return err
		}
		if c.Detector.LibraryPath, err = pathutil.ExpandPath(c.Detector.LibraryPath); err != nil {
			return err
		}
	}

	if c.Archive != nil {
		if c.Archive.Dir, err = pathutil.ExpandPath(c.Archive.Dir); err != nil {
			return err
		}
	}

	return nil
}

func GetConfig() *Config {
	if config == nil {
		panic(ErrConfigNotLoaded)
	}

	return config
}

func IsLoaded() bool {
	return config != nil
}
