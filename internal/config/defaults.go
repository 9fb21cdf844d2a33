package config

import (
	"errors"
	"time"
)

const (
	DefaultHost           = "0.0.0.0"
	DefaultPort           = 8000
	DefaultEnvironment    = "dev"
	DefaultRequestTimeout = 30 * time.Second
	DefaultMaxUploadSize  = 10 << 20

	DefaultDetectorType    = DetectorHTTP
	DefaultDetectorURL     = "http://127.0.0.1:5000/identify"
	DefaultDetectorAddress = "127.0.0.1:5001"
	DefaultDetectorTimeout = 20 * time.Second
	DefaultModelPath       = "~/.captcha/models/slider.onnx"
	DefaultInputSize       = 640
	DefaultNumClasses      = 1
	DefaultConfThreshold   = 0.25

	DefaultArchiveDir     = "~/.captcha/archive"
	DefaultArchiveWorkers = 4
)

// Config file names searched when --config-file is not given.
var (
	DefaultConfigName  = "captcha"
	DefaultConfigPaths = []string{".", "~/.captcha"}
)

var (
	ErrConfigNotLoaded      = errors.New("config not loaded")
	ErrUnknownDetectorType  = errors.New("unknown detector type")
	ErrUnknownFilesystem    = errors.New("unknown filesystem type")
	ErrInvalidTimeout       = errors.New("timeout must be positive")
	ErrMissingDetectorSetup = errors.New("detector is missing its endpoint or model")
)
