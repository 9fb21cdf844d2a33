// Package detector wraps the slider-gap recognizer behind a small capability
// interface. The recognizer itself (model, inference, preprocessing) lives
// elsewhere: in a remote HTTP service, a TCP sidecar, or an ONNX model file.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/cozy-creator/captcha-server/internal/config"
	"go.uber.org/zap"
)

var (
	ErrUnknownDetector     = errors.New("unknown detector type")
	ErrDetectorUnavailable = errors.New("detector unavailable")
	ErrNoDetection         = errors.New("no slider gap detected")
	ErrInvalidBox          = errors.New("detector returned an invalid box")
	ErrDetectorFailed      = errors.New("detector failed")
)

// Result is one bounding box [x1, y1, x2, y2] in pixel units of the input
// image, plus the detector's confidence.
type Result struct {
	Box        [4]float64 `json:"box" msgpack:"box"`
	Confidence float64    `json:"confidence" msgpack:"confidence"`
}

type Detector interface {
	Identify(ctx context.Context, img image.Image) (Result, error)
	Close() error
}

// Pinger is implemented by detectors that can report their own liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Func adapts a plain function to the Detector interface.
type Func func(ctx context.Context, img image.Image) (Result, error)

func (f Func) Identify(ctx context.Context, img image.Image) (Result, error) {
	return f(ctx, img)
}

func (f Func) Close() error {
	return nil
}

// IntBox truncates each coordinate toward zero.
func (r Result) IntBox() ([]int, error) {
	box := make([]int, len(r.Box))
	for i, v := range r.Box {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxInt32 {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBox, r.Box)
		}
		box[i] = int(v)
	}

	return box, nil
}

func (r Result) Validate() error {
	if math.IsNaN(r.Confidence) || math.IsInf(r.Confidence, 0) {
		return fmt.Errorf("%w: confidence %v", ErrInvalidBox, r.Confidence)
	}

	_, err := r.IntBox()
	return err
}

func resultFromSlice(box []float64, confidence float64) (Result, error) {
	if len(box) != 4 {
		return Result{}, fmt.Errorf("%w: expected 4 coordinates, got %d", ErrInvalidBox, len(box))
	}

	return Result{Box: [4]float64{box[0], box[1], box[2], box[3]}, Confidence: confidence}, nil
}

// New builds the detector named by cfg.Type.
func New(cfg *config.DetectorConfig, logger *zap.Logger) (Detector, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: missing detector config", ErrUnknownDetector)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	switch strings.ToLower(cfg.Type) {
	case config.DetectorHTTP:
		d, err := NewHTTPDetector(cfg.URL, cfg.Timeout, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.DetectorTCP:
		d, err := NewTCPDetector(cfg.Address, cfg.Timeout, cfg.PoolSize, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	case config.DetectorONNX:
		d, err := NewONNXDetector(ONNXOptions{
			ModelPath:     cfg.ModelPath,
			LibraryPath:   cfg.LibraryPath,
			InputSize:     cfg.InputSize,
			NumClasses:    cfg.NumClasses,
			ConfThreshold: cfg.ConfThreshold,
		}, logger)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDetector, cfg.Type)
	}
}
