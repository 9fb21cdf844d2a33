// Package captcha turns uploaded slider-captcha bytes into the box/confidence
// response. Every outcome, including failures, is a *types.CaptchaResponse.
package captcha

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/cozy-creator/captcha-server/internal/detector"
	"github.com/cozy-creator/captcha-server/internal/types"
	"github.com/cozy-creator/captcha-server/internal/utils/imageutil"
	"go.uber.org/zap"
)

var ErrDetectorPanic = errors.New("detector panicked")

// Archiver receives decodable uploads. It must not block.
type Archiver interface {
	Archive(data []byte)
}

type Service struct {
	detector detector.Detector
	timeout  time.Duration
	archiver Archiver
	logger   *zap.Logger
}

type OptionFunc func(s *Service)

func WithArchiver(a Archiver) OptionFunc {
	return func(s *Service) {
		s.archiver = a
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(d detector.Detector, timeout time.Duration, options ...OptionFunc) *Service {
	s := &Service{
		detector: d,
		timeout:  timeout,
		logger:   zap.NewNop(),
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// Identify decodes data, runs the detector and shapes the result.
func (s *Service) Identify(ctx context.Context, data []byte, fields ...zap.Field) *types.CaptchaResponse {
	decoded, err := imageutil.Decode(data)
	if err != nil {
		s.logger.Debug("rejected upload", append(fields, zap.Int("size", len(data)), zap.Error(err))...)
		return types.NewUnsupportedImageResponse()
	}

	if s.archiver != nil {
		s.archiver.Archive(data)
	}

	start := time.Now()
	result, err := s.identify(ctx, decoded.Image)
	if err == nil {
		err = result.Validate()
	}
	if err != nil {
		s.logger.Warn("captcha detection failed", append(fields,
			zap.String("format", decoded.Format),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err),
		)...)
		return types.NewProcessingErrorResponse(err)
	}

	box, _ := result.IntBox()
	s.logger.Info("captcha detected", append(fields,
		zap.String("format", decoded.Format),
		zap.Ints("box", box),
		zap.Float64("confidence", result.Confidence),
		zap.Duration("elapsed", time.Since(start)),
	)...)

	return types.NewBoxResponse(box, result.Confidence)
}

// identify runs the detector with the service timeout, turning a panic or an
// expired deadline into an error. A detector that ignores ctx keeps running
// in the background after the deadline; its result is dropped.
func (s *Service) identify(ctx context.Context, img image.Image) (detector.Result, error) {
	if s.detector == nil {
		return detector.Result{}, detector.ErrDetectorUnavailable
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	type outcome struct {
		result detector.Result
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", ErrDetectorPanic, r)}
			}
		}()

		result, err := s.detector.Identify(ctx, img)
		done <- outcome{result: result, err: err}
	}()

	select {
	case o := <-done:
		return o.result, o.err
	case <-ctx.Done():
		return detector.Result{}, ctx.Err()
	}
}

func (s *Service) Ping(ctx context.Context) error {
	if s.detector == nil {
		return detector.ErrDetectorUnavailable
	}

	if p, ok := s.detector.(detector.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
