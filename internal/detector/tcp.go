package detector

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/cozy-creator/captcha-server/internal/utils/imageutil"
	"github.com/cozy-creator/captcha-server/pkg/tcpclient"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

const (
	OpIdentify = "identify"
	OpPing     = "ping"
)

// SidecarRequest and SidecarResponse are the msgpack bodies exchanged with
// the recognizer sidecar, one per length-prefixed frame.
type SidecarRequest struct {
	Op    string `msgpack:"op"`
	Image []byte `msgpack:"image,omitempty"`
}

type SidecarResponse struct {
	Box        []float64 `msgpack:"box"`
	Confidence float64   `msgpack:"confidence"`
	Error      string    `msgpack:"error"`
}

type TCPDetector struct {
	client *tcpclient.TCPClient
	logger *zap.Logger
}

func NewTCPDetector(address string, timeout time.Duration, poolSize int, logger *zap.Logger) (*TCPDetector, error) {
	client, err := tcpclient.NewTCPClient(address, timeout, poolSize, tcpclient.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	return &TCPDetector{client: client, logger: logger}, nil
}

func (d *TCPDetector) Identify(ctx context.Context, img image.Image) (Result, error) {
	data, err := imageutil.EncodePNG(img)
	if err != nil {
		return Result{}, err
	}

	resp, err := d.call(ctx, SidecarRequest{Op: OpIdentify, Image: data})
	if err != nil {
		return Result{}, err
	}

	if len(resp.Box) == 0 {
		return Result{}, ErrNoDetection
	}

	return resultFromSlice(resp.Box, resp.Confidence)
}

func (d *TCPDetector) Ping(ctx context.Context) error {
	_, err := d.call(ctx, SidecarRequest{Op: OpPing})
	return err
}

func (d *TCPDetector) call(ctx context.Context, req SidecarRequest) (*SidecarResponse, error) {
	payload, err := msgpack.Marshal(&req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode sidecar request: %w", err)
	}

	raw, err := d.client.RoundTrip(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}

	var resp SidecarResponse
	if err := msgpack.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode sidecar response: %w", err)
	}

	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s", ErrDetectorFailed, resp.Error)
	}

	return &resp, nil
}

func (d *TCPDetector) Close() error {
	return d.client.Close()
}
