package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/cozy-creator/captcha-server/internal/utils/imageutil"
	"go.uber.org/zap"
)

// HTTPDetector posts the image to a remote inference service that answers
// {"box": [x1, y1, x2, y2], "confidence": c}.
type HTTPDetector struct {
	endpoint  string
	healthURL string
	client    *http.Client
	logger    *zap.Logger
}

type httpIdentifyResponse struct {
	Box        []float64 `json:"box"`
	Confidence float64   `json:"confidence"`
	Message    string    `json:"message"`
	Error      string    `json:"error"`
}

func NewHTTPDetector(endpoint string, timeout time.Duration, logger *zap.Logger) (*HTTPDetector, error) {
	u, err := url.Parse(endpoint)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid detector url %q", endpoint)
	}

	return &HTTPDetector{
		endpoint:  u.String(),
		healthURL: u.ResolveReference(&url.URL{Path: "health"}).String(),
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}, nil
}

func (d *HTTPDetector) Identify(ctx context.Context, img image.Image) (Result, error) {
	data, err := imageutil.EncodePNG(img)
	if err != nil {
		return Result{}, err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "captcha.png")
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return Result{}, fmt.Errorf("write image data: %w", err)
	}
	if err := writer.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, body)
	if err != nil {
		return Result{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrDetectorFailed, resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var out httpIdentifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("decode detector response: %w", err)
	}

	if msg := firstNonEmpty(out.Error, out.Message); msg != "" && len(out.Box) == 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrDetectorFailed, msg)
	}
	if len(out.Box) == 0 {
		return Result{}, ErrNoDetection
	}

	return resultFromSlice(out.Box, out.Confidence)
}

func (d *HTTPDetector) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.healthURL, nil)
	if err != nil {
		return err
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDetectorUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrDetectorUnavailable, resp.StatusCode)
	}

	return nil
}

func (d *HTTPDetector) Close() error {
	d.client.CloseIdleConnections()
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
