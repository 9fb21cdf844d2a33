// Package modelfetch downloads detector model files with resume and retry.
package modelfetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cozy-creator/captcha-server/internal/utils/hashutil"
	"github.com/cozy-creator/captcha-server/internal/utils/pathutil"
	"github.com/vbauerster/mpb/v7"
	"github.com/vbauerster/mpb/v7/decor"
	"go.uber.org/zap"
)

var (
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrEmptyFile        = errors.New("downloaded file is empty")
)

type Downloader struct {
	client         *http.Client
	logger         *zap.Logger
	progressOutput io.Writer
	maxElapsed     time.Duration
}

type OptionFunc func(d *Downloader)

func WithProgressOutput(w io.Writer) OptionFunc {
	return func(d *Downloader) {
		d.progressOutput = w
	}
}

func WithHTTPClient(client *http.Client) OptionFunc {
	return func(d *Downloader) {
		d.client = client
	}
}

func WithMaxElapsedTime(t time.Duration) OptionFunc {
	return func(d *Downloader) {
		d.maxElapsed = t
	}
}

func NewDownloader(logger *zap.Logger, options ...OptionFunc) *Downloader {
	d := &Downloader{
		client: &http.Client{
			Timeout: 0, // No total timeout
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 60 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout:   60 * time.Second,
				ResponseHeaderTimeout: 60 * time.Second,
				IdleConnTimeout:       60 * time.Second,
			},
		},
		logger:         logger,
		progressOutput: os.Stderr,
		maxElapsed:     5 * time.Minute,
	}

	for _, opt := range options {
		opt(d)
	}

	return d
}

// Download fetches url into destPath. A partial "<destPath>.tmp" left by an
// earlier attempt is resumed. When checksum is set it must equal the hex
// blake3 digest of the finished file.
func (d *Downloader) Download(ctx context.Context, url, destPath, checksum string) error {
	if err := pathutil.EnsureParentDir(destPath); err != nil {
		return err
	}

	tmpPath := destPath + ".tmp"

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = d.maxElapsed
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 30 * time.Second

	err := backoff.Retry(func() error {
		return d.downloadWithResume(ctx, url, tmpPath)
	}, backoff.WithContext(b, ctx))
	if err != nil {
		return err
	}

	if err := verifyFile(tmpPath, checksum); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to verify file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to move file: %w", err)
	}

	d.logger.Info("model downloaded", zap.String("path", destPath))
	return nil
}

func (d *Downloader) downloadWithResume(ctx context.Context, url, tmpPath string) error {
	var initialSize int64
	if info, err := os.Stat(tmpPath); err == nil {
		initialSize = info.Size()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	if initialSize > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", initialSize))
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	flag := os.O_CREATE | os.O_WRONLY
	var totalSize int64
	switch {
	case initialSize > 0 && resp.StatusCode == http.StatusPartialContent:
		flag |= os.O_APPEND
		totalSize = initialSize + resp.ContentLength
	case initialSize > 0 && resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		// the partial file is already complete
		return nil
	case resp.StatusCode == http.StatusOK:
		if initialSize > 0 {
			d.logger.Warn("Server doesn't support resume, starting download from beginning")
		}
		flag |= os.O_TRUNC
		initialSize = 0
		totalSize = resp.ContentLength
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(fmt.Errorf("download failed with status %d", resp.StatusCode))
	default:
		return fmt.Errorf("download failed with status %d", resp.StatusCode)
	}

	f, err := os.OpenFile(tmpPath, flag, 0644)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("failed to open file: %w", err))
	}
	defer f.Close()

	progress := mpb.NewWithContext(ctx,
		mpb.WithOutput(d.progressOutput),
		mpb.WithWidth(60),
		mpb.WithRefreshRate(180*time.Millisecond),
	)

	bar := progress.AddBar(totalSize,
		mpb.PrependDecorators(
			decor.Name(filepath.Base(strings.TrimSuffix(tmpPath, ".tmp")), decor.WC{W: 40, C: decor.DidentRight}),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.EwmaETA(decor.ET_STYLE_GO, 90),
			decor.Name(" ] "),
			decor.EwmaSpeed(decor.UnitKiB, "% .2f", 60),
		),
	)
	if initialSize > 0 {
		bar.SetCurrent(initialSize)
	}

	reader := bar.ProxyReader(resp.Body)
	written, copyErr := io.Copy(f, reader)
	reader.Close()

	if copyErr != nil {
		bar.Abort(false)
	} else {
		bar.SetTotal(-1, true)
	}
	progress.Wait()

	if copyErr != nil {
		return fmt.Errorf("read failed: %w", copyErr)
	}

	if totalSize > 0 && initialSize+written != totalSize {
		return fmt.Errorf("download size mismatch: expected %d, got %d", totalSize, initialSize+written)
	}

	return nil
}

func verifyFile(path, checksum string) error {
	got, size, err := hashutil.Blake3File(path)
	if err != nil {
		return err
	}
	if size == 0 {
		return ErrEmptyFile
	}

	if checksum != "" && !strings.EqualFold(got, checksum) {
		return fmt.Errorf("%w: expected %s, got %s", ErrChecksumMismatch, checksum, got)
	}

	return nil
}
