package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cozy-creator/captcha-server/internal/detector"
	"github.com/cozy-creator/captcha-server/internal/services/captcha"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectFiles(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 40, 20))))
	good := filepath.Join(dir, "slider.png")
	require.NoError(t, os.WriteFile(good, buf.Bytes(), 0644))

	bad := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(bad, []byte("hello"), 0644))

	missing := filepath.Join(dir, "missing.png")

	svc := captcha.NewService(detector.Func(func(ctx context.Context, img image.Image) (detector.Result, error) {
		return detector.Result{Box: [4]float64{3.3, 4.4, 30.5, 18.9}, Confidence: 0.75}, nil
	}), time.Second)

	var out bytes.Buffer
	require.NoError(t, detectFiles(context.Background(), svc, []string{good, bad, missing}, &out))

	var lines []map[string]any
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var line map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &line))
		lines = append(lines, line)
	}
	require.Len(t, lines, 3)

	assert.Equal(t, good, lines[0]["file"])
	assert.Equal(t, []any{3.0, 4.0, 30.0, 18.0}, lines[0]["box"])
	assert.Equal(t, 0.75, lines[0]["confidence"])

	assert.Equal(t, "unsupported image", lines[1]["message"])

	assert.Contains(t, lines[2]["message"], "processing error: ")
	assert.Equal(t, []any{}, lines[2]["box"])
}
