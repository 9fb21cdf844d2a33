package detector

import (
	"image"
	"image/color"
	"image/draw"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPreprocessLayout(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 6))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 255, G: 0, B: 51, A: 255}}, image.Point{}, draw.Src)

	data := preprocess(img, 4)
	require.Len(t, data, 3*4*4)

	plane := 16
	for p := 0; p < plane; p++ {
		assert.InDelta(t, 1.0, data[p], 0.01)
		assert.InDelta(t, 0.0, data[plane+p], 0.01)
		assert.InDelta(t, 0.2, data[2*plane+p], 0.01)
	}
}

func TestNewONNXDetectorMissingModel(t *testing.T) {
	_, err := NewONNXDetector(ONNXOptions{ModelPath: filepath.Join(t.TempDir(), "missing.onnx")}, zap.NewNop())
	assert.ErrorIs(t, err, ErrDetectorUnavailable)
}
