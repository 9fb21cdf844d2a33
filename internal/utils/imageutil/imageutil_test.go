package imageutil

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImage(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: 200, A: 255})
		}
	}
	return img
}

func TestDecodePNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, testImage(32, 16)))

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)

	assert.Equal(t, "png", decoded.Format)
	assert.Equal(t, "image/png", decoded.MimeType)
	assert.Equal(t, image.Rect(0, 0, 32, 16), decoded.Image.Bounds())
	assert.Equal(t, color.RGBA{R: 5, G: 7, B: 200, A: 255}, decoded.Image.RGBAAt(5, 7))
}

func TestDecodeJPEG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, testImage(20, 20), &jpeg.Options{Quality: 90}))

	decoded, err := Decode(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "jpeg", decoded.Format)
	assert.Equal(t, 20, decoded.Image.Bounds().Dx())
}

func TestDecodeRejectsGarbage(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"text":      []byte("not-an-image"),
		"truncated": {0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0},
	} {
		_, err := Decode(data)
		assert.ErrorIs(t, err, ErrUnsupportedImage, name)
	}
}

func TestEncodePNGRoundTrip(t *testing.T) {
	data, err := EncodePNG(testImage(8, 8))
	require.NoError(t, err)
	assert.Equal(t, ".png", Extension(data))

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, 8, decoded.Image.Bounds().Dy())
}
