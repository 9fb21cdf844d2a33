package imageutil

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	"github.com/anthonynsimon/bild/clone"
	"github.com/gabriel-vasile/mimetype"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxPixels bounds the decoded buffer size so a tiny compressed file cannot
// claim a huge canvas.
const MaxPixels = 40_000_000

var ErrUnsupportedImage = errors.New("unsupported image")

type Decoded struct {
	Image    *image.RGBA
	Format   string
	MimeType string
}

// Decode turns raw upload bytes into an RGBA pixel buffer. Any failure is
// reported as ErrUnsupportedImage.
func Decode(data []byte) (*Decoded, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty upload", ErrUnsupportedImage)
	}

	mtype := mimetype.Detect(data)

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedImage, mtype.String(), err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("%w: bad dimensions %dx%d", ErrUnsupportedImage, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedImage, format, err)
	}

	return &Decoded{
		Image:    clone.AsRGBA(img),
		Format:   format,
		MimeType: mtype.String(),
	}, nil
}

func EncodePNG(img image.Image) ([]byte, error) {
	var output bytes.Buffer
	if err := png.Encode(&output, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}

	return output.Bytes(), nil
}

// Extension returns the file extension implied by the content, e.g. ".png".
func Extension(data []byte) string {
	return mimetype.Detect(data).Extension()
}
