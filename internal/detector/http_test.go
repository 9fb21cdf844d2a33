package detector

import (
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newInferenceServer(t *testing.T, identify gin.HandlerFunc) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/identify", identify)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPDetectorIdentify(t *testing.T) {
	srv := newInferenceServer(t, func(c *gin.Context) {
		header, err := c.FormFile("file")
		if !assert.NoError(t, err) {
			return
		}
		f, err := header.Open()
		if !assert.NoError(t, err) {
			return
		}
		defer f.Close()

		img, err := png.Decode(f)
		if !assert.NoError(t, err) {
			return
		}
		assert.Equal(t, image.Rect(0, 0, 40, 30), img.Bounds())

		c.JSON(http.StatusOK, gin.H{"box": []float64{10.7, 20.2, 110.9, 220.4}, "confidence": 0.87})
	})

	d, err := NewHTTPDetector(srv.URL+"/identify", time.Second, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	r, err := d.Identify(context.Background(), image.NewRGBA(image.Rect(0, 0, 40, 30)))
	require.NoError(t, err)
	assert.Equal(t, [4]float64{10.7, 20.2, 110.9, 220.4}, r.Box)
	assert.Equal(t, 0.87, r.Confidence)

	assert.NoError(t, d.Ping(context.Background()))
}

func TestHTTPDetectorErrors(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    gin.H
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, gin.H{"detail": "boom"}, ErrDetectorFailed},
		{"message", http.StatusOK, gin.H{"box": []float64{}, "confidence": 0, "message": "model crashed"}, ErrDetectorFailed},
		{"empty", http.StatusOK, gin.H{"box": []float64{}, "confidence": 0}, ErrNoDetection},
		{"short box", http.StatusOK, gin.H{"box": []float64{1, 2}, "confidence": 0.4}, ErrInvalidBox},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := newInferenceServer(t, func(c *gin.Context) {
				c.JSON(tc.status, tc.body)
			})

			d, err := NewHTTPDetector(srv.URL+"/identify", time.Second, zap.NewNop())
			require.NoError(t, err)

			_, err = d.Identify(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestHTTPDetectorUnavailable(t *testing.T) {
	srv := newInferenceServer(t, func(c *gin.Context) {})
	url := srv.URL + "/identify"
	srv.Close()

	d, err := NewHTTPDetector(url, time.Second, zap.NewNop())
	require.NoError(t, err)

	_, err = d.Identify(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, ErrDetectorUnavailable)
	assert.ErrorIs(t, d.Ping(context.Background()), ErrDetectorUnavailable)
}

func TestNewHTTPDetectorRejectsBadURL(t *testing.T) {
	_, err := NewHTTPDetector("not a url", time.Second, zap.NewNop())
	assert.Error(t, err)
}
