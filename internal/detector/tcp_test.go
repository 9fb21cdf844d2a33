package detector

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net"
	"testing"
	"time"

	"github.com/cozy-creator/captcha-server/pkg/tcpclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
)

// startSidecar answers identify requests with reply and ping requests with an
// empty response.
func startSidecar(t *testing.T, reply SidecarResponse) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				for {
					frame, err := tcpclient.ReadFrame(conn)
					if err != nil {
						return
					}

					var req SidecarRequest
					if err := msgpack.Unmarshal(frame, &req); err != nil {
						return
					}

					resp := SidecarResponse{}
					if req.Op == OpIdentify {
						resp = reply
						if _, err := png.Decode(bytes.NewReader(req.Image)); err != nil {
							resp = SidecarResponse{Error: "bad image"}
						}
					}

					out, _ := msgpack.Marshal(&resp)
					if err := tcpclient.WriteFrame(conn, out); err != nil {
						return
					}
				}
			}(conn)
		}
	}()

	return ln.Addr().String()
}

func TestTCPDetectorIdentify(t *testing.T) {
	addr := startSidecar(t, SidecarResponse{Box: []float64{1.5, 2.5, 30.9, 40.1}, Confidence: 0.66})

	d, err := NewTCPDetector(addr, time.Second, 2, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	r, err := d.Identify(context.Background(), image.NewRGBA(image.Rect(0, 0, 16, 16)))
	require.NoError(t, err)
	assert.Equal(t, [4]float64{1.5, 2.5, 30.9, 40.1}, r.Box)
	assert.Equal(t, 0.66, r.Confidence)

	assert.NoError(t, d.Ping(context.Background()))
}

func TestTCPDetectorSidecarError(t *testing.T) {
	addr := startSidecar(t, SidecarResponse{Error: "model not loaded"})

	d, err := NewTCPDetector(addr, time.Second, 1, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Identify(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, ErrDetectorFailed)
	assert.ErrorContains(t, err, "model not loaded")
}

func TestTCPDetectorNoDetection(t *testing.T) {
	addr := startSidecar(t, SidecarResponse{})

	d, err := NewTCPDetector(addr, time.Second, 1, zap.NewNop())
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Identify(context.Background(), image.NewRGBA(image.Rect(0, 0, 4, 4)))
	assert.ErrorIs(t, err, ErrNoDetection)
}
