package tcpclient

import (
	"context"
	"crypto/tls"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MaxFrameSize caps a single length-prefixed frame.
const MaxFrameSize = 64 << 20

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrTimeout          = errors.New("operation timed out")
	ErrFrameTooLarge    = errors.New("frame exceeds maximum size")
)

// TCPClient keeps up to poolSize connections to one address and exchanges
// length-prefixed frames over them. Connections are dialed on demand.
type TCPClient struct {
	address    string
	timeout    time.Duration
	maxRetries int
	idle       chan net.Conn
	slots      chan struct{}
	tlsConfig  *tls.Config
	logger     *zap.Logger
	mu         sync.Mutex
	closed     bool
}

type TCPClientOption func(*TCPClient)

func WithTLS(config *tls.Config) TCPClientOption {
	return func(c *TCPClient) {
		c.tlsConfig = config
	}
}

func WithLogger(logger *zap.Logger) TCPClientOption {
	return func(c *TCPClient) {
		c.logger = logger
	}
}

func WithMaxRetries(n int) TCPClientOption {
	return func(c *TCPClient) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

func NewTCPClient(address string, timeout time.Duration, poolSize int, opts ...TCPClientOption) (*TCPClient, error) {
	if address == "" {
		return nil, fmt.Errorf("tcp address is empty")
	}
	if poolSize <= 0 {
		poolSize = 1
	}

	client := &TCPClient{
		address:    address,
		timeout:    timeout,
		maxRetries: 3,
		idle:       make(chan net.Conn, poolSize),
		slots:      make(chan struct{}, poolSize),
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

func (c *TCPClient) dial(ctx context.Context) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: c.timeout}
	if c.tlsConfig != nil {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: c.tlsConfig}
		return tlsDialer.DialContext(ctx, "tcp", c.address)
	}
	return dialer.DialContext(ctx, "tcp", c.address)
}

func (c *TCPClient) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *TCPClient) getConnection(ctx context.Context) (net.Conn, error) {
	if c.isClosed() {
		return nil, ErrConnectionClosed
	}

	select {
	case conn := <-c.idle:
		return conn, nil
	default:
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	select {
	case conn := <-c.idle:
		return conn, nil
	case c.slots <- struct{}{}:
		conn, err := c.dial(ctx)
		if err != nil {
			<-c.slots
			return nil, fmt.Errorf("failed to dial %s: %w", c.address, err)
		}
		return conn, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	}
}

// releaseConnection returns a healthy connection to the pool; a broken one is
// closed and its slot freed.
func (c *TCPClient) releaseConnection(conn net.Conn, healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !healthy || c.closed {
		conn.Close()
		<-c.slots
		return
	}

	conn.SetDeadline(time.Time{})
	c.idle <- conn
}

// RoundTrip writes one frame and reads the reply frame on the same
// connection, retrying transport failures on a fresh connection.
func (c *TCPClient) RoundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	var err error
	for i := 0; i < c.maxRetries; i++ {
		var response []byte
		if response, err = c.roundTrip(ctx, payload); err == nil {
			return response, nil
		}

		if errors.Is(err, ErrConnectionClosed) || errors.Is(err, ErrFrameTooLarge) || ctx.Err() != nil {
			return nil, err
		}
		c.logger.Warn("Failed to exchange frame, retrying", zap.Error(err), zap.Int("attempt", i+1))
	}
	return nil, fmt.Errorf("failed to exchange frame after %d attempts: %w", c.maxRetries, err)
}

func (c *TCPClient) roundTrip(ctx context.Context, payload []byte) ([]byte, error) {
	conn, err := c.getConnection(ctx)
	if err != nil {
		return nil, err
	}

	deadline := time.Now().Add(c.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		c.releaseConnection(conn, false)
		return nil, fmt.Errorf("failed to set deadline: %w", err)
	}

	if err := WriteFrame(conn, payload); err != nil {
		c.releaseConnection(conn, false)
		return nil, err
	}

	response, err := ReadFrame(conn)
	if err != nil {
		c.releaseConnection(conn, false)
		return nil, err
	}

	c.releaseConnection(conn, true)
	return response, nil
}

func (c *TCPClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	for {
		select {
		case conn := <-c.idle:
			if err := conn.Close(); err != nil {
				c.logger.Error("Failed to close connection", zap.Error(err))
			}
			<-c.slots
		default:
			return nil
		}
	}
}

// WriteFrame writes a 4-byte big-endian length followed by payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return ErrFrameTooLarge
	}

	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("failed to send frame: %w", err)
	}
	return nil
}

func ReadFrame(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}

	size := binary.BigEndian.Uint32(header[:])
	if size > MaxFrameSize {
		return nil, ErrFrameTooLarge
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read frame body: %w", err)
	}
	return payload, nil
}
