// Package channel implements the persistent duplex connection to the
// interview agent service.
//
// The channel does framing only: one JSON message per logical send/receive.
// Callers encode outbound payloads and decode inbound frames themselves.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxhire/interview-client/pkg/core"
)

const defaultConnectTimeout = 15 * time.Second

// Option configures Open.
type Option func(*options)

type options struct {
	logger         *slog.Logger
	connectTimeout time.Duration
	dialer         *websocket.Dialer
}

// WithLogger sets the channel logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithConnectTimeout bounds the websocket dial when the caller's context
// carries no deadline.
func WithConnectTimeout(d time.Duration) Option {
	return func(o *options) { o.connectTimeout = d }
}

// WithDialer sets a custom websocket dialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) { o.dialer = d }
}

// Channel is one open duplex connection. Inbound frames are delivered on
// Frames() strictly in arrival order. Send is fire-and-forget: no
// acknowledgement or backpressure signal reaches the caller.
type Channel struct {
	conn   *websocket.Conn
	logger *slog.Logger

	frames chan []byte
	done   chan struct{}
	stop   chan struct{}

	writeMu   sync.Mutex
	closeOnce sync.Once
	closed    atomic.Bool

	errMu sync.Mutex
	err   error
}

// Open dials the interview endpoint and starts the read loop.
func Open(ctx context.Context, rawURL string, opts ...Option) (*Channel, error) {
	o := options{
		logger:         slog.Default(),
		connectTimeout: defaultConnectTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}

	wsURL, err := normalizeWebSocketURL(rawURL)
	if err != nil {
		return nil, err
	}

	dialer := o.dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		dialCtx, cancel = context.WithTimeout(ctx, o.connectTimeout)
		defer cancel()
	}

	conn, resp, err := dialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		if resp != nil {
			return nil, &core.TransportError{Op: "GET", URL: wsURL, Err: fmt.Errorf("websocket dial failed (status %d): %w", resp.StatusCode, err)}
		}
		return nil, &core.TransportError{Op: "GET", URL: wsURL, Err: err}
	}

	c := &Channel{
		conn:   conn,
		logger: o.logger,
		frames: make(chan []byte, 64),
		done:   make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Frames yields inbound frames in arrival order. The channel is closed when
// the connection ends.
func (c *Channel) Frames() <-chan []byte {
	if c == nil {
		return nil
	}
	return c.frames
}

// Send writes one JSON frame. Fire-and-forget: a nil return means the frame
// was handed to the transport, not that it arrived.
func (c *Channel) Send(v any) error {
	if c == nil {
		return core.NewInvalidRequestError("channel must not be nil")
	}
	if c.closed.Load() {
		return core.NewChannelError("channel is closed", nil)
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.WriteJSON(v); err != nil {
		return core.NewChannelError("write frame", err)
	}
	return nil
}

// Close releases the connection. Idempotent and safe from any goroutine.
func (c *Channel) Close() error {
	if c == nil {
		return nil
	}
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.stop)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(2*time.Second))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
	<-c.done
	return nil
}

// Done is closed once the read loop has exited.
func (c *Channel) Done() <-chan struct{} {
	if c == nil {
		return nil
	}
	return c.done
}

// Err returns the terminal channel error, if any, once Done is closed.
func (c *Channel) Err() error {
	if c == nil {
		return nil
	}
	<-c.done
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Channel) setErr(err error) {
	if err == nil {
		return
	}
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

func (c *Channel) readLoop() {
	defer close(c.done)
	defer close(c.frames)

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.closed.Load() || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return
			}
			c.setErr(core.NewChannelError("read frame", err))
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		select {
		case c.frames <- append([]byte(nil), data...):
		case <-c.stop:
			return
		}
	}
}

func normalizeWebSocketURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", core.NewInvalidRequestError("invalid channel URL")
	}
	switch strings.ToLower(strings.TrimSpace(u.Scheme)) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
		// already websocket scheme.
	default:
		return "", core.NewInvalidRequestError("channel URL must use http(s) or ws(s)")
	}
	return u.String(), nil
}
