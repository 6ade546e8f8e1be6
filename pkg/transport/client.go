// Package transport sends scripts to a Gremlin Server over WebSocket.
//
// A Client owns one connection and runs one request at a time on it. The
// connection is dialled lazily, with exponential backoff, and re-dialled
// after any failure that leaves it in an unknown state. Partial responses
// (status 206) are accumulated until the final frame; a 407 challenge is
// answered with SASL PLAIN credentials.
//
//	c := transport.New(transport.Options{URL: "ws://localhost:8182/gremlin"})
//	defer c.Close()
//	rows, err := c.Execute(ctx, "g.V(x).valueMap()", map[string]any{"x": 1})
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/orneryd/gizmo/pkg/metrics"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("transport: client closed")
	// ErrAuthRequired is returned when the server asks for credentials and
	// none are configured.
	ErrAuthRequired = errors.New("transport: server requires authentication")
)

// Options configures a Client.
type Options struct {
	URL      string
	Username string
	Password string

	DialTimeout time.Duration
	// WriteTimeout bounds writing one frame.
	WriteTimeout time.Duration
	// MaxRetries bounds dial attempts per request; zero means a single try.
	MaxRetries int
	// RetryInterval is the first backoff interval.
	RetryInterval time.Duration

	Header  http.Header
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

func (o *Options) defaults() {
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = 200 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Client is a Gremlin Server connection.
type Client struct {
	opts   Options
	log    *zap.Logger
	dialer *websocket.Dialer
	sem    *semaphore.Weighted

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// New creates a client. Nothing is dialled until the first request.
func New(opts Options) *Client {
	opts.defaults()
	return &Client{
		opts: opts,
		log:  opts.Logger,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: opts.DialTimeout,
		},
		sem: semaphore.NewWeighted(1),
	}
}

// Execute sends script with its bindings and returns every result row. The
// call holds the connection until the final response frame.
func (c *Client) Execute(ctx context.Context, script string, params map[string]any) ([]any, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer c.sem.Release(1)

	conn, err := c.connect(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := c.roundTrip(ctx, conn, script, params)
	if err != nil {
		var se *ServerError
		if errors.As(err, &se) {
			c.opts.Metrics.Request(strconv.Itoa(se.Code))
		} else {
			// the reply stream may be half read
			c.drop(conn)
			c.opts.Metrics.Request(metrics.StatusError)
		}
		return nil, err
	}
	c.opts.Metrics.Request(strconv.Itoa(StatusSuccess))
	return rows, nil
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	if c.conn != nil {
		conn := c.conn
		c.mu.Unlock()
		return conn, nil
	}
	c.mu.Unlock()

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.opts.RetryInterval
	var b backoff.BackOff = backoff.WithMaxRetries(policy, uint64(max(c.opts.MaxRetries, 0)))
	b = backoff.WithContext(b, ctx)

	var conn *websocket.Conn
	op := func() error {
		dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
		defer cancel()
		ws, resp, err := c.dialer.DialContext(dialCtx, c.opts.URL, c.opts.Header)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if resp != nil && resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return backoff.Permanent(fmt.Errorf("transport: dial %s: %s", c.opts.URL, resp.Status))
			}
			return fmt.Errorf("transport: dial %s: %w", c.opts.URL, err)
		}
		conn = ws
		return nil
	}
	notify := func(err error, wait time.Duration) {
		c.opts.Metrics.DialRetry()
		c.log.Warn("dial failed, retrying", zap.Error(err), zap.Duration("backoff", wait))
	}
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = conn.Close()
		return nil, ErrClosed
	}
	c.conn = conn
	c.log.Debug("connected", zap.String("url", c.opts.URL))
	return conn, nil
}

func (c *Client) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == conn {
		c.conn = nil
	}
	_ = conn.Close()
}

func (c *Client) roundTrip(ctx context.Context, conn *websocket.Conn, script string, params map[string]any) ([]any, error) {
	id := uuid.NewString()
	if err := c.send(conn, evalRequest(id, script, params)); err != nil {
		return nil, err
	}

	// unblock the read when ctx ends first
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	} else {
		_ = conn.SetReadDeadline(time.Time{})
	}

	var rows []any
	authenticated := false
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("transport: read: %w", err)
		}
		resp, err := decodeResponse(msg)
		if err != nil {
			return nil, err
		}
		if resp.RequestID != "" && resp.RequestID != id {
			c.log.Warn("dropping response for another request", zap.String("request_id", resp.RequestID))
			continue
		}

		switch code := resp.Status.Code; {
		case code == StatusAuthenticate:
			if c.opts.Username == "" || authenticated {
				return nil, ErrAuthRequired
			}
			authenticated = true
			if err := c.send(conn, authRequest(id, c.opts.Username, c.opts.Password)); err != nil {
				return nil, err
			}
		case code == StatusNoContent:
			return rows, nil
		case code == StatusSuccess || code == StatusPartialContent:
			data, err := decodeData(resp.Result.Data)
			if err != nil {
				return nil, err
			}
			rows = append(rows, data...)
			if code == StatusSuccess {
				return rows, nil
			}
		default:
			return nil, &ServerError{Code: code, Message: resp.Status.Message}
		}
	}
}

func (c *Client) send(conn *websocket.Conn, req request) error {
	frame, err := encodeFrame(req)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	return nil
}

// Close closes the connection. Pending requests fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.conn == nil {
		return nil
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	err := c.conn.Close()
	c.conn = nil
	return err
}
