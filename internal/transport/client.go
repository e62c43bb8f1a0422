// Package transport connects a reconciler to a build server's update socket.
//
// The Client owns one WebSocket connection at a time. It implements
// hmr.Outbound for control messages, feeds every received frame into a
// Session and reconnects with exponential backoff until its context ends.
// Each connection starts from a fresh server state: pending aggregates are
// discarded when a connection is lost and every registered resource is
// subscribed again after the next connect.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/giantswarm/hotpatch/internal/hmr"
	"github.com/giantswarm/hotpatch/internal/metrics"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/pkg/logging"
)

const (
	DefaultInitialInterval = 500 * time.Millisecond
	DefaultMaxInterval     = 10 * time.Second

	writeTimeout = 10 * time.Second
)

// Session consumes the update stream of one connection.
// *hmr.Reconciler implements it.
type Session interface {
	HandleFrame(ctx context.Context, frame protocol.Frame) error
	// Resubscribe runs attach and replays the subscriptions without letting
	// a concurrent subscribe in between.
	Resubscribe(ctx context.Context, attach func())
	DiscardPending()
}

// Config configures a Client.
type Config struct {
	// URL is the ws:// or wss:// address of the update socket.
	URL string

	// Header is sent with every dial.
	Header http.Header

	InitialInterval time.Duration
	MaxInterval     time.Duration

	Dialer  *websocket.Dialer
	Metrics *metrics.Recorder

	// OnConnect runs after a connection was established and resources were
	// re-subscribed.
	OnConnect func(connID string)

	// OnDisconnect runs after a connection ended.
	OnDisconnect func(connID string, err error)
}

// Client maintains the update socket.
type Client struct {
	cfg Config

	// mu guards conn and serialises writes; gorilla/websocket supports
	// one concurrent writer.
	mu     sync.Mutex
	conn   *websocket.Conn
	connID string
}

var _ hmr.Outbound = (*Client)(nil)

// New creates a Client. Zero intervals fall back to the defaults.
func New(cfg Config) *Client {
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = DefaultInitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = DefaultMaxInterval
	}
	if cfg.MaxInterval < cfg.InitialInterval {
		cfg.MaxInterval = cfg.InitialInterval
	}
	if cfg.Dialer == nil {
		cfg.Dialer = websocket.DefaultDialer
	}
	return &Client{cfg: cfg}
}

// Send writes a control message on the current connection. Without a
// connection it returns hmr.ErrOffline.
func (c *Client) Send(ctx context.Context, msg protocol.ClientMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil {
		return hmr.ErrOffline
	}

	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("setting write deadline: %w", err)
	}
	if err := c.conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("writing %s on connection %s: %w", msg.Type, c.connID, err)
	}
	return nil
}

// Connected reports whether a connection is currently open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Run connects and processes frames until ctx is cancelled. Dial failures
// and lost connections are retried indefinitely with exponential backoff.
// It returns nil when ctx ends.
func (c *Client) Run(ctx context.Context, session Session) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.InitialInterval
	b.MaxInterval = c.cfg.MaxInterval

	attempts := 0
	dial := func() (*websocket.Conn, error) {
		if attempts > 0 {
			c.cfg.Metrics.Reconnect()
		}
		attempts++

		conn, resp, err := c.cfg.Dialer.DialContext(ctx, c.cfg.URL, c.cfg.Header)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return nil, backoff.Permanent(fmt.Errorf("dialing %s: no update socket at this address", c.cfg.URL))
			}
			return nil, fmt.Errorf("dialing %s: %w", c.cfg.URL, err)
		}
		return conn, nil
	}
	notify := func(err error, next time.Duration) {
		logging.Warn("Transport", "Connection attempt failed, retrying in %s: %v", next.Round(time.Millisecond), err)
	}

	for {
		conn, err := backoff.Retry(ctx, dial,
			backoff.WithBackOff(b),
			backoff.WithMaxElapsedTime(0),
			backoff.WithNotify(notify),
		)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		err = c.serve(ctx, conn, session)
		if ctx.Err() != nil {
			return nil
		}
		logging.Warn("Transport", "Connection lost: %v", err)
	}
}

// serve runs one connection until it fails or ctx ends.
func (c *Client) serve(ctx context.Context, conn *websocket.Conn, session Session) error {
	connID := uuid.New().String()

	logging.Info("Transport", "Connected to %s (connection %s)", c.cfg.URL, connID)

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	})
	defer stop()

	// Send stays offline until the replay holds the session's registry.
	session.Resubscribe(ctx, func() {
		c.mu.Lock()
		c.conn = conn
		c.connID = connID
		c.mu.Unlock()
	})
	if c.cfg.OnConnect != nil {
		c.cfg.OnConnect(connID)
	}

	err := c.readLoop(ctx, conn, session)

	c.mu.Lock()
	c.conn = nil
	c.connID = ""
	c.mu.Unlock()
	conn.Close()

	session.DiscardPending()
	if c.cfg.OnDisconnect != nil {
		c.cfg.OnDisconnect(connID, err)
	}
	return err
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn, session Session) error {
	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.New("server closed the connection")
			}
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}

		frame, err := protocol.DecodeFrame(data)
		if err != nil {
			logging.Warn("Transport", "Dropping undecodable frame: %v", err)
			continue
		}

		// Frame errors already reset the session; the connection stays up.
		if err := session.HandleFrame(ctx, frame); err != nil {
			logging.Debug("Transport", "Frame aborted: %v", err)
		}
	}
}
