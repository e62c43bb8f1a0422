// Package devserver implements a small update server speaking the HMR socket
// protocol. It is used by "hotpatch serve" to replay recorded update streams
// and by tests as the remote end of a transport.Client.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/giantswarm/hotpatch/internal/metrics"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/resource"
	"github.com/giantswarm/hotpatch/pkg/logging"
)

const writeTimeout = 10 * time.Second

// Config configures a Server.
type Config struct {
	// Missing resources are answered with notFound on subscribe.
	Missing []resource.Resource

	Metrics *metrics.Recorder
}

// Server accepts update sockets and publishes messages to the connections
// subscribed to their resources.
type Server struct {
	upgrader websocket.Upgrader
	metrics  *metrics.Recorder

	mu      sync.Mutex
	conns   map[*conn]struct{}
	missing mapset.Set[resource.Key]

	// changed is closed and replaced whenever a subscription changes.
	changed chan struct{}
}

type conn struct {
	id string
	ws *websocket.Conn

	writeMu sync.Mutex

	// subs is guarded by Server.mu.
	subs mapset.Set[resource.Key]
}

// New creates a Server.
func New(cfg Config) *Server {
	s := &Server{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		metrics: cfg.Metrics,
		conns:   make(map[*conn]struct{}),
		missing: mapset.NewThreadUnsafeSet[resource.Key](),
		changed: make(chan struct{}),
	}
	for _, res := range cfg.Missing {
		s.missing.Add(res.Key())
	}
	return s
}

// Handler returns the HTTP routes of the server: the update socket on /hmr,
// Prometheus metrics on /metrics and a liveness probe on /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/hmr", s)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// ServeHTTP upgrades the request to an update socket and serves it until the
// peer disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("DevServer", "Failed to upgrade connection from %s: %v", r.RemoteAddr, err)
		return
	}

	c := &conn{
		id:   uuid.New().String(),
		ws:   ws,
		subs: mapset.NewThreadUnsafeSet[resource.Key](),
	}
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	s.metrics.ConnectionOpened()
	logging.Info("DevServer", "Client %s connected (connection %s)", r.RemoteAddr, c.id)

	defer func() {
		s.mu.Lock()
		delete(s.conns, c)
		s.notifyLocked()
		s.mu.Unlock()
		ws.Close()
		s.metrics.ConnectionClosed()
		logging.Info("DevServer", "Connection %s closed", c.id)
	}()

	for {
		var msg protocol.ClientMessage
		if err := ws.ReadJSON(&msg); err != nil {
			var syntaxErr *json.SyntaxError
			if errors.As(err, &syntaxErr) {
				logging.Warn("DevServer", "Connection %s sent invalid JSON: %v", c.id, err)
				continue
			}
			return
		}
		s.handleControl(c, msg)
	}
}

func (s *Server) handleControl(c *conn, msg protocol.ClientMessage) {
	key := msg.Resource.Key()

	switch msg.Type {
	case protocol.TypeSubscribe:
		s.mu.Lock()
		missing := s.missing.Contains(key)
		if !missing {
			c.subs.Add(key)
			s.notifyLocked()
		}
		s.mu.Unlock()

		if missing {
			logging.Debug("DevServer", "Connection %s subscribed to unknown resource %s", c.id, msg.Resource)
			notFound := protocol.ServerMessage{Resource: msg.Resource, Type: protocol.TypeNotFound}
			if err := s.write(c, []protocol.ServerMessage{notFound}, false); err != nil {
				logging.Warn("DevServer", "Failed to answer connection %s: %v", c.id, err)
			}
			return
		}
		logging.Debug("DevServer", "Connection %s subscribed to %s", c.id, msg.Resource)

	case protocol.TypeUnsubscribe:
		s.mu.Lock()
		c.subs.Remove(key)
		s.notifyLocked()
		s.mu.Unlock()
		logging.Debug("DevServer", "Connection %s unsubscribed from %s", c.id, msg.Resource)

	default:
		logging.Warn("DevServer", "Connection %s sent unknown message type %q", c.id, msg.Type)
	}
}

// SetMissing marks res as unknown (or known again). Later subscribes for a
// missing resource are answered with notFound.
func (s *Server) SetMissing(res resource.Resource, missing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if missing {
		s.missing.Add(res.Key())
	} else {
		s.missing.Remove(res.Key())
	}
}

// Publish sends msg to every connection subscribed to its resource. It
// returns the number of connections written to.
func (s *Server) Publish(msg protocol.ServerMessage) int {
	return s.PublishFrame(protocol.Frame{Messages: []protocol.ServerMessage{msg}})
}

// PublishBatch sends msgs as one batch frame. Each connection receives the
// messages for the resources it subscribed to, in order.
func (s *Server) PublishBatch(msgs []protocol.ServerMessage) int {
	return s.PublishFrame(protocol.Frame{Messages: msgs, Batch: true})
}

// PublishFrame routes the messages of frame to subscribed connections.
func (s *Server) PublishFrame(frame protocol.Frame) int {
	type delivery struct {
		conn *conn
		msgs []protocol.ServerMessage
	}

	s.mu.Lock()
	var deliveries []delivery
	for c := range s.conns {
		var msgs []protocol.ServerMessage
		for _, msg := range frame.Messages {
			if c.subs.Contains(msg.Resource.Key()) {
				msgs = append(msgs, msg)
			}
		}
		if len(msgs) > 0 {
			deliveries = append(deliveries, delivery{conn: c, msgs: msgs})
		}
	}
	s.mu.Unlock()

	sent := 0
	for _, d := range deliveries {
		if err := s.write(d.conn, d.msgs, frame.Batch); err != nil {
			logging.Warn("DevServer", "Failed to publish to connection %s: %v", d.conn.id, err)
			continue
		}
		for _, msg := range d.msgs {
			s.metrics.Published(string(msg.Type))
		}
		sent++
	}
	return sent
}

func (s *Server) write(c *conn, msgs []protocol.ServerMessage, batch bool) error {
	data, err := protocol.EncodeFrame(protocol.Frame{Messages: msgs, Batch: batch})
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

// Subscribers returns the number of connections subscribed to res.
func (s *Server) Subscribers(res resource.Resource) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribersLocked(res.Key())
}

func (s *Server) subscribersLocked(key resource.Key) int {
	n := 0
	for c := range s.conns {
		if c.subs.Contains(key) {
			n++
		}
	}
	return n
}

// WaitForSubscribers blocks until at least n connections subscribed to res
// or ctx ends.
func (s *Server) WaitForSubscribers(ctx context.Context, res resource.Resource, n int) error {
	key := res.Key()
	for {
		s.mu.Lock()
		count := s.subscribersLocked(key)
		changed := s.changed
		s.mu.Unlock()

		if count >= n {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-changed:
		}
	}
}

// Close disconnects every client.
func (s *Server) Close() {
	s.mu.Lock()
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.writeMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.writeMu.Unlock()
		c.ws.Close()
	}
}

// notifyLocked wakes WaitForSubscribers callers. s.mu must be held.
func (s *Server) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}
