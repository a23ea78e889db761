package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ccugym/gymdash/internal/metrics"
	"github.com/ccugym/gymdash/internal/views"
)

const (
	streamPingInterval = 30 * time.Second
	streamWriteTimeout = 10 * time.Second
	streamBuffer       = 32
)

// StreamMessage is sent to browsers over the change stream
type StreamMessage struct {
	Type string `json:"type"` // change, ping
	View string `json:"view,omitempty"`
	Seq  uint64 `json:"seq,omitempty"`
}

// Stream pushes view change events to connected browsers so they re-render
// without polling the local server.
type Stream struct {
	bus      *views.Bus
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader
	log      *slog.Logger

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
	done  chan struct{}
	once  sync.Once
}

// NewStream creates a stream fed by bus
func NewStream(bus *views.Bus, m *metrics.Metrics) *Stream {
	return &Stream{
		bus:     bus,
		metrics: m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log:   slog.Default().With("component", "stream"),
		conns: make(map[*websocket.Conn]struct{}),
		done:  make(chan struct{}),
	}
}

// ServeHTTP upgrades the request and forwards events until the browser
// goes away or the stream is closed.
func (s *Stream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	if !s.track(conn) {
		conn.Close()
		return
	}
	defer s.untrack(conn)

	events, unsubscribe := s.bus.Subscribe(streamBuffer)
	defer unsubscribe()

	s.metrics.AddStreamClients(1)
	defer s.metrics.AddStreamClients(-1)
	s.log.Debug("stream client connected", "remote", r.RemoteAddr)

	// Browsers never send anything meaningful; reading detects the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					s.log.Debug("stream read error", "error", err)
				}
				return
			}
		}
	}()

	ticker := time.NewTicker(streamPingInterval)
	defer ticker.Stop()

	for {
		var msg StreamMessage
		select {
		case <-s.done:
			return
		case <-closed:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg = StreamMessage{Type: "change", View: ev.View, Seq: ev.Seq}
		case <-ticker.C:
			msg = StreamMessage{Type: "ping"}
		}

		conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))
		if err := conn.WriteJSON(msg); err != nil {
			s.log.Debug("stream write error", "error", err)
			return
		}
	}
}

func (s *Stream) track(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.done:
		return false
	default:
	}
	s.conns[conn] = struct{}{}
	return true
}

func (s *Stream) untrack(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
	conn.Close()
}

// Clients returns the number of connected browsers
func (s *Stream) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close disconnects every browser. Hijacked connections are not covered by
// http.Server.Shutdown.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.mu.Lock()
		close(s.done)
		for conn := range s.conns {
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
				time.Now().Add(time.Second))
		}
		s.mu.Unlock()
	})
}
