package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"github.com/ConductionNL/taalhuizen-service-sub000/relation"
)

const (
	writeWait      = 10 * time.Second
	clientBuffer   = 16
	maxMessageSize = 512
)

// eventHub fans relation change events out to websocket subscribers.
// Slow clients are dropped rather than allowed to stall the feed.
type eventHub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[chan relation.ChangeEvent]struct{}
	closed  bool
}

func newEventHub(logger *slog.Logger) *eventHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &eventHub{
		logger:  logger.With("component", "gateway.events"),
		clients: make(map[chan relation.ChangeEvent]struct{}),
	}
}

func (h *eventHub) subscribe() chan relation.ChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch := make(chan relation.ChangeEvent, clientBuffer)
	if h.closed {
		close(ch)
		return ch
	}
	h.clients[ch] = struct{}{}
	return ch
}

func (h *eventHub) unsubscribe(ch chan relation.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

func (h *eventHub) broadcast(event relation.ChangeEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.clients {
		select {
		case ch <- event:
		default:
			// Client is not keeping up, cut it loose
			delete(h.clients, ch)
			close(ch)
			h.logger.Warn("dropped slow event subscriber")
		}
	}
}

func (h *eventHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		delete(h.clients, ch)
		close(ch)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origin checks are handled by the CORS config upstream
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleEvents upgrades the connection and streams change events until
// the client disconnects.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := s.hub.subscribe()
	defer s.hub.unsubscribe(events)

	// Reader goroutine only to observe the close handshake
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(maxMessageSize)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

// RelayNATS subscribes to the change event subject and feeds the
// websocket hub, so events published by other instances reach local
// subscribers too. Returns the subscription for teardown.
func (s *Server) RelayNATS(conn *nats.Conn, subject string) (*nats.Subscription, error) {
	if subject == "" {
		subject = relation.DefaultEventSubject
	}
	return conn.Subscribe(subject, func(msg *nats.Msg) {
		var event relation.ChangeEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			s.logger.Warn("dropping undecodable change event", "error", err)
			return
		}
		s.hub.broadcast(event)
	})
}
