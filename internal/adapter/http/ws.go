package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/couchcryptid/aegis-cortex/internal/broadcast"
	"github.com/couchcryptid/aegis-cortex/internal/domain"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxInboundSize = 4096
)

var errSlowSubscriber = errors.New("subscriber queue full")

// wsHandler upgrades requests and registers each connection with the hub.
type wsHandler struct {
	upgrader websocket.Upgrader
	hub      *broadcast.Hub
	commands Telemetry
	buffer   int
	logger   *slog.Logger
}

func newWSHandler(hub *broadcast.Hub, commands Telemetry, origins []string, buffer int, logger *slog.Logger) *wsHandler {
	return &wsHandler{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(origins),
		},
		hub:      hub,
		commands: commands,
		buffer:   max(1, buffer),
		logger:   logger,
	}
}

// originChecker allows requests without an Origin header and, unless the
// list contains "*", only the listed origins.
func originChecker(origins []string) func(*http.Request) bool {
	if slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(origins, origin)
	}
}

func (h *wsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	sub := newWSSubscriber(conn, h.buffer, h.logger)
	h.hub.Add(sub)
	go sub.writePump(h.hub)
	h.readPump(sub)
}

// readPump reads operator commands until the peer goes away. Unknown input
// is logged and ignored.
func (h *wsHandler) readPump(sub *wsSubscriber) {
	defer h.hub.Remove(sub.id)

	sub.conn.SetReadLimit(maxInboundSize)
	_ = sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	sub.conn.SetPongHandler(func(string) error {
		return sub.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := sub.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error", "subscriber", sub.id, "error", err)
			}
			return
		}

		action, err := domain.ParseCommand(data)
		if err != nil {
			h.logger.Info("ignoring inbound frame", "subscriber", sub.id, "error", err)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err = h.commands.Submit(ctx, action)
		cancel()
		if err != nil {
			h.logger.Warn("command rejected", "subscriber", sub.id, "action", action, "error", err)
		}
	}
}

// wsSubscriber queues outbound frames for a single writer goroutine so a
// slow socket never blocks the broadcaster.
type wsSubscriber struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	once   sync.Once
	logger *slog.Logger
}

func newWSSubscriber(conn *websocket.Conn, buffer int, logger *slog.Logger) *wsSubscriber {
	return &wsSubscriber{
		id:     uuid.NewString(),
		conn:   conn,
		send:   make(chan []byte, buffer),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (s *wsSubscriber) ID() string { return s.id }

// Send enqueues msg. A full queue fails the send so the hub drops the
// subscriber.
func (s *wsSubscriber) Send(_ context.Context, msg []byte) error {
	select {
	case <-s.done:
		return broadcast.ErrSubscriberClosed
	default:
	}
	select {
	case s.send <- msg:
		return nil
	default:
		return errSlowSubscriber
	}
}

// Close stops the writer, which sends a close frame and closes the socket.
func (s *wsSubscriber) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *wsSubscriber) writePump(hub *broadcast.Hub) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Debug("websocket write failed", "subscriber", s.id, "error", err)
				hub.Remove(s.id)
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				hub.Remove(s.id)
				return
			}
		case <-s.done:
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
