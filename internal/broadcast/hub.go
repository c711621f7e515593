// Package broadcast fans messages out to live subscribers.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/couchcryptid/aegis-cortex/internal/observability"
)

// ErrSubscriberClosed is returned by Send after a subscriber has been closed.
var ErrSubscriberClosed = errors.New("subscriber closed")

// Subscriber is one live receiver. Send must not block for long; a
// subscriber that cannot keep up should fail the send and be dropped.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, msg []byte) error
	Close() error
}

// Hub holds the live subscriber set. Registration and removal may race
// with a broadcast; each broadcast iterates a copy of the set taken under
// the lock.
type Hub struct {
	mu      sync.Mutex
	subs    map[string]Subscriber
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger, metrics *observability.Metrics) *Hub {
	return &Hub{
		subs:    make(map[string]Subscriber),
		logger:  logger,
		metrics: metrics,
	}
}

// Add registers s. It receives every broadcast from the next one on.
func (h *Hub) Add(s Subscriber) {
	h.mu.Lock()
	h.subs[s.ID()] = s
	n := len(h.subs)
	h.mu.Unlock()

	h.metrics.Subscribers.Set(float64(n))
	h.logger.Info("subscriber connected", "subscriber", s.ID(), "subscribers", n)
}

// Remove unregisters and closes the subscriber with id, if present.
func (h *Hub) Remove(id string) {
	h.mu.Lock()
	s, ok := h.subs[id]
	delete(h.subs, id)
	n := len(h.subs)
	h.mu.Unlock()

	if !ok {
		return
	}
	h.metrics.Subscribers.Set(float64(n))
	if err := s.Close(); err != nil {
		h.logger.Debug("subscriber close error", "subscriber", id, "error", err)
	}
	h.logger.Info("subscriber disconnected", "subscriber", id, "subscribers", n)
}

// Len is the number of live subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) snapshot() []Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Subscriber, 0, len(h.subs))
	for _, s := range h.subs {
		out = append(out, s)
	}
	return out
}

// Broadcast sends msg to every subscriber. A failed send removes only that
// subscriber; the rest still receive msg. It returns the number delivered.
func (h *Hub) Broadcast(ctx context.Context, kind string, msg []byte) int {
	delivered := 0
	for _, s := range h.snapshot() {
		if err := s.Send(ctx, msg); err != nil {
			h.logger.Warn("send failed, dropping subscriber", "subscriber", s.ID(), "error", err)
			h.metrics.DroppedSubscribers.Inc()
			h.Remove(s.ID())
			continue
		}
		delivered++
	}
	h.metrics.Broadcasts.WithLabelValues(kind).Inc()
	return delivered
}

// BroadcastJSON encodes v once and broadcasts it.
func (h *Hub) BroadcastJSON(ctx context.Context, kind string, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode %s message: %w", kind, err)
	}
	return h.Broadcast(ctx, kind, data), nil
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	for _, s := range h.snapshot() {
		h.Remove(s.ID())
	}
}
