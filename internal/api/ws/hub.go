package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/gosuda/backoffice/internal/notify"
)

const defaultWriteTimeout = 5 * time.Second

// Hub fans toasts out to every connected notification socket. It is a
// notify.Sink.
type Hub struct {
	accept       *websocket.AcceptOptions
	writeTimeout time.Duration

	mu      sync.Mutex
	clients map[uuid.UUID]*websocket.Conn
}

// NewHub creates a hub accepting cross-origin sockets from originPatterns
// (host patterns, see websocket.AcceptOptions).
func NewHub(originPatterns []string) *Hub {
	return &Hub{
		accept:       &websocket.AcceptOptions{OriginPatterns: originPatterns},
		writeTimeout: defaultWriteTimeout,
		clients:      make(map[uuid.UUID]*websocket.Conn),
	}
}

// Len reports the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ServeNotifications handles /ws/notifications. The connection is write-only;
// client frames are discarded.
func (h *Hub) ServeNotifications(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, h.accept)
	if err != nil {
		log.Error().Err(err).Msg("websocket accept")
		return
	}
	defer conn.CloseNow()

	id := uuid.New()
	h.mu.Lock()
	h.clients[id] = conn
	h.mu.Unlock()
	log.Debug().Str("client_id", id.String()).Msg("notification client connected")

	defer func() {
		h.mu.Lock()
		delete(h.clients, id)
		h.mu.Unlock()
	}()

	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()
	_ = conn.Close(websocket.StatusNormalClosure, "connection closed")
}

// Send broadcasts t. Clients whose write fails are dropped.
func (h *Hub) Send(ctx context.Context, t notify.Toast) error {
	payload, err := json.Marshal(ToastEvent{Type: TypeToast, Toast: t})
	if err != nil {
		return fmt.Errorf("ws.Hub.Send: %w", err)
	}

	h.mu.Lock()
	targets := make(map[uuid.UUID]*websocket.Conn, len(h.clients))
	for id, c := range h.clients {
		targets[id] = c
	}
	h.mu.Unlock()

	for id, c := range targets {
		wctx, cancel := context.WithTimeout(ctx, h.writeTimeout)
		werr := c.Write(wctx, websocket.MessageText, payload)
		cancel()
		if werr != nil {
			log.Debug().Err(werr).Str("client_id", id.String()).Msg("websocket write")
			h.mu.Lock()
			delete(h.clients, id)
			h.mu.Unlock()
			c.CloseNow()
		}
	}
	return nil
}

// Forward broadcasts toasts received from a relay until ctx is done or the
// channel closes.
func (h *Hub) Forward(ctx context.Context, toasts <-chan notify.Toast) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case t, ok := <-toasts:
			if !ok {
				return nil
			}
			if err := h.Send(ctx, t); err != nil {
				log.Warn().Err(err).Msg("toast broadcast failed")
			}
		}
	}
}
