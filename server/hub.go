package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/phturb/campaign-codex-backend-go/codex"
	modelwebsocket "github.com/phturb/campaign-codex-backend-go/model/websocket"
)

type client struct {
	id string
	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
	conn    *websocket.Conn
}

func (c *client) send(m modelwebsocket.Message) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(m)
}

// Hub fans revalidation notices out to every connected websocket client.
type Hub struct {
	connsMu sync.RWMutex
	conns   map[string]*client
}

var _ codex.Revalidator = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		conns: map[string]*client{},
	}
}

func (h *Hub) register(conn *websocket.Conn) *client {
	c := &client{id: uuid.NewString(), conn: conn}
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	h.conns[c.id] = c
	slog.Info(fmt.Sprintf("[register] - websocket client %s connected, %d open", c.id, len(h.conns)))
	return c
}

func (h *Hub) unregister(c *client) {
	h.connsMu.Lock()
	defer h.connsMu.Unlock()
	delete(h.conns, c.id)
	slog.Info(fmt.Sprintf("[unregister] - websocket client %s disconnected, %d open", c.id, len(h.conns)))
}

func (h *Hub) Clients() int {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()
	return len(h.conns)
}

func (h *Hub) broadcast(m modelwebsocket.Message) error {
	h.connsMu.RLock()
	defer h.connsMu.RUnlock()
	var errs []error
	for _, c := range h.conns {
		if err := c.send(m); err != nil {
			errs = append(errs, fmt.Errorf("client %s: %w", c.id, err))
		}
	}
	return errors.Join(errs...)
}

// Revalidate tells clients which paths to refetch, once per distinct path.
func (h *Hub) Revalidate(paths ...string) {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		slog.Debug(fmt.Sprintf("[Revalidate] - %s", p))
		if err := h.broadcast(modelwebsocket.Message{Action: modelwebsocket.Revalidate, Content: p}); err != nil {
			slog.Warn(fmt.Sprintf("[Revalidate] - unable to notify every client : %s", err.Error()))
		}
	}
}

// handleMessage answers a client message and reports whether it was understood.
func (h *Hub) handleMessage(c *client, wm *modelwebsocket.Message) bool {
	switch wm.Action {
	case modelwebsocket.Ping:
		if err := c.send(modelwebsocket.Message{Action: modelwebsocket.Pong}); err != nil {
			slog.Warn(fmt.Sprintf("[handleMessage] - unable to answer ping of %s : %s", c.id, err.Error()))
		}
		return true
	}
	slog.Debug(fmt.Sprintf("[handleMessage] - websocket action '%s' is not handled", wm.Action))
	return false
}
