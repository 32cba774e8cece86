package api

import (
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"matchbook/snippet"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans match-dir change events out to every connected browser tab so
// open views refresh when files change on disk.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: map[*websocket.Conn]struct{}{}}
}

// Run forwards watcher events to all connections until the channel closes.
func (h *Hub) Run(events <-chan snippet.Event) {
	for ev := range events {
		h.Broadcast(ev)
	}
}

// Broadcast writes v as JSON to every connection. Writes are serialized
// under h.mu — gorilla/websocket forbids concurrent writes.
func (h *Hub) Broadcast(v any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.conns {
		if err := conn.WriteJSON(v); err != nil {
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

func (h *Hub) add(conn *websocket.Conn) {
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, conn)
	h.mu.Unlock()
}

// handleEvents upgrades the request and parks it in the hub. The read loop
// exists only to notice the client going away.
func (h *handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WS upgrade error: %v", err)
		return
	}
	h.hub.add(conn)
	defer func() {
		h.hub.remove(conn)
		conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
