package ws

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// AllAnchors assina todas as execuções, inclusive as divergências sem âncora
const AllAnchors = "*"

// Hub gerencia conexões WebSocket e assinaturas por âncora
// subs: mapeia a âncora para o conjunto de conexões inscritas
type Hub struct {
	upgrader websocket.Upgrader
	mu       sync.RWMutex
	subs     map[string]map[*conn]struct{}
}

// conn serializa as escritas; gorilla não aceita escritores concorrentes
type conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *conn) write(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *conn) writeRaw(b []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, b)
}

// NewHub cria uma instância de Hub com política customizada de origem (CORS)
func NewHub(allowOrigin func(r *http.Request) bool) *Hub {
	return &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: allowOrigin},
		subs:     make(map[string]map[*conn]struct{}),
	}
}

// ServeHTTP gerencia o ciclo de vida de uma conexão WebSocket
// Permite subscribe/unsubscribe por âncora e responde a pings
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer ws.Close()
	c := &conn{ws: ws}

	for {
		var msg ClientMsg
		if err := ws.ReadJSON(&msg); err != nil {
			break
		}
		switch msg.Type {
		case "subscribe":
			if msg.Anchor == "" {
				_ = c.write(map[string]string{"type": "error", "error": "anchor required"})
				continue
			}
			h.mu.Lock()
			if _, ok := h.subs[msg.Anchor]; !ok {
				h.subs[msg.Anchor] = make(map[*conn]struct{})
			}
			h.subs[msg.Anchor][c] = struct{}{}
			h.mu.Unlock()
		case "unsubscribe":
			h.remove(msg.Anchor, c)
		case "ping":
			_ = c.write(map[string]string{"type": "pong"})
		}
	}
	// Remove a conexão de todas as assinaturas ao desconectar
	h.mu.Lock()
	for anchor, set := range h.subs {
		delete(set, c)
		if len(set) == 0 {
			delete(h.subs, anchor)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) remove(anchor string, c *conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.subs[anchor]; ok {
		delete(m, c)
		if len(m) == 0 {
			delete(h.subs, anchor)
		}
	}
}

// Broadcast envia a atualização aos inscritos na âncora e aos inscritos em "*"
func (h *Hub) Broadcast(update RunUpdate) {
	h.mu.RLock()
	targets := make([]*conn, 0, len(h.subs[update.Anchor])+len(h.subs[AllAnchors]))
	for c := range h.subs[update.Anchor] {
		targets = append(targets, c)
	}
	if update.Anchor != AllAnchors {
		for c := range h.subs[AllAnchors] {
			if _, dup := h.subs[update.Anchor][c]; !dup {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()
	if len(targets) == 0 {
		return
	}

	b, _ := json.Marshal(update)
	for _, c := range targets {
		_ = c.writeRaw(b)
	}
}
