// file: internals/features/meetings/realtime/hub.go
package realtime

import (
	"log"
	"net/http"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Peer is one WebSocket subscriber watching a session's presence feed.
type Peer struct {
	SessionID uuid.UUID
	UserID    string
	Conn      *websocket.Conn
	Send      chan []byte

	// Closed on unregister. Send itself is never closed: a broadcast
	// that raced the unregister must not hit a closed channel.
	done chan struct{}
}

// Done signals that the peer has been unregistered.
func (p *Peer) Done() <-chan struct{} { return p.done }

/*
=========================================================

	Hub: per-session subscriber sets. Broadcasts never
	block: a subscriber with a full buffer misses the event.
	=========================================================
*/
type Hub struct {
	mu       sync.RWMutex
	peers    map[uuid.UUID]map[*Peer]struct{}
	upgrader websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		peers: make(map[uuid.UUID]map[*Peer]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Register adds a peer and returns its cleanup function.
func (h *Hub) Register(sessionID uuid.UUID, userID string, conn *websocket.Conn) (*Peer, func()) {
	p := &Peer{
		SessionID: sessionID,
		UserID:    userID,
		Conn:      conn,
		Send:      make(chan []byte, 64),
		done:      make(chan struct{}),
	}
	h.mu.Lock()
	if h.peers[sessionID] == nil {
		h.peers[sessionID] = make(map[*Peer]struct{})
	}
	h.peers[sessionID][p] = struct{}{}
	h.mu.Unlock()

	return p, func() { h.unregister(p) }
}

func (h *Hub) unregister(p *Peer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := h.peers[p.SessionID]; ok {
		if _, live := m[p]; !live {
			return
		}
		delete(m, p)
		if len(m) == 0 {
			delete(h.peers, p.SessionID)
		}
		close(p.done)
	}
}

// Broadcast pushes one event to every subscriber of the session.
func (h *Hub) Broadcast(sessionID uuid.UUID, event string, payload any) {
	raw, err := sonic.Marshal(map[string]any{
		"event":      event,
		"session_id": sessionID.String(),
		"data":       payload,
	})
	if err != nil {
		log.Println("[ERROR] hub marshal:", err)
		return
	}

	h.mu.RLock()
	m := h.peers[sessionID]
	peers := make([]*Peer, 0, len(m))
	for p := range m {
		peers = append(peers, p)
	}
	h.mu.RUnlock()

	for _, p := range peers {
		select {
		case p.Send <- raw:
		default:
		}
	}
}

// SubscriberCount reports live subscribers for a session.
func (h *Hub) SubscriberCount(sessionID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.peers[sessionID])
}

/* =========================
   HTTP endpoint
========================= */

// ServeHTTP upgrades GET /ws/sessions?session_id=...&user_id=... and
// streams presence events until the client goes away. It runs on a
// plain net/http listener beside the API server.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID, err := uuid.Parse(r.URL.Query().Get("session_id"))
	if err != nil {
		http.Error(w, "invalid session_id", http.StatusBadRequest)
		return
	}
	userID := r.URL.Query().Get("user_id")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[ERROR] ws upgrade:", err)
		return
	}

	p, cleanup := h.Register(sessionID, userID, conn)

	go func() {
		defer conn.Close()
		for {
			select {
			case raw := <-p.Send:
				if err := conn.WriteMessage(websocket.TextMessage, raw); err != nil {
					return
				}
			case <-p.done:
				return
			}
		}
	}()

	go func() {
		defer cleanup()
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
