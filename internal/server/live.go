package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"clantracker/internal/storage"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// No Origin header = non-browser client (curl, tests).
		return origin == "" || origin == "http://"+r.Host || origin == "https://"+r.Host
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

const (
	hubChannelBuffer = 16
	hubWriteDeadline = 10 * time.Second
)

// Hub fans each newly recorded snapshot out to connected dashboards.
type Hub struct {
	clients    map[*websocket.Conn]bool
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	broadcast  chan []byte

	mu  sync.RWMutex
	log zerolog.Logger
}

// NewHub creates a websocket hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		register:   make(chan *websocket.Conn, hubChannelBuffer),
		unregister: make(chan *websocket.Conn, hubChannelBuffer),
		broadcast:  make(chan []byte, hubChannelBuffer),
		log:        log.With().Str("component", "live_hub").Logger(),
	}
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for conn := range h.clients {
				conn.Close()
			}
			h.clients = make(map[*websocket.Conn]bool)
			h.mu.Unlock()
			return
		case conn := <-h.register:
			h.mu.Lock()
			h.clients[conn] = true
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Int("clients", count).Msg("live client connected")
		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[conn]; ok {
				delete(h.clients, conn)
				conn.Close()
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.log.Debug().Int("clients", count).Msg("live client disconnected")
		case message := <-h.broadcast:
			h.mu.RLock()
			var failed []*websocket.Conn
			for conn := range h.clients {
				conn.SetWriteDeadline(time.Now().Add(hubWriteDeadline))
				if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
					failed = append(failed, conn)
				}
			}
			h.mu.RUnlock()

			// Drop dead clients inline. Run is the only reader of the
			// unregister channel, so sending there from this loop would
			// deadlock once the buffer fills.
			if len(failed) > 0 {
				h.mu.Lock()
				for _, conn := range failed {
					if _, ok := h.clients[conn]; ok {
						delete(h.clients, conn)
						conn.Close()
					}
				}
				count := len(h.clients)
				h.mu.Unlock()
				h.log.Debug().Int("dropped", len(failed)).Int("clients", count).Msg("dropped dead live clients")
			}
		}
	}
}

// BroadcastSnapshot implements poller.SnapshotNotifier. Drops the message
// when the buffer is full rather than stalling the poll cycle.
func (h *Hub) BroadcastSnapshot(snapshot storage.Snapshot) {
	message, err := json.Marshal(map[string]any{
		"type": "snapshot",
		"data": snapshot,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("marshal snapshot broadcast")
		return
	}

	select {
	case h.broadcast <- message:
	default:
		h.log.Warn().Msg("live feed buffer full, dropping broadcast")
	}
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	s.hub.register <- conn

	// Reader loop: the feed is one-way, but reads must be drained to notice
	// client disconnects.
	go func() {
		defer func() { s.hub.unregister <- conn }()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
