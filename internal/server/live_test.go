package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"clantracker/internal/storage"
)

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// dialClients upgrades n websocket connections against a throwaway server and
// hands back the server-side conns.
func dialClients(t *testing.T, n int) []*websocket.Conn {
	t.Helper()

	upgraded := make(chan *websocket.Conn, n)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgraded <- conn
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conns := make([]*websocket.Conn, 0, n)
	for i := 0; i < n; i++ {
		client, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		t.Cleanup(func() { client.Close() })
		conns = append(conns, <-upgraded)
	}
	return conns
}

func TestHubBroadcastReachesConnectedClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	upgraded := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgraded <- conn
	}))
	defer srv.Close()

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.register <- <-upgraded
	require.Eventually(t, func() bool { return hub.clientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.BroadcastSnapshot(storage.Snapshot{Timestamp: time.Now(), ClanTag: "#ABC", Members: 47})

	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := client.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(message), `"type":"snapshot"`)
	require.Contains(t, string(message), "#ABC")
}

func TestHubDropsManyDeadClientsInOnePass(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	// More dead clients than the hub's channel buffer holds: a single
	// broadcast pass must still clear all of them.
	conns := dialClients(t, 20)
	for _, conn := range conns {
		hub.clients[conn] = true
		conn.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	hub.BroadcastSnapshot(storage.Snapshot{Timestamp: time.Now(), ClanTag: "#ABC"})

	require.Eventually(t, func() bool { return hub.clientCount() == 0 },
		2*time.Second, 10*time.Millisecond, "dead clients must be removed without wedging the hub")

	// The hub keeps processing events after the purge.
	live := dialClients(t, 1)
	hub.register <- live[0]
	require.Eventually(t, func() bool { return hub.clientCount() == 1 },
		time.Second, 10*time.Millisecond, "hub stopped processing registers after dropping dead clients")
}
