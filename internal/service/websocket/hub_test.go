package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lanepilot/internal/testutil"

	"github.com/gorilla/websocket"
)

func newTestHub(t *testing.T) (*HubService, *httptest.Server) {
	t.Helper()
	cfg := testutil.Config(t)
	hub := NewHubService(testutil.Logger(t, cfg))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Register(conn)
	}))
	t.Cleanup(server.Close)
	return hub, server
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, hub *HubService, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.GetClientCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("Expected %d clients, got %d", n, hub.GetClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_BroadcastReachesClients(t *testing.T) {
	hub, server := newTestHub(t)
	a := dial(t, server)
	b := dial(t, server)
	waitForClients(t, hub, 2)

	if !hub.Broadcast([]byte(`{"steering":0.1}`)) {
		t.Fatalf("Expected broadcast to be queued")
	}

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		if string(msg) != `{"steering":0.1}` {
			t.Errorf("Unexpected message %s", msg)
		}
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	cfg := testutil.Config(t)
	hub := NewHubService(testutil.Logger(t, cfg))
	// Run is not started, so nothing drains the queue.

	done := make(chan int)
	go func() {
		queued := 0
		for i := 0; i < broadcastBuffer*3; i++ {
			if hub.Broadcast([]byte("frame")) {
				queued++
			}
		}
		done <- queued
	}()

	select {
	case queued := <-done:
		if queued != broadcastBuffer {
			t.Errorf("Expected %d queued messages, got %d", broadcastBuffer, queued)
		}
	case <-time.After(time.Second):
		t.Fatalf("Broadcast blocked")
	}
}
