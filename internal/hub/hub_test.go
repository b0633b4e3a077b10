package hub

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// dial connects a test peer to the hub's endpoint.
func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	return conn
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestHubDeliversAndBroadcasts(t *testing.T) {
	h := New("/ws")

	connected := make(chan string, 1)
	disconnected := make(chan string, 1)
	received := make(chan []byte, 1)
	h.OnConnect(func(id string) { connected <- id })
	h.OnDisconnect(func(id string) { disconnected <- id })
	h.OnMessage(func(id string, data []byte) { received <- data })

	go h.Run()
	defer h.Stop()

	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	peerID := waitFor(t, connected, "connect callback")
	if peerID == "" {
		t.Fatal("empty peer ID")
	}

	// Inbound: peer text reaches the message callback verbatim.
	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"data","data":"hi"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := string(waitFor(t, received, "message callback")); got != `{"type":"data","data":"hi"}` {
		t.Errorf("unexpected payload: %s", got)
	}

	// Outbound: broadcast reaches the connected peer.
	if err := h.Broadcast([]byte("announcement")); err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if string(data) != "announcement" {
		t.Errorf("unexpected broadcast: %s", data)
	}

	// Dropping the connection surfaces as a disconnect event.
	conn.Close()
	if got := waitFor(t, disconnected, "disconnect callback"); got != peerID {
		t.Errorf("disconnect for %s, expected %s", got, peerID)
	}
}

func TestStopIsIdempotentAndClosesPeers(t *testing.T) {
	h := New("/ws")
	go h.Run()

	srv := httptest.NewServer(h.Router())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()

	h.Stop()
	h.Stop() // second stop is a no-op

	if err := h.Broadcast([]byte("too late")); err != ErrStopped {
		t.Errorf("broadcast after stop: expected ErrStopped, got %v", err)
	}

	// The peer observes the hub-side close.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
