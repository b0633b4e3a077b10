// Package hub implements the WebSocket transport collaborator: it accepts
// peer connections on a named endpoint, relays their text messages to the
// registered handler, and broadcasts outbound text to every connected peer.
// It never touches session state; all it does is invoke callbacks.
package hub

import (
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/castkit/castkit/internal/util"
)

const (
	broadcastBuffer = 64
	sendBuffer      = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub owns the set of connected peers. The Run loop is the single owner of
// the client table; register/unregister/broadcast all funnel through it.
type Hub struct {
	path    string
	clients map[string]*client

	broadcast  chan []byte
	register   chan *client
	unregister chan *client
	quit       chan struct{}
	quitOnce   sync.Once

	onConnect    func(peerID string)
	onDisconnect func(peerID string)
	onMessage    func(peerID string, data []byte)
}

// New creates a hub serving the websocket endpoint at path (e.g. "/ws").
func New(path string) *Hub {
	return &Hub{
		path:       path,
		clients:    make(map[string]*client),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		quit:       make(chan struct{}),
	}
}

// OnConnect / OnDisconnect / OnMessage register the delivery callbacks.
// Set them before calling Run. Callbacks run on hub goroutines and must not
// block on session work.

func (h *Hub) OnConnect(fn func(peerID string))              { h.onConnect = fn }
func (h *Hub) OnDisconnect(fn func(peerID string))           { h.onDisconnect = fn }
func (h *Hub) OnMessage(fn func(peerID string, data []byte)) { h.onMessage = fn }

// Router returns the HTTP handler exposing the websocket endpoint.
func (h *Hub) Router() http.Handler {
	r := chi.NewRouter()
	r.Get(h.path, h.serveWS)
	return r
}

// Run processes register/unregister/broadcast events until Stop. It owns
// the client table exclusively.
func (h *Hub) Run() {
	for {
		select {
		case <-h.quit:
			for id, c := range h.clients {
				c.close()
				delete(h.clients, id)
			}
			return

		case c := <-h.register:
			h.clients[c.id] = c
			util.LogInfo("peer connected: %s", c.id)
			if h.onConnect != nil {
				h.onConnect(c.id)
			}

		case c := <-h.unregister:
			if _, ok := h.clients[c.id]; ok {
				delete(h.clients, c.id)
				c.close()
				util.LogInfo("peer disconnected: %s", c.id)
				if h.onDisconnect != nil {
					h.onDisconnect(c.id)
				}
			}

		case data := <-h.broadcast:
			for id, c := range h.clients {
				select {
				case c.send <- data:
				default:
					util.LogWarning("peer %s send queue full, disconnecting", id)
					delete(h.clients, id)
					c.close()
				}
			}
		}
	}
}

// ErrStopped is returned by Broadcast once the hub has been stopped.
var ErrStopped = errors.New("hub stopped")

// Broadcast queues text for delivery to all connected peers. A full queue
// makes the caller wait rather than losing the message; the only failure is
// a stopped hub.
func (h *Hub) Broadcast(data []byte) error {
	select {
	case h.broadcast <- data:
		return nil
	case <-h.quit:
		return ErrStopped
	}
}

// Stop shuts the hub down and closes every connection. Idempotent.
func (h *Hub) Stop() {
	h.quitOnce.Do(func() { close(h.quit) })
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- c:
	case <-h.quit:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
