// pkg/api/stream.go

package api

import (
	"context"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	streamWriteTimeout = 10 * time.Second
	streamSendBuffer   = 8
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The read API is unauthenticated; the stream carries the same data.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// streamHub fans host payloads out to websocket subscribers. A subscriber
// that cannot keep up is dropped rather than allowed to block the rest.
type streamHub struct {
	mu      sync.Mutex
	clients map[*streamClient]struct{}
	closed  bool
}

type streamClient struct {
	conn *websocket.Conn
	send chan HostPayload
}

func newStreamHub() *streamHub {
	return &streamHub{
		clients: make(map[*streamClient]struct{}),
	}
}

func (h *streamHub) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Stream upgrade failed: %v", err)
		return
	}

	client := &streamClient{
		conn: conn,
		send: make(chan HostPayload, streamSendBuffer),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()

		return
	}

	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go h.writeLoop(client)

	// Drain control frames; any read error means the peer is gone.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			h.drop(client)
			return
		}
	}
}

func (h *streamHub) writeLoop(client *streamClient) {
	for payload := range client.send {
		_ = client.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout))

		if err := client.conn.WriteJSON(payload); err != nil {
			h.drop(client)
			return
		}
	}

	_ = client.conn.Close()
}

func (h *streamHub) broadcast(payload HostPayload) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			// Full buffer means a stalled peer.
			h.removeLocked(client)
		}
	}
}

func (h *streamHub) drop(client *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(client)
}

func (h *streamHub) removeLocked(client *streamClient) {
	if _, ok := h.clients[client]; !ok {
		return
	}

	delete(h.clients, client)
	close(client.send)
}

// run blocks until ctx is canceled, then closes the hub.
func (h *streamHub) run(ctx context.Context) {
	<-ctx.Done()
	h.close()
}

func (h *streamHub) close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}

	h.closed = true

	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
}
