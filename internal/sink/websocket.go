package sink

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/doismellburning/ism433/internal/record"
)

// WebSocket is a browser-facing broadcast sink: every accepted
// connection receives every emitted record as a JSON text frame, with no
// retry or backpressure handling if a client falls behind.
type WebSocket struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewWebSocket returns a sink whose ServeHTTP method accepts new client
// connections; wire it into an http.ServeMux at the configured path.
func NewWebSocket() *WebSocket {
	return &WebSocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: map[*websocket.Conn]struct{}{},
	}
}

// ServeHTTP upgrades the request and registers the connection for
// broadcast. The read loop exists only to detect client-initiated close;
// this sink never expects inbound messages.
func (w *WebSocket) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	conn, err := w.upgrader.Upgrade(rw, req, nil)
	if err != nil {
		return
	}
	w.mu.Lock()
	w.clients[conn] = struct{}{}
	w.mu.Unlock()

	go func() {
		defer w.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (w *WebSocket) drop(conn *websocket.Conn) {
	w.mu.Lock()
	delete(w.clients, conn)
	w.mu.Unlock()
	conn.Close()
}

func (w *WebSocket) Emit(r *record.Record) error {
	payload, err := json.Marshal(ToMap(r))
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for conn := range w.clients {
		// Best-effort: a write failure drops that one client, never
		// the broadcast to the rest.
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			go w.drop(conn)
		}
	}
	return nil
}

func (w *WebSocket) Poll() {}

func (w *WebSocket) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for conn := range w.clients {
		conn.Close()
	}
	w.clients = map[*websocket.Conn]struct{}{}
	return nil
}
