package server

import (
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// writeWait bounds a single WebSocket write.
const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// CentroidHandler pushes every pipeline update to WebSocket clients as JSON.
type CentroidHandler struct {
	pipeline Pipeline
}

// NewCentroidHandler creates a new CentroidHandler subscribed to p per client.
func NewCentroidHandler(p Pipeline) *CentroidHandler {
	return &CentroidHandler{pipeline: p}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *CentroidHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	updates, unsubscribe := h.pipeline.Subscribe()
	defer unsubscribe()

	// The read loop only notices the client closing.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-closed:
			return
		case u, ok := <-updates:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "pipeline stopped"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(u); err != nil {
				return
			}
		}
	}
}
