package websocket

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Events carry public counters only
		return true
	},
}

// ServeWS upgrades the request and subscribes it to counter events.
// ?post_id= narrows the stream to one post.
func ServeWS(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var postID uint
		if raw := r.URL.Query().Get("post_id"); raw != "" {
			id, err := strconv.ParseUint(raw, 10, 64)
			if err != nil || id == 0 {
				http.Error(w, "Invalid post_id", http.StatusBadRequest)
				return
			}
			postID = uint(id)
		}

		// Upgrade connection to WebSocket
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("WebSocket upgrade error: %v", err)
			return
		}

		client := NewClient(hub, conn, postID)
		select {
		case hub.register <- client:
		case <-hub.quit:
			conn.Close()
			return
		}

		go client.Start()
	}
}
