package http

import (
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"elevate-assessment-service/internal/app"
	"elevate-assessment-service/internal/domain"
)

// WSHandler streams finalized-submission events to dashboard clients.
type WSHandler struct {
	feed     *app.SubmissionFeed
	upgrader websocket.Upgrader
}

func NewWSHandler(feed *app.SubmissionFeed) *WSHandler {
	return &WSHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage struct {
	Type    string                 `json:"type"`
	Payload domain.SubmissionEvent `json:"payload"`
}

// ServeWS upgrades the request and forwards submission events until the
// client disconnects.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	events, cancel := h.feed.Subscribe()
	defer cancel()

	// Reader goroutine only detects disconnects; inbound messages are ignored.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(outboundMessage{Type: "submission", Payload: ev}); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		case <-done:
			return
		}
	}
}
