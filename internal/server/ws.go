package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS delivers frames as binary WebSocket messages. Slow clients get
// the same latest-wins treatment as multipart subscribers: the bus mailbox
// holds at most one pending frame.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("server: websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()

	id := uuid.New().String()
	sub, err := s.bus.Subscribe(id)
	if err != nil {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream unavailable"))
		return
	}
	defer sub.Close()

	slog.Debug("server: websocket subscriber connected", "subscriber", id, "remote", r.RemoteAddr)

	// Reader goroutine: drains control frames and cancels on client close.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		frame, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream ended"))
			}
			return
		}

		if err := conn.WriteMessage(websocket.BinaryMessage, frame.Data); err != nil {
			return
		}
	}
}
