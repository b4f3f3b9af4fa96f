package httpapi

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const streamWriteTimeout = 10 * time.Second

// handleOrganizeStream upgrades to a WebSocket and pushes organize records as
// the pipeline finishes them. Slow consumers lose records rather than
// backpressuring the workers.
func (s *Server) handleOrganizeStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		// Accept already wrote the handshake failure response.
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream closed")

	records, cancel := s.engine.Subscribe(64)
	defer cancel()

	ctx := r.Context()

	// Drain reads so pings and the client close handshake are handled.
	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		for {
			if _, _, err := conn.Read(ctx); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case record, ok := <-records:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "engine shutting down")
				return
			}
			writeCtx, writeCancel := context.WithTimeout(ctx, streamWriteTimeout)
			err := wsjson.Write(writeCtx, conn, record)
			writeCancel()
			if err != nil {
				return
			}
		case <-readDone:
			conn.Close(websocket.StatusNormalClosure, "client closed")
			return
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		}
	}
}
