package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
)

const progressWriteTimeout = 5 * time.Second

// handleProgress streams progress events for one upload as JSON messages.
// The connection is closed after the completed or failed event.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	uploadID := chi.URLParam(r, "uploadID")

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		slog.Warn("progress websocket upgrade failed", "upload_id", uploadID, "error", err)
		return
	}
	defer conn.CloseNow()

	events, cancel := s.broker.Subscribe(uploadID)
	defer cancel()

	// Client messages are ignored; CloseRead notices when the client leaves.
	ctx := conn.CloseRead(r.Context())

	slog.Debug("progress subscriber connected", "upload_id", uploadID)
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			wctx, done := context.WithTimeout(ctx, progressWriteTimeout)
			err := wsjson.Write(wctx, conn, e)
			done()
			if err != nil {
				slog.Debug("progress write failed", "upload_id", uploadID, "error", err)
				return
			}
			if e.Done() {
				conn.Close(websocket.StatusNormalClosure, string(e.Stage))
				return
			}
		}
	}
}
