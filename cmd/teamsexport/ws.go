package main

import (
	"net/http"
	"time"

	"github.com/optiononetech/teams-chat-export/internal/constants"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
)

// handleProgressSocket streams progress snapshots over a websocket.
// Each frame carries the messages rendered since the previous frame;
// the stream ends with the terminal snapshot once the job finishes.
func (s *Server) handleProgressSocket() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mux.Vars(r)["token"]

		if _, ok := s.tracker.Snapshot(token, 0); !ok {
			s.writeError(w, http.StatusNotFound, "unknown export token")
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).Debug("Websocket accept failed")
			return
		}
		defer conn.Close(websocket.StatusInternalError, "stream aborted")

		ctx := r.Context()
		ticker := time.NewTicker(constants.DefaultProgressPushPeriodMs * time.Millisecond)
		defer ticker.Stop()

		offset := 0
		for {
			snap, ok := s.tracker.Snapshot(token, offset)
			if !ok {
				conn.Close(websocket.StatusGoingAway, "export evicted")
				return
			}

			if len(snap.Messages) > 0 || snap.Done {
				if err := wsjson.Write(ctx, conn, snap); err != nil {
					return
				}
				offset = snap.Total
			}

			if snap.Done {
				conn.Close(websocket.StatusNormalClosure, "")
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}
}
