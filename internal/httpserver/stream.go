package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// frame is one server-to-client websocket message.
type frame struct {
	Type    string     `json:"type"` // "session" | "error"
	Session *game.View `json:"session,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// handleStream upgrades to a websocket and pushes the caller's view of every
// committed version, starting with the current one. It also runs this
// client's countdown (room.Service.Watch) for as long as the socket is open.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	me := playerFrom(r)
	id := chi.URLParam(r, "id")
	if err := s.seated(r, id, me); err != nil {
		writeError(w, r, err)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("room", id).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := s.rooms.Subscribe(ctx, id)
	if err != nil {
		_ = conn.WriteJSON(frame{Type: "error", Error: err.Error()})
		return
	}
	defer sub.Close()

	go func() {
		if err := s.rooms.Watch(ctx, id); err != nil && !errors.Is(err, context.Canceled) {
			log.Warn().Err(err).Str("room", id).Msg("countdown stopped")
		}
	}()

	// Reader: clients send nothing meaningful; this keeps pongs flowing and
	// notices the close.
	go func() {
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Debug().Str("room", id).Str("player", me.ID).Msg("stream opened")
	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case doc, ok := <-sub.C():
			if !ok {
				return
			}
			v := doc.ViewFor(me.ID)
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(frame{Type: "session", Session: &v}); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}
