// apps/go-server/internal/httpserver/routes_rooms.go
//
// HTTP routes for rooms. Every mutation goes through room.Service and
// answers with the caller's view of the resulting document:
//
//	{"applied": true,  "session": {...}}   the write committed
//	{"applied": false, "session": {...}}   a stale no-op (someone got there first)
//
// Errors map to status codes in writeError.

package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/store"
)

// sessionRes is the envelope for every room response.
type sessionRes struct {
	Applied bool      `json:"applied"`
	Session game.View `json:"session"`
}

type cluesReq struct {
	Clues []string `json:"clues"`
}

type guessReq struct {
	Guess string `json:"guess"`
}

// handleCreateRoom opens a room under a fresh id with the caller seated.
func (s *Server) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	me := playerFrom(r)
	doc, err := s.rooms.CreateRoom(r.Context(), me)
	s.respond(w, r, me, doc, err)
}

// handleJoin seats the caller, creating the room when it does not exist.
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	me := playerFrom(r)
	doc, err := s.rooms.JoinOrCreate(r.Context(), chi.URLParam(r, "id"), me)
	s.respond(w, r, me, doc, err)
}

// handleGetRoom returns the caller's current view.
func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	me := playerFrom(r)
	doc, err := s.rooms.Get(r.Context(), chi.URLParam(r, "id"))
	s.respond(w, r, me, doc, err)
}

func (s *Server) handleClues(w http.ResponseWriter, r *http.Request) {
	var req cluesReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_json"})
		return
	}
	me := playerFrom(r)
	doc, err := s.rooms.SubmitClues(r.Context(), chi.URLParam(r, "id"), me.ID, req.Clues)
	s.respond(w, r, me, doc, err)
}

func (s *Server) handleGuess(w http.ResponseWriter, r *http.Request) {
	var req guessReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_json"})
		return
	}
	me := playerFrom(r)
	doc, err := s.rooms.SubmitGuess(r.Context(), chi.URLParam(r, "id"), me.ID, req.Guess)
	s.respond(w, r, me, doc, err)
}

// handleTimeout lets a seated client report an expired countdown.
func (s *Server) handleTimeout(w http.ResponseWriter, r *http.Request) {
	me := playerFrom(r)
	id := chi.URLParam(r, "id")
	if err := s.seated(r, id, me); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.rooms.ResolveTimeout(r.Context(), id)
	s.respond(w, r, me, doc, err)
}

// handleAdvance moves a finished round on to the next one (or the end).
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	me := playerFrom(r)
	id := chi.URLParam(r, "id")
	if err := s.seated(r, id, me); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := s.rooms.AdvanceRound(r.Context(), id)
	s.respond(w, r, me, doc, err)
}

// seated returns game.ErrNotInRoom unless me holds a seat in id.
func (s *Server) seated(r *http.Request, id string, me game.Player) error {
	doc, err := s.rooms.Get(r.Context(), id)
	if err != nil {
		return err
	}
	if !doc.HasPlayer(me.ID) {
		return game.ErrNotInRoom
	}
	return nil
}

// respond writes the envelope, treating stale writes as successful no-ops.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, me game.Player, doc *game.Session, err error) {
	applied := true
	if errors.Is(err, game.ErrStalePrecondition) && doc != nil {
		applied, err = false, nil
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionRes{Applied: applied, Session: doc.ViewFor(me.ID)})
}

// writeError maps domain and store errors to HTTP.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := http.StatusInternalServerError, "internal"
	switch {
	case errors.Is(err, game.ErrRoomFull):
		status, code = http.StatusConflict, "room_full"
	case errors.Is(err, game.ErrNotYourTurn):
		status, code = http.StatusForbidden, "not_your_turn"
	case errors.Is(err, game.ErrNotInRoom):
		status, code = http.StatusForbidden, "not_in_room"
	case errors.Is(err, game.ErrInvalidClues), errors.Is(err, game.ErrInvalidGuess), errors.Is(err, game.ErrInvalidPlayer):
		status, code = http.StatusBadRequest, "invalid_input"
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, store.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "store_unavailable"
	case errors.Is(err, game.ErrStalePrecondition):
		status, code = http.StatusConflict, "stale"
	}
	ev := log.Warn()
	if status == http.StatusInternalServerError || status == http.StatusServiceUnavailable {
		ev = log.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")

	body := map[string]string{"error": code}
	if status == http.StatusBadRequest {
		body["message"] = err.Error()
	}
	writeJSON(w, status, body)
}
