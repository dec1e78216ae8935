// apps/go-server/internal/httpserver/tickets.go
//
// Player tickets: POST /players mints a random player id and signs it into
// an HS256 JWT, returned both in the body and as a cookie. Room routes read
// the ticket from the Authorization header, the cookie, or ?ticket= (for
// websocket clients that cannot set headers).
//
// A ticket is an identity, not an account: there is no password and nothing
// is stored server-side.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
)

const (
	ticketCookie  = "duodecoder_ticket"
	maxNameLength = 24
)

// ctxPlayerKey is the context key type for storing the caller's game.Player.
type ctxPlayerKey struct{}

type newPlayerReq struct {
	Name string `json:"name"`
}

type newPlayerRes struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// handleNewPlayer issues a fresh player identity.
func (s *Server) handleNewPlayer(w http.ResponseWriter, r *http.Request) {
	var req newPlayerReq
	_ = json.NewDecoder(r.Body).Decode(&req)
	name, ok := normalizeName(req.Name)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_input", "message": "name must be 1-24 characters"})
		return
	}

	p := game.Player{ID: uuid.NewString(), Name: name}
	tok, exp, err := s.signTicket(p)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "sign_failed"})
		return
	}
	s.setTicketCookie(w, tok, exp)
	writeJSON(w, http.StatusOK, newPlayerRes{ID: p.ID, Name: p.Name, Token: tok, ExpiresAt: exp})
}

// normalizeName trims whitespace and defaults an empty name.
func normalizeName(n string) (string, bool) {
	n = strings.TrimSpace(n)
	if n == "" {
		n = "Player"
	}
	if utf8.RuneCountInString(n) > maxNameLength {
		return "", false
	}
	return n, true
}

// signTicket creates an HS256 JWT carrying the player id and name.
func (s *Server) signTicket(p game.Player) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(s.opts.JWTExpiry)
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":   p.ID,
		"name": p.Name,
		"exp":  exp.Unix(),
		"iat":  now.Unix(),
	})
	ss, err := t.SignedString([]byte(s.opts.JWTSecret))
	return ss, exp, err
}

// parseTicket validates a ticket and returns its player.
func (s *Server) parseTicket(tok string) (game.Player, bool) {
	claims := jwt.MapClaims{}
	t, err := jwt.ParseWithClaims(tok, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(s.opts.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !t.Valid {
		return game.Player{}, false
	}
	id, _ := claims["id"].(string)
	name, _ := claims["name"].(string)
	if id == "" {
		return game.Player{}, false
	}
	return game.Player{ID: id, Name: name}, true
}

// setTicketCookie writes the ticket cookie with appropriate security attributes.
func (s *Server) setTicketCookie(w http.ResponseWriter, token string, exp time.Time) {
	sameSite := http.SameSiteLaxMode
	if s.opts.SecureCookies {
		sameSite = http.SameSiteNoneMode // required for third-party contexts when Secure
	}
	http.SetCookie(w, &http.Cookie{
		Name:     ticketCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.opts.SecureCookies,
		SameSite: sameSite,
		Expires:  exp,
	})
}

// ticketFrom extracts a ticket from the Authorization header, cookie, or query.
func ticketFrom(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	if c, err := r.Cookie(ticketCookie); err == nil && c.Value != "" {
		return c.Value
	}
	return r.URL.Query().Get("ticket")
}

// requirePlayer enforces a valid ticket and injects the player into the context.
func (s *Server) requirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok := ticketFrom(r)
		if tok == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "no_ticket"})
			return
		}
		p, ok := s.parseTicket(tok)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_ticket"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxPlayerKey{}, p)))
	})
}

// playerFrom returns the player injected by requirePlayer.
func playerFrom(r *http.Request) game.Player {
	p, _ := r.Context().Value(ctxPlayerKey{}).(game.Player)
	return p
}
