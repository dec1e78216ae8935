// apps/go-server/internal/httpserver/server.go
//
// HTTP server wiring for the Duo Decoder backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     per-client rate limiting).
//   - Public endpoints: "/", "/health", POST /players (player ticket).
//   - Room endpoints (ticket required): create/join/read a room, submit clues
//     and guesses, resolve timeouts, advance rounds.
//   - Live stream: GET /rooms/{id}/ws pushes the caller's view of every
//     committed session version and runs that client's countdown.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled (so cookies work).
//   - Handler timeouts apply to the JSON API only; the websocket stream lives
//     as long as the connection.

package httpserver

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/room"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/words"
)

// apiTimeout bounds JSON handlers; it covers a slow provider during round builds.
const apiTimeout = 15 * time.Second

// Options carries the transport settings from config.
type Options struct {
	JWTSecret      string
	JWTExpiry      time.Duration
	ClientOrigin   string
	SecureCookies  bool
	RateLimitRPS   float64
	RateLimitBurst int
}

// Server bundles router and room service.
type Server struct {
	r        *chi.Mux
	rooms    *room.Service
	opts     Options
	limiter  *ipLimiter
	upgrader websocket.Upgrader
}

// New constructs a Server, installs middleware, and registers routes.
func New(rooms *room.Service, opts Options) *Server {
	if opts.JWTSecret == "" {
		opts.JWTSecret = "dev_secret_change_me"
	}
	if opts.JWTExpiry <= 0 {
		opts.JWTExpiry = 14 * 24 * time.Hour
	}
	if opts.ClientOrigin == "" {
		opts.ClientOrigin = "http://localhost:5173"
	}
	s := &Server{
		r:       chi.NewRouter(),
		rooms:   rooms,
		opts:    opts,
		limiter: newIPLimiter(opts.RateLimitRPS, opts.RateLimitBurst),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)  // add X-Request-ID
	s.r.Use(chimw.RealIP)     // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer)  // recover from panics
	s.r.Use(s.cors)           // credentials-friendly CORS
	s.r.Use(s.limiter.handle) // per-client token bucket

	// --- diagnostics + identity ---
	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(apiTimeout))
		r.Use(jsonContentType)

		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"duodecoder-go","endpoints":["/health","POST /players","POST /rooms","/rooms/{id}/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"ok":true}`))
		})
		r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]int{"words": words.Stats()})
		})
		r.Post("/players", s.handleNewPlayer)
	})

	// --- rooms (ticket required) ---
	s.r.Route("/rooms", func(r chi.Router) {
		r.Use(s.requirePlayer)
		r.With(chimw.Timeout(apiTimeout), jsonContentType).Post("/", s.handleCreateRoom)

		r.Route("/{id}", func(r chi.Router) {
			r.Use(validRoomParam)

			// live stream: no handler timeout
			r.Get("/ws", s.handleStream)

			r.Group(func(r chi.Router) {
				r.Use(chimw.Timeout(apiTimeout))
				r.Use(jsonContentType)
				r.Get("/", s.handleGetRoom)
				r.Post("/join", s.handleJoin)
				r.Post("/clues", s.handleClues)
				r.Post("/guess", s.handleGuess)
				r.Post("/timeout", s.handleTimeout)
				r.Post("/advance", s.handleAdvance)
			})
		})
	})

	// JSON 404 for easier debugging
	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Router exposes the internal router (server wiring and tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.opts.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkOrigin admits same-host clients (no Origin header) and the client origin.
func (s *Server) checkOrigin(r *http.Request) bool {
	o := r.Header.Get("Origin")
	return o == "" || o == s.opts.ClientOrigin
}

// validRoomParam rejects malformed {id} path values before they reach the store.
func validRoomParam(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !room.ValidRoomID(chi.URLParam(r, "id")) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad_room_id"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
