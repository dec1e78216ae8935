// apps/go-server/main.go
//
// Entry point for the Duo Decoder game server.
// Wires config → store (SQLite or memory) → provider → round factory →
// room service → HTTP server, then serves until SIGINT/SIGTERM.

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/duodecoder/apps/go-server/assets"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/config"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/db"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/httpserver"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/provider"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/room"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/round"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/store"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/words"
)

const (
	pollInterval   = 500 * time.Millisecond
	purgeInterval  = time.Hour
	finishedMaxAge = 24 * time.Hour
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := words.Init(); err != nil {
		log.Fatal().Err(err).Msg("failed to load vocabulary")
	}
	log.Info().Int("words", words.Stats()).Str("file", cfg.WordsFile).Msg("vocabulary loaded")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, closeStore := openStore(ctx, cfg)
	defer closeStore()

	var p provider.Client
	switch cfg.Provider {
	case config.ProviderHTTP:
		p = provider.NewHTTP(cfg.ProviderURL, cfg.ProviderAPIKey, cfg.ProviderModel, cfg.ProviderTimeout)
	default:
		local, err := provider.NewLocal()
		if err != nil {
			log.Fatal().Err(err).Msg("local provider")
		}
		p = local
	}
	log.Info().Str("provider", cfg.Provider).Str("model", cfg.ProviderModel).Msg("provider ready")

	budget := min(2*cfg.ProviderTimeout, room.DefaultBuildBudget)
	factory := round.New(p, cfg.RoundTimeLimit, round.WithBuildTimeout(budget))
	rooms := room.New(st, factory, room.WithMaxRounds(cfg.MaxRounds), room.WithBuildBudget(budget))
	srv := httpserver.New(rooms, httpserver.Options{
		JWTSecret:      cfg.JWTSecret,
		JWTExpiry:      time.Duration(cfg.JWTExpiryDays) * 24 * time.Hour,
		ClientOrigin:   cfg.ClientOrigin,
		SecureCookies:  cfg.SecureCookies,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	})

	hs := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := hs.Shutdown(shutdown); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	log.Info().Str("port", cfg.Port).Str("store", cfg.Store).Msg("starting go-server")
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

// purger is a Store that can drop finished rooms.
type purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// openStore builds the configured Store and its background loops.
func openStore(ctx context.Context, cfg config.Config) (store.Store, func()) {
	if cfg.Store == config.StoreMemory {
		st := store.NewMemoryStore()
		go purgeLoop(ctx, st)
		return st, func() {}
	}

	conn, err := db.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := db.Migrate(conn, assets.Migrations()); err != nil {
		log.Fatal().Err(err).Msg("migrate")
	}
	st := store.NewSQLiteStore(conn)

	go st.Poll(ctx, pollInterval)
	go purgeLoop(ctx, st)
	return st, func() { _ = conn.Close() }
}

// purgeLoop drops rooms that finished more than finishedMaxAge ago.
func purgeLoop(ctx context.Context, p purger) {
	t := time.NewTicker(purgeInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := p.Purge(ctx, time.Now().Add(-finishedMaxAge))
			if err != nil {
				log.Warn().Err(err).Msg("purge finished rooms")
				continue
			}
			if n > 0 {
				log.Info().Int64("rooms", n).Msg("purged finished rooms")
			}
		}
	}
}
