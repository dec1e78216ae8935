// apps/go-server/internal/room/service.go
//
// Synchronization layer: the only sanctioned way to mutate a session.
//
// Every operation maps onto one store primitive so that two clients racing
// on the same room cannot both win:
//
//	JoinOrCreate    CreateIfAbsent, else Transaction (append + start)
//	SubmitClues     ConditionalUpdate (status = clue_master_turn)
//	SubmitGuess     Transaction
//	ResolveTimeout  ConditionalUpdate (timed phase, deadline passed)
//	AdvanceRound    ConditionalUpdate (Finish or BeginStart), then install
//
// Round data is built outside any write (the provider is slow) and installed
// with a conditional update keyed on the round number, so only the first
// install for a round lands. Building and installing are detached from the
// caller's context: a join that filled the room still gets its round written
// when the client goes away mid-build.
//
// A lost race surfaces as game.ErrStalePrecondition together with the
// current document; transports treat it as a no-op.

package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/store"
)

const (
	// DefaultStartGrace is how long a room may sit in starting before another
	// client may rebuild its round.
	DefaultStartGrace = 30 * time.Second

	// DefaultBuildBudget bounds one round build. It stays below the HTTP
	// handler timeout so the filling join answers with the round installed.
	DefaultBuildBudget = 12 * time.Second

	installTimeout = 5 * time.Second
)

// Builder produces round data. *round.Factory implements it.
type Builder interface {
	Build(ctx context.Context, n int, players []game.Player) (*game.Round, error)
}

// Service runs the room operations against a Store.
type Service struct {
	store       store.Store
	builder     Builder
	now         func() time.Time
	maxRounds   int
	startGrace  time.Duration
	buildBudget time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithMaxRounds sets the session length for rooms created by this service.
func WithMaxRounds(n int) Option { return func(s *Service) { s.maxRounds = n } }

// WithStartGrace sets how long starting may last before AdvanceRound retries it.
func WithStartGrace(d time.Duration) Option { return func(s *Service) { s.startGrace = d } }

// WithBuildBudget bounds each round build, independent of the caller's context.
func WithBuildBudget(d time.Duration) Option { return func(s *Service) { s.buildBudget = d } }

// New constructs a Service.
func New(st store.Store, b Builder, opts ...Option) *Service {
	s := &Service{
		store:       st,
		builder:     b,
		now:         time.Now,
		maxRounds:   game.DefaultMaxRounds,
		startGrace:  DefaultStartGrace,
		buildBudget: DefaultBuildBudget,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

var errAlreadySeated = errors.New("already seated")

// CreateRoom opens a fresh room for p under an unused id.
func (s *Service) CreateRoom(ctx context.Context, p game.Player) (*game.Session, error) {
	for attempt := 0; attempt < maxRoomIDAttempts; attempt++ {
		fresh, err := game.NewSession(NewRoomID(), p, s.maxRounds)
		if err != nil {
			return nil, err
		}
		doc, created, err := s.store.CreateIfAbsent(ctx, fresh)
		if err != nil {
			return nil, err
		}
		if created {
			log.Info().Str("room", doc.ID).Str("player", p.ID).Msg("room created")
			return doc, nil
		}
	}
	return nil, fmt.Errorf("no free room id after %d attempts", maxRoomIDAttempts)
}

// JoinOrCreate seats p in roomID, creating the room if it does not exist.
// The join that fills the room also moves it to starting in the same
// transaction, and that caller alone builds and installs round 1.
func (s *Service) JoinOrCreate(ctx context.Context, roomID string, p game.Player) (*game.Session, error) {
	fresh, err := game.NewSession(roomID, p, s.maxRounds)
	if err != nil {
		return nil, err
	}
	doc, created, err := s.store.CreateIfAbsent(ctx, fresh)
	if err != nil {
		return nil, err
	}
	if created {
		log.Info().Str("room", roomID).Str("player", p.ID).Msg("room created")
		return doc, nil
	}
	if doc.HasPlayer(p.ID) {
		return doc, nil
	}

	filled := false
	doc, err = s.store.Transaction(ctx, roomID, func(d *game.Session) error {
		added, err := d.AddPlayer(p)
		if err != nil {
			return err
		}
		if !added {
			return errAlreadySeated
		}
		filled = d.Full()
		if filled {
			return d.BeginStart()
		}
		return nil
	})
	switch {
	case errors.Is(err, errAlreadySeated):
		return s.store.Get(ctx, roomID)
	case errors.Is(err, game.ErrRoomFull):
		log.Info().Str("room", roomID).Str("player", p.ID).Msg("join refused, room full")
		return nil, err
	case err != nil:
		return nil, err
	}
	log.Info().Str("room", roomID).Str("player", p.ID).Int("players", len(doc.Players)).Msg("player joined")

	if !filled {
		return doc, nil
	}
	started, err := s.install(ctx, doc)
	if errors.Is(err, game.ErrStalePrecondition) {
		// Someone else already installed the round; the join itself stands.
		return started, nil
	}
	return started, err
}

// SubmitClues records the Clue Master's selection.
func (s *Service) SubmitClues(ctx context.Context, roomID, playerID string, clues []string) (*game.Session, error) {
	doc, err := s.store.ConditionalUpdate(ctx, roomID,
		store.StatusIn(game.StatusClueMasterTurn),
		func(d *game.Session) error { return d.SubmitClues(playerID, clues, s.now()) })
	if err == nil {
		log.Info().Str("room", roomID).Int("round", doc.CurrentRound).Int("clues", len(clues)).Msg("clues submitted")
	}
	return s.settle(ctx, roomID, doc, err)
}

// SubmitGuess scores the Code Breaker's pick. A retry after success is a
// stale no-op and leaves the score alone.
func (s *Service) SubmitGuess(ctx context.Context, roomID, playerID, guess string) (*game.Session, error) {
	var correct bool
	doc, err := s.store.Transaction(ctx, roomID, func(d *game.Session) error {
		c, err := d.SubmitGuess(playerID, guess)
		correct = c
		return err
	})
	if err == nil {
		log.Info().Str("room", roomID).Int("round", doc.CurrentRound).Bool("correct", correct).Int("score", doc.Score).Msg("guess submitted")
	}
	return s.settle(ctx, roomID, doc, err)
}

// ResolveTimeout ends the current timed phase if its deadline has passed.
// Safe to call from every client; all but the first are stale no-ops.
func (s *Service) ResolveTimeout(ctx context.Context, roomID string) (*game.Session, error) {
	doc, err := s.store.ConditionalUpdate(ctx, roomID,
		store.StatusIn(game.StatusClueMasterTurn, game.StatusCodeBreakerTurn),
		func(d *game.Session) error { return d.Timeout(s.now()) })
	if err == nil {
		log.Info().Str("room", roomID).Int("round", doc.CurrentRound).Str("outcome", string(doc.Round.Outcome)).Msg("phase timed out")
	}
	return s.settle(ctx, roomID, doc, err)
}

// AdvanceRound finishes the session after the last round, or starts the
// next one. A room stuck in starting past the grace period is rebuilt.
func (s *Service) AdvanceRound(ctx context.Context, roomID string) (*game.Session, error) {
	cur, err := s.store.Get(ctx, roomID)
	if err != nil {
		return nil, err
	}

	switch cur.Status {
	case game.StatusRoundOver:
		pre := store.All(store.StatusIn(game.StatusRoundOver), store.RoundIs(cur.CurrentRound))
		if cur.LastRound() {
			doc, err := s.store.ConditionalUpdate(ctx, roomID, pre, (*game.Session).Finish)
			if err == nil {
				log.Info().Str("room", roomID).Int("score", doc.Score).Int("rounds", doc.MaxRounds).Msg("session finished")
			}
			return s.settle(ctx, roomID, doc, err)
		}
		doc, err := s.store.ConditionalUpdate(ctx, roomID, pre, (*game.Session).BeginStart)
		if err != nil {
			return s.settle(ctx, roomID, doc, err)
		}
		return s.install(ctx, doc)

	case game.StatusStarting:
		if s.now().Sub(cur.UpdatedAt) < s.startGrace {
			return cur, fmt.Errorf("%w: round %d is being prepared", game.ErrStalePrecondition, cur.CurrentRound+1)
		}
		log.Warn().Str("room", roomID).Int("round", cur.CurrentRound+1).Msg("rebuilding round left in starting")
		return s.install(ctx, cur)

	default:
		return cur, fmt.Errorf("%w: cannot advance from %s", game.ErrStalePrecondition, cur.Status)
	}
}

// Get returns the current document.
func (s *Service) Get(ctx context.Context, roomID string) (*game.Session, error) {
	return s.store.Get(ctx, roomID)
}

// Subscribe streams the room's documents, current one first.
func (s *Service) Subscribe(ctx context.Context, roomID string) (*store.Subscription, error) {
	return s.store.Subscribe(ctx, roomID)
}

// install builds round CurrentRound+1 for a room in starting and writes it.
// Neither step inherits ctx's cancellation; each runs under its own deadline.
func (s *Service) install(ctx context.Context, doc *game.Session) (*game.Session, error) {
	n := doc.CurrentRound + 1
	detached := context.WithoutCancel(ctx)

	bctx, cancel := context.WithTimeout(detached, s.buildBudget)
	r, err := s.builder.Build(bctx, n, doc.Players)
	cancel()
	if err != nil {
		return nil, err
	}

	wctx, cancel := context.WithTimeout(detached, installTimeout)
	defer cancel()
	next, err := s.store.ConditionalUpdate(wctx, doc.ID,
		store.All(store.StatusIn(game.StatusStarting), store.RoundIs(n-1)),
		func(d *game.Session) error { return d.InstallRound(r) })
	if err == nil {
		log.Info().Str("room", doc.ID).Int("round", n).Str("clueMaster", r.ClueMasterID).Bool("fallback", r.Fallback).Msg("round started")
	}
	return s.settle(wctx, doc.ID, next, err)
}

// settle swaps in the current document when a write was stale.
func (s *Service) settle(ctx context.Context, roomID string, doc *game.Session, err error) (*game.Session, error) {
	if !errors.Is(err, game.ErrStalePrecondition) {
		return doc, err
	}
	log.Debug().Str("room", roomID).Err(err).Msg("stale write ignored")
	cur, gerr := s.store.Get(ctx, roomID)
	if gerr != nil {
		return nil, gerr
	}
	return cur, err
}
