// apps/go-server/internal/round/factory.go
//
// Round factory: builds one round's data for a session.
//
// Steps:
//   1. Ask the provider for the secret word.
//   2. In parallel, ask for clues for that word and for three decoy words.
//   3. Make the decoys distinct from each other and from the secret word
//      (re-ask a bounded number of times, then top up from the local
//      vocabulary).
//   4. Shuffle secret + decoys into the four options.
//   5. Seat the Clue Master (players[(n-1) mod 2]) and start the clock.
//
// Provider failures never reach the caller: the factory substitutes the fixed
// fallback round (secret word "Fallback") and logs a warning.

package round

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/provider"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/words"
)

const (
	decoyCount = game.OptionCount - 1
	// maxDecoyAttempts bounds extra provider calls spent replacing duplicate decoys.
	maxDecoyAttempts = 3
)

// Fallback round content. FallbackWord marks a round built without the provider.
const FallbackWord = "Fallback"

var (
	fallbackClues  = []string{"This is a backup", "The AI service might be down", "Please try again later"}
	fallbackDecoys = []string{"House", "River", "Mountain"}
)

var errShortDecoys = errors.New("not enough distinct decoys")

// Factory builds rounds. The zero value is not usable; see New.
type Factory struct {
	provider     provider.Client
	timeLimit    time.Duration
	buildTimeout time.Duration
	now          func() time.Time

	mu  sync.Mutex // guards rng
	rng *rand.Rand
}

// Option customizes a Factory.
type Option func(*Factory)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option { return func(f *Factory) { f.now = now } }

// WithBuildTimeout bounds the whole provider exchange for one round.
func WithBuildTimeout(d time.Duration) Option { return func(f *Factory) { f.buildTimeout = d } }

// WithRand makes option order come from rng instead of the global source.
func WithRand(rng *rand.Rand) Option { return func(f *Factory) { f.rng = rng } }

// New constructs a Factory. timeLimit is applied to each timed phase.
func New(p provider.Client, timeLimit time.Duration, opts ...Option) *Factory {
	if timeLimit <= 0 {
		timeLimit = game.DefaultTimeLimit
	}
	f := &Factory{provider: p, timeLimit: timeLimit, now: time.Now}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Build returns round n for players. It only fails on caller error (wrong
// player count or round number); provider trouble yields the fallback round.
func (f *Factory) Build(ctx context.Context, n int, players []game.Player) (*game.Round, error) {
	cm, err := game.ClueMasterFor(players, n)
	if err != nil {
		return nil, err
	}

	if f.buildTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.buildTimeout)
		defer cancel()
	}

	secret, clues, decoys, err := f.generate(ctx)
	if err != nil {
		log.Warn().Err(err).Int("round", n).Msg("provider failed, using fallback round")
		return f.Fallback(n, players)
	}

	return &game.Round{
		Number:        n,
		ClueMasterID:  cm.ID,
		SecretWord:    secret,
		Clues:         clues,
		SelectedClues: []string{},
		Options:       f.shuffle(append([]string{secret}, decoys...)),
		StartTime:     f.now(),
		TimeLimit:     int(f.timeLimit / time.Second),
	}, nil
}

// Fallback returns the fixed fallback round for n.
func (f *Factory) Fallback(n int, players []game.Player) (*game.Round, error) {
	cm, err := game.ClueMasterFor(players, n)
	if err != nil {
		return nil, err
	}
	return &game.Round{
		Number:        n,
		ClueMasterID:  cm.ID,
		SecretWord:    FallbackWord,
		Clues:         append([]string(nil), fallbackClues...),
		SelectedClues: []string{},
		Options:       f.shuffle(append([]string{FallbackWord}, fallbackDecoys...)),
		StartTime:     f.now(),
		TimeLimit:     int(f.timeLimit / time.Second),
		Fallback:      true,
	}, nil
}

// shuffle permutes options in place and returns them.
func (f *Factory) shuffle(options []string) []string {
	if f.rng == nil {
		return lo.Shuffle(options)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rng.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return options
}

// generate runs the provider exchange: word first, then clues and decoys
// concurrently.
func (f *Factory) generate(ctx context.Context) (secret string, clues, decoys []string, err error) {
	secret, err = f.provider.PickWord(ctx)
	if err != nil {
		return "", nil, nil, fmt.Errorf("pick secret: %w", err)
	}

	decoys = make([]string, decoyCount)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		c, err := f.provider.GenerateClues(gctx, secret)
		if err != nil {
			return fmt.Errorf("clues for %q: %w", secret, err)
		}
		clues = c
		return nil
	})
	for i := range decoys {
		i := i
		g.Go(func() error {
			w, err := f.provider.PickWord(gctx)
			if err != nil {
				return fmt.Errorf("decoy %d: %w", i+1, err)
			}
			decoys[i] = w
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, nil, err
	}

	decoys, err = f.distinctDecoys(ctx, secret, decoys)
	if err != nil {
		return "", nil, nil, err
	}
	return secret, clues, decoys, nil
}

// distinctDecoys drops decoys that repeat the secret or each other
// (case-insensitively) and refills the gaps.
func (f *Factory) distinctDecoys(ctx context.Context, secret string, raw []string) ([]string, error) {
	seen := map[string]bool{strings.ToLower(secret): true}
	out := make([]string, 0, decoyCount)
	add := func(w string) {
		k := strings.ToLower(strings.TrimSpace(w))
		if k == "" || seen[k] || len(out) == decoyCount {
			return
		}
		seen[k] = true
		out = append(out, w)
	}
	for _, w := range raw {
		add(w)
	}

	for attempt := 0; len(out) < decoyCount && attempt < maxDecoyAttempts; attempt++ {
		w, err := f.provider.PickWord(ctx)
		if err != nil {
			break
		}
		add(w)
	}
	if len(out) < decoyCount {
		if err := words.Init(); err == nil {
			for _, w := range words.Sample(decoyCount-len(out), lo.Keys(seen)...) {
				add(w)
			}
		}
	}
	if len(out) < decoyCount {
		return nil, fmt.Errorf("%w: have %d", errShortDecoys, len(out))
	}
	return out, nil
}
