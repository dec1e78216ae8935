package round

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
	"github.com/robalobadob/duodecoder/apps/go-server/internal/provider"
)

var players = []game.Player{{ID: "a", Name: "Alice"}, {ID: "b", Name: "Bob"}}

// scripted hands out words in order and fails on demand.
type scripted struct {
	mu        sync.Mutex
	words     []string
	clues     []string
	failWord  int // fail the nth PickWord call (1-based); 0 never
	failClues bool
	calls     int
}

func (s *scripted) PickWord(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls == s.failWord {
		return "", provider.ErrUnavailable
	}
	if len(s.words) == 0 {
		return "", provider.ErrUnavailable
	}
	w := s.words[0]
	s.words = s.words[1:]
	return w, nil
}

func (s *scripted) GenerateClues(ctx context.Context, word string) ([]string, error) {
	if s.failClues {
		return nil, provider.ErrUnavailable
	}
	return s.clues, nil
}

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newFactory(p provider.Client) *Factory {
	return New(p, 45*time.Second, WithClock(func() time.Time { return fixedNow }), WithBuildTimeout(time.Second))
}

func checkOptions(t *testing.T, r *game.Round) {
	t.Helper()
	if len(r.Options) != game.OptionCount {
		t.Fatalf("options = %v, want %d", r.Options, game.OptionCount)
	}
	count := 0
	seen := map[string]bool{}
	for _, o := range r.Options {
		if o == r.SecretWord {
			count++
		}
		if seen[strings.ToLower(o)] {
			t.Errorf("duplicate option %q in %v", o, r.Options)
		}
		seen[strings.ToLower(o)] = true
	}
	if count != 1 {
		t.Errorf("secret %q appears %d times in %v", r.SecretWord, count, r.Options)
	}
}

func TestBuild(t *testing.T) {
	p := &scripted{words: []string{"Lantern", "Pillow", "Rocket", "Saddle"}, clues: []string{"gives light", "hangs on a porch"}}
	r, err := newFactory(p).Build(context.Background(), 1, players)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Fallback || r.SecretWord != "Lantern" {
		t.Errorf("secret = %q fallback=%v", r.SecretWord, r.Fallback)
	}
	if r.ClueMasterID != "a" || r.Number != 1 {
		t.Errorf("round %d clue master %s", r.Number, r.ClueMasterID)
	}
	if len(r.Clues) != 2 || len(r.SelectedClues) != 0 || r.Guess != nil || r.IsCorrect != nil {
		t.Errorf("unexpected initial round: %+v", r)
	}
	if !r.StartTime.Equal(fixedNow) || r.TimeLimit != 45 {
		t.Errorf("clock: start %v limit %d", r.StartTime, r.TimeLimit)
	}
	checkOptions(t, r)
}

func TestBuildAlternatesClueMaster(t *testing.T) {
	f := newFactory(&scripted{})
	prev := ""
	for n := 1; n <= game.DefaultMaxRounds; n++ {
		r, err := f.Build(context.Background(), n, players)
		if err != nil {
			t.Fatalf("Build(%d): %v", n, err)
		}
		want := players[(n-1)%2].ID
		if r.ClueMasterID != want || r.ClueMasterID == prev {
			t.Errorf("round %d: clue master %s, want %s", n, r.ClueMasterID, want)
		}
		prev = r.ClueMasterID
	}
}

func TestBuildFallsBack(t *testing.T) {
	tests := []struct {
		name string
		p    *scripted
	}{
		{"secret word fails", &scripted{failWord: 1}},
		{"clues fail", &scripted{words: []string{"Lantern", "Pillow", "Rocket", "Saddle"}, failClues: true}},
		{"decoy fails", &scripted{words: []string{"Lantern", "Pillow", "Rocket", "Saddle"}, clues: []string{"x", "y"}, failWord: 3}},
	}
	for _, tt := range tests {
		r, err := newFactory(tt.p).Build(context.Background(), 2, players)
		if err != nil {
			t.Fatalf("%s: Build returned %v", tt.name, err)
		}
		if !r.Fallback || r.SecretWord != FallbackWord {
			t.Errorf("%s: secret %q fallback=%v", tt.name, r.SecretWord, r.Fallback)
		}
		if r.ClueMasterID != "b" || len(r.Clues) != 3 {
			t.Errorf("%s: clue master %s clues %v", tt.name, r.ClueMasterID, r.Clues)
		}
		checkOptions(t, r)
	}
}

func TestBuildReplacesDuplicateDecoys(t *testing.T) {
	// Decoys repeat the secret and each other; two extra calls supply
	// replacements.
	p := &scripted{
		words: []string{"Lantern", "lantern", "Pillow", "PILLOW", "Rocket", "Saddle"},
		clues: []string{"gives light", "hangs on a porch"},
	}
	r, err := newFactory(p).Build(context.Background(), 1, players)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Fallback {
		t.Fatal("duplicates should be repaired, not fall back")
	}
	checkOptions(t, r)
}

func TestBuildTopsUpFromVocabulary(t *testing.T) {
	// The provider keeps returning the same word; the vocabulary fills in.
	same := make([]string, 20)
	for i := range same {
		same[i] = "Lantern"
	}
	p := &scripted{words: same, clues: []string{"gives light", "hangs on a porch"}}
	r, err := newFactory(p).Build(context.Background(), 1, players)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if r.Fallback || r.SecretWord != "Lantern" {
		t.Errorf("secret %q fallback=%v", r.SecretWord, r.Fallback)
	}
	checkOptions(t, r)
}

func TestBuildRejectsBadInput(t *testing.T) {
	f := newFactory(&scripted{})
	if _, err := f.Build(context.Background(), 1, players[:1]); !errors.Is(err, game.ErrInvalidRound) {
		t.Errorf("one player: %v", err)
	}
	if _, err := f.Build(context.Background(), 0, players); !errors.Is(err, game.ErrInvalidRound) {
		t.Errorf("round 0: %v", err)
	}
}

func TestShuffleIsNotFixed(t *testing.T) {
	f := newFactory(&scripted{})
	positions := map[int]bool{}
	for i := 0; i < 200; i++ {
		r, _ := f.Fallback(1, players)
		for j, o := range r.Options {
			if o == FallbackWord {
				positions[j] = true
			}
		}
	}
	if len(positions) != game.OptionCount {
		t.Errorf("secret only ever landed in positions %v", positions)
	}
}

func TestSeededShuffleRepeats(t *testing.T) {
	order := func() []string {
		f := New(&scripted{}, 45*time.Second, WithRand(rand.New(rand.NewSource(7))))
		var all []string
		for i := 0; i < 5; i++ {
			r, err := f.Fallback(1, players)
			if err != nil {
				t.Fatal(err)
			}
			all = append(all, r.Options...)
		}
		return all
	}
	first, second := order(), order()
	if strings.Join(first, ",") != strings.Join(second, ",") {
		t.Errorf("same seed, different orders:\n%v\n%v", first, second)
	}
}
