package game

import (
	"errors"
	"testing"
	"time"
)

var (
	alice = Player{ID: "a", Name: "Alice"}
	bob   = Player{ID: "b", Name: "Bob"}
	t0    = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
)

func testRound(n int, players []Player) *Round {
	cm, _ := ClueMasterFor(players, n)
	return &Round{
		Number:        n,
		ClueMasterID:  cm.ID,
		SecretWord:    "apple",
		Clues:         []string{"red or green", "keeps doctors away", "grows on trees"},
		SelectedClues: []string{},
		Options:       []string{"pear", "apple", "chair", "river"},
		StartTime:     t0,
		TimeLimit:     60,
	}
}

// startedSession returns a session sitting in clue_master_turn for round 1.
func startedSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession("abcd", alice, DefaultMaxRounds)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, err := s.AddPlayer(bob); err != nil {
		t.Fatalf("AddPlayer: %v", err)
	}
	if err := s.BeginStart(); err != nil {
		t.Fatalf("BeginStart: %v", err)
	}
	if err := s.InstallRound(testRound(1, s.Players)); err != nil {
		t.Fatalf("InstallRound: %v", err)
	}
	return s
}

func mustValid(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Validate(); err != nil {
		t.Fatalf("invariant violated in %s: %v", s.Status, err)
	}
}

func TestNewSession(t *testing.T) {
	s, err := NewSession("abcd", alice, 0)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if s.Status != StatusWaiting || s.CurrentRound != 0 || s.Score != 0 || s.Round != nil {
		t.Errorf("unexpected initial session: %+v", s)
	}
	if s.MaxRounds != DefaultMaxRounds {
		t.Errorf("MaxRounds = %d, want %d", s.MaxRounds, DefaultMaxRounds)
	}
	mustValid(t, s)

	if _, err := NewSession("", alice, 5); !errors.Is(err, ErrInvalidPlayer) {
		t.Errorf("empty room id: got %v", err)
	}
	if _, err := NewSession("abcd", Player{Name: "nobody"}, 5); !errors.Is(err, ErrInvalidPlayer) {
		t.Errorf("empty player id: got %v", err)
	}
}

func TestAddPlayer(t *testing.T) {
	s, _ := NewSession("abcd", alice, 5)

	added, err := s.AddPlayer(alice)
	if err != nil || added {
		t.Errorf("re-adding seated player: added=%v err=%v", added, err)
	}
	added, err = s.AddPlayer(bob)
	if err != nil || !added {
		t.Fatalf("adding second player: added=%v err=%v", added, err)
	}
	if _, err := s.AddPlayer(Player{ID: "c"}); !errors.Is(err, ErrRoomFull) {
		t.Errorf("third player: got %v, want ErrRoomFull", err)
	}
	if len(s.Players) != MaxPlayers {
		t.Errorf("players = %d", len(s.Players))
	}
}

func TestBeginStartNeedsFullRoom(t *testing.T) {
	s, _ := NewSession("abcd", alice, 5)
	if err := s.BeginStart(); !errors.Is(err, ErrStalePrecondition) {
		t.Fatalf("BeginStart with one player: got %v", err)
	}
	_, _ = s.AddPlayer(bob)
	if err := s.BeginStart(); err != nil {
		t.Fatalf("BeginStart: %v", err)
	}
	mustValid(t, s)
	if err := s.BeginStart(); !errors.Is(err, ErrStalePrecondition) {
		t.Errorf("second BeginStart: got %v", err)
	}
}

func TestInstallRoundRejectsWrongNumber(t *testing.T) {
	s, _ := NewSession("abcd", alice, 5)
	_, _ = s.AddPlayer(bob)
	_ = s.BeginStart()
	if err := s.InstallRound(testRound(2, s.Players)); !errors.Is(err, ErrStalePrecondition) {
		t.Errorf("installing round 2 first: got %v", err)
	}
	bad := testRound(1, s.Players)
	bad.ClueMasterID = bob.ID
	if err := s.InstallRound(bad); !errors.Is(err, ErrInvalidRound) {
		t.Errorf("wrong clue master: got %v", err)
	}
	if err := s.InstallRound(testRound(1, s.Players)); err != nil {
		t.Fatalf("InstallRound: %v", err)
	}
	if s.Status != StatusClueMasterTurn || s.CurrentRound != 1 {
		t.Errorf("after install: %s round %d", s.Status, s.CurrentRound)
	}
	mustValid(t, s)
}

func TestSubmitClues(t *testing.T) {
	tests := []struct {
		name   string
		player string
		clues  []string
		want   error
	}{
		{"code breaker cannot submit", bob.ID, []string{"red or green", "grows on trees"}, ErrNotYourTurn},
		{"too few", alice.ID, []string{"red or green"}, ErrInvalidClues},
		{"too many", alice.ID, []string{"red or green", "grows on trees", "keeps doctors away", "x"}, ErrInvalidClues},
		{"duplicate", alice.ID, []string{"red or green", "red or green"}, ErrInvalidClues},
		{"not offered", alice.ID, []string{"red or green", "made up"}, ErrInvalidClues},
		{"ok", alice.ID, []string{"grows on trees", "red or green"}, nil},
	}
	for _, tt := range tests {
		s := startedSession(t)
		later := t0.Add(20 * time.Second)
		err := s.SubmitClues(tt.player, tt.clues, later)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, err, tt.want)
			continue
		}
		if tt.want != nil {
			if s.Status != StatusClueMasterTurn {
				t.Errorf("%s: status changed to %s on error", tt.name, s.Status)
			}
			continue
		}
		if s.Status != StatusCodeBreakerTurn {
			t.Errorf("%s: status %s", tt.name, s.Status)
		}
		if !s.Round.StartTime.Equal(later) {
			t.Errorf("%s: timer not reset, start %v", tt.name, s.Round.StartTime)
		}
		mustValid(t, s)
	}
}

func TestSubmitGuess(t *testing.T) {
	tests := []struct {
		guess       string
		wantCorrect bool
		wantScore   int
		wantOutcome Outcome
	}{
		{"apple", true, 1, OutcomeCorrect},
		{"pear", false, 0, OutcomeIncorrect},
	}
	for _, tt := range tests {
		s := startedSession(t)
		_ = s.SubmitClues(alice.ID, []string{"red or green", "grows on trees"}, t0)

		if _, err := s.SubmitGuess(alice.ID, tt.guess); !errors.Is(err, ErrNotYourTurn) {
			t.Errorf("clue master guessing: got %v", err)
		}
		if _, err := s.SubmitGuess(bob.ID, "banana"); !errors.Is(err, ErrInvalidGuess) {
			t.Errorf("guess outside options: got %v", err)
		}
		correct, err := s.SubmitGuess(bob.ID, tt.guess)
		if err != nil {
			t.Fatalf("SubmitGuess(%s): %v", tt.guess, err)
		}
		if correct != tt.wantCorrect || s.Score != tt.wantScore || s.Round.Outcome != tt.wantOutcome {
			t.Errorf("guess %s: correct=%v score=%d outcome=%s", tt.guess, correct, s.Score, s.Round.Outcome)
		}
		if s.Status != StatusRoundOver || *s.Round.Guess != tt.guess {
			t.Errorf("guess %s: status %s", tt.guess, s.Status)
		}
		mustValid(t, s)

		// A retried submission must not score twice.
		if _, err := s.SubmitGuess(bob.ID, tt.guess); !errors.Is(err, ErrStalePrecondition) {
			t.Errorf("retry: got %v", err)
		}
		if s.Score != tt.wantScore {
			t.Errorf("retry changed score to %d", s.Score)
		}
	}
}

func TestTimeout(t *testing.T) {
	t.Run("clue phase", func(t *testing.T) {
		s := startedSession(t)
		if err := s.Timeout(t0.Add(59 * time.Second)); !errors.Is(err, ErrStalePrecondition) {
			t.Fatalf("early timeout: got %v", err)
		}
		if err := s.Timeout(t0.Add(60 * time.Second)); err != nil {
			t.Fatalf("Timeout: %v", err)
		}
		if s.Status != StatusRoundOver || s.Round.IsCorrect == nil || *s.Round.IsCorrect {
			t.Errorf("after timeout: %s isCorrect=%v", s.Status, s.Round.IsCorrect)
		}
		if s.Round.Outcome != OutcomeClueTimeout || s.Round.Guess != nil || s.Score != 0 {
			t.Errorf("outcome %s guess %v score %d", s.Round.Outcome, s.Round.Guess, s.Score)
		}
		mustValid(t, s)
		if err := s.Timeout(t0.Add(2 * time.Minute)); !errors.Is(err, ErrStalePrecondition) {
			t.Errorf("second timeout: got %v", err)
		}
	})

	t.Run("guess phase gets a fresh timer", func(t *testing.T) {
		s := startedSession(t)
		submitted := t0.Add(50 * time.Second)
		_ = s.SubmitClues(alice.ID, []string{"red or green", "grows on trees"}, submitted)
		if err := s.Timeout(t0.Add(70 * time.Second)); !errors.Is(err, ErrStalePrecondition) {
			t.Fatalf("timeout against old start time: got %v", err)
		}
		if err := s.Timeout(submitted.Add(60 * time.Second)); err != nil {
			t.Fatalf("Timeout: %v", err)
		}
		if s.Round.Outcome != OutcomeGuessTimeout {
			t.Errorf("outcome %s", s.Round.Outcome)
		}
	})

	t.Run("after guess", func(t *testing.T) {
		s := startedSession(t)
		_ = s.SubmitClues(alice.ID, []string{"red or green", "grows on trees"}, t0)
		_, _ = s.SubmitGuess(bob.ID, "apple")
		if err := s.Timeout(t0.Add(time.Hour)); !errors.Is(err, ErrStalePrecondition) {
			t.Fatalf("timeout after guess: got %v", err)
		}
		if !*s.Round.IsCorrect || s.Score != 1 {
			t.Errorf("timeout overwrote the guess: isCorrect=%v score=%d", *s.Round.IsCorrect, s.Score)
		}
	})
}

func TestFullGameAlternatesClueMaster(t *testing.T) {
	s := startedSession(t)
	prev := ""
	for n := 1; ; n++ {
		if s.Round.ClueMasterID == prev {
			t.Fatalf("round %d: clue master %s did not alternate", n, prev)
		}
		prev = s.Round.ClueMasterID
		cm := s.Round.ClueMasterID
		cb := alice.ID
		if cm == alice.ID {
			cb = bob.ID
		}
		if err := s.SubmitClues(cm, []string{"red or green", "grows on trees"}, t0); err != nil {
			t.Fatalf("round %d SubmitClues: %v", n, err)
		}
		if _, err := s.SubmitGuess(cb, "apple"); err != nil {
			t.Fatalf("round %d SubmitGuess: %v", n, err)
		}
		mustValid(t, s)
		if s.LastRound() {
			break
		}
		if err := s.Finish(); !errors.Is(err, ErrStalePrecondition) {
			t.Fatalf("round %d: Finish before last round: %v", n, err)
		}
		if err := s.BeginStart(); err != nil {
			t.Fatalf("round %d BeginStart: %v", n, err)
		}
		mustValid(t, s)
		if err := s.InstallRound(testRound(n+1, s.Players)); err != nil {
			t.Fatalf("round %d InstallRound: %v", n+1, err)
		}
	}
	if err := s.BeginStart(); !errors.Is(err, ErrStalePrecondition) {
		t.Errorf("BeginStart after last round: %v", err)
	}
	if err := s.Finish(); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if s.Status != StatusFinished || s.Score != DefaultMaxRounds || s.CurrentRound != DefaultMaxRounds {
		t.Errorf("final: %s score %d round %d", s.Status, s.Score, s.CurrentRound)
	}
	mustValid(t, s)
}

func TestValidateCatchesBrokenDocuments(t *testing.T) {
	tests := []struct {
		name  string
		mutate func(s *Session)
	}{
		{"score above round", func(s *Session) { s.Score = 2 }},
		{"round above max", func(s *Session) { s.CurrentRound = 6 }},
		{"three players", func(s *Session) { s.Players = append(s.Players, Player{ID: "c"}) }},
		{"missing round data", func(s *Session) { s.Round = nil }},
		{"options missing secret", func(s *Session) { s.Round.Options[1] = "grape" }},
		{"secret twice", func(s *Session) { s.Round.Options[0] = "apple" }},
		{"wrong clue master", func(s *Session) { s.Round.ClueMasterID = bob.ID }},
		{"resolved in a timed phase", func(s *Session) { f := false; s.Round.IsCorrect = &f }},
	}
	for _, tt := range tests {
		s := startedSession(t)
		tt.mutate(s)
		if err := s.Validate(); err == nil {
			t.Errorf("%s: Validate returned nil", tt.name)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := startedSession(t)
	c := s.Clone()
	c.Players[0].Name = "changed"
	c.Round.Options[0] = "changed"
	c.Round.SelectedClues = append(c.Round.SelectedClues, "x")
	if s.Players[0].Name == "changed" || s.Round.Options[0] == "changed" || len(s.Round.SelectedClues) != 0 {
		t.Error("Clone shares memory with the original")
	}
}
