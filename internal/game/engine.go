// apps/go-server/internal/game/engine.go
//
// Session state machine for Duo Decoder.
// Responsibilities:
//   - Create sessions and seat up to two players.
//   - Apply the phase transitions:
//       waiting → starting → clue_master_turn → code_breaker_turn → round_over
//       round_over → starting (next round) | finished (last round)
//     plus timeouts from either timed phase straight to round_over.
//   - Enforce who may act in each phase and validate their input.
//   - Check the document invariants (Validate).
//
// Notes:
//   - Every transition mutates the receiver in place and is pure apart from
//     the clock value passed in. Persistence and race handling live in the
//     store and room packages; they run these methods inside a conditional
//     write or a transaction.
//   - A transition attempted from the wrong phase returns ErrStalePrecondition.
package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

// NewSession constructs a waiting session owned by its first player.
func NewSession(id string, first Player, maxRounds int) (*Session, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: empty room id", ErrInvalidPlayer)
	}
	if err := first.validate(); err != nil {
		return nil, err
	}
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Session{
		ID:        id,
		Players:   []Player{first},
		Status:    StatusWaiting,
		MaxRounds: maxRounds,
	}, nil
}

func (p Player) validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidPlayer)
	}
	return nil
}

// ClueMasterFor returns the Clue Master of round n: players[(n-1) mod 2].
func ClueMasterFor(players []Player, n int) (Player, error) {
	if len(players) != MaxPlayers || n < 1 {
		return Player{}, fmt.Errorf("%w: need %d players and a positive round", ErrInvalidRound, MaxPlayers)
	}
	return players[(n-1)%MaxPlayers], nil
}

// HasPlayer reports whether id is seated.
func (s *Session) HasPlayer(id string) bool {
	return lo.ContainsBy(s.Players, func(p Player) bool { return p.ID == id })
}

// Full reports whether both seats are taken.
func (s *Session) Full() bool { return len(s.Players) >= MaxPlayers }

// RoleOf returns the player's role in the current round.
func (s *Session) RoleOf(playerID string) Role {
	if s.Round == nil || !s.HasPlayer(playerID) {
		return RoleNone
	}
	if s.Round.ClueMasterID == playerID {
		return RoleClueMaster
	}
	return RoleCodeBreaker
}

// AddPlayer seats p. Re-adding a seated player is a no-op and returns false.
// It returns true when the append happened.
func (s *Session) AddPlayer(p Player) (bool, error) {
	if err := p.validate(); err != nil {
		return false, err
	}
	if s.HasPlayer(p.ID) {
		return false, nil
	}
	if s.Full() {
		return false, ErrRoomFull
	}
	if s.Status != StatusWaiting {
		return false, fmt.Errorf("%w: joining in %s", ErrStalePrecondition, s.Status)
	}
	s.Players = append(s.Players, p)
	return true, nil
}

// BeginStart moves a full waiting room, or a finished non-final round, into
// starting.
func (s *Session) BeginStart() error {
	switch s.Status {
	case StatusWaiting:
		if !s.Full() {
			return fmt.Errorf("%w: waiting for a second player", ErrStalePrecondition)
		}
	case StatusRoundOver:
		if s.CurrentRound >= s.MaxRounds {
			return fmt.Errorf("%w: last round already played", ErrStalePrecondition)
		}
	default:
		return fmt.Errorf("%w: cannot start from %s", ErrStalePrecondition, s.Status)
	}
	s.Status = StatusStarting
	return nil
}

// InstallRound writes freshly built round data and opens the Clue Master's turn.
func (s *Session) InstallRound(r *Round) error {
	if s.Status != StatusStarting {
		return fmt.Errorf("%w: install in %s", ErrStalePrecondition, s.Status)
	}
	if r == nil || r.Number != s.CurrentRound+1 {
		return fmt.Errorf("%w: round %d already installed", ErrStalePrecondition, s.CurrentRound)
	}
	if err := r.validate(s.Players); err != nil {
		return err
	}
	s.CurrentRound = r.Number
	s.Round = r.Clone()
	s.Status = StatusClueMasterTurn
	return nil
}

// SubmitClues records the Clue Master's selection and hands the turn over.
// The Code Breaker gets a fresh timer.
func (s *Session) SubmitClues(playerID string, clues []string, now time.Time) error {
	if s.Status != StatusClueMasterTurn {
		return fmt.Errorf("%w: clues in %s", ErrStalePrecondition, s.Status)
	}
	if s.RoleOf(playerID) != RoleClueMaster {
		return ErrNotYourTurn
	}
	if len(clues) < MinClues || len(clues) > MaxClues {
		return fmt.Errorf("%w: select %d-%d clues", ErrInvalidClues, MinClues, MaxClues)
	}
	if len(lo.Uniq(clues)) != len(clues) {
		return fmt.Errorf("%w: duplicate clue", ErrInvalidClues)
	}
	if !lo.Every(s.Round.Clues, clues) {
		return fmt.Errorf("%w: clue not offered this round", ErrInvalidClues)
	}
	s.Round.SelectedClues = append([]string(nil), clues...)
	s.Round.StartTime = now
	s.Status = StatusCodeBreakerTurn
	return nil
}

// SubmitGuess scores the Code Breaker's pick and closes the round.
// It returns whether the guess was correct.
func (s *Session) SubmitGuess(playerID, guess string) (bool, error) {
	if s.Status != StatusCodeBreakerTurn {
		return false, fmt.Errorf("%w: guess in %s", ErrStalePrecondition, s.Status)
	}
	if s.RoleOf(playerID) != RoleCodeBreaker {
		return false, ErrNotYourTurn
	}
	if !lo.Contains(s.Round.Options, guess) {
		return false, fmt.Errorf("%w: %q is not an option", ErrInvalidGuess, guess)
	}
	correct := guess == s.Round.SecretWord
	s.Round.Guess = &guess
	s.Round.IsCorrect = &correct
	if correct {
		s.Score++
		s.Round.Outcome = OutcomeCorrect
	} else {
		s.Round.Outcome = OutcomeIncorrect
	}
	s.Status = StatusRoundOver
	return correct, nil
}

// Timeout closes a timed phase whose deadline has passed. The round counts
// as incorrect; the score is untouched.
func (s *Session) Timeout(now time.Time) error {
	if !s.Status.Timed() {
		return fmt.Errorf("%w: timeout in %s", ErrStalePrecondition, s.Status)
	}
	if now.Before(s.Round.Deadline()) {
		return fmt.Errorf("%w: %s left on the clock", ErrStalePrecondition, s.Round.Remaining(now).Round(time.Second))
	}
	if s.Round.IsCorrect == nil {
		incorrect := false
		s.Round.IsCorrect = &incorrect
		if s.Status == StatusClueMasterTurn {
			s.Round.Outcome = OutcomeClueTimeout
		} else {
			s.Round.Outcome = OutcomeGuessTimeout
		}
	}
	s.Status = StatusRoundOver
	return nil
}

// Finish ends the session after its last round.
func (s *Session) Finish() error {
	if s.Status != StatusRoundOver || s.CurrentRound < s.MaxRounds {
		return fmt.Errorf("%w: finish in %s at round %d/%d", ErrStalePrecondition, s.Status, s.CurrentRound, s.MaxRounds)
	}
	s.Status = StatusFinished
	return nil
}

// LastRound reports whether advancing from round_over ends the session.
func (s *Session) LastRound() bool { return s.CurrentRound >= s.MaxRounds }

// Validate checks the document invariants.
func (s *Session) Validate() error {
	switch {
	case len(s.Players) == 0 || len(s.Players) > MaxPlayers:
		return fmt.Errorf("%d players seated", len(s.Players))
	case s.Score < 0 || s.Score > s.CurrentRound || s.CurrentRound > s.MaxRounds:
		return fmt.Errorf("score %d, round %d, max %d out of order", s.Score, s.CurrentRound, s.MaxRounds)
	case s.Status == StatusWaiting && len(s.Players) != 1:
		return fmt.Errorf("waiting with %d players", len(s.Players))
	case s.Status != StatusWaiting && len(s.Players) != MaxPlayers:
		return fmt.Errorf("%s with %d players", s.Status, len(s.Players))
	}

	preStart := s.Status == StatusWaiting || (s.Status == StatusStarting && s.CurrentRound == 0)
	if preStart != (s.Round == nil) {
		return fmt.Errorf("round data presence does not match %s at round %d", s.Status, s.CurrentRound)
	}
	if s.Round == nil {
		return nil
	}
	if s.Round.Number != s.CurrentRound {
		return fmt.Errorf("round data is for round %d, session at %d", s.Round.Number, s.CurrentRound)
	}
	if err := s.Round.validate(s.Players); err != nil {
		return err
	}
	resolved := s.Status == StatusRoundOver || s.Status == StatusFinished ||
		(s.Status == StatusStarting && s.CurrentRound > 0)
	if resolved != s.Round.Resolved() {
		return fmt.Errorf("round resolution does not match %s", s.Status)
	}
	return nil
}

// validate checks a round against the seated players.
func (r *Round) validate(players []Player) error {
	cm, err := ClueMasterFor(players, r.Number)
	if err != nil {
		return err
	}
	switch {
	case r.ClueMasterID != cm.ID:
		return fmt.Errorf("%w: clue master %q, want %q", ErrInvalidRound, r.ClueMasterID, cm.ID)
	case r.SecretWord == "":
		return fmt.Errorf("%w: empty secret word", ErrInvalidRound)
	case len(r.Clues) < MinClues || len(r.Clues) > MaxClues:
		return fmt.Errorf("%w: %d clues", ErrInvalidRound, len(r.Clues))
	case len(r.Options) != OptionCount:
		return fmt.Errorf("%w: %d options", ErrInvalidRound, len(r.Options))
	case lo.Count(r.Options, r.SecretWord) != 1:
		return fmt.Errorf("%w: secret word must appear once in options", ErrInvalidRound)
	case len(r.SelectedClues) != 0 && (len(r.SelectedClues) < MinClues || len(r.SelectedClues) > MaxClues):
		return fmt.Errorf("%w: %d selected clues", ErrInvalidRound, len(r.SelectedClues))
	case r.TimeLimit <= 0:
		return fmt.Errorf("%w: time limit %d", ErrInvalidRound, r.TimeLimit)
	}
	return nil
}
