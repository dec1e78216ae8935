// apps/go-server/internal/game/types.go
//
// Core type definitions for a Duo Decoder session.
// Defines:
//   - Status: session-level phase (waiting → starting → turns → round_over → finished).
//   - Outcome: how a round resolved.
//   - Player, Round, Session: the shared session document.
//
// The JSON tags are the persisted document schema; stores encode Session as-is.

package game

import "time"

// Status is the session-level phase.
type Status string

const (
	StatusWaiting         Status = "waiting"
	StatusStarting        Status = "starting"
	StatusClueMasterTurn  Status = "clue_master_turn"
	StatusCodeBreakerTurn Status = "code_breaker_turn"
	StatusRoundOver       Status = "round_over"
	StatusFinished        Status = "finished"
)

// Timed reports whether the phase runs a countdown.
func (s Status) Timed() bool {
	return s == StatusClueMasterTurn || s == StatusCodeBreakerTurn
}

// Outcome records how a round was resolved. Scoring only looks at IsCorrect;
// Outcome keeps a clue-phase timeout distinguishable from a wrong guess.
type Outcome string

const (
	OutcomeNone         Outcome = ""
	OutcomeCorrect      Outcome = "correct"
	OutcomeIncorrect    Outcome = "incorrect"
	OutcomeGuessTimeout Outcome = "guess_timeout"
	OutcomeClueTimeout  Outcome = "clue_timeout"
)

// Role is what a player does in the current round.
type Role string

const (
	RoleNone        Role = ""
	RoleClueMaster  Role = "clue_master"
	RoleCodeBreaker Role = "code_breaker"
)

const (
	// MaxPlayers is the number of seats in a room.
	MaxPlayers = 2
	// OptionCount is the number of multiple-choice options per round.
	OptionCount = 4
	// MinClues and MaxClues bound both generated and selected clue lists.
	MinClues = 2
	MaxClues = 3
	// DefaultMaxRounds is the session length.
	DefaultMaxRounds = 5
	// DefaultTimeLimit is the per-phase countdown.
	DefaultTimeLimit = 60 * time.Second
)

// Player is immutable once created.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Round holds one round's full state.
type Round struct {
	Number        int       `json:"roundNumber"`
	ClueMasterID  string    `json:"clueMasterId"`
	SecretWord    string    `json:"secretWord"`
	Clues         []string  `json:"clues"`
	SelectedClues []string  `json:"selectedClues"`
	Options       []string  `json:"options"`
	Guess         *string   `json:"guess"`
	IsCorrect     *bool     `json:"isCorrect"`
	Outcome       Outcome   `json:"outcome,omitempty"`
	StartTime     time.Time `json:"startTime"`
	TimeLimit     int       `json:"timeLimit"` // seconds, per timed phase
	Fallback      bool      `json:"fallback,omitempty"`
}

// Session is the per-room aggregate and the unit of persistence.
type Session struct {
	ID           string    `json:"id"`
	Players      []Player  `json:"players"`
	Status       Status    `json:"status"`
	CurrentRound int       `json:"currentRound"`
	MaxRounds    int       `json:"maxRounds"`
	Score        int       `json:"score"`
	Round        *Round    `json:"roundData,omitempty"`
	Version      int64     `json:"version"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Players = append([]Player(nil), s.Players...)
	if s.Round != nil {
		c.Round = s.Round.Clone()
	}
	return &c
}

// Clone returns a deep copy of the round.
func (r *Round) Clone() *Round {
	if r == nil {
		return nil
	}
	c := *r
	c.Clues = append([]string(nil), r.Clues...)
	c.SelectedClues = append([]string{}, r.SelectedClues...)
	c.Options = append([]string(nil), r.Options...)
	if r.Guess != nil {
		g := *r.Guess
		c.Guess = &g
	}
	if r.IsCorrect != nil {
		b := *r.IsCorrect
		c.IsCorrect = &b
	}
	return &c
}

// Deadline is when the current timed phase expires.
func (r *Round) Deadline() time.Time {
	return r.StartTime.Add(time.Duration(r.TimeLimit) * time.Second)
}

// Remaining is the time left in the current phase, never negative.
func (r *Round) Remaining(now time.Time) time.Duration {
	if d := r.Deadline().Sub(now); d > 0 {
		return d
	}
	return 0
}

// Resolved reports whether the round has an outcome.
func (r *Round) Resolved() bool { return r.IsCorrect != nil }
