package game

import "errors"

var (
	// ErrRoomFull is returned when a third player tries to join.
	ErrRoomFull = errors.New("room is full")
	// ErrStalePrecondition means the session is no longer in the phase the
	// action expects. Callers treat it as a no-op: the session already holds
	// a valid outcome.
	ErrStalePrecondition = errors.New("stale precondition")
	ErrNotYourTurn       = errors.New("not your turn")
	ErrNotInRoom         = errors.New("player not in room")
	ErrInvalidClues      = errors.New("invalid clue selection")
	ErrInvalidGuess      = errors.New("invalid guess")
	ErrInvalidRound      = errors.New("invalid round")
	ErrInvalidPlayer     = errors.New("invalid player")
)
