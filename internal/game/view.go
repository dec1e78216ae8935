package game

import "time"

// View is the role-scoped projection of a Session sent to one player.
type View struct {
	ID           string     `json:"id"`
	Status       Status     `json:"status"`
	Players      []Player   `json:"players"`
	CurrentRound int        `json:"currentRound"`
	MaxRounds    int        `json:"maxRounds"`
	Score        int        `json:"score"`
	Role         Role       `json:"role,omitempty"`
	Round        *RoundView `json:"roundData,omitempty"`
	Version      int64      `json:"version"`
}

// RoundView is the round as one player is allowed to see it.
type RoundView struct {
	Number        int       `json:"roundNumber"`
	ClueMasterID  string    `json:"clueMasterId"`
	SecretWord    string    `json:"secretWord,omitempty"`
	Clues         []string  `json:"clues,omitempty"`
	SelectedClues []string  `json:"selectedClues,omitempty"`
	Options       []string  `json:"options,omitempty"`
	Guess         *string   `json:"guess"`
	IsCorrect     *bool     `json:"isCorrect"`
	Outcome       Outcome   `json:"outcome,omitempty"`
	StartTime     time.Time `json:"startTime"`
	TimeLimit     int       `json:"timeLimit"`
	Deadline      time.Time `json:"deadline"`
	Fallback      bool      `json:"fallback,omitempty"`
}

// ViewFor projects the session for playerID.
//
// The Clue Master sees everything. The Code Breaker (and anyone not seated)
// sees the options and selected clues only once the guessing phase opens,
// and the secret word and full clue list only after the round resolves.
func (s *Session) ViewFor(playerID string) View {
	v := View{
		ID:           s.ID,
		Status:       s.Status,
		Players:      append([]Player(nil), s.Players...),
		CurrentRound: s.CurrentRound,
		MaxRounds:    s.MaxRounds,
		Score:        s.Score,
		Role:         s.RoleOf(playerID),
		Version:      s.Version,
	}
	r := s.Round
	if r == nil {
		return v
	}
	rv := &RoundView{
		Number:       r.Number,
		ClueMasterID: r.ClueMasterID,
		Guess:        r.Guess,
		IsCorrect:    r.IsCorrect,
		Outcome:      r.Outcome,
		StartTime:    r.StartTime,
		TimeLimit:    r.TimeLimit,
		Deadline:     r.Deadline(),
		Fallback:     r.Fallback,
	}
	reveal := v.Role == RoleClueMaster || r.Resolved()
	if reveal {
		rv.SecretWord = r.SecretWord
		rv.Clues = append([]string(nil), r.Clues...)
	}
	if reveal || s.Status != StatusClueMasterTurn {
		rv.SelectedClues = append([]string(nil), r.SelectedClues...)
		rv.Options = append([]string(nil), r.Options...)
	}
	v.Round = rv
	return v
}
