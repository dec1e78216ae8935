package room

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
)

// watchRetry spaces out retries after a failed countdown action.
const watchRetry = 5 * time.Second

// Watch is one client's countdown for roomID. It follows the subscription,
// arms a timer for each timed phase, and calls ResolveTimeout when the timer
// fires. A room left in starting past the grace period is handed to
// AdvanceRound, which rebuilds its round. Any number of clients may watch the
// same room; only one write lands per phase.
//
// Watch returns nil once the session is finished, or ctx's error.
func (s *Service) Watch(ctx context.Context, roomID string) error {
	sub, err := s.Subscribe(ctx, roomID)
	if err != nil {
		return err
	}
	defer sub.Close()

	var (
		timer  *time.Timer
		fire   <-chan time.Time
		action func(context.Context, string) (*game.Session, error)
	)
	disarm := func() {
		if timer != nil {
			timer.Stop()
			timer, fire, action = nil, nil, nil
		}
	}
	arm := func(doc *game.Session) {
		disarm()
		switch {
		case doc.Status.Timed() && doc.Round != nil:
			timer, action = time.NewTimer(doc.Round.Remaining(s.now())), s.ResolveTimeout
		case doc.Status == game.StatusStarting:
			timer, action = time.NewTimer(s.startGrace-s.now().Sub(doc.UpdatedAt)), s.AdvanceRound
		default:
			return
		}
		fire = timer.C
	}
	defer disarm()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case doc, ok := <-sub.C():
			if !ok {
				return ctx.Err()
			}
			if doc.Status == game.StatusFinished {
				return nil
			}
			arm(doc)

		case <-fire:
			act := action
			timer, fire, action = nil, nil, nil
			doc, err := act(ctx, roomID)
			switch {
			case errors.Is(err, game.ErrStalePrecondition):
				// Fired early against the server clock; wait out the rest.
				if doc != nil && s.pending(doc) {
					arm(doc)
				}
			case err != nil:
				log.Warn().Err(err).Str("room", roomID).Dur("retry", watchRetry).Msg("countdown action failed")
				timer, action = time.NewTimer(watchRetry), act
				fire = timer.C
			}
		}
	}
}

// pending reports whether doc still has a deadline in the future.
func (s *Service) pending(doc *game.Session) bool {
	now := s.now()
	switch {
	case doc.Status.Timed() && doc.Round != nil:
		return doc.Round.Remaining(now) > 0
	case doc.Status == game.StatusStarting:
		return now.Sub(doc.UpdatedAt) < s.startGrace
	}
	return false
}
