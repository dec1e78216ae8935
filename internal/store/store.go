// apps/go-server/internal/store/store.go
//
// Shared session document store.
//
// One document per room, keyed by room id. The store offers exactly the
// primitives the room service needs to be race-safe across clients:
//   - Get / CreateIfAbsent
//   - ConditionalUpdate: a single write committed only while a precondition
//     holds on the committed document (compare-and-swap on Version).
//   - Transaction: atomic read-modify-write.
//   - Subscribe: ordered full-document snapshots, initial value first.
//
// Every committed write bumps Session.Version by one and is validated
// against the session invariants before it lands.

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
)

var (
	// ErrNotFound is returned for an unknown room id.
	ErrNotFound = errors.New("session not found")
	// ErrUnavailable wraps backend failures (I/O, driver, decode).
	ErrUnavailable = errors.New("store unavailable")
	// ErrInvariant means a write would have broken a session invariant.
	ErrInvariant = errors.New("session invariant violated")
)

// Precondition inspects the committed document; a non-nil error aborts the
// write with game.ErrStalePrecondition.
type Precondition func(s *game.Session) error

// Patch mutates a private copy of the document. A non-nil error aborts the
// write and is returned unchanged.
type Patch func(s *game.Session) error

// Store defines the persistence interface for session documents.
// Implementations: Memory (this package), SQLite (this package).
type Store interface {
	// Get retrieves a session by id. Returns ErrNotFound if missing.
	Get(ctx context.Context, id string) (*game.Session, error)

	// CreateIfAbsent inserts s unless a document already exists. It returns
	// the stored document and whether it was created by this call.
	CreateIfAbsent(ctx context.Context, s *game.Session) (*game.Session, bool, error)

	// ConditionalUpdate applies patch only if pre holds on the current
	// document at commit time.
	ConditionalUpdate(ctx context.Context, id string, pre Precondition, patch Patch) (*game.Session, error)

	// Transaction runs fn as an atomic read-modify-write.
	Transaction(ctx context.Context, id string, fn Patch) (*game.Session, error)

	// Subscribe streams the current document and every later version.
	Subscribe(ctx context.Context, id string) (*Subscription, error)
}

// StatusIn is a Precondition that the session is in one of the given phases.
func StatusIn(statuses ...game.Status) Precondition {
	return func(s *game.Session) error {
		for _, st := range statuses {
			if s.Status == st {
				return nil
			}
		}
		return fmt.Errorf("status is %s", s.Status)
	}
}

// RoundIs is a Precondition on the current round number.
func RoundIs(n int) Precondition {
	return func(s *game.Session) error {
		if s.CurrentRound != n {
			return fmt.Errorf("round is %d, expected %d", s.CurrentRound, n)
		}
		return nil
	}
}

// All combines preconditions.
func All(pres ...Precondition) Precondition {
	return func(s *game.Session) error {
		for _, p := range pres {
			if err := p(s); err != nil {
				return err
			}
		}
		return nil
	}
}

// stale wraps a failed precondition.
func stale(id string, err error) error {
	return fmt.Errorf("%w: room %s: %v", game.ErrStalePrecondition, id, err)
}

// checkInvariants validates a document about to be committed.
func checkInvariants(s *game.Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("%w: room %s: %v", ErrInvariant, s.ID, err)
	}
	return nil
}
