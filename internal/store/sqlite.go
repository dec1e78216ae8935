// apps/go-server/internal/store/sqlite.go
//
// SQLite implementation of the Store interface.
//
// Each room is one row in `sessions` holding the JSON document plus its
// version. Writes are compare-and-swap on that version:
//
//	UPDATE sessions SET ... WHERE id = ? AND version = ?
//
// so a write built from a stale read never lands. ConditionalUpdate re-reads
// and re-checks its precondition when it loses the race; Transaction runs
// inside BEGIN IMMEDIATE (see db.Open) and therefore cannot lose it.
//
// Subscriptions are served by an in-process Broker. Writes from other
// processes sharing the database file reach subscribers through Poll.

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
)

const (
	// maxCASAttempts bounds ConditionalUpdate retries under write contention.
	maxCASAttempts = 5
	// tsLayout is fixed-width so timestamps sort as text.
	tsLayout = "2006-01-02T15:04:05.000000000Z"
)

// SQLite is a Store backed by a *sql.DB opened with db.Open and migrated.
type SQLite struct {
	db     *sql.DB
	mu     sync.Mutex // orders this process's commits with their publish
	broker *Broker
	now    func() time.Time
}

// NewSQLiteStore wraps an open, migrated database.
func NewSQLiteStore(db *sql.DB) *SQLite {
	return &SQLite{db: db, broker: NewBroker(), now: time.Now}
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func unavailable(op, id string, err error) error {
	return fmt.Errorf("%w: %s %s: %v", ErrUnavailable, op, id, err)
}

func (s *SQLite) read(ctx context.Context, q rowQuerier, id string) (*game.Session, error) {
	var (
		version int64
		raw     string
	)
	err := q.QueryRowContext(ctx, `SELECT version, doc FROM sessions WHERE id=?`, id).Scan(&version, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("read", id, err)
	}
	var doc game.Session
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, unavailable("decode", id, err)
	}
	doc.Version = version
	return &doc, nil
}

// write stores next if the row is still at expected. It reports whether the
// swap happened.
func (s *SQLite) write(ctx context.Context, e execer, next *game.Session, expected int64) (bool, error) {
	raw, err := json.Marshal(next)
	if err != nil {
		return false, unavailable("encode", next.ID, err)
	}
	res, err := e.ExecContext(ctx, `
        UPDATE sessions SET version=?, status=?, doc=?, updated_at=?
        WHERE id=? AND version=?`,
		next.Version, string(next.Status), string(raw), next.UpdatedAt.UTC().Format(tsLayout),
		next.ID, expected,
	)
	if err != nil {
		return false, unavailable("write", next.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, unavailable("write", next.ID, err)
	}
	return n == 1, nil
}

func (s *SQLite) prepare(cur *game.Session, patch Patch) (*game.Session, error) {
	next := cur.Clone()
	if err := patch(next); err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.Version = cur.Version + 1
	next.UpdatedAt = s.now()
	if err := checkInvariants(next); err != nil {
		return nil, err
	}
	return next, nil
}

// Get reads the committed document.
func (s *SQLite) Get(ctx context.Context, id string) (*game.Session, error) {
	return s.read(ctx, s.db, id)
}

// CreateIfAbsent inserts s as version 1; an existing row wins.
func (s *SQLite) CreateIfAbsent(ctx context.Context, in *game.Session) (*game.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc := in.Clone()
	doc.Version = 1
	doc.UpdatedAt = s.now()
	if err := checkInvariants(doc); err != nil {
		return nil, false, err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, false, unavailable("encode", doc.ID, err)
	}
	ts := doc.UpdatedAt.UTC().Format(tsLayout)
	res, err := s.db.ExecContext(ctx, `
        INSERT INTO sessions (id, version, status, doc, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO NOTHING`,
		doc.ID, doc.Version, string(doc.Status), string(raw), ts, ts,
	)
	if err != nil {
		return nil, false, unavailable("create", doc.ID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, false, unavailable("create", doc.ID, err)
	} else if n == 0 {
		cur, err := s.read(ctx, s.db, doc.ID)
		return cur, false, err
	}
	s.broker.Publish(doc)
	return doc.Clone(), true, nil
}

// ConditionalUpdate re-reads and retries when another writer bumped the
// version between read and swap.
func (s *SQLite) ConditionalUpdate(ctx context.Context, id string, pre Precondition, patch Patch) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for attempt := 1; attempt <= maxCASAttempts; attempt++ {
		cur, err := s.read(ctx, s.db, id)
		if err != nil {
			return nil, err
		}
		if pre != nil {
			if err := pre(cur); err != nil {
				return nil, stale(id, err)
			}
		}
		next, err := s.prepare(cur, patch)
		if err != nil {
			return nil, err
		}
		ok, err := s.write(ctx, s.db, next, cur.Version)
		if err != nil {
			return nil, err
		}
		if ok {
			s.broker.Publish(next)
			return next.Clone(), nil
		}
		log.Debug().Str("room", id).Int("attempt", attempt).Msg("compare-and-swap lost, retrying")
	}
	return nil, unavailable("update", id, errors.New("write contention"))
}

// Transaction runs fn between BEGIN IMMEDIATE and COMMIT.
func (s *SQLite) Transaction(ctx context.Context, id string, fn Patch) (*game.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, unavailable("begin", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	cur, err := s.read(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	next, err := s.prepare(cur, fn)
	if err != nil {
		return nil, err
	}
	ok, err := s.write(ctx, tx, next, cur.Version)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Unreachable while the write lock is held; kept as a guard.
		return nil, unavailable("transaction", id, errors.New("row changed under write lock"))
	}
	if err := tx.Commit(); err != nil {
		return nil, unavailable("commit", id, err)
	}
	s.broker.Publish(next)
	return next.Clone(), nil
}

// Subscribe streams this room's documents, current one first.
func (s *SQLite) Subscribe(ctx context.Context, id string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.read(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	return s.broker.Subscribe(ctx, cur), nil
}

// Poll re-reads every subscribed room each interval and publishes newer
// versions committed by other processes. It returns when ctx is done.
func (s *SQLite) Poll(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
		for _, id := range s.broker.Rooms() {
			doc, err := s.read(ctx, s.db, id)
			if err != nil {
				if !errors.Is(err, ErrNotFound) && ctx.Err() == nil {
					log.Warn().Err(err).Str("room", id).Msg("poll failed")
				}
				continue
			}
			s.broker.Publish(doc)
		}
	}
}

// Purge deletes finished rooms last updated before cutoff.
func (s *SQLite) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE status=? AND updated_at < ?`,
		string(game.StatusFinished), cutoff.UTC().Format(tsLayout),
	)
	if err != nil {
		return 0, unavailable("purge", "", err)
	}
	return res.RowsAffected()
}
