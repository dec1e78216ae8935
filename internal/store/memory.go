// apps/go-server/internal/store/memory.go
//
// In-memory implementation of the Store interface.
// Used for ephemeral rooms in development/testing, or when durability is not
// required.
//
// Characteristics:
//   - Stores session documents keyed by room id in a map.
//   - Concurrency-safe via RWMutex (concurrent reads allowed, writes exclusive).
//   - Hands out deep copies only; callers never share memory with the map.
//   - Publishes each commit to the Broker while still holding the write lock,
//     so subscribers see versions in commit order.
//   - Finished rooms are dropped by Purge; everything is lost on restart.

package store

import (
	"context"
	"sync"
	"time"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
)

// Memory is an in-memory map-based Store implementation.
type Memory struct {
	mu       sync.RWMutex             // guards sessions
	sessions map[string]*game.Session // keyed by Session.ID
	broker   *Broker
	now      func() time.Time
}

// NewMemoryStore constructs a new in-memory Store.
func NewMemoryStore() *Memory {
	return &Memory{
		sessions: make(map[string]*game.Session),
		broker:   NewBroker(),
		now:      time.Now,
	}
}

// Get looks up a session by id.
func (m *Memory) Get(ctx context.Context, id string) (*game.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.sessions[id]; ok {
		return s.Clone(), nil
	}
	return nil, ErrNotFound
}

// CreateIfAbsent stores s as version 1 unless id is taken.
func (m *Memory) CreateIfAbsent(ctx context.Context, s *game.Session) (*game.Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.sessions[s.ID]; ok {
		return cur.Clone(), false, nil
	}
	doc := s.Clone()
	doc.Version = 1
	doc.UpdatedAt = m.now()
	if err := checkInvariants(doc); err != nil {
		return nil, false, err
	}
	m.sessions[doc.ID] = doc
	m.broker.Publish(doc)
	return doc.Clone(), true, nil
}

// ConditionalUpdate checks pre and applies patch under the write lock.
func (m *Memory) ConditionalUpdate(ctx context.Context, id string, pre Precondition, patch Patch) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if pre != nil {
		if err := pre(cur); err != nil {
			return nil, stale(id, err)
		}
	}
	return m.commitLocked(cur, patch)
}

// Transaction is ConditionalUpdate without a separate precondition; the
// write lock already makes the read-modify-write atomic.
func (m *Memory) Transaction(ctx context.Context, id string, fn Patch) (*game.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.commitLocked(cur, fn)
}

// Subscribe registers under the write lock so the initial snapshot and the
// following commits form one gap-free sequence.
func (m *Memory) Subscribe(ctx context.Context, id string) (*Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return m.broker.Subscribe(ctx, cur), nil
}

// Purge drops finished rooms last written before cutoff. Live subscriptions
// stay open but receive nothing more.
func (m *Memory) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.sessions {
		if s.Status == game.StatusFinished && s.UpdatedAt.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *Memory) commitLocked(cur *game.Session, patch Patch) (*game.Session, error) {
	next := cur.Clone()
	if err := patch(next); err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.Version = cur.Version + 1
	next.UpdatedAt = m.now()
	if err := checkInvariants(next); err != nil {
		return nil, err
	}
	m.sessions[next.ID] = next
	m.broker.Publish(next)
	return next.Clone(), nil
}
