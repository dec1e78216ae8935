package store

import (
	"context"
	"sync"

	"github.com/robalobadob/duodecoder/apps/go-server/internal/game"
)

// Broker fans committed documents out to subscribers, per room, in commit
// order. Stores call Publish while still holding their write lock.
type Broker struct {
	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewBroker constructs an empty Broker.
func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*Subscription]struct{})}
}

// Publish queues s for every subscriber of s.ID. Subscribers skip versions
// they have already seen, so a late duplicate never regresses them.
func (b *Broker) Publish(s *game.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[s.ID] {
		sub.push(s.Clone())
	}
}

// Subscribe registers a subscription whose first delivery is current.
// Callers hold the store's write lock so no commit slips in between.
func (b *Broker) Subscribe(ctx context.Context, current *game.Session) *Subscription {
	sub := &Subscription{
		id:     current.ID,
		ch:     make(chan *game.Session),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
		broker: b,
	}
	sub.push(current.Clone())

	b.mu.Lock()
	if b.subs[current.ID] == nil {
		b.subs[current.ID] = make(map[*Subscription]struct{})
	}
	b.subs[current.ID][sub] = struct{}{}
	b.mu.Unlock()

	go sub.run(ctx)
	return sub
}

// count returns the number of live subscriptions for id.
func (b *Broker) count(id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[id])
}

// Rooms lists ids with at least one live subscription.
func (b *Broker) Rooms() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.subs))
	for id := range b.subs {
		ids = append(ids, id)
	}
	return ids
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[sub.id], sub)
	if len(b.subs[sub.id]) == 0 {
		delete(b.subs, sub.id)
	}
}

// Subscription is a cancellable stream of full session snapshots.
// Snapshots are queued without bound so a slow reader never drops one.
type Subscription struct {
	id     string
	ch     chan *game.Session
	notify chan struct{}
	done   chan struct{}
	broker *Broker

	mu    sync.Mutex
	queue []*game.Session
	last  int64

	closeOnce sync.Once
}

// C delivers snapshots; it is closed after Close or context cancellation.
func (s *Subscription) C() <-chan *game.Session { return s.ch }

// Close stops delivery and releases the subscription.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.broker.remove(s)
	})
}

func (s *Subscription) push(doc *game.Session) {
	s.mu.Lock()
	if doc.Version <= s.last {
		s.mu.Unlock()
		return
	}
	s.last = doc.Version
	s.queue = append(s.queue, doc)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) run(ctx context.Context) {
	defer close(s.ch)
	defer s.Close()
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			case <-ctx.Done():
				return
			}
		}
		next := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.ch <- next:
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}
