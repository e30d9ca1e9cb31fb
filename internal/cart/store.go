// Package cart keeps a per-session, append-only shopping cart.
package cart

import (
	"context"
	"slices"
	"sync"
	"time"

	"AwesomeShop/internal/catalog"
)

const (
	DefaultSessionTTL  = 24 * time.Hour
	DefaultMaxSessions = 10000
)

type Store interface {
	Add(ctx context.Context, session string, p catalog.Product) ([]catalog.Product, error)
	Items(ctx context.Context, session string) ([]catalog.Product, error)
}

type memSession struct {
	items []catalog.Product
	seen  time.Time
}

// MemStore holds carts in memory. A cart idle for longer than the TTL is
// dropped, and once maxSessions carts exist the least recently used one
// makes room for a new session.
type MemStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	max   int
	m     map[string]*memSession
	swept time.Time
	now   func() time.Time
}

// NewMemStore returns a store with the given idle TTL and session cap.
// Non-positive values select DefaultSessionTTL and DefaultMaxSessions.
func NewMemStore(ttl time.Duration, maxSessions int) *MemStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if maxSessions <= 0 {
		maxSessions = DefaultMaxSessions
	}
	return &MemStore{ttl: ttl, max: maxSessions, m: map[string]*memSession{}, now: time.Now}
}

// Add appends p to the session's cart. Adding the same product twice keeps
// both entries.
func (s *MemStore) Add(_ context.Context, session string, p catalog.Product) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now)

	cur, ok := s.m[session]
	if !ok || s.expired(cur, now) {
		if !ok && len(s.m) >= s.max {
			s.evictOldest()
		}
		cur = &memSession{}
		s.m[session] = cur
	}
	cur.items = append(cur.items, p)
	cur.seen = now
	return slices.Clone(cur.items), nil
}

func (s *MemStore) Items(_ context.Context, session string) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.m[session]
	if !ok {
		return nil, nil
	}
	now := s.now()
	if s.expired(cur, now) {
		delete(s.m, session)
		return nil, nil
	}
	cur.seen = now
	return slices.Clone(cur.items), nil
}

func (s *MemStore) expired(cur *memSession, now time.Time) bool {
	return now.Sub(cur.seen) > s.ttl
}

// sweep drops idle sessions, at most once per quarter TTL.
func (s *MemStore) sweep(now time.Time) {
	if now.Sub(s.swept) < s.ttl/4 {
		return
	}
	s.swept = now
	for id, cur := range s.m {
		if s.expired(cur, now) {
			delete(s.m, id)
		}
	}
}

func (s *MemStore) evictOldest() {
	var (
		oldest string
		seen   time.Time
	)
	for id, cur := range s.m {
		if oldest == "" || cur.seen.Before(seen) {
			oldest, seen = id, cur.seen
		}
	}
	delete(s.m, oldest)
}
