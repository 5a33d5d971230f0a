package token

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by stores when no row matches a hash.
var ErrNotFound = errors.New("token not found")

// Store persists connection tokens keyed by hash. MarkUsed must be atomic
// with respect to concurrent calls for the same hash: exactly one caller
// observes the unused row.
type Store interface {
	Insert(ctx context.Context, t Token) error
	GetByHash(ctx context.Context, hash string) (Token, error)
	MarkUsed(ctx context.Context, hash string, at time.Time) (bool, error)
}

// MemoryStore is a mutex-guarded in-process Store, used in tests and
// single-process deployments.
type MemoryStore struct {
	mu     sync.Mutex
	byHash map[string]Token
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byHash: make(map[string]Token)}
}

func (s *MemoryStore) Insert(ctx context.Context, t Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[t.TokenHash] = t
	return nil
}

func (s *MemoryStore) GetByHash(ctx context.Context, hash string) (Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok {
		return Token{}, ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) MarkUsed(ctx context.Context, hash string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok || t.Used {
		return false, nil
	}
	t.Used = true
	usedAt := at
	t.UsedAt = &usedAt
	s.byHash[hash] = t
	return true, nil
}

// Sweep removes rows expired before the given time. Expiry alone already
// makes them permanently invalid; this just reclaims memory.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for hash, t := range s.byHash {
		if t.Expired(now) {
			delete(s.byHash, hash)
			removed++
		}
	}
	return removed
}
