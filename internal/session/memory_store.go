package session

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const defaultMemoryCapacity = 10000

type memoryEntry struct {
	data      Data
	expiresAt time.Time
}

// MemoryStore keeps sessions in a bounded, expiring LRU. Sessions are lost
// on restart, so it only suits single-instance deployments.
type MemoryStore struct {
	cache *expirable.LRU[string, memoryEntry]
	now   func() time.Time
}

// NewMemoryStore bounds the cache to capacity entries, each evicted at the
// latest after maxTTL.
func NewMemoryStore(capacity int, maxTTL time.Duration) *MemoryStore {
	if capacity <= 0 {
		capacity = defaultMemoryCapacity
	}
	if maxTTL <= 0 {
		maxTTL = defaultTTL
	}
	return &MemoryStore{
		cache: expirable.NewLRU[string, memoryEntry](capacity, nil, maxTTL),
		now:   time.Now,
	}
}

func (s *MemoryStore) Save(_ context.Context, tokenHash string, data Data, expiresAt time.Time) error {
	if data.CreatedAt.IsZero() {
		data.CreatedAt = s.now().UTC()
	}
	if !expiresAt.After(s.now()) {
		expiresAt = s.now().Add(defaultTTL)
	}
	s.cache.Add(tokenHash, memoryEntry{data: data, expiresAt: expiresAt})
	return nil
}

func (s *MemoryStore) Lookup(_ context.Context, tokenHash string) (Data, error) {
	entry, ok := s.cache.Get(tokenHash)
	if !ok {
		return Data{}, ErrNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		s.cache.Remove(tokenHash)
		return Data{}, ErrNotFound
	}
	return entry.data, nil
}

func (s *MemoryStore) Revoke(_ context.Context, tokenHash string) error {
	s.cache.Remove(tokenHash)
	return nil
}

func (s *MemoryStore) Ping(context.Context) error {
	return nil
}

func (s *MemoryStore) Close() error {
	s.cache.Purge()
	return nil
}
