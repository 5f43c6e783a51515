package checker

import (
	"context"
	"sync"
	"time"

	"github.com/namelens/entryguard/internal/core"
)

type memoryResponseStore struct {
	mu      sync.Mutex
	entries map[string]core.CachedResponse
	ttls    map[string]time.Duration
}

func newMemoryResponseStore() *memoryResponseStore {
	return &memoryResponseStore{
		entries: make(map[string]core.CachedResponse),
		ttls:    make(map[string]time.Duration),
	}
}

func (s *memoryResponseStore) GetCachedResponse(_ context.Context, key string, checkType core.CheckType) (*core.CachedResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[string(checkType)+"|"+key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (s *memoryResponseStore) SetCachedResponse(_ context.Context, key string, checkType core.CheckType, response *core.CachedResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[string(checkType)+"|"+key] = *response
	s.ttls[string(checkType)+"|"+key] = ttl
	return nil
}

func (s *memoryResponseStore) ttl(checkType core.CheckType, key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ttl, ok := s.ttls[string(checkType)+"|"+key]
	return ttl, ok
}

type memoryRateStore struct {
	mu    sync.Mutex
	state map[string]core.RateLimitState
}

func (m *memoryRateStore) GetRateLimit(_ context.Context, endpoint string) (*core.RateLimitState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.state[endpoint]; ok {
		return &val, nil
	}
	return nil, nil
}

func (m *memoryRateStore) UpdateRateLimit(_ context.Context, endpoint string, state *core.RateLimitState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == nil {
		m.state = make(map[string]core.RateLimitState)
	}
	m.state[endpoint] = *state
	return nil
}
