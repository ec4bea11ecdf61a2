package repository

import (
	"context"
	"strconv"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

type memoryStateStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
}

func NewMemoryStateStore() StateStore {
	return &memoryStateStore{entries: make(map[string]memoryEntry)}
}

func (s *memoryStateStore) get(key string, now time.Time) (memoryEntry, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !entry.expiresAt.IsZero() && now.After(entry.expiresAt) {
		delete(s.entries, key)
		return memoryEntry{}, false
	}
	return entry, true
}

func (s *memoryStateStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	var count int64
	entry, ok := s.get(key, now)
	if ok {
		count, _ = strconv.ParseInt(string(entry.value), 10, 64)
	}
	count++

	expiresAt := entry.expiresAt
	if !ok {
		expiresAt = now.Add(ttl)
	}
	s.entries[key] = memoryEntry{
		value:     []byte(strconv.FormatInt(count, 10)),
		expiresAt: expiresAt,
	}
	return count, nil
}

func (s *memoryStateStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.get(key, time.Now())
	if !ok {
		return nil, nil
	}
	return entry.value, nil
}

func (s *memoryStateStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	s.entries[key] = memoryEntry{value: value, expiresAt: expiresAt}
	return nil
}

func (s *memoryStateStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
