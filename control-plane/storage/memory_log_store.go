package storage

import (
	"context"
	"sync"
	"time"
)

// memoryLogStore keeps recorded requests in insertion order.
type memoryLogStore struct {
	mu      sync.RWMutex
	entries []*LogEntry
	nextID  int64
}

// NewMemoryLogStore creates a new in-memory log store.
func NewMemoryLogStore() ILogStore {
	return &memoryLogStore{}
}

// Append records a log entry.
func (s *memoryLogStore) Append(_ context.Context, entry *LogEntry) error {
	if entry == nil {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	if entry.ID == 0 {
		entry.ID = s.nextID
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	stored := *entry
	s.entries = append(s.entries, &stored)
	return nil
}

// List returns one page of entries, newest first.
func (s *memoryLogStore) List(_ context.Context, page, limit int) ([]*LogEntry, int, error) {
	if page < 1 || limit < 1 {
		return nil, 0, ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	total := len(s.entries)
	start, ok := pageOffset(page, limit)
	if !ok || start >= total {
		return []*LogEntry{}, total, nil
	}
	out := make([]*LogEntry, 0, min(limit, total-start))
	for i := total - 1 - start; i >= 0 && len(out) < limit; i-- {
		entry := *s.entries[i]
		out = append(out, &entry)
	}
	return out, total, nil
}

// Clear removes every entry.
func (s *memoryLogStore) Clear(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.entries)
	s.entries = nil
	return n, nil
}
