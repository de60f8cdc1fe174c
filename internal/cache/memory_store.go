package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MemoryStore is an in-memory backend with LRU eviction and per-entry TTL.
// It implements PatternCapable: grouping is by wildcard pattern, not tags,
// which makes it the degraded-capability backend for single-instance runs
// and tests.
type MemoryStore struct {
	mu          sync.Mutex
	entries     map[string]*memoryEntry
	lruList     *list.List
	maxItems    int
	maxMemory   int64
	currentSize int64

	hits   int64
	misses int64

	logger *zap.Logger
}

type memoryEntry struct {
	key        string
	value      []byte
	size       int64
	expiry     time.Time
	lruElement *list.Element
}

// NewMemoryStore creates an in-memory store bounded by item count and bytes
func NewMemoryStore(maxItems int, maxMemory int64, logger *zap.Logger) *MemoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &MemoryStore{
		entries:   make(map[string]*memoryEntry),
		lruList:   list.New(),
		maxItems:  maxItems,
		maxMemory: maxMemory,
		logger:    logger,
	}
}

// Get retrieves a value; expired entries count as misses and are dropped
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		s.misses++
		return nil, false, nil
	}

	if time.Now().After(entry.expiry) {
		s.removeEntry(entry)
		s.misses++
		return nil, false, nil
	}

	s.lruList.MoveToFront(entry.lruElement)
	s.hits++

	// Copy out so callers never see a partially-overwritten buffer.
	value := make([]byte, len(entry.value))
	copy(value, entry.value)

	return value, true, nil
}

// Set stores a value with the given TTL, evicting LRU entries to make room
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entrySize := int64(len(key) + len(value))
	if entrySize > s.maxMemory {
		s.logger.Warn("Entry too large for cache",
			zap.String("key", key),
			zap.Int64("size", entrySize),
			zap.Int64("max_memory", s.maxMemory),
		)
		return nil // skip caching, not an error
	}

	if existing, exists := s.entries[key]; exists {
		s.removeEntry(existing)
	}

	for (s.currentSize+entrySize > s.maxMemory || len(s.entries) >= s.maxItems) && s.lruList.Len() > 0 {
		oldest := s.lruList.Back()
		if oldest != nil {
			s.removeEntry(oldest.Value.(*memoryEntry))
		}
	}

	entry := &memoryEntry{
		key:    key,
		value:  make([]byte, len(value)),
		size:   entrySize,
		expiry: time.Now().Add(ttl),
	}
	copy(entry.value, value)

	entry.lruElement = s.lruList.PushFront(entry)
	s.entries[key] = entry
	s.currentSize += entrySize

	return nil
}

// Delete removes a single key, reporting whether it was present
func (s *MemoryStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.entries[key]
	if !exists {
		return false, nil
	}
	s.removeEntry(entry)
	return true, nil
}

// Clear removes all entries matching the pattern (supports a single leading
// or trailing * wildcard)
func (s *MemoryStore) Clear(ctx context.Context, pattern string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	toDelete := make([]*memoryEntry, 0)
	for key, entry := range s.entries {
		if matchPattern(key, pattern) {
			toDelete = append(toDelete, entry)
		}
	}

	for _, entry := range toDelete {
		s.removeEntry(entry)
	}

	s.logger.Debug("Cleared cache entries",
		zap.String("pattern", pattern),
		zap.Int("count", len(toDelete)),
	)

	return nil
}

// removeEntry removes an entry (must be called with lock held)
func (s *MemoryStore) removeEntry(entry *memoryEntry) {
	if entry.lruElement != nil {
		s.lruList.Remove(entry.lruElement)
	}
	delete(s.entries, entry.key)
	s.currentSize -= entry.size
}

// Len reports the number of live entries
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// matchPattern implements simple wildcard pattern matching
func matchPattern(str, pattern string) bool {
	if pattern == "*" {
		return true
	}

	if len(pattern) > 0 && pattern[0] == '*' {
		suffix := pattern[1:]
		return len(str) >= len(suffix) && str[len(str)-len(suffix):] == suffix
	}

	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		return len(str) >= len(prefix) && str[:len(prefix)] == prefix
	}

	return str == pattern
}
