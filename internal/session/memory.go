package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

type memoryEntry struct {
	payload  []byte
	lastSeen time.Time
}

// MemoryStore keeps sessions in process memory with TTL eviction, for
// tests and single-instance deployments without Redis.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]*memoryEntry
	ttl     time.Duration
	done    chan struct{}
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{
		entries: make(map[int64]*memoryEntry),
		ttl:     ttl,
		done:    make(chan struct{}),
	}
	go s.janitor()
	return s
}

func (s *MemoryStore) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			for key, entry := range s.entries {
				if time.Since(entry.lastSeen) > s.ttl {
					delete(s.entries, key)
				}
			}
			s.mu.Unlock()
		}
	}
}

func (s *MemoryStore) Close() {
	close(s.done)
}

func (s *MemoryStore) Get(_ context.Context, operatorID int64) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[operatorID]
	if !ok || time.Since(entry.lastSeen) > s.ttl {
		delete(s.entries, operatorID)
		return nil, ErrNoSession
	}
	entry.lastSeen = time.Now()

	var session Session
	if err := json.Unmarshal(entry.payload, &session); err != nil {
		delete(s.entries, operatorID)
		return nil, ErrNoSession
	}
	return &session, nil
}

func (s *MemoryStore) Put(_ context.Context, operatorID int64, session *Session) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[operatorID] = &memoryEntry{payload: payload, lastSeen: time.Now()}
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, operatorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, operatorID)
	return nil
}
