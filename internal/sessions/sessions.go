// Package sessions remembers, per conversation, which address replies for
// that conversation go to.
package sessions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSessionNotFound is returned when no sender is recorded for a session.
var ErrSessionNotFound = errors.New("session not found")

// Store maps a session id to the sender address of that session.
type Store interface {
	Put(ctx context.Context, sessionID, sender string) error
	Get(ctx context.Context, sessionID string) (string, error)
	Close() error
}

// MemoryStore is a thread-safe in-memory implementation of Store.
type MemoryStore struct {
	mu      sync.RWMutex
	senders map[string]entry // key: session ID
}

type entry struct {
	sender  string
	updated time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a new in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		senders: make(map[string]entry),
	}
}

// Put records sender for the session, replacing any previous value.
func (s *MemoryStore) Put(_ context.Context, sessionID, sender string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.senders[sessionID] = entry{sender: sender, updated: time.Now()}
	return nil
}

// Get returns the sender recorded for the session.
func (s *MemoryStore) Get(_ context.Context, sessionID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.senders[sessionID]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return e.sender, nil
}

// Prune forgets sessions last written before cutoff and returns how many.
func (s *MemoryStore) Prune(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, e := range s.senders {
		if e.updated.Before(cutoff) {
			delete(s.senders, id)
			n++
		}
	}
	return n, nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.senders)
}

func (s *MemoryStore) Close() error { return nil }
