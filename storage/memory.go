// memory.go
package storage

import (
	"context"
	"sync"

	solanacopygo "github.com/franco-bianco/solanacopy-go/solanacopy-go"
)

// MemoryStore is a map-backed event store for tests and the demo runner.
type MemoryStore struct {
	mu     sync.Mutex
	events map[string]solanacopygo.Classification
}

var _ solanacopygo.EventStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{events: make(map[string]solanacopygo.Classification)}
}

func (s *MemoryStore) Exists(_ context.Context, signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.events[signature]
	return ok, nil
}

func (s *MemoryStore) Insert(_ context.Context, c solanacopygo.Classification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[c.Event.Signature] = c
	return nil
}

// Get returns a recorded classification by signature.
func (s *MemoryStore) Get(signature string) (solanacopygo.Classification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.events[signature]
	return c, ok
}

// Len reports how many events have been recorded.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
