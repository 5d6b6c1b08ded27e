package saga

import (
	"context"
	"sync"
)

// MemoryStore keeps events in memory. Used in tests and when no database
// is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(ctx context.Context, evt *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *evt)
	return nil
}

func (s *MemoryStore) ListBySaga(ctx context.Context, sagaID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, evt := range s.events {
		if evt.SagaID == sagaID {
			out = append(out, evt)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 {
		limit = 50
	}
	n := len(s.events)
	var out []Event
	for i := n - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}
