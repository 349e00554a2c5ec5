package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

var _ driven.AuthorizationStateStore = (*MockStateStore)(nil)

// MockStateStore is an in-memory AuthorizationStateStore.
// Consume is a compare-and-set under the mutex.
type MockStateStore struct {
	mu     sync.Mutex
	states map[string]*domain.AuthorizationState

	ConsumeCalls int

	// Custom behavior hooks (optional)
	SaveFn func(state *domain.AuthorizationState) error
}

// NewMockStateStore creates a new MockStateStore
func NewMockStateStore() *MockStateStore {
	return &MockStateStore{
		states: make(map[string]*domain.AuthorizationState),
	}
}

func (m *MockStateStore) Save(ctx context.Context, state *domain.AuthorizationState) error {
	if m.SaveFn != nil {
		return m.SaveFn(state)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *state
	m.states[state.StateID] = &cp
	return nil
}

func (m *MockStateStore) Consume(ctx context.Context, stateID string, now time.Time) (*domain.AuthorizationState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ConsumeCalls++

	s, ok := m.states[stateID]
	switch {
	case !ok:
		return nil, domain.ErrStateNotFound
	case s.Used:
		return nil, domain.ErrStateReplay
	case s.IsExpired(now):
		return nil, domain.ErrStateExpired
	}
	s.Used = true
	s.UsedAt = &now
	cp := *s
	return &cp, nil
}

func (m *MockStateStore) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.states {
		if s.IsExpired(now) {
			delete(m.states, id)
			n++
		}
	}
	return n, nil
}

// Get returns a stored state (for test assertions).
func (m *MockStateStore) Get(stateID string) (*domain.AuthorizationState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.states[stateID]
	if !ok {
		return nil, false
	}
	cp := *s
	return &cp, true
}

// Len returns the number of stored states.
func (m *MockStateStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}
