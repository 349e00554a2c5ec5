package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

var _ driven.StatusCache = (*MockStatusCache)(nil)

// MockStatusCache is a map-backed StatusCache that ignores TTLs.
type MockStatusCache struct {
	mu    sync.Mutex
	views map[string]domain.StatusMap

	GetCalls        int
	SetCalls        int
	InvalidateCalls int

	// Custom behavior hooks (optional)
	GetFn        func(userID string) (domain.StatusMap, bool, error)
	SetFn        func(userID string, view domain.StatusMap) error
	InvalidateFn func(userID string) error
}

// NewMockStatusCache creates a new MockStatusCache
func NewMockStatusCache() *MockStatusCache {
	return &MockStatusCache{
		views: make(map[string]domain.StatusMap),
	}
}

func (m *MockStatusCache) Get(ctx context.Context, userID string) (domain.StatusMap, bool, error) {
	m.mu.Lock()
	m.GetCalls++
	fn := m.GetFn
	m.mu.Unlock()
	if fn != nil {
		return fn(userID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.views[userID]
	return v, ok, nil
}

func (m *MockStatusCache) Set(ctx context.Context, userID string, view domain.StatusMap, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetCalls++
	if m.SetFn != nil {
		return m.SetFn(userID, view)
	}
	m.views[userID] = view
	return nil
}

func (m *MockStatusCache) Invalidate(ctx context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InvalidateCalls++
	if m.InvalidateFn != nil {
		return m.InvalidateFn(userID)
	}
	delete(m.views, userID)
	return nil
}

// Has reports whether a view is cached for the user.
func (m *MockStatusCache) Has(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.views[userID]
	return ok
}
