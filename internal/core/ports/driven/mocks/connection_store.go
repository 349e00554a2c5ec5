package mocks

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

var _ driven.ConnectionStore = (*MockConnectionStore)(nil)

// MockConnectionStore is an in-memory ConnectionStore with version checks.
// It returns copies so callers cannot mutate stored rows.
type MockConnectionStore struct {
	mu    sync.Mutex
	conns map[string]*domain.PlatformConnection

	// Call counters for assertions
	ListByUserCalls int
	GetCalls        int
	UpdateCalls     int

	// Custom behavior hooks (optional)
	ListByUserFn func(userID string) ([]*domain.PlatformConnection, error)
	UpdateFn     func(conn *domain.PlatformConnection, expectedVersion int64) error
	PingFn       func() error
}

// NewMockConnectionStore creates a new MockConnectionStore
func NewMockConnectionStore() *MockConnectionStore {
	return &MockConnectionStore{
		conns: make(map[string]*domain.PlatformConnection),
	}
}

func connKey(userID string, platform domain.Platform) string {
	return userID + "/" + string(platform)
}

func cloneConn(c *domain.PlatformConnection) *domain.PlatformConnection {
	cp := *c
	cp.Scopes = append([]string(nil), c.Scopes...)
	cp.AccessTokenEncrypted = append([]byte(nil), c.AccessTokenEncrypted...)
	cp.RefreshTokenEncrypted = append([]byte(nil), c.RefreshTokenEncrypted...)
	if len(c.RefreshTokenEncrypted) == 0 {
		cp.RefreshTokenEncrypted = nil
	}
	return &cp
}

func (m *MockConnectionStore) Upsert(ctx context.Context, conn *domain.PlatformConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := connKey(conn.UserID, conn.Platform)
	if existing, ok := m.conns[key]; ok {
		conn.ID = existing.ID
		conn.Version = existing.Version + 1
	} else {
		if conn.ID == "" {
			conn.ID = uuid.NewString()
		}
		conn.Version = 1
	}
	m.conns[key] = cloneConn(conn)
	return nil
}

func (m *MockConnectionStore) Get(ctx context.Context, userID string, platform domain.Platform) (*domain.PlatformConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++

	c, ok := m.conns[connKey(userID, platform)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneConn(c), nil
}

func (m *MockConnectionStore) ListByUser(ctx context.Context, userID string) ([]*domain.PlatformConnection, error) {
	m.mu.Lock()
	m.ListByUserCalls++
	fn := m.ListByUserFn
	m.mu.Unlock()
	if fn != nil {
		return fn(userID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.PlatformConnection
	for _, c := range m.conns {
		if c.UserID == userID {
			out = append(out, cloneConn(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Platform < out[j].Platform })
	return out, nil
}

func (m *MockConnectionStore) ListExpiring(ctx context.Context, before time.Time, limit int) ([]*domain.PlatformConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*domain.PlatformConnection
	for _, c := range m.conns {
		if c.TokenExpiresAt == nil || !c.TokenExpiresAt.Before(before) || !c.HasRefreshToken() {
			continue
		}
		if c.Status == domain.ConnectionNeedsReauth {
			continue
		}
		out = append(out, cloneConn(c))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenExpiresAt.Before(*out[j].TokenExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockConnectionStore) Update(ctx context.Context, conn *domain.PlatformConnection, expectedVersion int64) error {
	m.mu.Lock()
	m.UpdateCalls++
	fn := m.UpdateFn
	m.mu.Unlock()
	if fn != nil {
		return fn(conn, expectedVersion)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	key := connKey(conn.UserID, conn.Platform)
	existing, ok := m.conns[key]
	if !ok {
		return domain.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return domain.ErrConflict
	}
	conn.Version = expectedVersion + 1
	m.conns[key] = cloneConn(conn)
	return nil
}

func (m *MockConnectionStore) SetStatus(ctx context.Context, userID string, platform domain.Platform, status domain.ConnectionStatus, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[connKey(userID, platform)]
	if !ok {
		return domain.ErrNotFound
	}
	c.Status = status
	c.LastError = lastError
	c.Version++
	return nil
}

func (m *MockConnectionStore) TouchLastUsed(ctx context.Context, userID string, platform domain.Platform, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[connKey(userID, platform)]
	if !ok {
		return domain.ErrNotFound
	}
	c.LastUsedAt = &at
	return nil
}

func (m *MockConnectionStore) RecordSync(ctx context.Context, userID string, platform domain.Platform, status domain.SyncStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[connKey(userID, platform)]
	if !ok {
		return domain.ErrNotFound
	}
	c.LastSyncStatus = status
	c.LastSyncAt = &at
	return nil
}

func (m *MockConnectionStore) Delete(ctx context.Context, userID string, platform domain.Platform) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := connKey(userID, platform)
	if _, ok := m.conns[key]; !ok {
		return domain.ErrNotFound
	}
	delete(m.conns, key)
	return nil
}

func (m *MockConnectionStore) Ping(ctx context.Context) error {
	if m.PingFn != nil {
		return m.PingFn()
	}
	return nil
}

// Put stores a connection directly (for test setup).
func (m *MockConnectionStore) Put(conn *domain.PlatformConnection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if conn.Version == 0 {
		conn.Version = 1
	}
	m.conns[connKey(conn.UserID, conn.Platform)] = cloneConn(conn)
}

// Len returns the number of stored connections.
func (m *MockConnectionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.conns)
}
