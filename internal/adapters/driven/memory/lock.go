package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.DistributedLock = (*Lock)(nil)

// Lock is a process-local DistributedLock for deployments with a single
// instance and no Redis.
type Lock struct {
	mu   sync.Mutex
	held map[string]time.Time
	now  func() time.Time
}

// NewLock creates an empty in-process lock table.
func NewLock() *Lock {
	return &Lock{held: make(map[string]time.Time), now: time.Now}
}

// Acquire takes name until ttl passes or Release is called.
func (l *Lock) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if until, ok := l.held[name]; ok && now.Before(until) {
		return false, nil
	}
	l.held[name] = now.Add(ttl)
	return true, nil
}

// Release frees name. Releasing a free lock is a no-op.
func (l *Lock) Release(_ context.Context, name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, name)
	return nil
}

// Extend pushes out the expiry of a held lock.
func (l *Lock) Extend(_ context.Context, name string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	until, ok := l.held[name]
	if !ok || !now.Before(until) {
		return fmt.Errorf("lock %s not held", name)
	}
	l.held[name] = now.Add(ttl)
	return nil
}

// Ping always succeeds.
func (l *Lock) Ping(context.Context) error {
	return nil
}
