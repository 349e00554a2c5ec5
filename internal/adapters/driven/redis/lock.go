package redis

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

var _ driven.DistributedLock = (*Lock)(nil)

const lockPrefix = keyPrefix + "lock:"

// ownerEntropy feeds owner tokens. Tests swap it for a failing reader.
var ownerEntropy io.Reader = rand.Reader

// Lock leases named keys to one maintenance replica at a time. A key
// holds the owner token of the replica that set it, and release and
// extend act only while that token is still in place, so a replica whose
// lease lapsed cannot drop or prolong its successor's.
type Lock struct {
	client *redis.Client
	owner  string
}

// NewLock creates a lock with a fresh owner token for this process.
func NewLock(client *redis.Client) (*Lock, error) {
	owner, err := newOwner()
	if err != nil {
		return nil, err
	}
	return &Lock{client: client, owner: owner}, nil
}

// newOwner returns host/pid/uuid. Host and pid only make held keys
// readable to operators; the uuid makes the token unique.
func newOwner() (string, error) {
	id, err := uuid.NewRandomFromReader(ownerEntropy)
	if err != nil {
		return "", fmt.Errorf("generate lock owner: %w", err)
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}
	return fmt.Sprintf("%s/%d/%s", host, os.Getpid(), id), nil
}

// ownedScript applies ARGV[2] to KEYS[1] only while the key holds the
// owner token ARGV[1]. It returns 1 when the command ran on a held key.
var ownedScript = redis.NewScript(`
if redis.call("get", KEYS[1]) ~= ARGV[1] then
	return 0
end
if ARGV[2] == "pexpire" then
	return redis.call("pexpire", KEYS[1], ARGV[3])
end
return redis.call("del", KEYS[1])
`)

func (l *Lock) ifOwned(ctx context.Context, name string, args ...interface{}) (bool, error) {
	argv := append([]interface{}{l.owner}, args...)
	n, err := ownedScript.Run(ctx, l.client, []string{lockPrefix + name}, argv...).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Acquire takes name for ttl. It reports false without error when another
// owner, or this one, already holds it.
func (l *Lock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockPrefix+name, l.owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
	return ok, nil
}

// Release drops name if this owner holds it. Missing or foreign keys are
// left alone.
func (l *Lock) Release(ctx context.Context, name string) error {
	if _, err := l.ifOwned(ctx, name, "del"); err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// Extend resets the lease on a held lock to ttl.
func (l *Lock) Extend(ctx context.Context, name string, ttl time.Duration) error {
	held, err := l.ifOwned(ctx, name, "pexpire", ttl.Milliseconds())
	if err != nil {
		return fmt.Errorf("extend lock %s: %w", name, err)
	}
	if !held {
		return fmt.Errorf("lock %s not held by %s", name, l.owner)
	}
	return nil
}

// Ping checks the Redis connection.
func (l *Lock) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// OwnerID returns the token written into held keys.
func (l *Lock) OwnerID() string {
	return l.owner
}
