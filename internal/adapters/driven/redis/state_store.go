package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.AuthorizationStateStore = (*StateStore)(nil)

const (
	statePrefix   = keyPrefix + "state:"
	stateExpiries = keyPrefix + "states:expiry"

	// stateRetention keeps consumed or expired records around after their
	// window so a late callback is reported as replay or expired instead of
	// not found.
	stateRetention = time.Hour
)

// StateStore implements driven.AuthorizationStateStore on Redis hashes.
// Each state lives at state:<id>; a sorted set scored by expiry drives
// Cleanup.
type StateStore struct {
	client *redis.Client
}

// NewStateStore creates a new Redis-backed authorization state store.
func NewStateStore(client *redis.Client) *StateStore {
	return &StateStore{client: client}
}

// Save writes the state hash and indexes it by expiry.
func (s *StateStore) Save(ctx context.Context, state *domain.AuthorizationState) error {
	key := statePrefix + state.StateID
	ttl := state.ExpiresAt.Sub(state.CreatedAt) + stateRetention

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		"user_id", state.UserID,
		"platform", string(state.Platform),
		"verifier", state.CodeVerifierEncrypted,
		"redirect_uri", state.RedirectURI,
		"created_at", state.CreatedAt.UnixMilli(),
		"expires_at", state.ExpiresAt.UnixMilli(),
		"used", "0",
	)
	pipe.Expire(ctx, key, ttl)
	pipe.ZAdd(ctx, stateExpiries, redis.Z{
		Score:  float64(state.ExpiresAt.UnixMilli()),
		Member: state.StateID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save authorization state: %w", err)
	}
	return nil
}

// consumeScript flips used from 0 to 1 in one step and reports why it
// could not when the state is missing, used or expired. A used state
// reports replay even once it has also expired.
var consumeScript = redis.NewScript(`
	if redis.call("exists", KEYS[1]) == 0 then
		return {"not_found"}
	end
	if redis.call("hget", KEYS[1], "used") == "1" then
		return {"replay"}
	end
	if tonumber(redis.call("hget", KEYS[1], "expires_at")) <= tonumber(ARGV[1]) then
		return {"expired"}
	end
	redis.call("hset", KEYS[1], "used", "1", "used_at", ARGV[1])
	local fields = redis.call("hgetall", KEYS[1])
	table.insert(fields, 1, "ok")
	return fields
`)

// Consume atomically marks the state used and returns the record.
func (s *StateStore) Consume(ctx context.Context, stateID string, now time.Time) (*domain.AuthorizationState, error) {
	res, err := consumeScript.Run(ctx, s.client, []string{statePrefix + stateID}, now.UnixMilli()).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("consume authorization state: %w", err)
	}
	if len(res) == 0 {
		return nil, fmt.Errorf("consume authorization state: empty script reply")
	}

	switch res[0] {
	case "ok":
	case "not_found":
		return nil, domain.ErrStateNotFound
	case "replay":
		return nil, domain.ErrStateReplay
	case "expired":
		return nil, domain.ErrStateExpired
	default:
		return nil, fmt.Errorf("consume authorization state: unexpected reply %q", res[0])
	}

	fields := make(map[string]string, (len(res)-1)/2)
	for i := 1; i+1 < len(res); i += 2 {
		fields[res[i]] = res[i+1]
	}
	return stateFromHash(stateID, fields)
}

func stateFromHash(stateID string, h map[string]string) (*domain.AuthorizationState, error) {
	st := &domain.AuthorizationState{
		StateID:     stateID,
		UserID:      h["user_id"],
		Platform:    domain.Platform(h["platform"]),
		RedirectURI: h["redirect_uri"],
		Used:        h["used"] == "1",
	}
	if v := h["verifier"]; v != "" {
		st.CodeVerifierEncrypted = []byte(v)
	}

	var err error
	if st.CreatedAt, err = parseMillis(h["created_at"]); err != nil {
		return nil, fmt.Errorf("decode created_at: %w", err)
	}
	if st.ExpiresAt, err = parseMillis(h["expires_at"]); err != nil {
		return nil, fmt.Errorf("decode expires_at: %w", err)
	}
	if raw, ok := h["used_at"]; ok {
		usedAt, err := parseMillis(raw)
		if err != nil {
			return nil, fmt.Errorf("decode used_at: %w", err)
		}
		st.UsedAt = &usedAt
	}
	return st, nil
}

func parseMillis(raw string) (time.Time, error) {
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(ms).UTC(), nil
}

// Cleanup deletes states whose expiry is at or before now.
func (s *StateStore) Cleanup(ctx context.Context, now time.Time) (int64, error) {
	max := strconv.FormatInt(now.UnixMilli(), 10)
	ids, err := s.client.ZRangeByScore(ctx, stateExpiries, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, fmt.Errorf("list expired states: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = statePrefix + id
	}

	pipe := s.client.TxPipeline()
	del := pipe.Del(ctx, keys...)
	pipe.ZRemRangeByScore(ctx, stateExpiries, "-inf", max)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("cleanup authorization states: %w", err)
	}
	return del.Val(), nil
}
