package redis

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const identityKeyPrefix = "identity:"

// IdentityCacheRepo caches lookup key -> internal user id. Callers own the
// key namespace. User ids never change, so entries only expire to bound memory.
type IdentityCacheRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewIdentityCacheRepo(client *goredis.Client, ttl time.Duration) *IdentityCacheRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdentityCacheRepo{client: client, ttl: ttl}
}

func (r *IdentityCacheRepo) Get(ctx context.Context, key string) (int64, bool, error) {
	if r.client == nil {
		return 0, false, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.Get(ctx, identityKey(key)).Result()
	if err == goredis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get identity cache: %w", err)
	}

	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || userID <= 0 {
		return 0, false, fmt.Errorf("decode identity cache value %q", raw)
	}

	return userID, true, nil
}

func (r *IdentityCacheRepo) Set(ctx context.Context, key string, userID int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	if err := r.client.Set(ctx, identityKey(key), strconv.FormatInt(userID, 10), r.ttl).Err(); err != nil {
		return fmt.Errorf("set identity cache: %w", err)
	}
	return nil
}

func identityKey(key string) string {
	return identityKeyPrefix + strings.TrimSpace(key)
}
