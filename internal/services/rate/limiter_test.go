package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	redrepo "github.com/ivankudzin/matchcore/internal/repo/redis"
)

func TestLimiterBlocksOnShortWindow(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewRateRepo(client), map[string][]Rule{
		ActionSwipe: {
			{Limit: 100, Window: time.Minute},
			{Limit: 2, Window: 10 * time.Second},
		},
	})

	ctx := context.Background()
	userID := int64(42)

	for i := 0; i < 2; i++ {
		retryAfter, allowed, err := limiter.Allow(ctx, ActionSwipe, userID)
		if err != nil {
			t.Fatalf("allow swipe #%d: %v", i+1, err)
		}
		if !allowed || retryAfter != 0 {
			t.Fatalf("unexpected result on allow #%d: allowed=%v retry_after=%d", i+1, allowed, retryAfter)
		}
	}

	retryAfter, allowed, err := limiter.Allow(ctx, ActionSwipe, userID)
	if err != nil {
		t.Fatalf("allow swipe #3: %v", err)
	}
	if allowed {
		t.Fatalf("expected limiter block on third action in 10s window")
	}
	if retryAfter <= 0 || retryAfter > 10 {
		t.Fatalf("unexpected retry_after: %d", retryAfter)
	}

	mr.FastForward(11 * time.Second)

	retryAfter, allowed, err = limiter.Allow(ctx, ActionSwipe, userID)
	if err != nil {
		t.Fatalf("allow swipe after window: %v", err)
	}
	if !allowed || retryAfter != 0 {
		t.Fatalf("unexpected result after fast forward: allowed=%v retry_after=%d", allowed, retryAfter)
	}
}

func TestLimiterActionsAreIndependent(t *testing.T) {
	mr, client := newMiniRedisClient(t)
	defer mr.Close()
	defer func() { _ = client.Close() }()

	limiter := NewLimiter(redrepo.NewRateRepo(client), map[string][]Rule{
		ActionMessage: {{Limit: 1, Window: time.Minute}},
	})

	ctx := context.Background()
	if _, allowed, err := limiter.Allow(ctx, ActionMessage, 7); err != nil || !allowed {
		t.Fatalf("first message: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.Allow(ctx, ActionMessage, 7); err != nil || allowed {
		t.Fatalf("second message should be throttled: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.Allow(ctx, ActionMessage, 8); err != nil || !allowed {
		t.Fatalf("other user must not share the window: allowed=%v err=%v", allowed, err)
	}
	if _, allowed, err := limiter.Allow(ctx, ActionSwipe, 7); err != nil || !allowed {
		t.Fatalf("action without rules must pass: allowed=%v err=%v", allowed, err)
	}
}

func TestLimiterIgnoresDisabledRules(t *testing.T) {
	limiter := NewLimiter(nil, map[string][]Rule{
		ActionBlock: {{Limit: 0, Window: time.Minute}},
	})

	if _, allowed, err := limiter.Allow(context.Background(), ActionBlock, 1); err != nil || !allowed {
		t.Fatalf("disabled rule must pass without a store: allowed=%v err=%v", allowed, err)
	}
}

func newMiniRedisClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}
