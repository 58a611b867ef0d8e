package rate

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

const (
	ActionSwipe   = "swipe"
	ActionMessage = "message"
	ActionBlock   = "block"
)

type WindowStore interface {
	IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Rule allows Limit hits per Window for one action. A zero Limit disables it.
type Rule struct {
	Limit  int
	Window time.Duration
}

type Limiter struct {
	store WindowStore
	rules map[string][]Rule
}

func NewLimiter(store WindowStore, rules map[string][]Rule) *Limiter {
	cleaned := make(map[string][]Rule, len(rules))
	for action, list := range rules {
		for _, rule := range list {
			if rule.Limit > 0 && rule.Window > 0 {
				cleaned[action] = append(cleaned[action], rule)
			}
		}
	}

	return &Limiter{
		store: store,
		rules: cleaned,
	}
}

// Allow counts one hit of action for userID against every rule of the
// action. When a window is exhausted it returns the seconds until the
// longest blocking window resets.
func (l *Limiter) Allow(ctx context.Context, action string, userID int64) (int64, bool, error) {
	if userID <= 0 {
		return 0, false, fmt.Errorf("invalid user id")
	}
	rules := l.rules[action]
	if len(rules) == 0 {
		return 0, true, nil
	}
	if l.store == nil {
		return 0, false, fmt.Errorf("rate limiter store is nil")
	}

	retryAfterSec := int64(0)
	for _, rule := range rules {
		count, ttl, err := l.store.IncrementWindow(ctx, windowKey(action, rule.Window, userID), rule.Window)
		if err != nil {
			return 0, false, err
		}
		if count > int64(rule.Limit) {
			retryAfterSec = max(retryAfterSec, ceilSeconds(ttl))
		}
	}

	if retryAfterSec > 0 {
		return retryAfterSec, false, nil
	}
	return 0, true, nil
}

func windowKey(action string, window time.Duration, userID int64) string {
	return "rate:" + action + ":" + window.String() + ":" + strconv.FormatInt(userID, 10)
}

func ceilSeconds(d time.Duration) int64 {
	if d <= 0 {
		return 1
	}
	sec := int64(d / time.Second)
	if d%time.Second != 0 {
		sec++
	}
	if sec <= 0 {
		sec = 1
	}
	return sec
}
