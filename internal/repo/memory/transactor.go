package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

type pairKey = rules.PairKey

type pairLock struct {
	mu   sync.Mutex
	refs int
}

// Transactor serialises work per pair. Pair work holds the global lock
// shared; Snapshot holds it exclusively so it never observes a half-applied
// cascade.
type Transactor struct {
	global sync.RWMutex

	mu    sync.Mutex
	pairs map[pairKey]*pairLock
}

func NewTransactor() *Transactor {
	return &Transactor{pairs: make(map[pairKey]*pairLock)}
}

func (t *Transactor) InPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error {
	if !key.Valid() {
		return fmt.Errorf("invalid pair key %s", key)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	t.global.RLock()
	defer t.global.RUnlock()

	lock := t.acquire(key)
	lock.mu.Lock()
	defer func() {
		lock.mu.Unlock()
		t.release(key, lock)
	}()

	return fn(ctx, nil)
}

func (t *Transactor) ReadPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error {
	return t.InPair(ctx, key, fn)
}

func (t *Transactor) Snapshot(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.global.Lock()
	defer t.global.Unlock()

	return fn(ctx, nil)
}

func (t *Transactor) acquire(key pairKey) *pairLock {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock, ok := t.pairs[key]
	if !ok {
		lock = &pairLock{}
		t.pairs[key] = lock
	}
	lock.refs++
	return lock
}

func (t *Transactor) release(key pairKey, lock *pairLock) {
	t.mu.Lock()
	defer t.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(t.pairs, key)
	}
}
