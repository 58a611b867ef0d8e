// Package memory keeps every relationship collection in process memory.
//
// Stores ignore the pgx.Tx argument; atomicity per pair comes from
// Transactor. Writes are applied immediately and are not rolled back, so a
// failed cascade leaves a partial state that re-running completes.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type directedKey struct {
	from int64
	to   int64
}

type Store struct {
	mu sync.Mutex

	users    map[int64]model.User
	refs     map[string]int64
	swipes   map[directedKey]model.Swipe
	matches  map[pairKey]model.Match
	blocks   map[directedKey]model.Block
	messages map[int64]model.Message
	inbox    map[string]model.Notification

	userSeq    int64
	swipeSeq   int64
	matchSeq   int64
	messageSeq int64

	faults map[string]error
}

func NewStore() *Store {
	return &Store{
		users:    make(map[int64]model.User),
		refs:     make(map[string]int64),
		swipes:   make(map[directedKey]model.Swipe),
		matches:  make(map[pairKey]model.Match),
		blocks:   make(map[directedKey]model.Block),
		messages: make(map[int64]model.Message),
		inbox:    make(map[string]model.Notification),
		faults:   make(map[string]error),
	}
}

// AddUser registers a user for an external reference, returning the
// existing record when the reference is known.
func (s *Store) AddUser(ref string) model.User {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref = strings.TrimSpace(ref)
	if id, ok := s.refs[ref]; ok {
		return s.users[id]
	}

	s.userSeq++
	user := model.User{ID: s.userSeq, ExternalRef: ref, CreatedAt: time.Now().UTC()}
	s.users[user.ID] = user
	s.refs[ref] = user.ID
	return user
}

// FailNext makes the next call of op return err. Ops are named
// "<collection>.<method>", e.g. "messages.delete_between".
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// lock acquires the data mutex and consumes a pending fault for op. Callers
// must unlock only when err is nil.
func (s *Store) lock(ctx context.Context, op string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	if err, ok := s.faults[op]; ok {
		delete(s.faults, op)
		s.mu.Unlock()
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
