package blocks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
	"github.com/ivankudzin/matchcore/internal/repo/memory"
	"github.com/ivankudzin/matchcore/internal/services/matches"
)

type fixture struct {
	store    *memory.Store
	swipes   *memory.SwipeRepo
	matches  *memory.MatchRepo
	messages *memory.MessageRepo
	svc      *Service
}

func newFixture() *fixture {
	store := memory.NewStore()
	tx := memory.NewTransactor()
	f := &fixture{
		store:    store,
		swipes:   memory.NewSwipeRepo(store),
		matches:  memory.NewMatchRepo(store),
		messages: memory.NewMessageRepo(store),
	}
	blockRepo := memory.NewBlockRepo(store)

	engine := matches.NewEngine(matches.Dependencies{
		Tx:       tx,
		Swipes:   f.swipes,
		Matches:  f.matches,
		Messages: f.messages,
		Blocks:   blockRepo,
	}, matches.Config{})

	f.svc = NewService(Dependencies{Tx: tx, Blocks: blockRepo, Cascader: engine})
	return f
}

// seedMatch puts the pair 1-2 into Matched with two messages.
func (f *fixture) seedMatch(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	a, _, err := f.swipes.Upsert(ctx, nil, 1, 2, enums.SwipeStatusLike, now)
	if err != nil {
		t.Fatalf("swipe: %v", err)
	}
	if _, _, err := f.swipes.Upsert(ctx, nil, 2, 1, enums.SwipeStatusLike, now); err != nil {
		t.Fatalf("swipe: %v", err)
	}
	if _, err := f.matches.Create(ctx, nil, rules.NewPairKey(1, 2), a.ID, now); err != nil {
		t.Fatalf("match: %v", err)
	}
	for _, from := range []int64{1, 2} {
		if _, err := f.messages.Create(ctx, nil, from, 3-from, "hi", now); err != nil {
			t.Fatalf("message: %v", err)
		}
	}
}

func TestBlockCascadesEverything(t *testing.T) {
	f := newFixture()
	f.seedMatch(t)

	res, err := f.svc.Block(context.Background(), 2, 1)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	want := model.CascadeCounts{Matches: 1, Messages: 2, Swipes: 2}
	if res.Removed != want {
		t.Fatalf("unexpected cascade counts: got %+v want %+v", res.Removed, want)
	}
	if res.Block.BlockerID != 2 || res.Block.BlockedID != 1 {
		t.Fatalf("unexpected block record: %+v", res.Block)
	}

	facts := f.store.Facts(rules.NewPairKey(1, 2))
	if facts.Match != nil || facts.Messages != 0 || facts.ViewerSwipe != nil || facts.OtherSwipe != nil {
		t.Fatalf("block dominance violated: %+v", facts)
	}
}

func TestBlockErrors(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.Block(ctx, 1, 1); !errors.Is(err, errs.ErrSelfReference) {
		t.Fatalf("self block: got %v want %v", err, errs.ErrSelfReference)
	}

	if _, err := f.svc.Block(ctx, 1, 2); err != nil {
		t.Fatalf("block: %v", err)
	}
	_, err := f.svc.Block(ctx, 1, 2)
	if !errors.Is(err, errs.ErrAlreadyBlocked) {
		t.Fatalf("repeat block: got %v want %v", err, errs.ErrAlreadyBlocked)
	}
	if err.Error() != "you have already blocked this user" {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	if _, err := f.svc.Block(ctx, 2, 1); err != nil {
		t.Fatalf("reverse block is a separate record: %v", err)
	}
}

func TestBlockPartialCascadeReportsAndRetryCompletes(t *testing.T) {
	f := newFixture()
	f.seedMatch(t)
	ctx := context.Background()

	f.store.FailNext("swipes.delete_between", errors.New("write conflict"))
	_, err := f.svc.Block(ctx, 1, 2)

	var cascadeErr *errs.CascadeError
	if !errors.As(err, &cascadeErr) || cascadeErr.Step != "swipes" {
		t.Fatalf("expected swipes cascade failure, got %v", err)
	}
	if !errs.IsRetryable(err) {
		t.Fatalf("partial block must be retryable")
	}

	// The block row survived the failed step, so the retry reports the
	// conflict but still completes the cascade.
	if _, err := f.svc.Block(ctx, 1, 2); !errors.Is(err, errs.ErrAlreadyBlocked) {
		t.Fatalf("retry: got %v want %v", err, errs.ErrAlreadyBlocked)
	}
	if v := rules.Violations(f.store.Facts(rules.NewPairKey(1, 2))); len(v) != 0 {
		t.Fatalf("pair still inconsistent: %v", v)
	}
}

func TestUnblockRestoresNothing(t *testing.T) {
	f := newFixture()
	f.seedMatch(t)
	ctx := context.Background()

	if err := f.svc.Unblock(ctx, 1, 2); !errors.Is(err, errs.ErrNotBlocked) {
		t.Fatalf("unblock without block: got %v want %v", err, errs.ErrNotBlocked)
	}

	if _, err := f.svc.Block(ctx, 1, 2); err != nil {
		t.Fatalf("block: %v", err)
	}
	if err := f.svc.Unblock(ctx, 2, 1); !errors.Is(err, errs.ErrNotBlocked) {
		t.Fatalf("only the blocker may unblock: got %v", err)
	}
	if err := f.svc.Unblock(ctx, 1, 2); err != nil {
		t.Fatalf("unblock: %v", err)
	}

	facts := f.store.Facts(rules.NewPairKey(1, 2))
	if facts.Blocked() || facts.Match != nil || facts.ViewerSwipe != nil || facts.Messages != 0 {
		t.Fatalf("pair must return to no relation: %+v", facts)
	}
	if rules.DeriveRelationship(facts) != enums.RelationshipNone {
		t.Fatalf("unexpected relationship: %s", rules.DeriveRelationship(facts))
	}
}

func TestCheckAndLists(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, pair := range [][2]int64{{1, 2}, {1, 3}, {4, 1}} {
		if _, err := f.svc.Block(ctx, pair[0], pair[1]); err != nil {
			t.Fatalf("block %v: %v", pair, err)
		}
	}

	status, err := f.svc.Check(ctx, 2, 1)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if status.BlockedByViewer || !status.BlockedByOther {
		t.Fatalf("unexpected status: %+v", status)
	}

	blocked, err := f.svc.IsBlocked(ctx, 1, 4)
	if err != nil || !blocked {
		t.Fatalf("expected blocked pair: blocked=%v err=%v", blocked, err)
	}
	blocked, err = f.svc.IsBlocked(ctx, 2, 3)
	if err != nil || blocked {
		t.Fatalf("expected open pair: blocked=%v err=%v", blocked, err)
	}

	byUser, err := f.svc.ListBlocked(ctx, 1)
	if err != nil || len(byUser) != 2 {
		t.Fatalf("list blocked: got %d err=%v want 2", len(byUser), err)
	}
	ofUser, err := f.svc.ListBlockers(ctx, 1)
	if err != nil || len(ofUser) != 1 || ofUser[0].BlockerID != 4 {
		t.Fatalf("list blockers: got %+v err=%v", ofUser, err)
	}
}
