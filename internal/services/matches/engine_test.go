package matches

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
	"github.com/ivankudzin/matchcore/internal/repo/memory"
	"github.com/ivankudzin/matchcore/internal/services/notify"
)

type fixture struct {
	store    *memory.Store
	swipes   *memory.SwipeRepo
	matches  *memory.MatchRepo
	messages *memory.MessageRepo
	blocks   *memory.BlockRepo
	tx       *memory.Transactor
	notifier *recordingNotifier
	engine   *Engine
}

func newFixture() *fixture {
	store := memory.NewStore()
	f := &fixture{
		store:    store,
		swipes:   memory.NewSwipeRepo(store),
		matches:  memory.NewMatchRepo(store),
		messages: memory.NewMessageRepo(store),
		blocks:   memory.NewBlockRepo(store),
		tx:       memory.NewTransactor(),
		notifier: &recordingNotifier{},
	}
	f.engine = NewEngine(Dependencies{
		Tx:       f.tx,
		Swipes:   f.swipes,
		Matches:  f.matches,
		Messages: f.messages,
		Blocks:   f.blocks,
		Notifier: f.notifier,
	}, Config{})
	return f
}

func (f *fixture) swipe(t *testing.T, from, to int64, status enums.SwipeStatus) model.Swipe {
	t.Helper()
	sw, _, err := f.swipes.Upsert(context.Background(), nil, from, to, status, time.Now())
	if err != nil {
		t.Fatalf("upsert swipe: %v", err)
	}
	return sw
}

func (f *fixture) message(t *testing.T, from, to int64) {
	t.Helper()
	if _, err := f.messages.Create(context.Background(), nil, from, to, "hello", time.Now()); err != nil {
		t.Fatalf("create message: %v", err)
	}
}

func TestEvaluateFormsMatchOnReciprocalPositive(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first := f.swipe(t, 1, 2, enums.SwipeStatusLike)
	eval, err := f.engine.Evaluate(ctx, nil, first)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if eval.Match != nil || eval.Created {
		t.Fatalf("one-sided like must not match: %+v", eval)
	}

	second := f.swipe(t, 2, 1, enums.SwipeStatusSuperLike)
	eval, err = f.engine.Evaluate(ctx, nil, second)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.Created || eval.Match == nil {
		t.Fatalf("expected match creation, got %+v", eval)
	}
	if eval.Match.FormedFromSwipeID != second.ID {
		t.Fatalf("unexpected formed_from_swipe_id: got %d want %d", eval.Match.FormedFromSwipeID, second.ID)
	}
	if eval.Match.UserAID != 1 || eval.Match.UserBID != 2 {
		t.Fatalf("match must be canonical: %+v", eval.Match)
	}
	if len(eval.Events) != 2 {
		t.Fatalf("expected two match events, got %d", len(eval.Events))
	}
	recipients := map[int64]bool{eval.Events[0].RecipientID: true, eval.Events[1].RecipientID: true}
	if !recipients[1] || !recipients[2] {
		t.Fatalf("both parties must be notified: %+v", eval.Events)
	}

	again, err := f.engine.Evaluate(ctx, nil, second)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if again.Created || again.Match == nil || again.Match.ID != eval.Match.ID || len(again.Events) != 0 {
		t.Fatalf("existing match must be a no-op: %+v", again)
	}
}

func TestEvaluateDowngradeTearsDownMatchAndMessages(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.swipe(t, 1, 2, enums.SwipeStatusLike)
	if _, err := f.engine.Evaluate(ctx, nil, f.swipe(t, 2, 1, enums.SwipeStatusLike)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	f.message(t, 1, 2)
	f.message(t, 2, 1)

	eval, err := f.engine.Evaluate(ctx, nil, f.swipe(t, 1, 2, enums.SwipeStatusDislike))
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.TornDown {
		t.Fatalf("expected teardown")
	}
	want := model.CascadeCounts{Matches: 1, Messages: 2}
	if eval.Removed != want {
		t.Fatalf("unexpected removed counts: got %+v want %+v", eval.Removed, want)
	}

	facts := f.store.Facts(rules.NewPairKey(1, 2))
	if facts.Match != nil || facts.Messages != 0 {
		t.Fatalf("pair must be empty after downgrade: %+v", facts)
	}
	if facts.ViewerSwipe == nil || facts.ViewerSwipe.Status != enums.SwipeStatusDislike {
		t.Fatalf("downgrade keeps the swipe ledger: %+v", facts.ViewerSwipe)
	}
}

func TestEvaluateConvergesWhenMatchInsertLosesRace(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.swipe(t, 1, 2, enums.SwipeStatusLike)
	sw := f.swipe(t, 2, 1, enums.SwipeStatusLike)

	winner, err := f.matches.Create(ctx, nil, rules.NewPairKey(1, 2), sw.ID, time.Now())
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	racing := &raceMatchStore{MatchRepo: f.matches}
	engine := NewEngine(Dependencies{
		Tx: f.tx, Swipes: f.swipes, Matches: racing, Messages: f.messages, Blocks: f.blocks,
	}, Config{})

	eval, err := engine.Evaluate(ctx, nil, sw)
	if err != nil {
		t.Fatalf("race lost must converge, got %v", err)
	}
	if eval.Created || eval.Match == nil || eval.Match.ID != winner.ID {
		t.Fatalf("expected convergence to existing match, got %+v", eval)
	}
}

func TestUnmatchRemovesEverything(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	f.swipe(t, 1, 2, enums.SwipeStatusLike)
	if _, err := f.engine.Evaluate(ctx, nil, f.swipe(t, 2, 1, enums.SwipeStatusLike)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	f.message(t, 1, 2)

	removed, err := f.engine.Unmatch(ctx, 2, 1)
	if err != nil {
		t.Fatalf("unmatch: %v", err)
	}
	want := model.CascadeCounts{Matches: 1, Messages: 1, Swipes: 2}
	if removed != want {
		t.Fatalf("unexpected removed counts: got %+v want %+v", removed, want)
	}

	facts := f.store.Facts(rules.NewPairKey(1, 2))
	if rules.DeriveRelationship(facts) != enums.RelationshipNone || facts.Messages != 0 || facts.ViewerSwipe != nil || facts.OtherSwipe != nil {
		t.Fatalf("pair must be reset after unmatch: %+v", facts)
	}

	if _, err := f.engine.Unmatch(ctx, 1, 2); !errors.Is(err, errs.ErrNotMatched) {
		t.Fatalf("second unmatch: got %v want %v", err, errs.ErrNotMatched)
	}
}

func TestUnmatchPreconditions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.engine.Unmatch(ctx, 3, 3); !errs.IsValidation(err) {
		t.Fatalf("self unmatch: expected validation error, got %v", err)
	}

	if _, err := f.blocks.Create(ctx, nil, 2, 1, time.Now()); err != nil {
		t.Fatalf("create block: %v", err)
	}
	_, err := f.engine.Unmatch(ctx, 1, 2)
	if !errors.Is(err, errs.ErrBlocked) {
		t.Fatalf("blocked unmatch: got %v want %v", err, errs.ErrBlocked)
	}
	if err.Error() != "this user has blocked you" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestCascadeBlockReportsPartialFailureAndIsReentrant(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	key := rules.NewPairKey(1, 2)

	f.swipe(t, 1, 2, enums.SwipeStatusLike)
	if _, err := f.engine.Evaluate(ctx, nil, f.swipe(t, 2, 1, enums.SwipeStatusLike)); err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	f.message(t, 1, 2)

	f.store.FailNext("messages.delete_between", errors.New("io timeout"))
	removed, err := f.engine.CascadeBlock(ctx, nil, key)

	var cascadeErr *errs.CascadeError
	if !errors.As(err, &cascadeErr) {
		t.Fatalf("expected cascade error, got %v", err)
	}
	if cascadeErr.Step != "messages" || removed.Matches != 1 {
		t.Fatalf("unexpected partial result: step=%s removed=%+v", cascadeErr.Step, removed)
	}
	if !errs.IsRetryable(err) {
		t.Fatalf("partial cascade must be retryable")
	}

	removed, err = f.engine.CascadeBlock(ctx, nil, key)
	if err != nil {
		t.Fatalf("re-run cascade: %v", err)
	}
	want := model.CascadeCounts{Matches: 0, Messages: 1, Swipes: 2}
	if removed != want {
		t.Fatalf("unexpected counts on re-run: got %+v want %+v", removed, want)
	}

	removed, err = f.engine.CascadeBlock(ctx, nil, key)
	if err != nil || removed.Total() != 0 {
		t.Fatalf("empty cascade must succeed with zero counts: removed=%+v err=%v", removed, err)
	}
}

func TestRepairFixesEachViolation(t *testing.T) {
	ctx := context.Background()

	t.Run("stale match", func(t *testing.T) {
		f := newFixture()
		sw := f.swipe(t, 1, 2, enums.SwipeStatusDislike)
		f.swipe(t, 2, 1, enums.SwipeStatusLike)
		if _, err := f.matches.Create(ctx, nil, rules.NewPairKey(1, 2), sw.ID, time.Now()); err != nil {
			t.Fatalf("create: %v", err)
		}

		res, err := f.engine.Repair(ctx, rules.NewPairKey(1, 2))
		if err != nil {
			t.Fatalf("repair: %v", err)
		}
		if res.Removed.Matches != 1 || len(res.Violations) != 1 {
			t.Fatalf("unexpected repair result: %+v", res)
		}
	})

	t.Run("missing match", func(t *testing.T) {
		f := newFixture()
		f.swipe(t, 1, 2, enums.SwipeStatusLike)
		f.swipe(t, 2, 1, enums.SwipeStatusLike)

		res, err := f.engine.Repair(ctx, rules.NewPairKey(1, 2))
		if err != nil {
			t.Fatalf("repair: %v", err)
		}
		if res.Formed == nil {
			t.Fatalf("expected match to be formed: %+v", res)
		}
		if got := len(f.notifier.all()); got != 2 {
			t.Fatalf("expected two match notifications, got %d", got)
		}
	})

	t.Run("leftovers on blocked pair", func(t *testing.T) {
		f := newFixture()
		f.swipe(t, 1, 2, enums.SwipeStatusLike)
		f.message(t, 1, 2)
		if _, err := f.blocks.Create(ctx, nil, 1, 2, time.Now()); err != nil {
			t.Fatalf("block: %v", err)
		}

		res, err := f.engine.Repair(ctx, rules.NewPairKey(1, 2))
		if err != nil {
			t.Fatalf("repair: %v", err)
		}
		if res.Removed.Swipes != 1 || res.Removed.Messages != 1 {
			t.Fatalf("unexpected repair result: %+v", res)
		}
		if v := rules.Violations(f.store.Facts(rules.NewPairKey(1, 2))); len(v) != 0 {
			t.Fatalf("pair still inconsistent: %v", v)
		}
	})

	t.Run("consistent pair untouched", func(t *testing.T) {
		f := newFixture()
		f.swipe(t, 1, 2, enums.SwipeStatusLike)

		res, err := f.engine.Repair(ctx, rules.NewPairKey(1, 2))
		if err != nil {
			t.Fatalf("repair: %v", err)
		}
		if len(res.Violations) != 0 || res.Removed.Total() != 0 || res.Formed != nil {
			t.Fatalf("expected no-op, got %+v", res)
		}
	})
}

type raceMatchStore struct {
	*memory.MatchRepo
	once sync.Once
}

// Get hides the existing match on the first call so Evaluate attempts the insert.
func (r *raceMatchStore) Get(ctx context.Context, tx pgx.Tx, key rules.PairKey) (model.Match, bool, error) {
	hidden := false
	r.once.Do(func() { hidden = true })
	if hidden {
		return model.Match{}, false, nil
	}
	return r.MatchRepo.Get(ctx, tx, key)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingNotifier) Emit(_ context.Context, events []notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, events...)
}

func (r *recordingNotifier) all() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}
