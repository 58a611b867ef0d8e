package swipes

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
	"github.com/ivankudzin/matchcore/internal/repo/memory"
	"github.com/ivankudzin/matchcore/internal/services/matches"
	"github.com/ivankudzin/matchcore/internal/services/notify"
)

type fixture struct {
	store    *memory.Store
	blocks   *memory.BlockRepo
	messages *memory.MessageRepo
	notifier *recordingNotifier
	svc      *Service
}

func newFixture() *fixture {
	store := memory.NewStore()
	tx := memory.NewTransactor()
	swipeRepo := memory.NewSwipeRepo(store)
	matchRepo := memory.NewMatchRepo(store)
	messageRepo := memory.NewMessageRepo(store)
	blockRepo := memory.NewBlockRepo(store)
	notifier := &recordingNotifier{}

	engine := matches.NewEngine(matches.Dependencies{
		Tx:       tx,
		Swipes:   swipeRepo,
		Matches:  matchRepo,
		Messages: messageRepo,
		Blocks:   blockRepo,
		Notifier: notifier,
	}, matches.Config{})

	svc := NewService(Dependencies{
		Tx:       tx,
		Swipes:   swipeRepo,
		Blocks:   blockRepo,
		Matches:  matchRepo,
		Engine:   engine,
		Notifier: notifier,
	}, Config{MaxBatchSize: 5})

	return &fixture{store: store, blocks: blockRepo, messages: messageRepo, notifier: notifier, svc: svc}
}

func TestRecordSwipeValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name   string
		actor  int64
		target int64
		status string
		want   error
	}{
		{name: "self swipe", actor: 1, target: 1, status: "like", want: errs.ErrSelfReference},
		{name: "unknown status", actor: 1, target: 2, status: "maybe", want: errs.ErrInvalidStatus},
		{name: "empty status", actor: 1, target: 2, status: "", want: errs.ErrInvalidStatus},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.RecordSwipe(ctx, tc.actor, tc.target, tc.status)
			if !errors.Is(err, tc.want) {
				t.Fatalf("unexpected error: got %v want %v", err, tc.want)
			}
			if !errs.IsValidation(err) {
				t.Fatalf("expected validation kind, got %v", errs.KindOf(err))
			}
		})
	}

	if _, err := f.svc.RecordSwipe(ctx, 1, 1, "like"); err.Error() != "you cannot swipe yourself" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestRecordSwipeAcceptsDirectionAliases(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	res, err := f.svc.RecordSwipe(ctx, 1, 2, "RIGHT")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if res.Swipe.Status != enums.SwipeStatusSuperLike {
		t.Fatalf("unexpected status: got %s want %s", res.Swipe.Status, enums.SwipeStatusSuperLike)
	}
}

func TestRecordSwipeRejectsBlockedPair(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.blocks.Create(ctx, nil, 1, 2, time.Now()); err != nil {
		t.Fatalf("block: %v", err)
	}

	_, err := f.svc.RecordSwipe(ctx, 1, 2, "like")
	if !errors.Is(err, errs.ErrBlocked) || err.Error() != "you have blocked this user" {
		t.Fatalf("blocker side: unexpected error %v", err)
	}
	_, err = f.svc.RecordSwipe(ctx, 2, 1, "like")
	if !errors.Is(err, errs.ErrBlocked) || err.Error() != "this user has blocked you" {
		t.Fatalf("blocked side: unexpected error %v", err)
	}

	facts := f.store.Facts(rules.NewPairKey(1, 2))
	if facts.ViewerSwipe != nil || facts.OtherSwipe != nil {
		t.Fatalf("no swipe may be written on a blocked pair: %+v", facts)
	}
}

func TestIdempotentReswipe(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.RecordSwipe(ctx, 2, 1, "like"); err != nil {
		t.Fatalf("record: %v", err)
	}

	first, err := f.svc.RecordSwipe(ctx, 1, 2, "like")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if !first.Created || first.Match == nil {
		t.Fatalf("expected creation with match, got %+v", first)
	}

	second, err := f.svc.RecordSwipe(ctx, 1, 2, "like")
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if second.Created || second.Changed || second.Match != nil {
		t.Fatalf("re-swipe must be a no-op, got %+v", second)
	}
	if second.Swipe.ID != first.Swipe.ID {
		t.Fatalf("re-swipe must keep the record: got %d want %d", second.Swipe.ID, first.Swipe.ID)
	}

	if got := f.notifier.count(enums.NotificationTypeMatch); got != 2 {
		t.Fatalf("expected exactly one match event per party, got %d", got)
	}

	swipes, err := f.svc.ListByActor(ctx, 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(swipes) != 1 {
		t.Fatalf("expected one swipe record, got %d", len(swipes))
	}
}

func TestReswipeAfterFailedMatchWriteFormsMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.RecordSwipe(ctx, 1, 2, "like"); err != nil {
		t.Fatalf("record: %v", err)
	}

	f.store.FailNext("matches.create", errors.New("connection reset"))
	if _, err := f.svc.RecordSwipe(ctx, 2, 1, "like"); err == nil {
		t.Fatalf("expected the match write to fail")
	}
	likes := f.notifier.count(enums.NotificationTypeLike)

	retry, err := f.svc.RecordSwipe(ctx, 2, 1, "like")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if retry.Changed || retry.Match == nil {
		t.Fatalf("retry must keep the swipe and form the match, got %+v", retry)
	}
	if !retry.Match.Includes(1) || !retry.Match.Includes(2) {
		t.Fatalf("unexpected match pair: %+v", retry.Match)
	}
	if f.store.Facts(rules.NewPairKey(1, 2)).Match == nil {
		t.Fatalf("match must be stored after the retry")
	}
	if got := f.notifier.count(enums.NotificationTypeMatch); got != 2 {
		t.Fatalf("expected one match event per party, got %d", got)
	}
	if got := f.notifier.count(enums.NotificationTypeLike); got != likes {
		t.Fatalf("retry must not repeat the like event: got %d want %d", got, likes)
	}

	again, err := f.svc.RecordSwipe(ctx, 2, 1, "like")
	if err != nil {
		t.Fatalf("second retry: %v", err)
	}
	if again.Match != nil || f.notifier.count(enums.NotificationTypeMatch) != 2 {
		t.Fatalf("matched pair must stay quiet, got %+v", again)
	}
}

func TestLikeNotificationOnlyWithoutMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.RecordSwipe(ctx, 1, 2, "like"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := f.notifier.count(enums.NotificationTypeLike); got != 1 {
		t.Fatalf("expected one like event, got %d", got)
	}

	if _, err := f.svc.RecordSwipe(ctx, 1, 2, "dislike"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.svc.RecordSwipe(ctx, 3, 2, "dislike"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := f.notifier.count(enums.NotificationTypeLike); got != 1 {
		t.Fatalf("dislikes must not notify, got %d like events", got)
	}

	if _, err := f.svc.RecordSwipe(ctx, 2, 1, "like"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if got := f.notifier.count(enums.NotificationTypeLike); got != 2 {
		t.Fatalf("expected like event for unanswered swipe, got %d", got)
	}
	if got := f.notifier.count(enums.NotificationTypeMatch); got != 0 {
		t.Fatalf("no match expected after dislike, got %d match events", got)
	}
}

func TestLikeThenDislikeNeverMatches(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, status := range []string{"like", "dislike"} {
		res, err := f.svc.RecordSwipe(ctx, 1, 2, status)
		if err != nil {
			t.Fatalf("record %s: %v", status, err)
		}
		if res.Match != nil {
			t.Fatalf("no match may form without a reciprocal swipe")
		}
	}

	got, err := f.svc.GetSwipe(ctx, 1, 2)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != enums.SwipeStatusDislike {
		t.Fatalf("unexpected final status: got %s want %s", got.Status, enums.SwipeStatusDislike)
	}
	if f.store.Facts(rules.NewPairKey(1, 2)).Match != nil {
		t.Fatalf("unexpected match")
	}
}

func TestDeleteSwipe(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.RecordSwipe(ctx, 1, 2, "like"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.svc.RecordSwipe(ctx, 2, 1, "superlike"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.messages.Create(ctx, nil, 1, 2, "hey", time.Now()); err != nil {
		t.Fatalf("message: %v", err)
	}

	if _, err := f.svc.DeleteSwipe(ctx, 3, 1, 2); !errors.Is(err, errs.ErrNotOwner) {
		t.Fatalf("foreign delete: got %v want %v", err, errs.ErrNotOwner)
	}

	res, err := f.svc.DeleteSwipe(ctx, 1, 1, 2)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !res.TornDown || res.Removed.Matches != 1 || res.Removed.Messages != 1 {
		t.Fatalf("expected dependent match teardown, got %+v", res)
	}

	facts := f.store.Facts(rules.NewPairKey(1, 2))
	if facts.Match != nil || facts.Messages != 0 || facts.ViewerSwipe != nil {
		t.Fatalf("unexpected facts after delete: %+v", facts)
	}
	if facts.OtherSwipe == nil {
		t.Fatalf("the other side's swipe must survive")
	}

	if _, err := f.svc.DeleteSwipe(ctx, 1, 1, 2); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("second delete: got %v want %v", err, errs.ErrNotFound)
	}
	if _, err := f.svc.GetSwipe(ctx, 1, 2); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("get after delete: got %v want %v", err, errs.ErrNotFound)
	}
}

func TestRecordBatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	if _, err := f.svc.RecordSwipe(ctx, 3, 1, "like"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if _, err := f.blocks.Create(ctx, nil, 4, 1, time.Now()); err != nil {
		t.Fatalf("block: %v", err)
	}

	res, err := f.svc.RecordBatch(ctx, 1, []BatchItem{
		{Index: 0, TargetID: 2, Status: "like"},
		{Index: 1, TargetID: 3, Status: "like"},
		{Index: 2, TargetID: 4, Status: "like"},
		{Index: 3, TargetID: 2, Status: "like"},
		{Index: 4, TargetID: 5, Status: "nope"},
	})
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if res.Processed != 3 || res.Created != 2 || res.Unchanged != 1 || res.Matches != 1 {
		t.Fatalf("unexpected counters: %+v", res)
	}
	if len(res.Failed) != 2 || res.Failed[0].Index != 2 || res.Failed[1].Index != 4 {
		t.Fatalf("unexpected failures: %+v", res.Failed)
	}

	if _, err := f.svc.RecordBatch(ctx, 1, nil); !errs.IsValidation(err) {
		t.Fatalf("empty batch must be rejected, got %v", err)
	}
	tooMany := make([]BatchItem, 6)
	if _, err := f.svc.RecordBatch(ctx, 1, tooMany); !errs.IsValidation(err) {
		t.Fatalf("oversized batch must be rejected, got %v", err)
	}
}

func TestStats(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	for _, step := range []struct {
		actor, target int64
		status        string
	}{
		{1, 2, "like"},
		{1, 3, "superlike"},
		{1, 4, "like"},
		{1, 5, "dislike"},
		{2, 1, "like"},
		{6, 1, "dislike"},
	} {
		if _, err := f.svc.RecordSwipe(ctx, step.actor, step.target, step.status); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	stats, err := f.svc.Stats(ctx, 1)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Sent[enums.SwipeStatusLike] != 2 || stats.Sent[enums.SwipeStatusSuperLike] != 1 || stats.Sent[enums.SwipeStatusDislike] != 1 {
		t.Fatalf("unexpected sent counts: %+v", stats.Sent)
	}
	if stats.Received[enums.SwipeStatusLike] != 1 || stats.Received[enums.SwipeStatusDislike] != 1 {
		t.Fatalf("unexpected received counts: %+v", stats.Received)
	}
	if stats.PositiveSent != 3 || stats.Matches != 1 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.ConversionRate != 33.33 {
		t.Fatalf("unexpected conversion rate: got %v want 33.33", stats.ConversionRate)
	}
}

// TestMutualityInvariantUnderRandomSequences drives random swipes, deletes
// and unmatches across a small user set and checks after every step that a
// match exists exactly when both directions are positive.
func TestMutualityInvariantUnderRandomSequences(t *testing.T) {
	statuses := []string{"like", "superlike", "dislike"}
	users := []int64{1, 2, 3, 4}

	for seed := int64(1); seed <= 20; seed++ {
		f := newFixture()
		engine := f.svc.engine.(*matches.Engine)
		rng := rand.New(rand.NewSource(seed))
		ctx := context.Background()

		for step := 0; step < 200; step++ {
			a := users[rng.Intn(len(users))]
			b := users[rng.Intn(len(users))]
			if a == b {
				continue
			}

			switch op := rng.Intn(10); {
			case op < 7:
				if _, err := f.svc.RecordSwipe(ctx, a, b, statuses[rng.Intn(len(statuses))]); err != nil {
					t.Fatalf("seed %d step %d: record: %v", seed, step, err)
				}
			case op < 9:
				if _, err := f.svc.DeleteSwipe(ctx, a, a, b); err != nil && !errors.Is(err, errs.ErrNotFound) {
					t.Fatalf("seed %d step %d: delete: %v", seed, step, err)
				}
			default:
				if _, err := engine.Unmatch(ctx, a, b); err != nil && !errors.Is(err, errs.ErrNotMatched) {
					t.Fatalf("seed %d step %d: unmatch: %v", seed, step, err)
				}
			}

			key := rules.NewPairKey(a, b)
			if v := rules.Violations(f.store.Facts(key)); len(v) != 0 {
				t.Fatalf("seed %d step %d: pair %s violates %v", seed, step, key, v)
			}
		}
	}
}

func TestConcurrentReciprocalSwipesFormOneMatch(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture()
		ctx := context.Background()

		var wg sync.WaitGroup
		for _, pair := range [][2]int64{{1, 2}, {2, 1}} {
			wg.Add(1)
			go func(actor, target int64) {
				defer wg.Done()
				if _, err := f.svc.RecordSwipe(ctx, actor, target, "like"); err != nil {
					t.Errorf("record: %v", err)
				}
			}(pair[0], pair[1])
		}
		wg.Wait()

		if f.store.Facts(rules.NewPairKey(1, 2)).Match == nil {
			t.Fatalf("round %d: expected a match", round)
		}
		if got := f.notifier.count(enums.NotificationTypeMatch); got != 2 {
			t.Fatalf("round %d: expected one match creation, got %d match events", round, got)
		}
	}
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

func (r *recordingNotifier) count(kind enums.NotificationType) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, ev := range r.events {
		if ev.Type == kind {
			n++
		}
	}
	return n
}
