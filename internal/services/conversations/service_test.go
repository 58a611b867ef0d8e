package conversations

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
	"github.com/ivankudzin/matchcore/internal/repo/memory"
	"github.com/ivankudzin/matchcore/internal/services/notify"
)

type fixture struct {
	store    *memory.Store
	matches  *memory.MatchRepo
	blocks   *memory.BlockRepo
	notifier *recordingNotifier
	svc      *Service
	clock    time.Time
}

func newFixture() *fixture {
	store := memory.NewStore()
	f := &fixture{
		store:    store,
		matches:  memory.NewMatchRepo(store),
		blocks:   memory.NewBlockRepo(store),
		notifier: &recordingNotifier{},
		clock:    time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(Dependencies{
		Tx:       memory.NewTransactor(),
		Messages: memory.NewMessageRepo(store),
		Matches:  f.matches,
		Blocks:   f.blocks,
		Notifier: f.notifier,
	}, Config{MaxMessageLength: 20})
	f.svc.now = func() time.Time {
		f.clock = f.clock.Add(time.Minute)
		return f.clock
	}
	return f
}

func (f *fixture) match(t *testing.T, a, b int64, at time.Time) {
	t.Helper()
	if _, err := f.matches.Create(context.Background(), nil, rules.NewPairKey(a, b), 1, at); err != nil {
		t.Fatalf("match: %v", err)
	}
}

func TestSendMessageValidation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tests := []struct {
		name    string
		from    int64
		to      int64
		content string
		want    error
	}{
		{name: "empty", from: 1, to: 2, content: "", want: errs.ErrEmptyContent},
		{name: "whitespace", from: 1, to: 2, content: " \n\t ", want: errs.ErrEmptyContent},
		{name: "too long", from: 1, to: 2, content: strings.Repeat("я", 21), want: errs.ErrContentTooLong},
		{name: "self", from: 1, to: 1, content: "hi", want: errs.ErrSelfReference},
		{name: "not matched", from: 1, to: 2, content: "hi", want: errs.ErrNotMatched},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.SendMessage(ctx, tc.from, tc.to, tc.content); !errors.Is(err, tc.want) {
				t.Fatalf("unexpected error: got %v want %v", err, tc.want)
			}
		})
	}
	if len(f.notifier.all()) != 0 {
		t.Fatalf("failed sends must not notify")
	}
}

func TestSendMessageToMatch(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.match(t, 1, 2, f.clock)

	msg, err := f.svc.SendMessage(ctx, 1, 2, "  hello there  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Content != "hello there" || msg.SenderID != 1 || msg.ReceiverID != 2 || msg.IsRead {
		t.Fatalf("unexpected message: %+v", msg)
	}

	events := f.notifier.all()
	if len(events) != 1 {
		t.Fatalf("expected one message event, got %d", len(events))
	}
	ev := events[0]
	if ev.RecipientID != 2 || ev.Type != enums.NotificationTypeMessage || ev.Payload.MessageID != msg.ID || ev.Payload.Preview != "hello there" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestSendMessageRechecksBlock(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.match(t, 1, 2, f.clock)

	if _, err := f.blocks.Create(ctx, nil, 2, 1, time.Now()); err != nil {
		t.Fatalf("block: %v", err)
	}

	_, err := f.svc.SendMessage(ctx, 1, 2, "still there?")
	if !errors.Is(err, errs.ErrBlocked) || err.Error() != "this user has blocked you" {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.store.Messages(rules.NewPairKey(1, 2))) != 0 {
		t.Fatalf("no message may be stored on a blocked pair")
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.match(t, 1, 2, f.clock)

	for i := 0; i < 3; i++ {
		if _, err := f.svc.SendMessage(ctx, 2, 1, "ping"); err != nil {
			t.Fatalf("send: %v", err)
		}
	}
	if _, err := f.svc.SendMessage(ctx, 1, 2, "pong"); err != nil {
		t.Fatalf("send: %v", err)
	}

	updated, err := f.svc.MarkRead(ctx, 1, 2)
	if err != nil || updated != 3 {
		t.Fatalf("mark read: updated=%d err=%v want 3", updated, err)
	}
	updated, err = f.svc.MarkRead(ctx, 1, 2)
	if err != nil || updated != 0 {
		t.Fatalf("second mark read: updated=%d err=%v want 0", updated, err)
	}
	if updated, err := f.svc.MarkRead(ctx, 1, 9); err != nil || updated != 0 {
		t.Fatalf("mark read without thread: updated=%d err=%v", updated, err)
	}
}

func TestListConversationsOrdersByActivity(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	base := f.clock
	f.match(t, 1, 2, base.Add(-3*time.Hour))
	f.match(t, 1, 3, base.Add(-2*time.Hour))
	f.match(t, 4, 1, base.Add(-1*time.Hour))
	f.match(t, 5, 6, base)

	if _, err := f.svc.SendMessage(ctx, 2, 1, "newest"); err != nil {
		t.Fatalf("send: %v", err)
	}

	items, err := f.svc.ListConversations(ctx, 1)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("unexpected conversation count: got %d want 3", len(items))
	}

	order := []int64{items[0].OtherUserID, items[1].OtherUserID, items[2].OtherUserID}
	want := []int64{2, 4, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("unexpected order: got %v want %v", order, want)
		}
	}
	if items[0].LatestMessage == nil || items[0].LatestMessage.Content != "newest" || items[0].UnreadCount != 1 {
		t.Fatalf("unexpected first conversation: %+v", items[0])
	}
	if items[1].LatestMessage != nil || items[1].UnreadCount != 0 {
		t.Fatalf("empty conversation must have no message: %+v", items[1])
	}
}

func TestHistoryEditDelete(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.match(t, 1, 2, f.clock)

	first, err := f.svc.SendMessage(ctx, 1, 2, "one")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.svc.SendMessage(ctx, 2, 1, "two"); err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := f.svc.EditMessage(ctx, 2, first.ID, "hijack"); !errors.Is(err, errs.ErrNotOwner) {
		t.Fatalf("foreign edit: got %v want %v", err, errs.ErrNotOwner)
	}
	edited, err := f.svc.EditMessage(ctx, 1, first.ID, "uno")
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.Content != "uno" || edited.EditedAt == nil {
		t.Fatalf("unexpected edited message: %+v", edited)
	}

	history, err := f.svc.History(ctx, 2, 1, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Content != "uno" || history[1].Content != "two" {
		t.Fatalf("unexpected history: %+v", history)
	}

	if err := f.svc.DeleteMessage(ctx, 2, first.ID); !errors.Is(err, errs.ErrNotOwner) {
		t.Fatalf("foreign delete: got %v want %v", err, errs.ErrNotOwner)
	}
	if err := f.svc.DeleteMessage(ctx, 1, first.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := f.svc.DeleteMessage(ctx, 1, first.ID); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("second delete: got %v want %v", err, errs.ErrNotFound)
	}

	if _, err := f.svc.History(ctx, 1, 3, 10); !errors.Is(err, errs.ErrNotMatched) {
		t.Fatalf("history without match: got %v want %v", err, errs.ErrNotMatched)
	}
}

func TestEditRequiresOpenPair(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.match(t, 1, 2, f.clock)

	msg, err := f.svc.SendMessage(ctx, 1, 2, "hi")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if _, err := f.matches.Delete(ctx, nil, rules.NewPairKey(1, 2)); err != nil {
		t.Fatalf("delete match: %v", err)
	}

	if _, err := f.svc.EditMessage(ctx, 1, msg.ID, "edited"); !errors.Is(err, errs.ErrNotMatched) {
		t.Fatalf("edit after unmatch: got %v want %v", err, errs.ErrNotMatched)
	}
}

func TestStoreFailureIsRetryable(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.match(t, 1, 2, f.clock)

	f.store.FailNext("messages.create", errors.New("connection reset"))
	_, err := f.svc.SendMessage(ctx, 1, 2, "hi")
	if !errs.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	var unavailable *errs.UnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected UnavailableError, got %T", err)
	}
	if strings.Contains(unavailable.Message(), "connection reset") {
		t.Fatalf("user message must not leak the cause: %q", unavailable.Message())
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

func (r *recordingNotifier) all() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}
