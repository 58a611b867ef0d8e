package notify

import (
	"context"
	"strings"
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type InboxStore interface {
	Insert(ctx context.Context, n model.Notification) error
	ListForUser(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]model.Notification, error)
	CountUnread(ctx context.Context, userID int64) (int, error)
	MarkRead(ctx context.Context, userID int64, ids []string, now time.Time) (int64, error)
}

// InboxPublisher persists notifications so clients can page through them.
type InboxPublisher struct {
	store InboxStore
}

func NewInboxPublisher(store InboxStore) *InboxPublisher {
	return &InboxPublisher{store: store}
}

func (p *InboxPublisher) Publish(ctx context.Context, n model.Notification) error {
	return p.store.Insert(ctx, n)
}

// Inbox is the read side of the persisted notifications.
type Inbox struct {
	store    InboxStore
	maxLimit int
	now      func() time.Time
}

func NewInbox(store InboxStore, maxLimit int) *Inbox {
	if maxLimit <= 0 {
		maxLimit = 100
	}
	return &Inbox{store: store, maxLimit: maxLimit, now: time.Now}
}

func (i *Inbox) List(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]model.Notification, error) {
	if limit <= 0 || limit > i.maxLimit {
		limit = i.maxLimit
	}
	items, err := i.store.ListForUser(ctx, userID, limit, unreadOnly)
	if err != nil {
		return nil, errs.Unavailable("list notifications", err)
	}
	return items, nil
}

func (i *Inbox) UnreadCount(ctx context.Context, userID int64) (int, error) {
	count, err := i.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, errs.Unavailable("count notifications", err)
	}
	return count, nil
}

// MarkRead flags the given ids, or every unread notification when ids is empty.
func (i *Inbox) MarkRead(ctx context.Context, userID int64, ids []string) (int64, error) {
	cleaned := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			cleaned = append(cleaned, id)
		}
	}

	updated, err := i.store.MarkRead(ctx, userID, cleaned, i.now())
	if err != nil {
		return 0, errs.Unavailable("mark notifications read", err)
	}
	return updated, nil
}
