package memory

import (
	"context"
	"sort"
	"time"

	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type NotificationRepo struct {
	s *Store
}

func NewNotificationRepo(s *Store) *NotificationRepo {
	return &NotificationRepo{s: s}
}

func (r *NotificationRepo) Insert(ctx context.Context, n model.Notification) error {
	if err := r.s.lock(ctx, "notifications.insert"); err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.inbox[n.ID]; !ok {
		r.s.inbox[n.ID] = n
	}
	return nil
}

func (r *NotificationRepo) ListForUser(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]model.Notification, error) {
	if err := r.s.lock(ctx, "notifications.list_for_user"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	items := make([]model.Notification, 0)
	for _, n := range r.s.inbox {
		if n.RecipientID != userID || (unreadOnly && n.ReadAt != nil) {
			continue
		}
		items = append(items, n)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID > items[j].ID
	})

	if limit <= 0 {
		limit = 50
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	if err := r.s.lock(ctx, "notifications.count_unread"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	count := 0
	for _, n := range r.s.inbox {
		if n.RecipientID == userID && n.ReadAt == nil {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, userID int64, ids []string, now time.Time) (int64, error) {
	if err := r.s.lock(ctx, "notifications.mark_read"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}

	readAt := now.UTC()
	var updated int64
	for id, n := range r.s.inbox {
		if n.RecipientID != userID || n.ReadAt != nil {
			continue
		}
		if len(wanted) > 0 {
			if _, ok := wanted[id]; !ok {
				continue
			}
		}
		n.ReadAt = &readAt
		r.s.inbox[id] = n
		updated++
	}
	return updated, nil
}
