package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type NotificationRepo struct {
	pool *pgxpool.Pool
}

func NewNotificationRepo(pool *pgxpool.Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Insert stores a notification. Redelivery of the same id is ignored.
func (r *NotificationRepo) Insert(ctx context.Context, n model.Notification) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(n.ID) == "" || n.RecipientID <= 0 {
		return fmt.Errorf("invalid notification payload")
	}

	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}

	if _, err := r.pool.Exec(ctx, `
INSERT INTO notifications (
	id,
	recipient_id,
	type,
	payload,
	created_at
) VALUES ($1, $2, $3, $4::jsonb, $5)
ON CONFLICT (id) DO NOTHING
`, n.ID, n.RecipientID, string(n.Type), string(payload), n.CreatedAt.UTC()); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}

	return nil
}

func (r *NotificationRepo) ListForUser(ctx context.Context, userID int64, limit int, unreadOnly bool) ([]model.Notification, error) {
	if r.pool == nil {
		return []model.Notification{}, nil
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.pool.Query(ctx, `
SELECT id::text, recipient_id, type, payload, created_at, read_at
FROM notifications
WHERE recipient_id = $1
	AND ($3::boolean = FALSE OR read_at IS NULL)
ORDER BY created_at DESC, id DESC
LIMIT $2
`, userID, limit, unreadOnly)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]model.Notification, 0)
	for rows.Next() {
		var (
			item    model.Notification
			kind    string
			payload []byte
		)
		if err := rows.Scan(&item.ID, &item.RecipientID, &kind, &payload, &item.CreatedAt, &item.ReadAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		item.Type = enums.NotificationType(kind)
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &item.Payload); err != nil {
				return nil, fmt.Errorf("decode notification payload: %w", err)
			}
		}
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate notifications: %w", rows.Err())
	}

	return items, nil
}

func (r *NotificationRepo) CountUnread(ctx context.Context, userID int64) (int, error) {
	if r.pool == nil {
		return 0, nil
	}

	var count int
	if err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)::int
FROM notifications
WHERE recipient_id = $1 AND read_at IS NULL
`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}

	return count, nil
}

// MarkRead flags the given notifications of userID as read; no ids means all of them.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID int64, ids []string, now time.Time) (int64, error) {
	if r.pool == nil {
		return 0, fmt.Errorf("postgres pool is nil")
	}

	var (
		sql  = `UPDATE notifications SET read_at = $2 WHERE recipient_id = $1 AND read_at IS NULL`
		args = []any{userID, now.UTC()}
	)
	if len(ids) > 0 {
		sql += ` AND id::text = ANY($3::text[])`
		args = append(args, ids)
	}

	result, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}

	return result.RowsAffected(), nil
}
