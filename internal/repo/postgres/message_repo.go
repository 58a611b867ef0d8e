package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

const messageColumns = `id, sender_id, receiver_id, content, is_read, sent_at, edited_at`

type MessageRepo struct {
	pool *pgxpool.Pool
}

func NewMessageRepo(pool *pgxpool.Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, tx pgx.Tx, senderID, receiverID int64, content string, now time.Time) (model.Message, error) {
	if senderID <= 0 || receiverID <= 0 || senderID == receiverID {
		return model.Message{}, fmt.Errorf("invalid message payload")
	}
	if tx == nil {
		return model.Message{}, fmt.Errorf("transaction is required")
	}

	msg, err := scanMessage(tx.QueryRow(ctx, `
INSERT INTO messages (
	sender_id,
	receiver_id,
	content,
	is_read,
	sent_at
) VALUES ($1, $2, $3, FALSE, $4)
RETURNING `+messageColumns+`
`, senderID, receiverID, content, now.UTC()))
	if err != nil {
		return model.Message{}, fmt.Errorf("create message: %w", err)
	}

	return msg, nil
}

func (r *MessageRepo) Get(ctx context.Context, tx pgx.Tx, messageID int64) (model.Message, bool, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return model.Message{}, false, err
	}

	msg, err := scanMessage(q.QueryRow(ctx, `
SELECT `+messageColumns+`
FROM messages
WHERE id = $1
`, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Message{}, false, nil
		}
		return model.Message{}, false, fmt.Errorf("get message: %w", err)
	}

	return msg, true, nil
}

func (r *MessageRepo) UpdateContent(ctx context.Context, tx pgx.Tx, messageID int64, content string, now time.Time) (model.Message, error) {
	if tx == nil {
		return model.Message{}, fmt.Errorf("transaction is required")
	}

	msg, err := scanMessage(tx.QueryRow(ctx, `
UPDATE messages
SET content = $2, edited_at = $3
WHERE id = $1
RETURNING `+messageColumns+`
`, messageID, content, now.UTC()))
	if err != nil {
		return model.Message{}, fmt.Errorf("update message: %w", err)
	}

	return msg, nil
}

func (r *MessageRepo) Delete(ctx context.Context, tx pgx.Tx, messageID int64) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `DELETE FROM messages WHERE id = $1`, messageID)
	if err != nil {
		return false, fmt.Errorf("delete message: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// DeleteBetween removes the whole thread of the pair. Zero rows is success.
func (r *MessageRepo) DeleteBetween(ctx context.Context, tx pgx.Tx, key rules.PairKey) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM messages
WHERE (sender_id = $1 AND receiver_id = $2)
	OR (sender_id = $2 AND receiver_id = $1)
`, key.Low, key.High)
	if err != nil {
		return 0, fmt.Errorf("delete pair messages: %w", err)
	}

	return result.RowsAffected(), nil
}

// MarkRead flags every unread message from senderID to readerID.
func (r *MessageRepo) MarkRead(ctx context.Context, tx pgx.Tx, readerID, senderID int64) (int64, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return 0, err
	}

	result, err := q.Exec(ctx, `
UPDATE messages
SET is_read = TRUE
WHERE receiver_id = $1 AND sender_id = $2 AND NOT is_read
`, readerID, senderID)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}

	return result.RowsAffected(), nil
}

// ListBetween returns the latest limit messages of the pair in chronological order.
func (r *MessageRepo) ListBetween(ctx context.Context, tx pgx.Tx, key rules.PairKey, limit int) ([]model.Message, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := q.Query(ctx, `
SELECT `+messageColumns+`
FROM (
	SELECT `+messageColumns+`
	FROM messages
	WHERE (sender_id = $1 AND receiver_id = $2)
		OR (sender_id = $2 AND receiver_id = $1)
	ORDER BY sent_at DESC, id DESC
	LIMIT $3
) recent
ORDER BY sent_at ASC, id ASC
`, key.Low, key.High, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	items := make([]model.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		items = append(items, msg)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate messages: %w", rows.Err())
	}

	return items, nil
}

func (r *MessageRepo) CountBetween(ctx context.Context, tx pgx.Tx, key rules.PairKey) (int64, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := q.QueryRow(ctx, `
SELECT COUNT(*)
FROM messages
WHERE (sender_id = $1 AND receiver_id = $2)
	OR (sender_id = $2 AND receiver_id = $1)
`, key.Low, key.High).Scan(&count); err != nil {
		return 0, fmt.Errorf("count pair messages: %w", err)
	}

	return count, nil
}

// Summaries returns, per counterpart of userID, the latest message and the
// number of messages userID has not read yet.
func (r *MessageRepo) Summaries(ctx context.Context, tx pgx.Tx, userID int64) (map[int64]model.ThreadSummary, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
WITH thread AS (
	SELECT
		m.*,
		CASE WHEN m.sender_id = $1 THEN m.receiver_id ELSE m.sender_id END AS other_id
	FROM messages m
	WHERE m.sender_id = $1 OR m.receiver_id = $1
), latest AS (
	SELECT DISTINCT ON (other_id) other_id, `+messageColumns+`
	FROM thread
	ORDER BY other_id, sent_at DESC, id DESC
), unread AS (
	SELECT other_id, COUNT(*)::int AS unread
	FROM thread
	WHERE receiver_id = $1 AND NOT is_read
	GROUP BY other_id
)
SELECT
	l.other_id,
	l.id, l.sender_id, l.receiver_id, l.content, l.is_read, l.sent_at, l.edited_at,
	COALESCE(u.unread, 0)
FROM latest l
LEFT JOIN unread u ON u.other_id = l.other_id
`, userID)
	if err != nil {
		return nil, fmt.Errorf("summarise threads: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]model.ThreadSummary)
	for rows.Next() {
		var item model.ThreadSummary
		if err := rows.Scan(
			&item.OtherUserID,
			&item.Latest.ID,
			&item.Latest.SenderID,
			&item.Latest.ReceiverID,
			&item.Latest.Content,
			&item.Latest.IsRead,
			&item.Latest.SentAt,
			&item.Latest.EditedAt,
			&item.UnreadCount,
		); err != nil {
			return nil, fmt.Errorf("scan thread summary: %w", err)
		}
		out[item.OtherUserID] = item
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate thread summaries: %w", rows.Err())
	}

	return out, nil
}

func scanMessage(row pgx.Row) (model.Message, error) {
	var msg model.Message
	err := row.Scan(
		&msg.ID,
		&msg.SenderID,
		&msg.ReceiverID,
		&msg.Content,
		&msg.IsRead,
		&msg.SentAt,
		&msg.EditedAt,
	)
	return msg, err
}
