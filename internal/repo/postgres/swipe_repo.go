package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

const swipeColumns = `id, swiper_id, target_id, status, created_at, updated_at`

type SwipeRepo struct {
	pool *pgxpool.Pool
}

func NewSwipeRepo(pool *pgxpool.Pool) *SwipeRepo {
	return &SwipeRepo{pool: pool}
}

func (r *SwipeRepo) Get(ctx context.Context, tx pgx.Tx, swiperID, targetID int64) (model.Swipe, bool, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return model.Swipe{}, false, err
	}

	swipe, err := scanSwipe(q.QueryRow(ctx, `
SELECT `+swipeColumns+`
FROM swipes
WHERE swiper_id = $1 AND target_id = $2
`, swiperID, targetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Swipe{}, false, nil
		}
		return model.Swipe{}, false, fmt.Errorf("get swipe: %w", err)
	}

	return swipe, true, nil
}

// Upsert writes the current opinion of swiperID about targetID. created is
// true when no record existed before.
func (r *SwipeRepo) Upsert(ctx context.Context, tx pgx.Tx, swiperID, targetID int64, status enums.SwipeStatus, now time.Time) (model.Swipe, bool, error) {
	if swiperID <= 0 || targetID <= 0 || swiperID == targetID {
		return model.Swipe{}, false, fmt.Errorf("invalid swipe payload")
	}
	if tx == nil {
		return model.Swipe{}, false, fmt.Errorf("transaction is required")
	}

	var (
		swipe     model.Swipe
		rawStatus string
		created   bool
	)
	err := tx.QueryRow(ctx, `
INSERT INTO swipes (
	swiper_id,
	target_id,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $4)
ON CONFLICT (swiper_id, target_id) DO UPDATE SET
	status = EXCLUDED.status,
	updated_at = EXCLUDED.updated_at
RETURNING `+swipeColumns+`, (xmax = 0) AS created
`, swiperID, targetID, string(status), now.UTC()).Scan(
		&swipe.ID,
		&swipe.SwiperID,
		&swipe.TargetID,
		&rawStatus,
		&swipe.CreatedAt,
		&swipe.UpdatedAt,
		&created,
	)
	if err != nil {
		return model.Swipe{}, false, fmt.Errorf("upsert swipe: %w", err)
	}
	swipe.Status = enums.SwipeStatus(rawStatus)

	return swipe, created, nil
}

func (r *SwipeRepo) Delete(ctx context.Context, tx pgx.Tx, swiperID, targetID int64) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM swipes
WHERE swiper_id = $1 AND target_id = $2
`, swiperID, targetID)
	if err != nil {
		return false, fmt.Errorf("delete swipe: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// DeleteBetween removes both directions of the pair. Zero rows is success.
func (r *SwipeRepo) DeleteBetween(ctx context.Context, tx pgx.Tx, key rules.PairKey) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM swipes
WHERE (swiper_id = $1 AND target_id = $2)
	OR (swiper_id = $2 AND target_id = $1)
`, key.Low, key.High)
	if err != nil {
		return 0, fmt.Errorf("delete pair swipes: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *SwipeRepo) ListByActor(ctx context.Context, tx pgx.Tx, swiperID int64, limit int) ([]model.Swipe, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := q.Query(ctx, `
SELECT `+swipeColumns+`
FROM swipes
WHERE swiper_id = $1
ORDER BY updated_at DESC, id DESC
LIMIT $2
`, swiperID, limit)
	if err != nil {
		return nil, fmt.Errorf("list swipes: %w", err)
	}

	return collectSwipes(rows)
}

// ListPendingOutgoing returns positive swipes by userID that are neither
// answered by a match nor vetoed by a block.
func (r *SwipeRepo) ListPendingOutgoing(ctx context.Context, tx pgx.Tx, userID int64, limit int) ([]model.Swipe, error) {
	return r.listPending(ctx, tx, `s.swiper_id = $1`, `s.target_id`, userID, limit)
}

// ListPendingIncoming returns positive swipes received by userID that the
// user has not turned into a match.
func (r *SwipeRepo) ListPendingIncoming(ctx context.Context, tx pgx.Tx, userID int64, limit int) ([]model.Swipe, error) {
	return r.listPending(ctx, tx, `s.target_id = $1`, `s.swiper_id`, userID, limit)
}

func (r *SwipeRepo) listPending(ctx context.Context, tx pgx.Tx, side, other string, userID int64, limit int) ([]model.Swipe, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := q.Query(ctx, `
SELECT s.id, s.swiper_id, s.target_id, s.status, s.created_at, s.updated_at
FROM swipes s
WHERE `+side+`
	AND s.status IN ('like', 'superlike')
	AND NOT EXISTS (
		SELECT 1 FROM matches m
		WHERE m.user_a_id = LEAST($1, `+other+`) AND m.user_b_id = GREATEST($1, `+other+`)
	)
	AND NOT EXISTS (
		SELECT 1 FROM blocks b
		WHERE (b.blocker_id = $1 AND b.blocked_id = `+other+`)
			OR (b.blocker_id = `+other+` AND b.blocked_id = $1)
	)
ORDER BY s.updated_at DESC, s.id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending swipes: %w", err)
	}

	return collectSwipes(rows)
}

func (r *SwipeRepo) CountSentByStatus(ctx context.Context, tx pgx.Tx, userID int64) ([]model.SwipeStatusCount, error) {
	return r.countByStatus(ctx, tx, `swiper_id`, userID)
}

func (r *SwipeRepo) CountReceivedByStatus(ctx context.Context, tx pgx.Tx, userID int64) ([]model.SwipeStatusCount, error) {
	return r.countByStatus(ctx, tx, `target_id`, userID)
}

func (r *SwipeRepo) countByStatus(ctx context.Context, tx pgx.Tx, column string, userID int64) ([]model.SwipeStatusCount, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT status, COUNT(*)::int
FROM swipes
WHERE `+column+` = $1
GROUP BY status
ORDER BY status
`, userID)
	if err != nil {
		return nil, fmt.Errorf("count swipes by status: %w", err)
	}
	defer rows.Close()

	items := make([]model.SwipeStatusCount, 0, 3)
	for rows.Next() {
		var (
			item   model.SwipeStatusCount
			status string
		)
		if err := rows.Scan(&status, &item.Count); err != nil {
			return nil, fmt.Errorf("scan swipe count: %w", err)
		}
		item.Status = enums.SwipeStatus(status)
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate swipe counts: %w", rows.Err())
	}

	return items, nil
}

func scanSwipe(row pgx.Row) (model.Swipe, error) {
	var (
		swipe  model.Swipe
		status string
	)
	if err := row.Scan(
		&swipe.ID,
		&swipe.SwiperID,
		&swipe.TargetID,
		&status,
		&swipe.CreatedAt,
		&swipe.UpdatedAt,
	); err != nil {
		return model.Swipe{}, err
	}
	swipe.Status = enums.SwipeStatus(status)
	return swipe, nil
}

func collectSwipes(rows pgx.Rows) ([]model.Swipe, error) {
	defer rows.Close()

	items := make([]model.Swipe, 0)
	for rows.Next() {
		swipe, err := scanSwipe(rows)
		if err != nil {
			return nil, fmt.Errorf("scan swipe: %w", err)
		}
		items = append(items, swipe)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate swipes: %w", rows.Err())
	}

	return items, nil
}
