package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type BlockRepo struct {
	pool *pgxpool.Pool
}

func NewBlockRepo(pool *pgxpool.Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

func (r *BlockRepo) Create(ctx context.Context, tx pgx.Tx, blockerID, blockedID int64, now time.Time) (model.Block, error) {
	if blockerID <= 0 || blockedID <= 0 || blockerID == blockedID {
		return model.Block{}, fmt.Errorf("invalid block payload")
	}
	if tx == nil {
		return model.Block{}, fmt.Errorf("transaction is required")
	}

	var block model.Block
	err := tx.QueryRow(ctx, `
INSERT INTO blocks (
	blocker_id,
	blocked_id,
	blocked_at
) VALUES ($1, $2, $3)
ON CONFLICT (blocker_id, blocked_id) DO NOTHING
RETURNING blocker_id, blocked_id, blocked_at
`, blockerID, blockedID, now.UTC()).Scan(&block.BlockerID, &block.BlockedID, &block.BlockedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return model.Block{}, errs.ErrRaceLost
		}
		return model.Block{}, fmt.Errorf("create block: %w", err)
	}

	return block, nil
}

func (r *BlockRepo) Get(ctx context.Context, tx pgx.Tx, blockerID, blockedID int64) (model.Block, bool, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return model.Block{}, false, err
	}

	var block model.Block
	err = q.QueryRow(ctx, `
SELECT blocker_id, blocked_id, blocked_at
FROM blocks
WHERE blocker_id = $1 AND blocked_id = $2
`, blockerID, blockedID).Scan(&block.BlockerID, &block.BlockedID, &block.BlockedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Block{}, false, nil
		}
		return model.Block{}, false, fmt.Errorf("get block: %w", err)
	}

	return block, true, nil
}

func (r *BlockRepo) Delete(ctx context.Context, tx pgx.Tx, blockerID, blockedID int64) (bool, error) {
	if tx == nil {
		return false, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM blocks
WHERE blocker_id = $1 AND blocked_id = $2
`, blockerID, blockedID)
	if err != nil {
		return false, fmt.Errorf("delete block: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// Between reports both block directions for the pair in one round trip.
func (r *BlockRepo) Between(ctx context.Context, tx pgx.Tx, userA, userB int64) (aBlocksB bool, bBlocksA bool, err error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return false, false, err
	}

	err = q.QueryRow(ctx, `
SELECT
	EXISTS (SELECT 1 FROM blocks WHERE blocker_id = $1 AND blocked_id = $2),
	EXISTS (SELECT 1 FROM blocks WHERE blocker_id = $2 AND blocked_id = $1)
`, userA, userB).Scan(&aBlocksB, &bBlocksA)
	if err != nil {
		return false, false, fmt.Errorf("check blocks: %w", err)
	}

	return aBlocksB, bBlocksA, nil
}

func (r *BlockRepo) ListByBlocker(ctx context.Context, tx pgx.Tx, blockerID int64) ([]model.Block, error) {
	return r.list(ctx, tx, `blocker_id`, blockerID)
}

func (r *BlockRepo) ListByBlocked(ctx context.Context, tx pgx.Tx, blockedID int64) ([]model.Block, error) {
	return r.list(ctx, tx, `blocked_id`, blockedID)
}

func (r *BlockRepo) list(ctx context.Context, tx pgx.Tx, column string, userID int64) ([]model.Block, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return nil, err
	}

	rows, err := q.Query(ctx, `
SELECT blocker_id, blocked_id, blocked_at
FROM blocks
WHERE `+column+` = $1
ORDER BY blocked_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	items := make([]model.Block, 0)
	for rows.Next() {
		var block model.Block
		if err := rows.Scan(&block.BlockerID, &block.BlockedID, &block.BlockedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		items = append(items, block)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate blocks: %w", rows.Err())
	}

	return items, nil
}
