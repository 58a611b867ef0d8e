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
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

const matchColumns = `id, user_a_id, user_b_id, formed_from_swipe_id, is_mutual, matched_at`

type MatchRepo struct {
	pool *pgxpool.Pool
}

func NewMatchRepo(pool *pgxpool.Pool) *MatchRepo {
	return &MatchRepo{pool: pool}
}

func (r *MatchRepo) Get(ctx context.Context, tx pgx.Tx, key rules.PairKey) (model.Match, bool, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return model.Match{}, false, err
	}

	match, err := scanMatch(q.QueryRow(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE user_a_id = $1 AND user_b_id = $2
`, key.Low, key.High))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Match{}, false, nil
		}
		return model.Match{}, false, fmt.Errorf("get match: %w", err)
	}

	return match, true, nil
}

// Create inserts the canonical match row. A concurrent insert for the same
// pair surfaces as errs.ErrRaceLost.
func (r *MatchRepo) Create(ctx context.Context, tx pgx.Tx, key rules.PairKey, formedFromSwipeID int64, now time.Time) (model.Match, error) {
	if !key.Valid() || formedFromSwipeID <= 0 {
		return model.Match{}, fmt.Errorf("invalid match payload")
	}
	if tx == nil {
		return model.Match{}, fmt.Errorf("transaction is required")
	}

	match, err := scanMatch(tx.QueryRow(ctx, `
INSERT INTO matches (
	user_a_id,
	user_b_id,
	formed_from_swipe_id,
	is_mutual,
	matched_at
) VALUES ($1, $2, $3, TRUE, $4)
ON CONFLICT (user_a_id, user_b_id) DO NOTHING
RETURNING `+matchColumns+`
`, key.Low, key.High, formedFromSwipeID, now.UTC()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || isUniqueViolation(err) {
			return model.Match{}, errs.ErrRaceLost
		}
		return model.Match{}, fmt.Errorf("create match: %w", err)
	}

	return match, nil
}

func (r *MatchRepo) Delete(ctx context.Context, tx pgx.Tx, key rules.PairKey) (int64, error) {
	if tx == nil {
		return 0, fmt.Errorf("transaction is required")
	}

	result, err := tx.Exec(ctx, `
DELETE FROM matches
WHERE user_a_id = $1 AND user_b_id = $2
`, key.Low, key.High)
	if err != nil {
		return 0, fmt.Errorf("delete match: %w", err)
	}

	return result.RowsAffected(), nil
}

func (r *MatchRepo) ListForUser(ctx context.Context, tx pgx.Tx, userID int64, limit int) ([]model.Match, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	rows, err := q.Query(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE user_a_id = $1 OR user_b_id = $1
ORDER BY matched_at DESC, id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list matches: %w", err)
	}
	defer rows.Close()

	items := make([]model.Match, 0)
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		items = append(items, match)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate matches: %w", rows.Err())
	}

	return items, nil
}

func (r *MatchRepo) CountForUser(ctx context.Context, tx pgx.Tx, userID int64) (int, error) {
	q, err := conn(r.pool, tx)
	if err != nil {
		return 0, err
	}

	var count int
	if err := q.QueryRow(ctx, `
SELECT COUNT(*)::int
FROM matches
WHERE user_a_id = $1 OR user_b_id = $1
`, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count matches: %w", err)
	}

	return count, nil
}

func scanMatch(row pgx.Row) (model.Match, error) {
	var match model.Match
	err := row.Scan(
		&match.ID,
		&match.UserAID,
		&match.UserBID,
		&match.FormedFromSwipeID,
		&match.IsMutual,
		&match.MatchedAt,
	)
	return match, err
}
