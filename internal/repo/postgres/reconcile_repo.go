package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

type ReconcileRepo struct {
	pool *pgxpool.Pool
}

func NewReconcileRepo(pool *pgxpool.Pool) *ReconcileRepo {
	return &ReconcileRepo{pool: pool}
}

// SuspectPairs lists pairs whose rows disagree with each other: a match without
// two positive swipes, two positive swipes without a match, or any swipe,
// match or message left on a blocked pair.
func (r *ReconcileRepo) SuspectPairs(ctx context.Context, limit int) ([]rules.PairKey, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 {
		limit = 500
	}

	rows, err := r.pool.Query(ctx, `
WITH positive AS (
	SELECT swiper_id, target_id FROM swipes WHERE status IN ('like', 'superlike')
), blocked AS (
	SELECT DISTINCT LEAST(blocker_id, blocked_id) AS low, GREATEST(blocker_id, blocked_id) AS high
	FROM blocks
), suspects AS (
	SELECT m.user_a_id AS low, m.user_b_id AS high
	FROM matches m
	WHERE NOT EXISTS (SELECT 1 FROM positive p WHERE p.swiper_id = m.user_a_id AND p.target_id = m.user_b_id)
		OR NOT EXISTS (SELECT 1 FROM positive p WHERE p.swiper_id = m.user_b_id AND p.target_id = m.user_a_id)
	UNION
	SELECT p.swiper_id, p.target_id
	FROM positive p
	JOIN positive q ON q.swiper_id = p.target_id AND q.target_id = p.swiper_id
	WHERE p.swiper_id < p.target_id
		AND NOT EXISTS (SELECT 1 FROM matches m WHERE m.user_a_id = p.swiper_id AND m.user_b_id = p.target_id)
	UNION
	SELECT b.low, b.high
	FROM blocked b
	WHERE EXISTS (SELECT 1 FROM matches m WHERE m.user_a_id = b.low AND m.user_b_id = b.high)
		OR EXISTS (
			SELECT 1 FROM swipes s
			WHERE (s.swiper_id = b.low AND s.target_id = b.high) OR (s.swiper_id = b.high AND s.target_id = b.low)
		)
		OR EXISTS (
			SELECT 1 FROM messages x
			WHERE (x.sender_id = b.low AND x.receiver_id = b.high) OR (x.sender_id = b.high AND x.receiver_id = b.low)
		)
	UNION
	SELECT DISTINCT LEAST(x.sender_id, x.receiver_id), GREATEST(x.sender_id, x.receiver_id)
	FROM messages x
	WHERE NOT EXISTS (
		SELECT 1 FROM matches m
		WHERE m.user_a_id = LEAST(x.sender_id, x.receiver_id) AND m.user_b_id = GREATEST(x.sender_id, x.receiver_id)
	)
)
SELECT low, high
FROM suspects
ORDER BY low, high
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list suspect pairs: %w", err)
	}
	defer rows.Close()

	items := make([]rules.PairKey, 0)
	for rows.Next() {
		var key rules.PairKey
		if err := rows.Scan(&key.Low, &key.High); err != nil {
			return nil, fmt.Errorf("scan suspect pair: %w", err)
		}
		items = append(items, key)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate suspect pairs: %w", rows.Err())
	}

	return items, nil
}
