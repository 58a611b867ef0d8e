package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

type MatchRepo struct {
	s *Store
}

func NewMatchRepo(s *Store) *MatchRepo {
	return &MatchRepo{s: s}
}

func (r *MatchRepo) Get(ctx context.Context, _ pgx.Tx, key rules.PairKey) (model.Match, bool, error) {
	if err := r.s.lock(ctx, "matches.get"); err != nil {
		return model.Match{}, false, err
	}
	defer r.s.mu.Unlock()

	match, ok := r.s.matches[key]
	return match, ok, nil
}

func (r *MatchRepo) Create(ctx context.Context, _ pgx.Tx, key rules.PairKey, formedFromSwipeID int64, now time.Time) (model.Match, error) {
	if err := r.s.lock(ctx, "matches.create"); err != nil {
		return model.Match{}, err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.matches[key]; ok {
		return model.Match{}, errs.ErrRaceLost
	}

	r.s.matchSeq++
	match := model.Match{
		ID:                r.s.matchSeq,
		UserAID:           key.Low,
		UserBID:           key.High,
		FormedFromSwipeID: formedFromSwipeID,
		IsMutual:          true,
		MatchedAt:         now.UTC(),
	}
	r.s.matches[key] = match
	return match, nil
}

func (r *MatchRepo) Delete(ctx context.Context, _ pgx.Tx, key rules.PairKey) (int64, error) {
	if err := r.s.lock(ctx, "matches.delete"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	if _, ok := r.s.matches[key]; !ok {
		return 0, nil
	}
	delete(r.s.matches, key)
	return 1, nil
}

func (r *MatchRepo) ListForUser(ctx context.Context, _ pgx.Tx, userID int64, limit int) ([]model.Match, error) {
	if err := r.s.lock(ctx, "matches.list_for_user"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	items := make([]model.Match, 0)
	for _, match := range r.s.matches {
		if match.Includes(userID) {
			items = append(items, match)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].MatchedAt.Equal(items[j].MatchedAt) {
			return items[i].MatchedAt.After(items[j].MatchedAt)
		}
		return items[i].ID > items[j].ID
	})

	if limit <= 0 {
		limit = 100
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (r *MatchRepo) CountForUser(ctx context.Context, _ pgx.Tx, userID int64) (int, error) {
	if err := r.s.lock(ctx, "matches.count_for_user"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	count := 0
	for _, match := range r.s.matches {
		if match.Includes(userID) {
			count++
		}
	}
	return count, nil
}
