package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

type SwipeRepo struct {
	s *Store
}

func NewSwipeRepo(s *Store) *SwipeRepo {
	return &SwipeRepo{s: s}
}

func (r *SwipeRepo) Get(ctx context.Context, _ pgx.Tx, swiperID, targetID int64) (model.Swipe, bool, error) {
	if err := r.s.lock(ctx, "swipes.get"); err != nil {
		return model.Swipe{}, false, err
	}
	defer r.s.mu.Unlock()

	swipe, ok := r.s.swipes[directedKey{from: swiperID, to: targetID}]
	return swipe, ok, nil
}

func (r *SwipeRepo) Upsert(ctx context.Context, _ pgx.Tx, swiperID, targetID int64, status enums.SwipeStatus, now time.Time) (model.Swipe, bool, error) {
	if err := r.s.lock(ctx, "swipes.upsert"); err != nil {
		return model.Swipe{}, false, err
	}
	defer r.s.mu.Unlock()

	key := directedKey{from: swiperID, to: targetID}
	swipe, ok := r.s.swipes[key]
	if !ok {
		r.s.swipeSeq++
		swipe = model.Swipe{
			ID:        r.s.swipeSeq,
			SwiperID:  swiperID,
			TargetID:  targetID,
			CreatedAt: now.UTC(),
		}
	}
	swipe.Status = status
	swipe.UpdatedAt = now.UTC()
	r.s.swipes[key] = swipe

	return swipe, !ok, nil
}

func (r *SwipeRepo) Delete(ctx context.Context, _ pgx.Tx, swiperID, targetID int64) (bool, error) {
	if err := r.s.lock(ctx, "swipes.delete"); err != nil {
		return false, err
	}
	defer r.s.mu.Unlock()

	key := directedKey{from: swiperID, to: targetID}
	if _, ok := r.s.swipes[key]; !ok {
		return false, nil
	}
	delete(r.s.swipes, key)
	return true, nil
}

func (r *SwipeRepo) DeleteBetween(ctx context.Context, _ pgx.Tx, key rules.PairKey) (int64, error) {
	if err := r.s.lock(ctx, "swipes.delete_between"); err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	var removed int64
	for _, k := range []directedKey{{from: key.Low, to: key.High}, {from: key.High, to: key.Low}} {
		if _, ok := r.s.swipes[k]; ok {
			delete(r.s.swipes, k)
			removed++
		}
	}
	return removed, nil
}

func (r *SwipeRepo) ListByActor(ctx context.Context, _ pgx.Tx, swiperID int64, limit int) ([]model.Swipe, error) {
	if err := r.s.lock(ctx, "swipes.list_by_actor"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	items := make([]model.Swipe, 0)
	for k, swipe := range r.s.swipes {
		if k.from == swiperID {
			items = append(items, swipe)
		}
	}
	return limitSwipes(sortSwipes(items), limit), nil
}

func (r *SwipeRepo) ListPendingOutgoing(ctx context.Context, _ pgx.Tx, userID int64, limit int) ([]model.Swipe, error) {
	return r.listPending(ctx, "swipes.list_pending_outgoing", limit, func(k directedKey) (bool, int64) {
		return k.from == userID, k.to
	}, userID)
}

func (r *SwipeRepo) ListPendingIncoming(ctx context.Context, _ pgx.Tx, userID int64, limit int) ([]model.Swipe, error) {
	return r.listPending(ctx, "swipes.list_pending_incoming", limit, func(k directedKey) (bool, int64) {
		return k.to == userID, k.from
	}, userID)
}

func (r *SwipeRepo) listPending(ctx context.Context, op string, limit int, side func(directedKey) (bool, int64), userID int64) ([]model.Swipe, error) {
	if err := r.s.lock(ctx, op); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	items := make([]model.Swipe, 0)
	for k, swipe := range r.s.swipes {
		ok, other := side(k)
		if !ok || !swipe.Status.IsPositive() {
			continue
		}
		if _, matched := r.s.matches[rules.NewPairKey(userID, other)]; matched {
			continue
		}
		if r.s.blockedLocked(userID, other) {
			continue
		}
		items = append(items, swipe)
	}
	return limitSwipes(sortSwipes(items), limit), nil
}

func (r *SwipeRepo) CountSentByStatus(ctx context.Context, _ pgx.Tx, userID int64) ([]model.SwipeStatusCount, error) {
	return r.countByStatus(ctx, "swipes.count_sent", func(k directedKey) bool { return k.from == userID })
}

func (r *SwipeRepo) CountReceivedByStatus(ctx context.Context, _ pgx.Tx, userID int64) ([]model.SwipeStatusCount, error) {
	return r.countByStatus(ctx, "swipes.count_received", func(k directedKey) bool { return k.to == userID })
}

func (r *SwipeRepo) countByStatus(ctx context.Context, op string, match func(directedKey) bool) ([]model.SwipeStatusCount, error) {
	if err := r.s.lock(ctx, op); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	counts := make(map[enums.SwipeStatus]int)
	for k, swipe := range r.s.swipes {
		if match(k) {
			counts[swipe.Status]++
		}
	}

	items := make([]model.SwipeStatusCount, 0, len(counts))
	for status, count := range counts {
		items = append(items, model.SwipeStatusCount{Status: status, Count: count})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Status < items[j].Status })
	return items, nil
}

func (s *Store) blockedLocked(a, b int64) bool {
	_, ab := s.blocks[directedKey{from: a, to: b}]
	_, ba := s.blocks[directedKey{from: b, to: a}]
	return ab || ba
}

func sortSwipes(items []model.Swipe) []model.Swipe {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.After(items[j].UpdatedAt)
		}
		return items[i].ID > items[j].ID
	})
	return items
}

func limitSwipes(items []model.Swipe, limit int) []model.Swipe {
	if limit <= 0 {
		limit = 100
	}
	if len(items) > limit {
		return items[:limit]
	}
	return items
}
