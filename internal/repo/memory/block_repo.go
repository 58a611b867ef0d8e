package memory

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

type BlockRepo struct {
	s *Store
}

func NewBlockRepo(s *Store) *BlockRepo {
	return &BlockRepo{s: s}
}

func (r *BlockRepo) Create(ctx context.Context, _ pgx.Tx, blockerID, blockedID int64, now time.Time) (model.Block, error) {
	if err := r.s.lock(ctx, "blocks.create"); err != nil {
		return model.Block{}, err
	}
	defer r.s.mu.Unlock()

	key := directedKey{from: blockerID, to: blockedID}
	if _, ok := r.s.blocks[key]; ok {
		return model.Block{}, errs.ErrRaceLost
	}

	block := model.Block{BlockerID: blockerID, BlockedID: blockedID, BlockedAt: now.UTC()}
	r.s.blocks[key] = block
	return block, nil
}

func (r *BlockRepo) Get(ctx context.Context, _ pgx.Tx, blockerID, blockedID int64) (model.Block, bool, error) {
	if err := r.s.lock(ctx, "blocks.get"); err != nil {
		return model.Block{}, false, err
	}
	defer r.s.mu.Unlock()

	block, ok := r.s.blocks[directedKey{from: blockerID, to: blockedID}]
	return block, ok, nil
}

func (r *BlockRepo) Delete(ctx context.Context, _ pgx.Tx, blockerID, blockedID int64) (bool, error) {
	if err := r.s.lock(ctx, "blocks.delete"); err != nil {
		return false, err
	}
	defer r.s.mu.Unlock()

	key := directedKey{from: blockerID, to: blockedID}
	if _, ok := r.s.blocks[key]; !ok {
		return false, nil
	}
	delete(r.s.blocks, key)
	return true, nil
}

func (r *BlockRepo) Between(ctx context.Context, _ pgx.Tx, userA, userB int64) (bool, bool, error) {
	if err := r.s.lock(ctx, "blocks.between"); err != nil {
		return false, false, err
	}
	defer r.s.mu.Unlock()

	_, ab := r.s.blocks[directedKey{from: userA, to: userB}]
	_, ba := r.s.blocks[directedKey{from: userB, to: userA}]
	return ab, ba, nil
}

func (r *BlockRepo) ListByBlocker(ctx context.Context, _ pgx.Tx, blockerID int64) ([]model.Block, error) {
	return r.list(ctx, "blocks.list_by_blocker", func(b model.Block) bool { return b.BlockerID == blockerID })
}

func (r *BlockRepo) ListByBlocked(ctx context.Context, _ pgx.Tx, blockedID int64) ([]model.Block, error) {
	return r.list(ctx, "blocks.list_by_blocked", func(b model.Block) bool { return b.BlockedID == blockedID })
}

func (r *BlockRepo) list(ctx context.Context, op string, keep func(model.Block) bool) ([]model.Block, error) {
	if err := r.s.lock(ctx, op); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	items := make([]model.Block, 0)
	for _, block := range r.s.blocks {
		if keep(block) {
			items = append(items, block)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].BlockedAt.After(items[j].BlockedAt) })
	return items, nil
}
