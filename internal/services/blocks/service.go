package blocks

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

type Transactor interface {
	InPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error
	ReadPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error
	Snapshot(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type BlockStore interface {
	Create(ctx context.Context, tx pgx.Tx, blockerID, blockedID int64, now time.Time) (model.Block, error)
	Get(ctx context.Context, tx pgx.Tx, blockerID, blockedID int64) (model.Block, bool, error)
	Delete(ctx context.Context, tx pgx.Tx, blockerID, blockedID int64) (bool, error)
	Between(ctx context.Context, tx pgx.Tx, userA, userB int64) (bool, bool, error)
	ListByBlocker(ctx context.Context, tx pgx.Tx, blockerID int64) ([]model.Block, error)
	ListByBlocked(ctx context.Context, tx pgx.Tx, blockedID int64) ([]model.Block, error)
}

type Cascader interface {
	CascadeBlock(ctx context.Context, tx pgx.Tx, key rules.PairKey) (model.CascadeCounts, error)
}

type Dependencies struct {
	Tx       Transactor
	Blocks   BlockStore
	Cascader Cascader
	Logger   *zap.Logger
}

type Service struct {
	tx       Transactor
	blocks   BlockStore
	cascader Cascader
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tx:       deps.Tx,
		blocks:   deps.Blocks,
		cascader: deps.Cascader,
		logger:   logger,
		now:      time.Now,
	}
}

type BlockResult struct {
	Block   model.Block
	Removed model.CascadeCounts
}

// Block records the block and voids the pair in the same transaction. The
// call only succeeds once nothing is left between the two users.
func (s *Service) Block(ctx context.Context, blockerID, blockedID int64) (BlockResult, error) {
	if blockerID == blockedID {
		return BlockResult{}, errs.SelfReference("block")
	}
	key := rules.NewPairKey(blockerID, blockedID)

	var (
		result         BlockResult
		alreadyBlocked bool
	)
	err := s.tx.InPair(ctx, key, func(ctx context.Context, tx pgx.Tx) error {
		if _, exists, err := s.blocks.Get(ctx, tx, blockerID, blockedID); err != nil {
			return errs.Wrap("get block", err)
		} else if exists {
			// Finish whatever an earlier interrupted block left behind, then
			// report the conflict once that work has committed.
			alreadyBlocked = true
			_, err := s.cascader.CascadeBlock(ctx, tx, key)
			return err
		}

		block, err := s.blocks.Create(ctx, tx, blockerID, blockedID, s.now())
		if errs.IsRaceLost(err) {
			existing, ok, getErr := s.blocks.Get(ctx, tx, blockerID, blockedID)
			if getErr != nil {
				return errs.Wrap("get block", getErr)
			}
			if !ok {
				return errs.Unavailable("create block", errors.New("block vanished after conflicting insert"))
			}
			block = existing
			err = nil
		}
		if err != nil {
			return errs.Wrap("create block", err)
		}
		result.Block = block

		result.Removed, err = s.cascader.CascadeBlock(ctx, tx, key)
		return err
	})
	if err != nil {
		var cascadeErr *errs.CascadeError
		if errors.As(err, &cascadeErr) {
			s.logger.Warn("block cascade incomplete",
				zap.Int64("blocker_id", blockerID),
				zap.Int64("blocked_id", blockedID),
				zap.String("step", cascadeErr.Step),
				zap.Error(cascadeErr.Err),
			)
		}
		return BlockResult{}, errs.Wrap("block user", err)
	}
	if alreadyBlocked {
		return BlockResult{}, errs.ErrAlreadyBlocked
	}

	s.logger.Info("user blocked",
		zap.Int64("blocker_id", blockerID),
		zap.Int64("blocked_id", blockedID),
		zap.Int64("matches_removed", result.Removed.Matches),
		zap.Int64("messages_removed", result.Removed.Messages),
		zap.Int64("swipes_removed", result.Removed.Swipes),
	)
	return result, nil
}

// Unblock removes the record only. Nothing removed by the block comes back.
func (s *Service) Unblock(ctx context.Context, blockerID, blockedID int64) error {
	if blockerID == blockedID {
		return errs.SelfReference("unblock")
	}

	err := s.tx.InPair(ctx, rules.NewPairKey(blockerID, blockedID), func(ctx context.Context, tx pgx.Tx) error {
		deleted, err := s.blocks.Delete(ctx, tx, blockerID, blockedID)
		if err != nil {
			return errs.Wrap("delete block", err)
		}
		if !deleted {
			return errs.ErrNotBlocked
		}
		return nil
	})
	return errs.Wrap("unblock user", err)
}

type Status struct {
	BlockedByViewer bool
	BlockedByOther  bool
}

func (s Status) Blocked() bool {
	return s.BlockedByViewer || s.BlockedByOther
}

// Check reports both block directions seen from viewer.
func (s *Service) Check(ctx context.Context, viewerID, otherID int64) (Status, error) {
	if viewerID == otherID {
		return Status{}, nil
	}

	var status Status
	err := s.tx.ReadPair(ctx, rules.NewPairKey(viewerID, otherID), func(ctx context.Context, tx pgx.Tx) error {
		var err error
		status.BlockedByViewer, status.BlockedByOther, err = s.blocks.Between(ctx, tx, viewerID, otherID)
		return err
	})
	if err != nil {
		return Status{}, errs.Wrap("check block", err)
	}
	return status, nil
}

func (s *Service) IsBlocked(ctx context.Context, userA, userB int64) (bool, error) {
	status, err := s.Check(ctx, userA, userB)
	if err != nil {
		return false, err
	}
	return status.Blocked(), nil
}

// ListBlocked returns the users userID has blocked.
func (s *Service) ListBlocked(ctx context.Context, userID int64) ([]model.Block, error) {
	var items []model.Block
	err := s.tx.Snapshot(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		items, err = s.blocks.ListByBlocker(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, errs.Wrap("list blocked users", err)
	}
	return items, nil
}

// ListBlockers returns the users that have blocked userID.
func (s *Service) ListBlockers(ctx context.Context, userID int64) ([]model.Block, error) {
	var items []model.Block
	err := s.tx.Snapshot(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		items, err = s.blocks.ListByBlocked(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, errs.Wrap("list blockers", err)
	}
	return items, nil
}
