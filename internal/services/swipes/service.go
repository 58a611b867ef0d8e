package swipes

import (
	"context"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
	"github.com/ivankudzin/matchcore/internal/services/matches"
	"github.com/ivankudzin/matchcore/internal/services/notify"
)

type Transactor interface {
	InPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error
	ReadPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error
	Snapshot(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type SwipeStore interface {
	Get(ctx context.Context, tx pgx.Tx, swiperID, targetID int64) (model.Swipe, bool, error)
	Upsert(ctx context.Context, tx pgx.Tx, swiperID, targetID int64, status enums.SwipeStatus, now time.Time) (model.Swipe, bool, error)
	Delete(ctx context.Context, tx pgx.Tx, swiperID, targetID int64) (bool, error)
	ListByActor(ctx context.Context, tx pgx.Tx, swiperID int64, limit int) ([]model.Swipe, error)
	CountSentByStatus(ctx context.Context, tx pgx.Tx, userID int64) ([]model.SwipeStatusCount, error)
	CountReceivedByStatus(ctx context.Context, tx pgx.Tx, userID int64) ([]model.SwipeStatusCount, error)
}

type BlockStore interface {
	Between(ctx context.Context, tx pgx.Tx, userA, userB int64) (bool, bool, error)
}

type MatchCounter interface {
	Get(ctx context.Context, tx pgx.Tx, key rules.PairKey) (model.Match, bool, error)
	CountForUser(ctx context.Context, tx pgx.Tx, userID int64) (int, error)
}

type MatchEngine interface {
	Evaluate(ctx context.Context, tx pgx.Tx, swipe model.Swipe) (matches.Evaluation, error)
	TeardownMatch(ctx context.Context, tx pgx.Tx, key rules.PairKey) (model.CascadeCounts, error)
}

type Notifier interface {
	Emit(ctx context.Context, events []notify.Event)
}

type Config struct {
	MaxBatchSize int
	MaxListLimit int
}

type Dependencies struct {
	Tx       Transactor
	Swipes   SwipeStore
	Blocks   BlockStore
	Matches  MatchCounter
	Engine   MatchEngine
	Notifier Notifier
	Logger   *zap.Logger
}

type Service struct {
	tx       Transactor
	swipes   SwipeStore
	blocks   BlockStore
	matches  MatchCounter
	engine   MatchEngine
	notifier Notifier
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 50
	}
	if cfg.MaxListLimit <= 0 {
		cfg.MaxListLimit = 100
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notify.Discard{}
	}

	return &Service{
		tx:       deps.Tx,
		swipes:   deps.Swipes,
		blocks:   deps.Blocks,
		matches:  deps.Matches,
		engine:   deps.Engine,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

type SwipeResult struct {
	Swipe    model.Swipe
	Created  bool
	Changed  bool
	Match    *model.Match
	TornDown bool
	Removed  model.CascadeCounts
}

// RecordSwipe stores the actor's current opinion of target. Repeating the
// current status leaves the ledger alone but still re-derives the match, so a
// retry after a failed match write converges. It never repeats a like event.
func (s *Service) RecordSwipe(ctx context.Context, actorID, targetID int64, rawStatus string) (SwipeResult, error) {
	if actorID == targetID {
		return SwipeResult{}, errs.SelfReference("swipe")
	}
	status, ok := enums.ParseSwipeStatus(rawStatus)
	if !ok {
		return SwipeResult{}, errs.ErrInvalidStatus
	}

	var (
		result SwipeResult
		events []notify.Event
	)
	err := s.tx.InPair(ctx, rules.NewPairKey(actorID, targetID), func(ctx context.Context, tx pgx.Tx) error {
		actorBlocks, targetBlocks, err := s.blocks.Between(ctx, tx, actorID, targetID)
		if err != nil {
			return errs.Wrap("check blocks", err)
		}
		if actorBlocks || targetBlocks {
			return errs.Blocked(actorBlocks)
		}

		current, exists, err := s.swipes.Get(ctx, tx, actorID, targetID)
		if err != nil {
			return errs.Wrap("get swipe", err)
		}
		if exists && current.Status == status {
			eval, err := s.engine.Evaluate(ctx, tx, current)
			if err != nil {
				return err
			}
			result = SwipeResult{Swipe: current, TornDown: eval.TornDown, Removed: eval.Removed}
			if eval.Created {
				result.Match = eval.Match
			}
			events = eval.Events
			return nil
		}

		swipe, created, err := s.swipes.Upsert(ctx, tx, actorID, targetID, status, s.now())
		if err != nil {
			return errs.Wrap("record swipe", err)
		}
		result = SwipeResult{Swipe: swipe, Created: created, Changed: true}

		eval, err := s.engine.Evaluate(ctx, tx, swipe)
		if err != nil {
			return err
		}
		result.TornDown = eval.TornDown
		result.Removed = eval.Removed
		if eval.Created {
			result.Match = eval.Match
		}
		events = eval.Events

		if status.IsPositive() && eval.Match == nil {
			events = append(events, notify.Event{
				RecipientID: targetID,
				Type:        enums.NotificationTypeLike,
				Payload: model.NotificationPayload{
					ActorID: actorID,
					SwipeID: swipe.ID,
					Status:  status,
				},
			})
		}
		return nil
	})
	if err != nil {
		return SwipeResult{}, errs.Wrap("record swipe", err)
	}

	s.notifier.Emit(ctx, events)

	if result.Match != nil {
		s.logger.Info("match formed",
			zap.Int64("match_id", result.Match.ID),
			zap.Int64("user_a_id", result.Match.UserAID),
			zap.Int64("user_b_id", result.Match.UserBID),
		)
	}
	return result, nil
}

func (s *Service) GetSwipe(ctx context.Context, actorID, targetID int64) (model.Swipe, error) {
	if actorID == targetID {
		return model.Swipe{}, errs.NotFound("swipe")
	}

	var (
		swipe model.Swipe
		found bool
	)
	err := s.tx.ReadPair(ctx, rules.NewPairKey(actorID, targetID), func(ctx context.Context, tx pgx.Tx) error {
		var err error
		swipe, found, err = s.swipes.Get(ctx, tx, actorID, targetID)
		return err
	})
	if err != nil {
		return model.Swipe{}, errs.Wrap("get swipe", err)
	}
	if !found {
		return model.Swipe{}, errs.NotFound("swipe")
	}
	return swipe, nil
}

type DeleteResult struct {
	TornDown bool
	Removed  model.CascadeCounts
}

// DeleteSwipe removes the caller's own swipe. A match that depended on it is
// torn down together with its messages.
func (s *Service) DeleteSwipe(ctx context.Context, callerID, actorID, targetID int64) (DeleteResult, error) {
	if callerID != actorID {
		return DeleteResult{}, errs.NotOwner("swipes")
	}
	if actorID == targetID {
		return DeleteResult{}, errs.SelfReference("swipe")
	}
	key := rules.NewPairKey(actorID, targetID)

	var result DeleteResult
	err := s.tx.InPair(ctx, key, func(ctx context.Context, tx pgx.Tx) error {
		deleted, err := s.swipes.Delete(ctx, tx, actorID, targetID)
		if err != nil {
			return errs.Wrap("delete swipe", err)
		}
		if !deleted {
			return errs.NotFound("swipe")
		}

		_, matched, err := s.matches.Get(ctx, tx, key)
		if err != nil {
			return errs.Wrap("get match", err)
		}
		if !matched {
			return nil
		}

		result.Removed, err = s.engine.TeardownMatch(ctx, tx, key)
		if err != nil {
			return err
		}
		result.TornDown = true
		return nil
	})
	if err != nil {
		return DeleteResult{}, errs.Wrap("delete swipe", err)
	}
	return result, nil
}

type BatchItem struct {
	Index    int
	TargetID int64
	Status   string
}

type BatchItemError struct {
	Index    int
	TargetID int64
	Err      error
}

type BatchResult struct {
	Processed int
	Created   int
	Updated   int
	Unchanged int
	Matches   int
	Failed    []BatchItemError
}

// RecordBatch applies each item in its own pair transaction. One failing
// item never rolls back the others.
func (s *Service) RecordBatch(ctx context.Context, actorID int64, items []BatchItem) (BatchResult, error) {
	if len(items) == 0 {
		return BatchResult{}, errs.ErrInvalidInput
	}
	if len(items) > s.cfg.MaxBatchSize {
		return BatchResult{}, &errs.Error{
			Kind:    errs.KindValidation,
			Code:    errs.ErrInvalidInput.Code,
			Message: "too many swipes in one batch",
		}
	}

	var result BatchResult
	for _, item := range items {
		res, err := s.RecordSwipe(ctx, actorID, item.TargetID, item.Status)
		if err != nil {
			result.Failed = append(result.Failed, BatchItemError{Index: item.Index, TargetID: item.TargetID, Err: err})
			continue
		}

		result.Processed++
		switch {
		case res.Created:
			result.Created++
		case res.Changed:
			result.Updated++
		default:
			result.Unchanged++
		}
		if res.Match != nil {
			result.Matches++
		}
	}
	return result, nil
}

type Stats struct {
	Sent           map[enums.SwipeStatus]int
	Received       map[enums.SwipeStatus]int
	PositiveSent   int
	Matches        int
	ConversionRate float64
}

// Stats reports swipe volumes and the share of positive swipes that ended in
// a match, as a percentage with two decimals.
func (s *Service) Stats(ctx context.Context, userID int64) (Stats, error) {
	stats := Stats{
		Sent:     emptyCounts(),
		Received: emptyCounts(),
	}

	err := s.tx.Snapshot(ctx, func(ctx context.Context, tx pgx.Tx) error {
		sent, err := s.swipes.CountSentByStatus(ctx, tx, userID)
		if err != nil {
			return err
		}
		received, err := s.swipes.CountReceivedByStatus(ctx, tx, userID)
		if err != nil {
			return err
		}
		stats.Matches, err = s.matches.CountForUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		for _, c := range sent {
			stats.Sent[c.Status] = c.Count
			if c.Status.IsPositive() {
				stats.PositiveSent += c.Count
			}
		}
		for _, c := range received {
			stats.Received[c.Status] = c.Count
		}
		return nil
	})
	if err != nil {
		return Stats{}, errs.Wrap("swipe stats", err)
	}

	if stats.PositiveSent > 0 {
		rate := float64(stats.Matches) / float64(stats.PositiveSent) * 100
		stats.ConversionRate = math.Round(rate*100) / 100
	}
	return stats, nil
}

func (s *Service) ListByActor(ctx context.Context, actorID int64, limit int) ([]model.Swipe, error) {
	if limit <= 0 || limit > s.cfg.MaxListLimit {
		limit = s.cfg.MaxListLimit
	}

	var items []model.Swipe
	err := s.tx.Snapshot(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		items, err = s.swipes.ListByActor(ctx, tx, actorID, limit)
		return err
	})
	if err != nil {
		return nil, errs.Wrap("list swipes", err)
	}
	return items, nil
}

func emptyCounts() map[enums.SwipeStatus]int {
	return map[enums.SwipeStatus]int{
		enums.SwipeStatusLike:      0,
		enums.SwipeStatusSuperLike: 0,
		enums.SwipeStatusDislike:   0,
	}
}
