// Package matches owns the per-pair match state machine:
// NoRelation -> OneSidedInterest -> Matched -> TornDown -> NoRelation.
//
// Every Engine method that takes a pgx.Tx must run inside the caller's pair
// transaction; the Engine never opens one itself except for Unmatch,
// Repair and the read views.
package matches

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
	"github.com/ivankudzin/matchcore/internal/services/notify"
)

type Transactor interface {
	InPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error
	ReadPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error
	Snapshot(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type SwipeStore interface {
	Get(ctx context.Context, tx pgx.Tx, swiperID, targetID int64) (model.Swipe, bool, error)
	DeleteBetween(ctx context.Context, tx pgx.Tx, key rules.PairKey) (int64, error)
}

type MatchStore interface {
	Get(ctx context.Context, tx pgx.Tx, key rules.PairKey) (model.Match, bool, error)
	Create(ctx context.Context, tx pgx.Tx, key rules.PairKey, formedFromSwipeID int64, now time.Time) (model.Match, error)
	Delete(ctx context.Context, tx pgx.Tx, key rules.PairKey) (int64, error)
	ListForUser(ctx context.Context, tx pgx.Tx, userID int64, limit int) ([]model.Match, error)
}

type MessageStore interface {
	DeleteBetween(ctx context.Context, tx pgx.Tx, key rules.PairKey) (int64, error)
	CountBetween(ctx context.Context, tx pgx.Tx, key rules.PairKey) (int64, error)
}

type BlockStore interface {
	Between(ctx context.Context, tx pgx.Tx, userA, userB int64) (bool, bool, error)
}

type Notifier interface {
	Emit(ctx context.Context, events []notify.Event)
}

type Config struct {
	MaxListLimit int
}

type Dependencies struct {
	Tx       Transactor
	Swipes   SwipeStore
	Matches  MatchStore
	Messages MessageStore
	Blocks   BlockStore
	Notifier Notifier
	Logger   *zap.Logger
}

type Engine struct {
	tx       Transactor
	swipes   SwipeStore
	matches  MatchStore
	messages MessageStore
	blocks   BlockStore
	notifier Notifier
	logger   *zap.Logger
	cfg      Config
	now      func() time.Time
}

func NewEngine(deps Dependencies, cfg Config) *Engine {
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

	return &Engine{
		tx:       deps.Tx,
		swipes:   deps.Swipes,
		matches:  deps.Matches,
		messages: deps.Messages,
		blocks:   deps.Blocks,
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Evaluation is what a ledger write did to the pair.
type Evaluation struct {
	Match    *model.Match
	Created  bool
	TornDown bool
	Removed  model.CascadeCounts
	Events   []notify.Event
}

// Evaluate re-derives the match for the pair of swipe after the ledger
// write. Only the reciprocal's current status matters, never the order in
// which the two swipes landed.
func (e *Engine) Evaluate(ctx context.Context, tx pgx.Tx, swipe model.Swipe) (Evaluation, error) {
	key := rules.NewPairKey(swipe.SwiperID, swipe.TargetID)

	existing, matched, err := e.matches.Get(ctx, tx, key)
	if err != nil {
		return Evaluation{}, errs.Wrap("get match", err)
	}

	if !swipe.Status.IsPositive() {
		if !matched {
			return Evaluation{}, nil
		}
		removed, err := e.TeardownMatch(ctx, tx, key)
		if err != nil {
			return Evaluation{}, err
		}
		return Evaluation{TornDown: true, Removed: removed}, nil
	}

	if matched {
		return Evaluation{Match: &existing}, nil
	}

	reciprocal, ok, err := e.swipes.Get(ctx, tx, swipe.TargetID, swipe.SwiperID)
	if err != nil {
		return Evaluation{}, errs.Wrap("get reciprocal swipe", err)
	}
	if !ok || !reciprocal.Status.IsPositive() {
		return Evaluation{}, nil
	}

	return e.form(ctx, tx, key, swipe.ID)
}

func (e *Engine) form(ctx context.Context, tx pgx.Tx, key rules.PairKey, formedFromSwipeID int64) (Evaluation, error) {
	match, err := e.matches.Create(ctx, tx, key, formedFromSwipeID, e.now())
	if errs.IsRaceLost(err) {
		existing, ok, getErr := e.matches.Get(ctx, tx, key)
		if getErr != nil {
			return Evaluation{}, errs.Wrap("get match", getErr)
		}
		if !ok {
			return Evaluation{}, errs.Unavailable("create match", errors.New("match vanished after conflicting insert"))
		}
		e.logger.Debug("match insert lost race, converged", zap.Stringer("pair", key), zap.Int64("match_id", existing.ID))
		return Evaluation{Match: &existing}, nil
	}
	if err != nil {
		return Evaluation{}, errs.Wrap("create match", err)
	}

	return Evaluation{
		Match:   &match,
		Created: true,
		Events:  matchEvents(match),
	}, nil
}

// TeardownMatch removes the match of the pair and its whole thread. Swipes
// stay; this is the downgrade path.
func (e *Engine) TeardownMatch(ctx context.Context, tx pgx.Tx, key rules.PairKey) (model.CascadeCounts, error) {
	var removed model.CascadeCounts

	n, err := e.matches.Delete(ctx, tx, key)
	if err != nil {
		return removed, &errs.CascadeError{Step: "matches", Removed: removed, Err: err}
	}
	removed.Matches = n

	n, err = e.messages.DeleteBetween(ctx, tx, key)
	if err != nil {
		return removed, &errs.CascadeError{Step: "messages", Removed: removed, Err: err}
	}
	removed.Messages = n

	return removed, nil
}

// CascadeBlock voids everything between the pair: match, messages and
// both swipes. Deleting nothing is success, so it is safe to re-run.
func (e *Engine) CascadeBlock(ctx context.Context, tx pgx.Tx, key rules.PairKey) (model.CascadeCounts, error) {
	removed, err := e.TeardownMatch(ctx, tx, key)
	if err != nil {
		return removed, err
	}

	n, err := e.swipes.DeleteBetween(ctx, tx, key)
	if err != nil {
		return removed, &errs.CascadeError{Step: "swipes", Removed: removed, Err: err}
	}
	removed.Swipes = n

	return removed, nil
}

// Unmatch deletes the match, the thread and both swipes so the pair starts
// over from NoRelation.
func (e *Engine) Unmatch(ctx context.Context, userA, userB int64) (model.CascadeCounts, error) {
	if userA == userB {
		return model.CascadeCounts{}, errs.SelfReference("unmatch")
	}
	key := rules.NewPairKey(userA, userB)

	var removed model.CascadeCounts
	err := e.tx.InPair(ctx, key, func(ctx context.Context, tx pgx.Tx) error {
		aBlocksB, bBlocksA, err := e.blocks.Between(ctx, tx, userA, userB)
		if err != nil {
			return errs.Wrap("check blocks", err)
		}
		if aBlocksB || bBlocksA {
			return errs.Blocked(aBlocksB)
		}

		if _, ok, err := e.matches.Get(ctx, tx, key); err != nil {
			return errs.Wrap("get match", err)
		} else if !ok {
			return errs.ErrNotMatched
		}

		removed, err = e.CascadeBlock(ctx, tx, key)
		return err
	})
	if err != nil {
		return removed, errs.Wrap("unmatch", err)
	}

	e.logger.Info("pair unmatched",
		zap.Int64("user_id", userA),
		zap.Int64("target_id", userB),
		zap.Int64("messages_removed", removed.Messages),
	)
	return removed, nil
}

func (e *Engine) ListMatches(ctx context.Context, userID int64, limit int) ([]model.Match, error) {
	if limit <= 0 || limit > e.cfg.MaxListLimit {
		limit = e.cfg.MaxListLimit
	}

	var items []model.Match
	err := e.tx.Snapshot(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var err error
		items, err = e.matches.ListForUser(ctx, tx, userID, limit)
		return err
	})
	if err != nil {
		return nil, errs.Wrap("list matches", err)
	}
	return items, nil
}

// RepairResult describes what Repair changed for one pair.
type RepairResult struct {
	Key        rules.PairKey
	Violations []string
	Removed    model.CascadeCounts
	Formed     *model.Match
}

// Repair brings a pair back in line with the relationship rules by
// re-running the idempotent cascade that matches its violation.
func (e *Engine) Repair(ctx context.Context, key rules.PairKey) (RepairResult, error) {
	result := RepairResult{Key: key}

	var events []notify.Event
	err := e.tx.InPair(ctx, key, func(ctx context.Context, tx pgx.Tx) error {
		facts, err := e.Facts(ctx, tx, key.Low, key.High)
		if err != nil {
			return err
		}
		result.Violations = rules.Violations(facts)
		if len(result.Violations) == 0 {
			return nil
		}

		switch {
		case facts.Blocked():
			result.Removed, err = e.CascadeBlock(ctx, tx, key)
			return err
		case facts.Match != nil && !rules.ShouldBeMatched(facts):
			result.Removed, err = e.TeardownMatch(ctx, tx, key)
			return err
		case facts.Match == nil && rules.ShouldBeMatched(facts):
			completing := facts.ViewerSwipe
			if facts.OtherSwipe.UpdatedAt.After(completing.UpdatedAt) {
				completing = facts.OtherSwipe
			}
			eval, err := e.form(ctx, tx, key, completing.ID)
			if err != nil {
				return err
			}
			result.Formed = eval.Match
			events = eval.Events
			return nil
		case facts.Match == nil && facts.Messages > 0:
			n, err := e.messages.DeleteBetween(ctx, tx, key)
			if err != nil {
				return &errs.CascadeError{Step: "messages", Err: err}
			}
			result.Removed.Messages = n
			return nil
		}
		return nil
	})
	if err != nil {
		return result, errs.Wrap("repair pair", err)
	}

	e.notifier.Emit(ctx, events)
	return result, nil
}

// Facts loads everything the stores hold about the pair, seen from viewer.
func (e *Engine) Facts(ctx context.Context, tx pgx.Tx, viewer, other int64) (rules.PairFacts, error) {
	key := rules.NewPairKey(viewer, other)
	facts := rules.PairFacts{Viewer: viewer, Other: other}

	var err error
	facts.BlockedByViewer, facts.BlockedByOther, err = e.blocks.Between(ctx, tx, viewer, other)
	if err != nil {
		return facts, errs.Wrap("check blocks", err)
	}

	if match, ok, err := e.matches.Get(ctx, tx, key); err != nil {
		return facts, errs.Wrap("get match", err)
	} else if ok {
		facts.Match = &match
	}

	if swipe, ok, err := e.swipes.Get(ctx, tx, viewer, other); err != nil {
		return facts, errs.Wrap("get swipe", err)
	} else if ok {
		facts.ViewerSwipe = &swipe
	}

	if swipe, ok, err := e.swipes.Get(ctx, tx, other, viewer); err != nil {
		return facts, errs.Wrap("get swipe", err)
	} else if ok {
		facts.OtherSwipe = &swipe
	}

	if facts.Messages, err = e.messages.CountBetween(ctx, tx, key); err != nil {
		return facts, errs.Wrap("count messages", err)
	}

	return facts, nil
}

func matchEvents(match model.Match) []notify.Event {
	return []notify.Event{
		{
			RecipientID: match.UserAID,
			Type:        enums.NotificationTypeMatch,
			Payload:     model.NotificationPayload{ActorID: match.UserBID, MatchID: match.ID},
		},
		{
			RecipientID: match.UserBID,
			Type:        enums.NotificationTypeMatch,
			Payload:     model.NotificationPayload{ActorID: match.UserAID, MatchID: match.ID},
		},
	}
}
