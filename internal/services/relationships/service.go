// Package relationships answers "what is between A and B" by composing the
// block, match and swipe stores on every call. Nothing here is cached.
package relationships

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/errs"
	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

type Transactor interface {
	ReadPair(ctx context.Context, key rules.PairKey, fn func(context.Context, pgx.Tx) error) error
	Snapshot(ctx context.Context, fn func(context.Context, pgx.Tx) error) error
}

type FactsLoader interface {
	Facts(ctx context.Context, tx pgx.Tx, viewer, other int64) (rules.PairFacts, error)
}

type SwipeStore interface {
	ListPendingOutgoing(ctx context.Context, tx pgx.Tx, userID int64, limit int) ([]model.Swipe, error)
	ListPendingIncoming(ctx context.Context, tx pgx.Tx, userID int64, limit int) ([]model.Swipe, error)
}

type MatchStore interface {
	ListForUser(ctx context.Context, tx pgx.Tx, userID int64, limit int) ([]model.Match, error)
}

type BlockStore interface {
	ListByBlocker(ctx context.Context, tx pgx.Tx, blockerID int64) ([]model.Block, error)
	ListByBlocked(ctx context.Context, tx pgx.Tx, blockedID int64) ([]model.Block, error)
}

type Config struct {
	MaxListLimit int
}

type Dependencies struct {
	Tx      Transactor
	Facts   FactsLoader
	Swipes  SwipeStore
	Matches MatchStore
	Blocks  BlockStore
}

type Service struct {
	tx      Transactor
	facts   FactsLoader
	swipes  SwipeStore
	matches MatchStore
	blocks  BlockStore
	cfg     Config
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.MaxListLimit <= 0 {
		cfg.MaxListLimit = 100
	}
	return &Service{
		tx:      deps.Tx,
		facts:   deps.Facts,
		swipes:  deps.Swipes,
		matches: deps.Matches,
		blocks:  deps.Blocks,
		cfg:     cfg,
	}
}

type View struct {
	ViewerID     int64
	OtherID      int64
	Relationship enums.Relationship
	State        enums.PairState
	MatchID      int64
	BlockedBy    int64
}

// GetRelationship derives the relationship of viewer towards other from one
// consistent read of the pair.
func (s *Service) GetRelationship(ctx context.Context, viewerID, otherID int64) (View, error) {
	if viewerID == otherID {
		return View{}, errs.SelfReference("look up a relationship with")
	}

	var facts rules.PairFacts
	err := s.tx.ReadPair(ctx, rules.NewPairKey(viewerID, otherID), func(ctx context.Context, tx pgx.Tx) error {
		var err error
		facts, err = s.facts.Facts(ctx, tx, viewerID, otherID)
		return err
	})
	if err != nil {
		return View{}, errs.Wrap("get relationship", err)
	}

	view := View{
		ViewerID:     viewerID,
		OtherID:      otherID,
		Relationship: rules.DeriveRelationship(facts),
		State:        rules.DerivePairState(facts),
	}
	switch {
	case facts.BlockedByViewer:
		view.BlockedBy = viewerID
	case facts.BlockedByOther:
		view.BlockedBy = otherID
	case facts.Match != nil:
		view.MatchID = facts.Match.ID
	}
	return view, nil
}

type Connections struct {
	Matches  []model.Match
	Outgoing []model.Swipe
	Incoming []model.Swipe
}

// Connections lists matched partners plus pending interest in both
// directions. Pairs with a block in either direction never appear.
func (s *Service) Connections(ctx context.Context, userID int64, limit int) (Connections, error) {
	if limit <= 0 || limit > s.cfg.MaxListLimit {
		limit = s.cfg.MaxListLimit
	}

	var out Connections
	err := s.tx.Snapshot(ctx, func(ctx context.Context, tx pgx.Tx) error {
		blocked, err := s.blockedSet(ctx, tx, userID)
		if err != nil {
			return err
		}

		matchList, err := s.matches.ListForUser(ctx, tx, userID, limit)
		if err != nil {
			return err
		}
		outgoing, err := s.swipes.ListPendingOutgoing(ctx, tx, userID, limit)
		if err != nil {
			return err
		}
		incoming, err := s.swipes.ListPendingIncoming(ctx, tx, userID, limit)
		if err != nil {
			return err
		}

		out.Matches = make([]model.Match, 0, len(matchList))
		for _, m := range matchList {
			if _, skip := blocked[m.Other(userID)]; !skip {
				out.Matches = append(out.Matches, m)
			}
		}
		out.Outgoing = filterSwipes(outgoing, blocked, func(sw model.Swipe) int64 { return sw.TargetID })
		out.Incoming = filterSwipes(incoming, blocked, func(sw model.Swipe) int64 { return sw.SwiperID })
		return nil
	})
	if err != nil {
		return Connections{}, errs.Wrap("list connections", err)
	}
	return out, nil
}

func (s *Service) blockedSet(ctx context.Context, tx pgx.Tx, userID int64) (map[int64]struct{}, error) {
	byUser, err := s.blocks.ListByBlocker(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	ofUser, err := s.blocks.ListByBlocked(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	set := make(map[int64]struct{}, len(byUser)+len(ofUser))
	for _, b := range byUser {
		set[b.BlockedID] = struct{}{}
	}
	for _, b := range ofUser {
		set[b.BlockerID] = struct{}{}
	}
	return set, nil
}

func filterSwipes(items []model.Swipe, blocked map[int64]struct{}, other func(model.Swipe) int64) []model.Swipe {
	out := make([]model.Swipe, 0, len(items))
	for _, sw := range items {
		if _, skip := blocked[other(sw)]; !skip {
			out = append(out, sw)
		}
	}
	return out
}
