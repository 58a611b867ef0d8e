package memory

import (
	"context"
	"sort"

	"github.com/ivankudzin/matchcore/internal/domain/model"
	"github.com/ivankudzin/matchcore/internal/domain/rules"
)

type ReconcileRepo struct {
	s *Store
}

func NewReconcileRepo(s *Store) *ReconcileRepo {
	return &ReconcileRepo{s: s}
}

// SuspectPairs returns every pair whose rows break the relationship rules.
func (r *ReconcileRepo) SuspectPairs(ctx context.Context, limit int) ([]rules.PairKey, error) {
	if err := r.s.lock(ctx, "reconcile.suspect_pairs"); err != nil {
		return nil, err
	}
	defer r.s.mu.Unlock()

	candidates := make(map[rules.PairKey]struct{})
	for k := range r.s.swipes {
		candidates[rules.NewPairKey(k.from, k.to)] = struct{}{}
	}
	for k := range r.s.matches {
		candidates[k] = struct{}{}
	}
	for _, msg := range r.s.messages {
		candidates[rules.NewPairKey(msg.SenderID, msg.ReceiverID)] = struct{}{}
	}

	items := make([]rules.PairKey, 0)
	for key := range candidates {
		if len(rules.Violations(r.s.factsLocked(key))) > 0 {
			items = append(items, key)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Low != items[j].Low {
			return items[i].Low < items[j].Low
		}
		return items[i].High < items[j].High
	})

	if limit <= 0 {
		limit = 500
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) factsLocked(key rules.PairKey) rules.PairFacts {
	facts := rules.PairFacts{Viewer: key.Low, Other: key.High}
	_, facts.BlockedByViewer = s.blocks[directedKey{from: key.Low, to: key.High}]
	_, facts.BlockedByOther = s.blocks[directedKey{from: key.High, to: key.Low}]
	if m, ok := s.matches[key]; ok {
		facts.Match = &m
	}
	if sw, ok := s.swipes[directedKey{from: key.Low, to: key.High}]; ok {
		facts.ViewerSwipe = &sw
	}
	if sw, ok := s.swipes[directedKey{from: key.High, to: key.Low}]; ok {
		facts.OtherSwipe = &sw
	}
	for _, msg := range s.messages {
		if inPair(msg, key) {
			facts.Messages++
		}
	}
	return facts
}

// Facts returns the current facts for a pair, seen from the lower id. Test helper.
func (s *Store) Facts(key rules.PairKey) rules.PairFacts {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.factsLocked(key)
}

// Messages returns every stored message between the pair. Test helper.
func (s *Store) Messages(key rules.PairKey) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]model.Message, 0)
	for _, msg := range s.messages {
		if inPair(msg, key) {
			items = append(items, msg)
		}
	}
	sortMessages(items)
	return items
}
