package rules

import (
	"testing"

	"github.com/ivankudzin/matchcore/internal/domain/enums"
	"github.com/ivankudzin/matchcore/internal/domain/model"
)

func swipe(status enums.SwipeStatus) *model.Swipe {
	return &model.Swipe{Status: status}
}

func TestDeriveRelationshipPriority(t *testing.T) {
	match := &model.Match{ID: 1, UserAID: 1, UserBID: 2}

	tests := []struct {
		name  string
		facts PairFacts
		want  enums.Relationship
	}{
		{name: "nothing", facts: PairFacts{}, want: enums.RelationshipNone},
		{name: "outgoing like", facts: PairFacts{ViewerSwipe: swipe(enums.SwipeStatusLike)}, want: enums.RelationshipWaitingForTheirResponse},
		{name: "outgoing superlike", facts: PairFacts{ViewerSwipe: swipe(enums.SwipeStatusSuperLike)}, want: enums.RelationshipWaitingForTheirResponse},
		{name: "outgoing dislike", facts: PairFacts{ViewerSwipe: swipe(enums.SwipeStatusDislike)}, want: enums.RelationshipNone},
		{name: "incoming like", facts: PairFacts{OtherSwipe: swipe(enums.SwipeStatusLike)}, want: enums.RelationshipWaitingForYourResponse},
		{name: "outgoing beats incoming", facts: PairFacts{ViewerSwipe: swipe(enums.SwipeStatusLike), OtherSwipe: swipe(enums.SwipeStatusLike)}, want: enums.RelationshipWaitingForTheirResponse},
		{name: "disliked incoming like", facts: PairFacts{ViewerSwipe: swipe(enums.SwipeStatusDislike), OtherSwipe: swipe(enums.SwipeStatusLike)}, want: enums.RelationshipWaitingForYourResponse},
		{name: "match", facts: PairFacts{Match: match}, want: enums.RelationshipMatched},
		{name: "block beats match", facts: PairFacts{Match: match, BlockedByOther: true}, want: enums.RelationshipBlocked},
		{name: "viewer block", facts: PairFacts{BlockedByViewer: true}, want: enums.RelationshipBlocked},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := DeriveRelationship(tc.facts); got != tc.want {
				t.Fatalf("unexpected relationship: got %s want %s", got, tc.want)
			}
		})
	}
}

func TestViolations(t *testing.T) {
	match := &model.Match{ID: 1, UserAID: 1, UserBID: 2}

	if v := Violations(PairFacts{ViewerSwipe: swipe(enums.SwipeStatusLike), OtherSwipe: swipe(enums.SwipeStatusLike), Match: match}); len(v) != 0 {
		t.Fatalf("expected consistent pair, got %v", v)
	}
	if v := Violations(PairFacts{ViewerSwipe: swipe(enums.SwipeStatusDislike), OtherSwipe: swipe(enums.SwipeStatusLike), Match: match}); len(v) != 1 {
		t.Fatalf("expected one violation for stale match, got %v", v)
	}
	if v := Violations(PairFacts{ViewerSwipe: swipe(enums.SwipeStatusLike), OtherSwipe: swipe(enums.SwipeStatusSuperLike)}); len(v) != 1 {
		t.Fatalf("expected one violation for missing match, got %v", v)
	}
	if v := Violations(PairFacts{BlockedByViewer: true, Match: match, OtherSwipe: swipe(enums.SwipeStatusLike)}); len(v) != 2 {
		t.Fatalf("expected two violations on blocked pair, got %v", v)
	}
	if v := Violations(PairFacts{Messages: 3}); len(v) != 1 {
		t.Fatalf("expected one violation for orphan messages, got %v", v)
	}
}

func TestNewPairKeyIsOrderIndependent(t *testing.T) {
	a := NewPairKey(42, 7)
	b := NewPairKey(7, 42)
	if a != b {
		t.Fatalf("pair keys differ: %v vs %v", a, b)
	}
	if a.Low != 7 || a.High != 42 {
		t.Fatalf("unexpected canonical order: %+v", a)
	}
	if a.String() != "pair:7:42" {
		t.Fatalf("unexpected key string: %s", a.String())
	}
	if a.Other(7) != 42 || a.Other(42) != 7 {
		t.Fatalf("unexpected other member")
	}
	if NewPairKey(5, 5).Valid() {
		t.Fatalf("self pair must be invalid")
	}
}
